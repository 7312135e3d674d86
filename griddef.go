// Package grib2grid computes GRIB2 grid geometry: the latitude/longitude of
// every point of a Section 3 grid definition, and the fractional grid
// coordinates of arbitrary geodetic points.
//
// The Bridge type ties a projection engine and two coordinate extractors
// together and converts fatal engine conditions into a fixed status code.
package grib2grid

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Template is a GRIB2 Grid Definition Template number (Code Table 3.1).
type Template int

const (
	TemplateLatLon        Template = 0
	TemplateRotatedLatLon Template = 1
	TemplateMercator      Template = 10
	TemplatePolarStereo   Template = 20
	TemplateLambert       Template = 30
	TemplateGaussian      Template = 40
)

func (t Template) String() string {
	switch t {
	case TemplateLatLon:
		return "latlon"
	case TemplateRotatedLatLon:
		return "rotated_latlon"
	case TemplateMercator:
		return "mercator"
	case TemplatePolarStereo:
		return "polar_stereographic"
	case TemplateLambert:
		return "lambert_conformal"
	case TemplateGaussian:
		return "gaussian"
	}
	return fmt.Sprintf("gdt_3.%d", int(t))
}

// GridDefinition is a decoded Section 3.
//
// Angles are degrees; longitudes keep the GRIB 0-360 convention.
// Di/Dj are degrees for the lat-lon family (0, 1, 40) and metres for
// projected grids (10, 20, 30).
type GridDefinition struct {
	Template Template
	NPoints  int // number of data points from the Section 3 header
	Earth    Earth

	Ni, Nj   int
	La1, Lo1 float64 // first grid point in scan order
	La2, Lo2 float64 // last grid point (lat-lon family and Mercator)
	Di, Dj   float64

	LaD            float64 // latitude where Di/Dj are specified (10, 20, 30)
	LoV            float64 // orientation longitude (20, 30)
	Latin1, Latin2 float64 // secant latitudes (30)
	SouthPole      bool    // projection centre flag bit 1 (20, 30)

	LaSP, LoSP float64 // southern pole of the rotated grid (1)
	Rotation   float64 // angle of rotation (1)

	N int // Gaussian parallels between a pole and the equator (40)

	ResFlags byte
	ScanMode ScanMode

	projCentre byte
	raw        []byte
}

// Raw returns the Section 3 bytes the definition was decoded from.
func (g *GridDefinition) Raw() []byte { return g.raw }

// Points returns Ni*Nj.
func (g *GridDefinition) Points() int { return g.Ni * g.Nj }

// Projected reports whether the template maps through a plane projection.
func (g *GridDefinition) Projected() bool {
	switch g.Template {
	case TemplateMercator, TemplatePolarStereo, TemplateLambert:
		return true
	}
	return false
}

// ProjectionCentre returns the raw projection centre flags (Flag Table 3.5).
func (g *GridDefinition) ProjectionCentre() byte { return g.projCentre }

// GridWinds reports whether vector components are grid-relative
// (resolution and component flag bit 5).
func (g *GridDefinition) GridWinds() bool { return g.ResFlags&0x08 != 0 }

// ParseGridDefinition decodes a complete Section 3 (including its 5-byte
// section header).
func ParseGridDefinition(sec []byte) (*GridDefinition, error) {
	// sec[0:4]=length, sec[4]=3, sec[5]=source, sec[6:10]=Npts,
	// sec[10]=optional list octets, sec[11]=list interpretation, sec[12:14]=GDT number
	if len(sec) < sec3HeaderLen+16 {
		return nil, fmt.Errorf("section 3: too short (%d bytes)", len(sec))
	}
	if sec[4] != 3 {
		return nil, fmt.Errorf("section 3: section number is %d", sec[4])
	}
	if sLen := be32(sec[0:4]); uint64(sLen) > uint64(len(sec)) {
		return nil, fmt.Errorf("section 3: length %d overflows buffer %d", sLen, len(sec))
	}
	if sec[5] != 0 {
		return nil, fmt.Errorf("section 3: source of grid definition %d: %w", sec[5], ErrUnsupportedGrid)
	}
	if sec[10] != 0 {
		return nil, fmt.Errorf("section 3: quasi-regular grids (optional list of %d octets): %w",
			sec[10], ErrUnsupportedGrid)
	}

	gd := &GridDefinition{
		Template: Template(binary.BigEndian.Uint16(sec[12:14])),
		NPoints:  int(be32(sec[6:10])),
		raw:      sec,
	}
	g := sec[sec3HeaderLen:]

	earth, err := parseEarth(g)
	if err != nil {
		return nil, fmt.Errorf("section 3: %w", err)
	}
	gd.Earth = earth

	switch gd.Template {
	case TemplateLatLon, TemplateGaussian:
		err = gd.parseLatLon(g)
	case TemplateRotatedLatLon:
		err = gd.parseRotatedLatLon(g)
	case TemplateMercator:
		err = gd.parseMercator(g)
	case TemplatePolarStereo:
		err = gd.parsePolarStereo(g)
	case TemplateLambert:
		err = gd.parseLambert(g)
	default:
		return nil, fmt.Errorf("section 3: template 3.%d: %w", gd.Template, ErrUnsupportedGrid)
	}
	if err != nil {
		return nil, fmt.Errorf("section 3 (template 3.%d): %w", gd.Template, err)
	}

	if gd.Ni <= 0 || gd.Ni > maxGridDim || gd.Nj <= 0 || gd.Nj > maxGridDim {
		return nil, fmt.Errorf("section 3: invalid grid dimensions %dx%d (max %d)",
			gd.Ni, gd.Nj, maxGridDim)
	}
	if int64(gd.Ni)*int64(gd.Nj) > maxGridPoints {
		return nil, fmt.Errorf("section 3: %dx%d grid exceeds %d points", gd.Ni, gd.Nj, maxGridPoints)
	}
	if gd.ScanMode&ScanBoustrophedon != 0 && gd.ScanMode&ScanJConsecutive != 0 {
		return nil, fmt.Errorf("section 3: boustrophedon scanning with j-consecutive points: %w",
			ErrUnsupportedGrid)
	}
	return gd, nil
}

func be32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

// tmpl is a bounds-checked reader over GDT data.
type tmpl struct {
	g []byte
}

func newTmpl(g []byte, need int) (tmpl, error) {
	if len(g) < need {
		return tmpl{}, fmt.Errorf("template data too short (%d bytes, need %d)", len(g), need)
	}
	return tmpl{g: g}, nil
}

func (t tmpl) u32(off int) uint32 { return be32(t.g[off : off+4]) }
func (t tmpl) i32(off int) int64 { return decodeSignMag32(t.u32(off)) }
func (t tmpl) octet(off int) byte { return t.g[off] }
func (t tmpl) micro(off int) float64 { return float64(t.i32(off)) / 1e6 }
func (t tmpl) milli(off int) float64 { return float64(t.u32(off)) / 1e3 }

// angleUnit is a number of degrees expressed as num/den.
type angleUnit struct {
	num, den float64
}

func (u angleUnit) degrees(v int64) float64 { return float64(v) * u.num / u.den }

// parseAngleUnit returns the angle unit from the basic angle and its
// subdivisions (zero or missing means micro-degrees).
func parseAngleUnit(basic, subdiv uint32) (angleUnit, error) {
	if basic == 0 || basic == missing32 {
		return angleUnit{num: 1, den: 1e6}, nil
	}
	if subdiv == 0 || subdiv == missing32 {
		return angleUnit{}, fmt.Errorf("basic angle %d with missing subdivisions", basic)
	}
	return angleUnit{num: float64(basic), den: float64(subdiv)}, nil
}

// Template 3.0 / 3.40 offsets (g = Section 3 from octet 15):
//
//	g+16..19  Ni
//	g+20..23  Nj
//	g+24..27  basic angle
//	g+28..31  subdivisions of basic angle
//	g+32..35  La1
//	g+36..39  Lo1
//	g+40      resolution and component flags
//	g+41..44  La2
//	g+45..48  Lo2
//	g+49..52  Di
//	g+53..56  Dj (3.0) or N (3.40)
//	g+57      scanning mode
func (gd *GridDefinition) parseLatLon(g []byte) error {
	t, err := newTmpl(g, 58)
	if err != nil {
		return err
	}
	unit, err := parseAngleUnit(t.u32(24), t.u32(28))
	if err != nil {
		return err
	}
	angle := func(off int) float64 { return unit.degrees(t.i32(off)) }

	gd.Ni = int(t.u32(16))
	gd.Nj = int(t.u32(20))
	gd.La1 = angle(32)
	gd.Lo1 = angle(36)
	gd.ResFlags = t.octet(40)
	gd.La2 = angle(41)
	gd.Lo2 = angle(45)
	gd.ScanMode = ScanMode(t.octet(57))

	if t.u32(49) == missing32 {
		gd.Di = math.NaN()
	} else {
		gd.Di = unit.degrees(int64(t.u32(49)))
	}
	if gd.Template == TemplateGaussian {
		gd.N = int(t.u32(53))
	} else if t.u32(53) == missing32 {
		gd.Dj = math.NaN()
	} else {
		gd.Dj = unit.degrees(int64(t.u32(53)))
	}
	gd.fillLatLonIncrements()
	return nil
}

// fillLatLonIncrements derives a missing Di/Dj from the corner points.
func (gd *GridDefinition) fillLatLonIncrements() {
	if math.IsNaN(gd.Di) && gd.Ni > 1 {
		span := math.Abs(gd.Lo2 - gd.Lo1)
		if gd.ScanMode&ScanIWestward == 0 && gd.Lo2 < gd.Lo1 {
			span = gd.Lo2 + 360 - gd.Lo1
		} else if gd.ScanMode&ScanIWestward != 0 && gd.Lo1 < gd.Lo2 {
			span = gd.Lo1 + 360 - gd.Lo2
		}
		gd.Di = span / float64(gd.Ni-1)
	}
	if math.IsNaN(gd.Dj) && gd.Nj > 1 {
		gd.Dj = math.Abs(gd.La2-gd.La1) / float64(gd.Nj-1)
	}
}

// Template 3.1 adds, after the 3.0 layout:
//
//	g+58..61  latitude of the southern pole
//	g+62..65  longitude of the southern pole
//	g+66..69  angle of rotation (IEEE 32-bit float)
func (gd *GridDefinition) parseRotatedLatLon(g []byte) error {
	if err := gd.parseLatLon(g); err != nil {
		return err
	}
	t, err := newTmpl(g, 70)
	if err != nil {
		return err
	}
	unit, err := parseAngleUnit(t.u32(24), t.u32(28))
	if err != nil {
		return err
	}
	gd.LaSP = unit.degrees(t.i32(58))
	gd.LoSP = unit.degrees(t.i32(62))
	gd.Rotation = float64(math.Float32frombits(t.u32(66)))
	return nil
}

// Template 3.10 offsets:
//
//	g+16..19  Ni          g+37..40  La2
//	g+20..23  Nj          g+41..44  Lo2
//	g+24..27  La1         g+45      scanning mode
//	g+28..31  Lo1         g+46..49  grid orientation
//	g+32      res flags   g+50..53  Di (mm)
//	g+33..36  LaD         g+54..57  Dj (mm)
func (gd *GridDefinition) parseMercator(g []byte) error {
	t, err := newTmpl(g, 58)
	if err != nil {
		return err
	}
	gd.Ni = int(t.u32(16))
	gd.Nj = int(t.u32(20))
	gd.La1 = t.micro(24)
	gd.Lo1 = t.micro(28)
	gd.ResFlags = t.octet(32)
	gd.LaD = t.micro(33)
	gd.La2 = t.micro(37)
	gd.Lo2 = t.micro(41)
	gd.ScanMode = ScanMode(t.octet(45))
	if o := t.u32(46); o != 0 && o != missing32 {
		return fmt.Errorf("rotated Mercator (orientation %d): %w", o, ErrUnsupportedGrid)
	}
	gd.Di = t.milli(50)
	gd.Dj = t.milli(54)
	return nil
}

// Template 3.20 offsets:
//
//	g+16..19  Nx          g+37..40  LoV
//	g+20..23  Ny          g+41..44  Dx (mm)
//	g+24..27  La1         g+45..48  Dy (mm)
//	g+28..31  Lo1         g+49      projection centre flag
//	g+32      res flags   g+50      scanning mode
//	g+33..36  LaD
func (gd *GridDefinition) parsePolarStereo(g []byte) error {
	t, err := newTmpl(g, 51)
	if err != nil {
		return err
	}
	gd.parseConic(t)
	return nil
}

// Template 3.30 shares the 3.20 layout and adds:
//
//	g+51..54  Latin1
//	g+55..58  Latin2
//	g+59..62  latitude of the southern pole
//	g+63..66  longitude of the southern pole
func (gd *GridDefinition) parseLambert(g []byte) error {
	t, err := newTmpl(g, 67)
	if err != nil {
		return err
	}
	gd.parseConic(t)
	if gd.ProjectionCentre()&0x40 != 0 {
		return fmt.Errorf("bipolar Lambert projection: %w", ErrUnsupportedGrid)
	}
	gd.Latin1 = t.micro(51)
	gd.Latin2 = t.micro(55)
	gd.LaSP = t.micro(59)
	gd.LoSP = t.micro(63)
	return nil
}

func (gd *GridDefinition) parseConic(t tmpl) {
	gd.Ni = int(t.u32(16))
	gd.Nj = int(t.u32(20))
	gd.La1 = t.micro(24)
	gd.Lo1 = t.micro(28)
	gd.ResFlags = t.octet(32)
	gd.LaD = t.micro(33)
	gd.LoV = t.micro(37)
	gd.Di = t.milli(41)
	gd.Dj = t.milli(45)
	gd.projCentre = t.octet(49)
	gd.SouthPole = gd.projCentre&0x80 != 0
	gd.ScanMode = ScanMode(t.octet(50))
}
