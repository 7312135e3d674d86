package grib2grid

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MarshalBinary encodes the definition as a complete Section 3.
// Angles are written in micro-degrees (basic angle 0) and projected
// increments in millimetres. NPoints is taken from Ni*Nj.
func (gd *GridDefinition) MarshalBinary() ([]byte, error) {
	var n int
	switch gd.Template {
	case TemplateLatLon, TemplateGaussian, TemplateMercator:
		n = 58
	case TemplateRotatedLatLon:
		n = 70
	case TemplatePolarStereo:
		n = 51
	case TemplateLambert:
		n = 67
	default:
		return nil, fmt.Errorf("encode: template 3.%d: %w", gd.Template, ErrUnsupportedGrid)
	}
	if gd.Ni <= 0 || gd.Nj <= 0 || gd.Ni > maxGridDim || gd.Nj > maxGridDim {
		return nil, fmt.Errorf("encode: invalid grid dimensions %dx%d", gd.Ni, gd.Nj)
	}

	sec := make([]byte, sec3HeaderLen+n)
	binary.BigEndian.PutUint32(sec[0:4], uint32(len(sec)))
	sec[4] = 3
	binary.BigEndian.PutUint32(sec[6:10], uint32(gd.Ni*gd.Nj))
	binary.BigEndian.PutUint16(sec[12:14], uint16(gd.Template))

	w := tmplWriter{g: sec[sec3HeaderLen:]}
	if err := w.earth(gd.Earth); err != nil {
		return nil, err
	}
	w.u32(16, uint32(gd.Ni))
	w.u32(20, uint32(gd.Nj))

	switch gd.Template {
	case TemplateLatLon, TemplateGaussian, TemplateRotatedLatLon:
		w.u32(24, 0)
		w.u32(28, missing32)
		w.micro(32, gd.La1)
		w.micro(36, norm360(gd.Lo1))
		w.g[40] = gd.ResFlags
		w.micro(41, gd.La2)
		w.micro(45, norm360(gd.Lo2))
		w.microU(49, gd.Di)
		if gd.Template == TemplateGaussian {
			w.u32(53, uint32(gd.N))
		} else {
			w.microU(53, gd.Dj)
		}
		w.g[57] = byte(gd.ScanMode)
		if gd.Template == TemplateRotatedLatLon {
			w.micro(58, gd.LaSP)
			w.micro(62, gd.LoSP)
			w.u32(66, math.Float32bits(float32(gd.Rotation)))
		}

	case TemplateMercator:
		w.micro(24, gd.La1)
		w.micro(28, norm360(gd.Lo1))
		w.g[32] = gd.ResFlags
		w.micro(33, gd.LaD)
		w.micro(37, gd.La2)
		w.micro(41, norm360(gd.Lo2))
		w.g[45] = byte(gd.ScanMode)
		w.u32(46, 0)
		w.milli(50, gd.Di)
		w.milli(54, gd.Dj)

	case TemplatePolarStereo, TemplateLambert:
		w.micro(24, gd.La1)
		w.micro(28, norm360(gd.Lo1))
		w.g[32] = gd.ResFlags
		w.micro(33, gd.LaD)
		w.micro(37, norm360(gd.LoV))
		w.milli(41, gd.Di)
		w.milli(45, gd.Dj)
		centre := gd.projCentre
		if gd.SouthPole {
			centre |= 0x80
		}
		w.g[49] = centre
		w.g[50] = byte(gd.ScanMode)
		if gd.Template == TemplateLambert {
			w.micro(51, gd.Latin1)
			w.micro(55, gd.Latin2)
			w.micro(59, gd.LaSP)
			w.micro(63, gd.LoSP)
		}
	}
	return sec, nil
}

// tmplWriter is the encoding counterpart of tmpl.
type tmplWriter struct {
	g []byte
}

func (w tmplWriter) u32(off int, v uint32) { binary.BigEndian.PutUint32(w.g[off:off+4], v) }

func (w tmplWriter) micro(off int, deg float64) {
	w.u32(off, encodeSignMag32(int64(math.Round(deg*1e6))))
}

func (w tmplWriter) microU(off int, deg float64) {
	if math.IsNaN(deg) {
		w.u32(off, missing32)
		return
	}
	w.u32(off, uint32(math.Round(math.Abs(deg)*1e6)))
}

func (w tmplWriter) milli(off int, m float64) {
	w.u32(off, uint32(math.Round(math.Abs(m)*1e3)))
}

// earth writes the shape-of-earth octets. Radii and axes in metres carry one
// decimal; code 3 is in km and carries three.
func (w tmplWriter) earth(e Earth) error {
	w.g[0] = e.Code
	for _, off := range []int{1, 6, 11} {
		w.g[off] = 0xFF
		w.u32(off+1, missing32)
	}
	scale := 1
	if e.Code == 3 {
		scale = 3
	}
	scaled := func(off int, v float64) {
		w.g[off] = byte(scale)
		w.u32(off+1, uint32(math.Round(v*math.Pow(10, float64(scale)))))
	}
	switch e.Code {
	case 0, 2, 4, 5, 6, 8, 9:
	case 1:
		if !(e.Radius > 0) {
			return fmt.Errorf("encode: shape of earth 1 needs a radius")
		}
		scaled(1, e.Radius)
	case 3, 7:
		if !(e.Major > 0) || !(e.Minor > 0) {
			return fmt.Errorf("encode: shape of earth %d needs both axes", e.Code)
		}
		major, minor := e.Major, e.Minor
		if e.Code == 3 {
			major, minor = major/1000, minor/1000
		}
		scaled(6, major)
		scaled(11, minor)
	default:
		return fmt.Errorf("encode: shape of earth %d not supported", e.Code)
	}
	return nil
}
