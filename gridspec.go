package grib2grid

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ncepGrids are the predefined NCEP grids accepted as "ncep grid N".
var ncepGrids = map[int]string{
	2:   "latlon 0:144:2.5 90:73:-2.5",
	3:   "latlon 0:360:1 90:181:-1",
	4:   "latlon 0:720:0.5 90:361:-0.5",
	45:  "latlon 0:288:1.25 90:145:-1.25",
	98:  "gaussian 0:192:1.875 88.5419501372975:94",
	126: "gaussian 0:384:0.9375 89.2767128781058:190",
	127: "gaussian 0:768:0.46875 89.6416480725934:384",
	128: "gaussian 0:1152:0.3125 89.7609950778017:576",
	129: "gaussian 0:1760:0.20454545454545 89.8435135178685:880",
	170: "gaussian 0:512:0.703125 89.4628215685774:256",
	173: "latlon 0.041666667:4320:0.083333333 89.95833333:2160:-0.083333333",
	184: "lambert:265:25 238.446:2145:2540 20.192:1377:2540",
	194: "mercator:20 284.5:544:2500:297.491 15:310:2500:22.005",
	221: "lambert:253:50 214.5:349:32463.41 1:277:32463.41",
	230: "latlon 0:720:0.5 90:361:-0.5",
	242: "nps:225:60 187:553:11250 30:425:11250",
	249: "nps:210.0:60.0 188.4:367:9867.89 45.4:343:9867.89",
}

// GridSpecOption adjusts a grid built by ParseGridSpec.
type GridSpecOption func(*GridDefinition)

// WithGridWinds marks vector components as grid-relative.
func WithGridWinds() GridSpecOption {
	return func(gd *GridDefinition) { gd.ResFlags |= 0x08 }
}

// WithEarth sets the figure of the earth. The default is code 6, a sphere
// of radius 6371229 m.
func WithEarth(e Earth) GridSpecOption {
	return func(gd *GridDefinition) { gd.Earth = e }
}

// ParseGridString parses a whitespace-separated wgrib2-style grid
// description, or "ncep grid N" for a predefined NCEP grid, and returns
// the Section 3 bytes.
func ParseGridString(s string, opts ...GridSpecOption) ([]byte, error) {
	return ParseGridSpec(strings.Fields(s), opts...)
}

// ParseGridSpec builds a Section 3 from wgrib2-style grid arguments:
//
//	latlon lon0:nlon:dlon lat0:nlat:dlat
//	rot-ll:splon:splat:rot lon0:nlon:dlon lat0:nlat:dlat
//	mercator:lad lon0:nx:dx:lon2 lat0:ny:dy:lat2
//	nps:lov:lad lon0:nx:dx lat0:ny:dy   (or sps:...)
//	lambert:lov:latin1[:latin2[:lad]] lon0:nx:dx lat0:ny:dy
//	gaussian lon0:nlon:dlon lat0:nlat
//
// A negative increment selects the opposite scanning direction.
func ParseGridSpec(fields []string, opts ...GridSpecOption) ([]byte, error) {
	gd, err := GridFromSpec(fields, opts...)
	if err != nil {
		return nil, err
	}
	return gd.MarshalBinary()
}

// GridFromSpec is ParseGridSpec without the final encoding step.
func GridFromSpec(fields []string, opts ...GridSpecOption) (*GridDefinition, error) {
	if len(fields) == 3 && fields[0] == "ncep" && fields[1] == "grid" {
		num, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("grid spec: NCEP grid number %q: %w", fields[2], err)
		}
		s, ok := ncepGrids[num]
		if !ok {
			return nil, fmt.Errorf("grid spec: unsupported NCEP grid %d", num)
		}
		fields = strings.Fields(s)
	}
	if len(fields) != 3 {
		return nil, fmt.Errorf("grid spec: want 3 fields, got %d", len(fields))
	}

	gd := &GridDefinition{
		Earth:    sphere(6, 6371229.0),
		ResFlags: 0x30,
		ScanMode: ScanJNorthward,
	}
	head := strings.Split(fields[0], ":")
	x, err := specAxis(fields[1], 3, 4)
	if err != nil {
		return nil, fmt.Errorf("grid spec: x axis: %w", err)
	}
	minY := 3
	if head[0] == "gaussian" {
		minY = 2
	}
	y, err := specAxis(fields[2], minY, 4)
	if err != nil {
		return nil, fmt.Errorf("grid spec: y axis: %w", err)
	}
	gd.Lo1, gd.Ni, gd.La1, gd.Nj = x.start, x.n, y.start, y.n
	gd.Di, gd.Dj = math.Abs(x.step), math.Abs(y.step)
	if x.step < 0 {
		gd.ScanMode |= ScanIWestward
	}
	if y.step < 0 {
		gd.ScanMode &^= ScanJNorthward
	}

	switch head[0] {
	case "latlon", "rot-ll":
		gd.Template = TemplateLatLon
		gd.La2 = gd.La1 + float64(gd.Nj-1)*y.step
		gd.Lo2 = norm360(gd.Lo1 + float64(gd.Ni-1)*x.step)
		if head[0] == "rot-ll" {
			v, err := specFloats(head, 3)
			if err != nil {
				return nil, fmt.Errorf("grid spec: %w", err)
			}
			gd.Template = TemplateRotatedLatLon
			gd.LoSP, gd.LaSP, gd.Rotation = v[0], v[1], v[2]
		}

	case "gaussian":
		gd.Template = TemplateGaussian
		gd.Dj = 0
		if gd.Nj%2 != 0 {
			return nil, fmt.Errorf("grid spec: gaussian grid needs an even number of latitudes, got %d", gd.Nj)
		}
		gd.N = gd.Nj / 2
		gd.La2 = -gd.La1
		gd.Lo2 = norm360(gd.Lo1 + float64(gd.Ni-1)*x.step)
		gd.ScanMode &^= ScanJNorthward
		if gd.La1 < gd.La2 {
			gd.ScanMode |= ScanJNorthward
		}

	case "mercator":
		v, err := specFloats(head, 1)
		if err != nil {
			return nil, fmt.Errorf("grid spec: %w", err)
		}
		if !x.hasEnd || !y.hasEnd {
			return nil, fmt.Errorf("grid spec: mercator needs lon2 and lat2")
		}
		gd.Template = TemplateMercator
		gd.LaD = v[0]
		gd.Lo2, gd.La2 = x.end, y.end
		if y.end < y.start {
			gd.ScanMode &^= ScanJNorthward
		}

	case "nps", "sps":
		v, err := specFloats(head, 2)
		if err != nil {
			return nil, fmt.Errorf("grid spec: %w", err)
		}
		gd.Template = TemplatePolarStereo
		gd.LoV, gd.LaD = v[0], v[1]
		gd.SouthPole = head[0] == "sps"

	case "lambert":
		if len(head) < 3 || len(head) > 5 {
			return nil, fmt.Errorf("grid spec: lambert wants lov:latin1[:latin2[:lad]]")
		}
		v, err := specFloats(head, len(head)-1)
		if err != nil {
			return nil, fmt.Errorf("grid spec: %w", err)
		}
		gd.Template = TemplateLambert
		gd.LoV, gd.Latin1 = v[0], v[1]
		gd.Latin2 = gd.Latin1
		if len(v) > 2 {
			gd.Latin2 = v[2]
		}
		gd.LaD = gd.Latin2
		if len(v) > 3 {
			gd.LaD = v[3]
		}
		gd.SouthPole = gd.Latin2 < 0
		gd.LaSP, gd.LoSP = -90, 0
		if gd.SouthPole {
			gd.LaSP = 90
		}

	default:
		return nil, fmt.Errorf("grid spec: projection %q: %w", head[0], ErrUnsupportedGrid)
	}

	for _, o := range opts {
		o(gd)
	}
	gd.NPoints = gd.Points()
	return gd, nil
}

// specAxisValues is one "start:n:step[:end]" argument.
type specAxisValues struct {
	start  float64
	n      int
	step   float64
	end    float64
	hasEnd bool
}

func specAxis(s string, minParts, maxParts int) (specAxisValues, error) {
	var a specAxisValues
	tok := strings.Split(s, ":")
	if len(tok) < minParts || len(tok) > maxParts {
		return a, fmt.Errorf("%q: want %d to %d colon-separated values", s, minParts, maxParts)
	}
	var err error
	if a.start, err = strconv.ParseFloat(tok[0], 64); err != nil {
		return a, fmt.Errorf("%q: %w", s, err)
	}
	if a.n, err = strconv.Atoi(tok[1]); err != nil {
		return a, fmt.Errorf("%q: %w", s, err)
	}
	if a.n <= 0 || a.n > maxGridDim {
		return a, fmt.Errorf("%q: %d points out of range", s, a.n)
	}
	if len(tok) > 2 {
		if a.step, err = strconv.ParseFloat(tok[2], 64); err != nil {
			return a, fmt.Errorf("%q: %w", s, err)
		}
	}
	if len(tok) > 3 {
		if a.end, err = strconv.ParseFloat(tok[3], 64); err != nil {
			return a, fmt.Errorf("%q: %w", s, err)
		}
		a.hasEnd = true
	}
	return a, nil
}

// specFloats parses the n values after the projection name.
func specFloats(head []string, n int) ([]float64, error) {
	if len(head) != n+1 {
		return nil, fmt.Errorf("%s: want %d parameters, got %d", head[0], n, len(head)-1)
	}
	v := make([]float64, n)
	for i, s := range head[1:] {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%s parameter %d: %w", head[0], i+1, err)
		}
		v[i] = f
	}
	return v, nil
}
