package grib2grid

import "gonum.org/v1/gonum/floats"

// Extractor computes the longitude and latitude of every grid point of a
// Section 3, laid out in the given order. Longitudes are in [0, 360).
type Extractor interface {
	LatLon(sec3 []byte, order Order) (lon, lat []float64, err error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(sec3 []byte, order Order) (lon, lat []float64, err error)

func (f ExtractorFunc) LatLon(sec3 []byte, order Order) ([]float64, []float64, error) {
	return f(sec3, order)
}

// PrimaryExtractor is the projection fast path. It handles Mercator, polar
// stereographic and Lambert conformal grids on a spherical earth and
// reports StatusUnsupported for everything else.
type PrimaryExtractor struct{}

func (PrimaryExtractor) LatLon(sec3 []byte, order Order) ([]float64, []float64, error) {
	gd, err := ParseGridDefinition(sec3)
	if err != nil {
		return nil, nil, gridError(err)
	}
	if !gd.Projected() {
		return nil, nil, statusErrorf(StatusUnsupported, "primary extractor: template 3.%d (%s) is not projected",
			gd.Template, gd.Template)
	}
	if !gd.Earth.Spherical {
		return nil, nil, statusErrorf(StatusUnsupported, "primary extractor: ellipsoidal earth (shape %d)", gd.Earth.Code)
	}
	checkPoints(gd)
	p, dx, dy, err := projectedPlane(gd, gd.Earth.Radius)
	if err != nil {
		return nil, nil, err
	}
	lon, lat, err := walkPlane(gd, p, dx, dy)
	if err != nil {
		return nil, nil, err
	}
	return reorder(lon, gd.Ni, gd.Nj, gd.ScanMode, order),
		reorder(lat, gd.Ni, gd.Nj, gd.ScanMode, order), nil
}

// FallbackExtractor handles every supported template. Lat-lon, rotated and
// Gaussian grids are computed in closed form; projected grids on an
// ellipsoid use its semi-major axis as the sphere radius.
type FallbackExtractor struct{}

func (FallbackExtractor) LatLon(sec3 []byte, order Order) ([]float64, []float64, error) {
	gd, err := ParseGridDefinition(sec3)
	if err != nil {
		return nil, nil, gridError(err)
	}
	checkPoints(gd)

	var lon, lat []float64
	switch gd.Template {
	case TemplateLatLon:
		dx, dy := increments(gd, true)
		lon, lat = meshLatLon(lonColumns(gd, dx), latRows(gd, dy), nil)

	case TemplateRotatedLatLon:
		dx, dy := increments(gd, true)
		rot := newPoleRotation(gd.LaSP, gd.LoSP, gd.Rotation)
		lon, lat = meshLatLon(lonColumns(gd, dx), latRows(gd, dy), rot.toGeographic)

	case TemplateGaussian:
		dx, _ := increments(gd, false)
		rows, err := gaussianRows(gd)
		if err != nil {
			return nil, nil, &StatusError{Code: StatusBadGrid, Err: err}
		}
		lon, lat = meshLatLon(lonColumns(gd, dx), rows, nil)

	case TemplateMercator, TemplatePolarStereo, TemplateLambert:
		p, dx, dy, err := projectedPlane(gd, gd.Earth.SphereRadius())
		if err != nil {
			return nil, nil, err
		}
		if lon, lat, err = walkPlane(gd, p, dx, dy); err != nil {
			return nil, nil, err
		}

	default:
		return nil, nil, statusErrorf(StatusUnsupported, "fallback extractor: template 3.%d not supported", gd.Template)
	}
	return reorder(lon, gd.Ni, gd.Nj, gd.ScanMode, order),
		reorder(lat, gd.Ni, gd.Nj, gd.ScanMode, order), nil
}

// checkPoints aborts when the template dimensions disagree with the
// Section 3 point count.
func checkPoints(gd *GridDefinition) {
	if gd.Points() != gd.NPoints {
		fatalf("grid template 3.%d: %dx%d points but section 3 declares %d",
			gd.Template, gd.Ni, gd.Nj, gd.NPoints)
	}
}

// walkPlane inverse-projects every grid point from the first point of the
// grid, returning WESN row-major coordinates.
func walkPlane(gd *GridDefinition, p projection, dx, dy float64) (lon, lat []float64, err error) {
	x0, y0, ok := forwardPoint(p, gd.Lo1, gd.La1)
	if !ok {
		return nil, nil, statusErrorf(StatusBadGrid, "first grid point (%g, %g) cannot be projected", gd.Lo1, gd.La1)
	}
	fi, fj := gd.ScanMode.firstPoint(gd.Ni, gd.Nj)
	n := gd.Points()
	lon = make([]float64, n)
	lat = make([]float64, n)
	for j := 0; j < gd.Nj; j++ {
		y := y0 + float64(j-fj)*dy
		for i := 0; i < gd.Ni; i++ {
			k := j*gd.Ni + i
			lon[k], lat[k] = p.inverse(x0+float64(i-fi)*dx, y)
		}
	}
	return lon, lat, nil
}

// lonColumns returns the WESN column longitudes of a lat-lon family grid.
func lonColumns(gd *GridDefinition, dx float64) []float64 {
	a := lonAxisOf(gd)
	cols := span(gd.Ni, a.west, dx)
	for i, v := range cols {
		cols[i] = norm360(v)
	}
	return cols
}

// latRows returns the WESN row latitudes of a regular grid.
func latRows(gd *GridDefinition, dy float64) []float64 {
	south := gd.La1
	if gd.ScanMode&ScanJNorthward == 0 {
		south = gd.La1 - float64(gd.Nj-1)*dy
	}
	return span(gd.Nj, south, dy)
}

// span returns n evenly spaced values from start with the given step.
func span(n int, start, step float64) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	return floats.Span(out, start, start+float64(n-1)*step)
}

// meshLatLon expands column and row coordinates into WESN row-major arrays,
// optionally mapping each point through conv.
func meshLatLon(cols, rows []float64, conv func(lon, lat float64) (float64, float64)) (lon, lat []float64) {
	ni, nj := len(cols), len(rows)
	lon = make([]float64, ni*nj)
	lat = make([]float64, ni*nj)
	for j, y := range rows {
		for i, x := range cols {
			k := j*ni + i
			if conv != nil {
				lon[k], lat[k] = conv(x, y)
			} else {
				lon[k], lat[k] = x, y
			}
		}
	}
	return lon, lat
}
