package grib2grid

import "math"

// ProjectionEngine prepares the mapping from geodetic points to grid
// coordinates for one grid definition.
//
// refLon/refLat are the grid point coordinates in the requested order (as
// returned by Sec3LatLon); the first of them is the grid origin (0, 0).
type ProjectionEngine interface {
	Init(sec3 []byte, refLon, refLat []float64, order Order) (PointMapper, error)
}

// PointMapper maps (lon, lat) pairs to fractional grid coordinates.
// x and y must be at least as long as lon.
type PointMapper interface {
	Project(lon, lat, x, y []float64) error
}

// plane maps geodetic degrees to plane coordinates in the units of the grid
// increments.
type plane interface {
	forward(lon, lat float64) (x, y float64, ok bool)
}

// projection is a plane that can be inverted. Grid points of the projected
// templates are computed through it.
type projection interface {
	plane
	inverse(x, y float64) (lon, lat float64)
}

// GridProjector is the default ProjectionEngine. It supports GDT 3.0, 3.1,
// 3.10, 3.20, 3.30 and 3.40 on a spherical earth (ellipsoids use their
// semi-major axis). It keeps no state between calls.
type GridProjector struct{}

func (GridProjector) Init(sec3 []byte, refLon, refLat []float64, order Order) (PointMapper, error) {
	gd, err := ParseGridDefinition(sec3)
	if err != nil {
		return nil, gridError(err)
	}
	if len(refLon) == 0 || len(refLat) == 0 {
		return nil, statusErrorf(StatusBadArgs, "projection init: empty reference arrays")
	}
	p, dx, dy, err := gridPlane(gd, gd.Earth.SphereRadius())
	if err != nil {
		return nil, err
	}
	x0, y0, ok := forwardPoint(p, refLon[0], refLat[0])
	if !ok {
		return nil, statusErrorf(StatusOutOfDomain, "projection init: reference point (%g, %g) cannot be projected",
			refLon[0], refLat[0])
	}
	sx, sy := gd.ScanMode.axisSigns(order)
	return &gridMapper{plane: p, x0: x0, y0: y0, dx: sx * dx, dy: sy * dy}, nil
}

// gridMapper is the per-call projection context returned by GridProjector.
type gridMapper struct {
	plane  plane
	x0, y0 float64
	dx, dy float64
}

// Project writes grid coordinates for every point. Points that cannot be
// projected, including non-finite input and latitudes beyond the poles, get
// NaN and the call reports StatusOutOfDomain.
func (m *gridMapper) Project(lon, lat, x, y []float64) error {
	if len(lat) != len(lon) || len(x) < len(lon) || len(y) < len(lon) {
		return statusErrorf(StatusBadArgs, "project: lon=%d lat=%d x=%d y=%d",
			len(lon), len(lat), len(x), len(y))
	}
	failed := 0
	for k := range lon {
		px, py, ok := forwardPoint(m.plane, lon[k], lat[k])
		if !ok {
			x[k], y[k] = math.NaN(), math.NaN()
			failed++
			continue
		}
		x[k] = (px - m.x0) / m.dx
		y[k] = (py - m.y0) / m.dy
	}
	if failed > 0 {
		return statusErrorf(StatusOutOfDomain, "project: %d of %d points cannot be projected", failed, len(lon))
	}
	return nil
}

// forwardPoint projects one geodetic point. It rejects points that are not
// on the globe and projections that do not land on a finite coordinate.
func forwardPoint(p plane, lon, lat float64) (x, y float64, ok bool) {
	if !finite(lon) || !finite(lat) || math.Abs(lat) > 90 {
		return 0, 0, false
	}
	x, y, ok = p.forward(lon, lat)
	return x, y, ok && finite(x) && finite(y)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// gridPlane builds the plane for a grid and its WESN increments in plane
// units. Zero increments are corrupt metadata and abort the engine.
func gridPlane(gd *GridDefinition, radius float64) (p plane, dx, dy float64, err error) {
	if gd.Projected() {
		return projectedPlane(gd, radius)
	}
	switch gd.Template {
	case TemplateLatLon:
		dx, dy = increments(gd, true)
		return &equirect{lon: lonAxisOf(gd)}, dx, dy, nil

	case TemplateRotatedLatLon:
		dx, dy = increments(gd, true)
		return &rotatedPlane{
			rot:  newPoleRotation(gd.LaSP, gd.LoSP, gd.Rotation),
			axis: equirect{lon: lonAxisOf(gd)},
		}, dx, dy, nil

	case TemplateGaussian:
		dx, _ = increments(gd, false)
		rows, err := gaussianRows(gd)
		if err != nil {
			return nil, 0, 0, &StatusError{Code: StatusBadGrid, Err: err}
		}
		return &gaussianPlane{lon: lonAxisOf(gd), rows: rows}, dx, 1, nil
	}
	return nil, 0, 0, statusErrorf(StatusUnsupported, "projection: template 3.%d not supported", gd.Template)
}

// projectedPlane builds the invertible plane of GDT 3.10, 3.20 and 3.30.
func projectedPlane(gd *GridDefinition, radius float64) (p projection, dx, dy float64, err error) {
	switch gd.Template {
	case TemplateMercator:
		dx, dy = increments(gd, true)
		axis := lonAxisOf(gd)
		return newMercator(radius, gd.LaD, axis.west+axis.span/2), dx, dy, nil

	case TemplatePolarStereo:
		dx, dy = increments(gd, true)
		return newPolarStereo(radius, gd.LaD, gd.LoV, gd.SouthPole), dx, dy, nil

	case TemplateLambert:
		dx, dy = increments(gd, true)
		lc, err := newLambert(radius, gd.Latin1, gd.Latin2, gd.LoV)
		if err != nil {
			return nil, 0, 0, &StatusError{Code: StatusBadGrid, Err: err}
		}
		return lc, dx, dy, nil
	}
	return nil, 0, 0, statusErrorf(StatusUnsupported, "projection: template 3.%d not supported", gd.Template)
}

// increments returns Di/Dj, aborting on zero or missing values along an
// axis with more than one point. A single-point axis gets a unit step.
func increments(gd *GridDefinition, needDj bool) (dx, dy float64) {
	dx, dy = gd.Di, gd.Dj
	if !(dx > 0) {
		if gd.Ni > 1 {
			fatalf("grid template 3.%d: invalid i increment %g", gd.Template, gd.Di)
		}
		dx = 1
	}
	if !(dy > 0) {
		if needDj && gd.Nj > 1 {
			fatalf("grid template 3.%d: invalid j increment %g", gd.Template, gd.Dj)
		}
		dy = 1
	}
	return dx, dy
}

// lonAxis describes the longitudes spanned by a grid row, west to east.
type lonAxis struct {
	west float64 // westernmost longitude, [0, 360)
	span float64 // (Ni-1)*Di, degrees
}

// lonAxisOf returns the row longitudes of the lat-lon family and Mercator.
func lonAxisOf(gd *GridDefinition) lonAxis {
	di := gd.Di
	if !(di > 0) {
		di = 0
	}
	span := float64(gd.Ni-1) * di
	if gd.Template == TemplateMercator {
		// Mercator increments are metres; the corner points give the span.
		west, east := gd.Lo1, gd.Lo2
		if gd.ScanMode&ScanIWestward != 0 {
			west, east = east, west
		}
		span = norm360(east - west)
		return lonAxis{west: norm360(west), span: span}
	}
	west := gd.Lo1
	if gd.ScanMode&ScanIWestward != 0 {
		west = gd.Lo1 - span
	}
	return lonAxis{west: norm360(west), span: span}
}

// offset returns the eastward distance in degrees from the west edge.
// The gap between the east and west edges is split in half so that points
// just west of the grid get small negative offsets. On a global grid the
// gap is one increment wide.
func (a lonAxis) offset(lon float64) float64 {
	d := norm360(lon - a.west)
	if d > a.span+(360-a.span)/2 {
		d -= 360
	}
	return d
}

// equirect is the regular lat-lon "projection": degrees east of the west
// edge and degrees north.
type equirect struct {
	lon lonAxis
}

func (p *equirect) forward(lon, lat float64) (x, y float64, ok bool) {
	return p.lon.offset(lon), lat, true
}

// rotatedPlane is equirect in the rotated frame of GDT 3.1.
type rotatedPlane struct {
	rot  poleRotation
	axis equirect
}

func (p *rotatedPlane) forward(lon, lat float64) (x, y float64, ok bool) {
	lonR, latR := p.rot.toRotated(lon, lat)
	return p.axis.forward(lonR, latR)
}

// gaussianPlane maps latitude to a fractional row index.
type gaussianPlane struct {
	lon  lonAxis
	rows []float64
}

func (p *gaussianPlane) forward(lon, lat float64) (x, y float64, ok bool) {
	return p.lon.offset(lon), fractionalIndex(p.rows, lat), true
}
