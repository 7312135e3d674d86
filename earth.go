package grib2grid

import (
	"fmt"
	"math"
)

// Earth describes the figure of the earth from GRIB2 Code Table 3.2.
type Earth struct {
	Code      byte
	Spherical bool
	Radius    float64 // metres, spheres only
	Major     float64 // semi-major axis, metres
	Minor     float64 // semi-minor axis, metres
}

// SphereRadius returns the radius used by the spherical projection formulas.
// Ellipsoids are approximated by their semi-major axis.
func (e Earth) SphereRadius() float64 {
	if e.Spherical {
		return e.Radius
	}
	return e.Major
}

// parseEarth decodes the 16 shape-of-earth octets at the start of a
// GDT (shape, scaled radius, scaled major axis, scaled minor axis).
func parseEarth(g []byte) (Earth, error) {
	if len(g) < 16 {
		return Earth{}, fmt.Errorf("shape of earth: need 16 bytes, got %d", len(g))
	}
	code := g[0]
	scaled := func(off int) float64 {
		scale := g[off]
		v := be32(g[off+1:])
		if scale == 0xFF || v == missing32 {
			return math.NaN()
		}
		return float64(v) / math.Pow(10, float64(scale))
	}

	switch code {
	case 0:
		return sphere(code, 6367470.0), nil
	case 1:
		r := scaled(1)
		if math.IsNaN(r) || r <= 0 {
			return Earth{}, fmt.Errorf("shape of earth 1: missing radius")
		}
		return sphere(code, r), nil
	case 2:
		return ellipsoid(code, 6378160.0, 6356775.0), nil
	case 3, 7:
		major, minor := scaled(6), scaled(11)
		if math.IsNaN(major) || math.IsNaN(minor) || major <= 0 || minor <= 0 {
			return Earth{}, fmt.Errorf("shape of earth %d: missing axes", code)
		}
		if code == 3 { // km
			major *= 1000
			minor *= 1000
		}
		return ellipsoid(code, major, minor), nil
	case 4:
		return ellipsoid(code, 6378137.0, 6356752.314), nil
	case 5:
		return ellipsoid(code, 6378137.0, 6356752.3142), nil
	case 6:
		return sphere(code, 6371229.0), nil
	case 8:
		return sphere(code, 6371200.0), nil
	case 9:
		return ellipsoid(code, 6377563.396, 6356256.909), nil
	default:
		return Earth{}, fmt.Errorf("shape of earth %d not supported", code)
	}
}

func sphere(code byte, r float64) Earth {
	return Earth{Code: code, Spherical: true, Radius: r, Major: r, Minor: r}
}

func ellipsoid(code byte, major, minor float64) Earth {
	return Earth{Code: code, Major: major, Minor: minor}
}
