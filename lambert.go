package grib2grid

import (
	"fmt"
	"math"
)

// lambertConformal is the spherical Lambert conformal conic projection
// (GDT 3.30). Secant and tangent cones, northern or southern hemisphere.
//
// Convention: x east-positive, y = -ρ*cos(θ) so y is north-positive.
type lambertConformal struct {
	r   float64 // earth radius, metres
	n   float64 // cone constant, negative for southern cones
	f   float64
	lov float64 // central meridian, degrees
}

func newLambert(r, latin1, latin2, lov float64) (*lambertConformal, error) {
	var n float64
	if latin1 == latin2 {
		n = math.Sin(toRad(latin1))
	} else {
		φ1 := toRad(latin1)
		φ2 := toRad(latin2)
		n = math.Log(math.Cos(φ1)/math.Cos(φ2)) /
			math.Log(math.Tan(math.Pi/4+φ2/2)/math.Tan(math.Pi/4+φ1/2))
	}
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, fmt.Errorf("lambert: degenerate cone for Latin1=%g Latin2=%g", latin1, latin2)
	}
	φ1 := toRad(latin1)
	f := math.Cos(φ1) * math.Pow(math.Tan(math.Pi/4+φ1/2), n) / n
	return &lambertConformal{r: r, n: n, f: f, lov: lov}, nil
}

// rho returns the cone distance (metres) from the apex for a latitude.
// It is negative for southern cones.
func (p *lambertConformal) rho(latDeg float64) float64 {
	φ := toRad(latDeg)
	return p.r * p.f / math.Pow(math.Tan(math.Pi/4+φ/2), p.n)
}

func (p *lambertConformal) forward(lon, lat float64) (x, y float64, ok bool) {
	ρ := p.rho(lat)
	if math.IsNaN(ρ) || math.IsInf(ρ, 0) {
		return math.NaN(), math.NaN(), false
	}
	θ := p.n * toRad(wrap180(lon-p.lov))
	return ρ * math.Sin(θ), -ρ * math.Cos(θ), true
}

func (p *lambertConformal) inverse(x, y float64) (lon, lat float64) {
	s := math.Copysign(1, p.n)
	ρ := s * math.Hypot(x, y)
	if ρ == 0 {
		return norm360(p.lov), 90 * s
	}
	// x = ρ*sin(θ), -y = ρ*cos(θ)
	θ := math.Atan2(s*x, -s*y)
	φ := 2*math.Atan(math.Pow(p.r*p.f/ρ, 1/p.n)) - math.Pi/2
	return norm360(p.lov + toDeg(θ)/p.n), toDeg(φ)
}

// helpers
func toRad(d float64) float64 { return d * math.Pi / 180 }
func toDeg(r float64) float64 { return r * 180 / math.Pi }

// NormLon converts a 0-360 longitude to -180..+180.
// GRIB2 longitudes use the 0-360 convention.
func NormLon(lon float64) float64 {
	if lon > 180 {
		return lon - 360
	}
	return lon
}

// norm360 folds any longitude into [0, 360).
func norm360(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	if lon >= 360 {
		lon -= 360
	}
	return lon
}

// wrap180 folds a longitude difference into [-180, 180).
func wrap180(d float64) float64 {
	return norm360(d+180) - 180
}
