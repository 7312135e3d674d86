package grib2grid

import "math"

// polarStereo is the spherical polar stereographic projection (GDT 3.20),
// true at latitude LaD and centred on the north or south pole.
type polarStereo struct {
	rk    float64 // R * (1 + sin|LaD|)
	lov   float64 // orientation longitude, degrees
	south bool
}

func newPolarStereo(r, lad, lov float64, south bool) *polarStereo {
	return &polarStereo{
		rk:    r * (1 + math.Sin(toRad(math.Abs(lad)))),
		lov:   lov,
		south: south,
	}
}

func (p *polarStereo) forward(lon, lat float64) (x, y float64, ok bool) {
	φ := toRad(lat)
	θ := toRad(lon - p.lov)
	if p.south {
		if lat >= 90 {
			return math.NaN(), math.NaN(), false
		}
		ρ := p.rk * math.Tan(math.Pi/4+φ/2)
		return ρ * math.Sin(θ), ρ * math.Cos(θ), true
	}
	if lat <= -90 {
		return math.NaN(), math.NaN(), false
	}
	ρ := p.rk * math.Tan(math.Pi/4-φ/2)
	return ρ * math.Sin(θ), -ρ * math.Cos(θ), true
}

func (p *polarStereo) inverse(x, y float64) (lon, lat float64) {
	ρ := math.Hypot(x, y)
	c := 2 * math.Atan(ρ/p.rk)
	if p.south {
		return norm360(p.lov + toDeg(math.Atan2(x, y))), toDeg(c - math.Pi/2)
	}
	return norm360(p.lov + toDeg(math.Atan2(x, -y))), toDeg(math.Pi/2 - c)
}
