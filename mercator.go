package grib2grid

import "math"

// mercator is the spherical Mercator projection (GDT 3.10), true at latitude LaD.
type mercator struct {
	rk   float64 // earth radius scaled by cos(LaD)
	lon0 float64 // central longitude, degrees
}

func newMercator(r, lad, lon0 float64) *mercator {
	return &mercator{rk: r * math.Cos(toRad(lad)), lon0: lon0}
}

func (p *mercator) forward(lon, lat float64) (x, y float64, ok bool) {
	if math.Abs(lat) >= 90 {
		return math.NaN(), math.NaN(), false
	}
	x = p.rk * toRad(wrap180(lon-p.lon0))
	y = p.rk * math.Log(math.Tan(math.Pi/4+toRad(lat)/2))
	return x, y, true
}

func (p *mercator) inverse(x, y float64) (lon, lat float64) {
	lon = norm360(p.lon0 + toDeg(x/p.rk))
	lat = toDeg(2*math.Atan(math.Exp(y/p.rk)) - math.Pi/2)
	return lon, lat
}
