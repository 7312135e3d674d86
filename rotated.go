package grib2grid

import "math"

// poleRotation converts between geographic coordinates and the rotated
// frame of GDT 3.1, whose south pole sits at (LaSP, LoSP).
// The angle of rotation is applied as a shift of rotated longitude.
type poleRotation struct {
	loSP, rot  float64 // degrees
	sinT, cosT float64 // of θ = -(LaSP + 90°)
}

func newPoleRotation(laSP, loSP, rot float64) poleRotation {
	θ := toRad(-(laSP + 90))
	return poleRotation{loSP: loSP, rot: rot, sinT: math.Sin(θ), cosT: math.Cos(θ)}
}

// toGeographic maps a rotated (lon, lat) to geographic degrees.
func (r poleRotation) toGeographic(lonR, latR float64) (lon, lat float64) {
	λ := toRad(lonR - r.rot)
	φ := toRad(latR)
	x := math.Cos(λ) * math.Cos(φ)
	y := math.Sin(λ) * math.Cos(φ)
	z := math.Sin(φ)

	x2 := r.cosT*x + r.sinT*z
	z2 := -r.sinT*x + r.cosT*z
	return norm360(toDeg(math.Atan2(y, x2)) + r.loSP), toDeg(math.Asin(clampUnit(z2)))
}

// toRotated is the inverse of toGeographic.
func (r poleRotation) toRotated(lon, lat float64) (lonR, latR float64) {
	λ := toRad(lon - r.loSP)
	φ := toRad(lat)
	x2 := math.Cos(λ) * math.Cos(φ)
	y := math.Sin(λ) * math.Cos(φ)
	z2 := math.Sin(φ)

	x := r.cosT*x2 - r.sinT*z2
	z := r.sinT*x2 + r.cosT*z2
	return norm360(toDeg(math.Atan2(y, x)) + r.rot), toDeg(math.Asin(clampUnit(z)))
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
