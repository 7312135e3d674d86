package grib2grid

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate/quad"
)

// maxGaussianN caps the number of parallels between a pole and the equator.
const maxGaussianN = 1 << 14

// GaussianLatitudes returns the 2n Gaussian latitudes of a grid with n
// parallels between a pole and the equator, in degrees, south to north.
// They are the arcsines of the roots of the Legendre polynomial of degree 2n.
func GaussianLatitudes(n int) ([]float64, error) {
	if n <= 0 || n > maxGaussianN {
		return nil, fmt.Errorf("gaussian: N=%d out of range [1, %d]", n, maxGaussianN)
	}
	x := make([]float64, 2*n)
	w := make([]float64, 2*n)
	quad.Legendre{}.FixedLocations(x, w, -1, 1)
	sort.Float64s(x)
	for i, v := range x {
		x[i] = toDeg(math.Asin(v))
	}
	// The nodes are antisymmetric; enforce it exactly.
	for i := 0; i < n; i++ {
		m := (x[2*n-1-i] - x[i]) / 2
		x[i], x[2*n-1-i] = -m, m
	}
	return x, nil
}

// gaussianRows selects the Nj Gaussian latitudes of a (possibly regional)
// Gaussian grid, south to north.
func gaussianRows(gd *GridDefinition) ([]float64, error) {
	if gd.N == 0 {
		fatalf("gaussian grid with N=0")
	}
	all, err := GaussianLatitudes(gd.N)
	if err != nil {
		return nil, err
	}
	if gd.Nj > len(all) {
		return nil, fmt.Errorf("gaussian: Nj=%d exceeds 2N=%d", gd.Nj, len(all))
	}
	south := gd.La1
	if gd.ScanMode&ScanJNorthward == 0 {
		south = gd.La2
	}
	k := nearestIndex(all, south)
	// Coordinates are stored to 1e-6 degrees at best; half a row spacing is generous.
	tol := 90.0 / float64(2*gd.N)
	if math.Abs(all[k]-south) > tol {
		return nil, fmt.Errorf("gaussian: first latitude %g is not a Gaussian latitude of N=%d", south, gd.N)
	}
	if k+gd.Nj > len(all) {
		return nil, fmt.Errorf("gaussian: %d rows from latitude %g overrun the grid", gd.Nj, south)
	}
	return all[k : k+gd.Nj], nil
}

// nearestIndex returns the index of the value in ascending s closest to v.
func nearestIndex(s []float64, v float64) int {
	k := sort.SearchFloat64s(s, v)
	if k == len(s) {
		return len(s) - 1
	}
	if k > 0 && v-s[k-1] < s[k]-v {
		return k - 1
	}
	return k
}

// fractionalIndex returns the fractional position of v within ascending s,
// extrapolating linearly beyond either end.
func fractionalIndex(s []float64, v float64) float64 {
	if len(s) == 1 {
		return 0
	}
	k := sort.SearchFloat64s(s, v)
	switch {
	case k == 0:
		k = 1
	case k == len(s):
		k = len(s) - 1
	}
	lo, hi := s[k-1], s[k]
	return float64(k-1) + (v-lo)/(hi-lo)
}
