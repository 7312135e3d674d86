package grib2grid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// hrrrSpec is the HRRR CONUS 3 km Lambert conformal grid.
const hrrrSpec = "lambert:262.5:38.5:38.5:38.5 237.280472:1799:3000 21.138123:1059:3000"

// mustSec3 builds Section 3 bytes from a grid string.
func mustSec3(tb testing.TB, spec string, opts ...GridSpecOption) []byte {
	tb.Helper()
	sec, err := ParseGridString(spec, opts...)
	require.NoError(tb, err, "grid %q", spec)
	return sec
}

// mustSec3Scan builds Section 3 bytes from a grid string with an explicit
// scanning mode.
func mustSec3Scan(tb testing.TB, spec string, scan ScanMode) []byte {
	tb.Helper()
	gd, err := GridFromSpec(strings.Fields(spec))
	require.NoError(tb, err, "grid %q", spec)
	gd.ScanMode = scan
	sec, err := gd.MarshalBinary()
	require.NoError(tb, err)
	return sec
}

// wantIndex returns the grid coordinates of the k-th point in order.
func wantIndex(k, ni, nj int, scan ScanMode, order Order) (i, j int) {
	if order == OrderWESN {
		return k % ni, k / ni
	}
	if scan&ScanJConsecutive != 0 {
		return k / nj, k % nj
	}
	i, j = k%ni, k/ni
	if scan&ScanBoustrophedon != 0 && j%2 == 1 {
		i = ni - 1 - i
	}
	return i, j
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
