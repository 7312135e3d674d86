package grib2grid

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// MarshalBinary / ParseGridDefinition
// ---------------------------------------------------------------------------

func TestGridDefinitionRoundTrip(t *testing.T) {
	earth := sphere(6, 6371229.0)
	cases := []GridDefinition{
		{
			Template: TemplateLatLon, Earth: earth, Ni: 360, Nj: 181,
			La1: 90, Lo1: 0, La2: -90, Lo2: 359, Di: 1, Dj: 1,
			ResFlags: 0x30, ScanMode: 0,
		},
		{
			Template: TemplateRotatedLatLon, Earth: earth, Ni: 21, Nj: 16,
			La1: -15, Lo1: 340, La2: 0, Lo2: 0, Di: 1, Dj: 1,
			LaSP: -40, LoSP: 10, Rotation: 15,
			ResFlags: 0x30, ScanMode: ScanJNorthward,
		},
		{
			Template: TemplateGaussian, Earth: earth, Ni: 192, Nj: 94,
			La1: 88.54195, Lo1: 0, La2: -88.54195, Lo2: 358.125, Di: 1.875, N: 47,
			ResFlags: 0x30,
		},
		{
			Template: TemplateMercator, Earth: earth, Ni: 544, Nj: 310,
			La1: 15, Lo1: 284.5, La2: 22.005, Lo2: 297.491, Di: 2500, Dj: 2500, LaD: 20,
			ResFlags: 0x30, ScanMode: ScanJNorthward,
		},
		{
			Template: TemplatePolarStereo, Earth: earth, Ni: 553, Nj: 425,
			La1: 30, Lo1: 187, Di: 11250, Dj: 11250, LaD: 60, LoV: 225,
			ResFlags: 0x38, ScanMode: ScanJNorthward,
		},
		{
			Template: TemplatePolarStereo, Earth: earth, Ni: 20, Nj: 15,
			La1: -50, Lo1: 120, Di: 20000, Dj: 20000, LaD: -60, LoV: 0, SouthPole: true,
			ResFlags: 0x30, ScanMode: ScanJNorthward | ScanIWestward,
		},
		{
			Template: TemplateLambert, Earth: earth, Ni: 1799, Nj: 1059,
			La1: 21.138123, Lo1: 237.280472, Di: 3000, Dj: 3000,
			LaD: 38.5, LoV: 262.5, Latin1: 38.5, Latin2: 38.5, LaSP: -90, LoSP: 0,
			ResFlags: 0x38, ScanMode: ScanJNorthward,
		},
		{
			Template: TemplateLambert, Earth: ellipsoid(3, 6378137.0, 6356752.0), Ni: 25, Nj: 20,
			La1: -20, Lo1: 120, Di: 10000, Dj: 10000,
			LaD: -30, LoV: 135, Latin1: -30, Latin2: -30, LaSP: 90, LoSP: 0, SouthPole: true,
			ResFlags: 0x30, ScanMode: ScanJNorthward,
		},
	}
	opts := []cmp.Option{
		cmpopts.IgnoreUnexported(GridDefinition{}),
		cmpopts.EquateApprox(0, 1e-6),
	}
	for _, want := range cases {
		t.Run(want.Template.String(), func(t *testing.T) {
			want.NPoints = want.Points()
			sec, err := want.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, uint32(len(sec)), binary.BigEndian.Uint32(sec[0:4]))
			assert.Equal(t, byte(3), sec[4])

			got, err := ParseGridDefinition(sec)
			require.NoError(t, err)
			if diff := cmp.Diff(&want, got, opts...); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, sec, got.Raw())
			assert.Equal(t, want.SouthPole, got.ProjectionCentre()&0x80 != 0)
		})
	}
}

func TestGridDefinitionAccessors(t *testing.T) {
	gd, err := GridFromSpec([]string{"lambert:265:25", "238.446:30:2540", "20.192:20:2540"}, WithGridWinds())
	require.NoError(t, err)
	sec, err := gd.MarshalBinary()
	require.NoError(t, err)
	got, err := ParseGridDefinition(sec)
	require.NoError(t, err)

	assert.True(t, got.Projected())
	assert.True(t, got.GridWinds())
	assert.Equal(t, 600, got.Points())
	assert.Equal(t, 600, got.NPoints)

	ll, err := ParseGridDefinition(mustSec3(t, "latlon 0:4:1 0:3:1"))
	require.NoError(t, err)
	assert.False(t, ll.Projected())
	assert.False(t, ll.GridWinds())
}

func TestTemplateString(t *testing.T) {
	assert.Equal(t, "lambert_conformal", TemplateLambert.String())
	assert.Equal(t, "gaussian", TemplateGaussian.String())
	assert.Equal(t, "gdt_3.90", Template(90).String())
}

// latlonSec returns a 4x3 lat-lon Section 3 for byte-level edits.
// Offsets below are into the full section (template data starts at 14).
func latlonSec(t *testing.T) []byte {
	t.Helper()
	return mustSec3(t, "latlon 0:4:1 0:3:1")
}

func TestParseGridDefinitionErrors(t *testing.T) {
	put := func(b []byte, off int, v uint32) { binary.BigEndian.PutUint32(b[off:off+4], v) }

	cases := []struct {
		name        string
		sec         func() []byte
		unsupported bool
	}{
		{"too short", func() []byte { return latlonSec(t)[:29] }, false},
		{"wrong section number", func() []byte { b := latlonSec(t); b[4] = 4; return b }, false},
		{"length overflows buffer", func() []byte { b := latlonSec(t); put(b, 0, 1000); return b }, false},
		{"predetermined grid", func() []byte { b := latlonSec(t); b[5] = 1; return b }, true},
		{"quasi-regular", func() []byte { b := latlonSec(t); b[10] = 2; return b }, true},
		{"unknown template", func() []byte { b := latlonSec(t); b[13] = 90; return b }, true},
		{"zero Ni", func() []byte { b := latlonSec(t); put(b, 30, 0); return b }, false},
		{"huge Nj", func() []byte { b := latlonSec(t); put(b, 34, maxGridDim+1); return b }, false},
		{"unknown earth shape", func() []byte { b := latlonSec(t); b[14] = 42; return b }, false},
		{"missing subdivisions", func() []byte { b := latlonSec(t); put(b, 38, 1); put(b, 42, 0); return b }, false},
		{"boustrophedon j-consecutive", func() []byte { b := latlonSec(t); b[71] = 0x70; return b }, true},
		{"truncated template", func() []byte {
			b := latlonSec(t)[:60]
			put(b, 0, 60)
			return b
		}, false},
		{"rotated mercator", func() []byte {
			b := mustSec3(t, "mercator:20 280:30:10000:282.7 15:25:10000:17.2")
			put(b, 60, 45)
			return b
		}, true},
		{"bipolar lambert", func() []byte {
			b := mustSec3(t, "lambert:265:25 238.446:30:2540 20.192:20:2540")
			b[63] |= 0x40
			return b
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseGridDefinition(tc.sec())
			require.Error(t, err)
			assert.Equal(t, tc.unsupported, errors.Is(err, ErrUnsupportedGrid), "err = %v", err)

			want := StatusBadGrid
			if tc.unsupported {
				want = StatusUnsupported
			}
			assert.Equal(t, want, StatusCode(gridError(err)))
		})
	}
}

// A header within the per-axis limits can still describe more points than
// the engine will allocate coordinates for.
func TestParseGridDefinitionPointCap(t *testing.T) {
	gd, err := GridFromSpec(strings.Fields("latlon 0:100000:0.0036 -90:2684:0.067"))
	require.NoError(t, err)
	sec, err := gd.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, sec, 72)

	_, err = ParseGridDefinition(sec)
	assert.ErrorContains(t, err, "exceeds")

	lon, lat, err := Sec3LatLon(sec)
	assert.Equal(t, StatusBadGrid, StatusCode(err))
	assert.Nil(t, lon)
	assert.Nil(t, lat)

	_, _, err = LL2IJ(sec, []float64{0}, []float64{-90}, []float64{1}, []float64{1})
	assert.Equal(t, StatusBadGrid, StatusCode(err))

	// The largest predefined grid stays under the cap.
	big, err := ParseGridString("ncep grid 173")
	require.NoError(t, err)
	gd, err = ParseGridDefinition(big)
	require.NoError(t, err)
	assert.Equal(t, 4320*2160, gd.Points())
}

func TestParseGridDefinitionBasicAngle(t *testing.T) {
	b := latlonSec(t)
	put := func(off int, v uint32) { binary.BigEndian.PutUint32(b[off:off+4], v) }
	put(38, 1)    // basic angle
	put(42, 1000) // millidegrees
	put(46, 45000)
	put(50, encodeSignMag32(-90000))
	put(63, 500)

	gd, err := ParseGridDefinition(b)
	require.NoError(t, err)
	assert.InDelta(t, 45.0, gd.La1, 1e-12)
	assert.InDelta(t, -90.0, gd.Lo1, 1e-12)
	assert.InDelta(t, 0.5, gd.Di, 1e-12)
}

func TestParseGridDefinitionMissingIncrements(t *testing.T) {
	b := latlonSec(t)
	binary.BigEndian.PutUint32(b[63:67], missing32)
	binary.BigEndian.PutUint32(b[67:71], missing32)

	gd, err := ParseGridDefinition(b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, gd.Di, 1e-12)
	assert.InDelta(t, 1.0, gd.Dj, 1e-12)
}

func TestParseGridDefinitionMissingIncrementAcrossDateline(t *testing.T) {
	gd, err := GridFromSpec([]string{"latlon", "350:11:2", "0:2:1"})
	require.NoError(t, err)
	gd.Di = math.NaN()
	sec, err := gd.MarshalBinary()
	require.NoError(t, err)

	got, err := ParseGridDefinition(sec)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got.Di, 1e-9)
}

// ---------------------------------------------------------------------------
// Earth
// ---------------------------------------------------------------------------

func TestParseEarth(t *testing.T) {
	cases := []struct {
		code         byte
		spherical    bool
		major, minor float64
	}{
		{0, true, 6367470.0, 6367470.0},
		{2, false, 6378160.0, 6356775.0},
		{4, false, 6378137.0, 6356752.314},
		{5, false, 6378137.0, 6356752.3142},
		{6, true, 6371229.0, 6371229.0},
		{8, true, 6371200.0, 6371200.0},
		{9, false, 6377563.396, 6356256.909},
	}
	for _, tc := range cases {
		g := make([]byte, 16)
		g[0] = tc.code
		e, err := parseEarth(g)
		require.NoError(t, err, "code %d", tc.code)
		assert.Equal(t, tc.spherical, e.Spherical, "code %d", tc.code)
		assert.Equal(t, tc.major, e.Major, "code %d", tc.code)
		assert.Equal(t, tc.minor, e.Minor, "code %d", tc.code)
		assert.Equal(t, tc.major, e.SphereRadius(), "code %d", tc.code)
	}
}

func TestParseEarthScaledValues(t *testing.T) {
	w := tmplWriter{g: make([]byte, 16)}
	require.NoError(t, w.earth(Earth{Code: 1, Radius: 6371000}))
	e, err := parseEarth(w.g)
	require.NoError(t, err)
	assert.True(t, e.Spherical)
	assert.InDelta(t, 6371000.0, e.Radius, 1e-6)

	w = tmplWriter{g: make([]byte, 16)}
	require.NoError(t, w.earth(Earth{Code: 3, Major: 6378137, Minor: 6356752}))
	e, err = parseEarth(w.g)
	require.NoError(t, err)
	assert.False(t, e.Spherical)
	assert.InDelta(t, 6378137.0, e.Major, 1e-6)
	assert.InDelta(t, 6356752.0, e.Minor, 1e-6)

	w = tmplWriter{g: make([]byte, 16)}
	require.NoError(t, w.earth(Earth{Code: 7, Major: 6378137.5, Minor: 6356752.25}))
	e, err = parseEarth(w.g)
	require.NoError(t, err)
	assert.InDelta(t, 6378137.5, e.Major, 1e-6)
	assert.InDelta(t, 6356752.3, e.Minor, 1e-6)
}

func TestParseEarthErrors(t *testing.T) {
	missing := make([]byte, 16)
	for i := range missing {
		missing[i] = 0xFF
	}
	for _, code := range []byte{1, 3, 7} {
		g := append([]byte(nil), missing...)
		g[0] = code
		_, err := parseEarth(g)
		assert.Error(t, err, "code %d with missing values", code)
	}
	_, err := parseEarth(make([]byte, 8))
	assert.Error(t, err)
	_, err = parseEarth([]byte{10, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// MarshalBinary errors
// ---------------------------------------------------------------------------

func TestMarshalBinaryErrors(t *testing.T) {
	cases := []struct {
		name string
		gd   GridDefinition
	}{
		{"unsupported template", GridDefinition{Template: 90, Ni: 1, Nj: 1, Earth: sphere(6, 6371229)}},
		{"zero dimension", GridDefinition{Template: TemplateLatLon, Ni: 0, Nj: 1, Earth: sphere(6, 6371229)}},
		{"radius missing", GridDefinition{Template: TemplateLatLon, Ni: 1, Nj: 1, Earth: Earth{Code: 1}}},
		{"axes missing", GridDefinition{Template: TemplateLatLon, Ni: 1, Nj: 1, Earth: Earth{Code: 7, Major: 1}}},
		{"unknown earth", GridDefinition{Template: TemplateLatLon, Ni: 1, Nj: 1, Earth: Earth{Code: 42}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.gd.MarshalBinary()
			assert.Error(t, err)
		})
	}
}
