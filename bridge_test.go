package grib2grid

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProjector struct{ mock.Mock }

func (m *mockProjector) Init(sec3 []byte, refLon, refLat []float64, order Order) (PointMapper, error) {
	args := m.Called(sec3, refLon, refLat, order)
	pm, _ := args.Get(0).(PointMapper)
	return pm, args.Error(1)
}

type mockMapper struct{ mock.Mock }

func (m *mockMapper) Project(lon, lat, x, y []float64) error {
	return m.Called(lon, lat, x, y).Error(0)
}

type mockExtractor struct{ mock.Mock }

func (m *mockExtractor) LatLon(sec3 []byte, order Order) ([]float64, []float64, error) {
	args := m.Called(sec3, order)
	lon, _ := args.Get(0).([]float64)
	lat, _ := args.Get(1).([]float64)
	return lon, lat, args.Error(2)
}

// countingRecorder is a Recorder that remembers what it saw.
type countingRecorder struct {
	mu        sync.Mutex
	observed  map[string][]int
	fallbacks int
	fatal     map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{observed: map[string][]int{}, fatal: map[string]int{}}
}

func (r *countingRecorder) Observe(op string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observed[op] = append(r.observed[op], status)
}

func (r *countingRecorder) Fallback() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks++
}

func (r *countingRecorder) FatalRecovered(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fatal[op]++
}

var stubGrid = []byte("G")

// ---------------------------------------------------------------------------
// LL2IJ
// ---------------------------------------------------------------------------

func TestLL2IJInitFailureSkipsProject(t *testing.T) {
	for _, code := range []int{StatusFailure, StatusBadGrid, 7, StatusFatal} {
		// Init hands back a usable mapper with the error; the status alone
		// decides that Project is skipped.
		mapper := &mockMapper{}
		proj := &mockProjector{}
		proj.On("Init", stubGrid, []float64{0}, []float64{0}, OrderWESN).
			Return(mapper, &StatusError{Code: code, Err: errors.New("init failed")})

		b := NewBridge(WithProjector(proj))
		x, y, err := b.LL2IJ(stubGrid, []float64{0}, []float64{0}, []float64{1}, []float64{1})

		require.Error(t, err)
		assert.Equal(t, code, StatusCode(err))
		assert.False(t, errors.Is(err, ErrFatal), "engine status %d must not look recovered", code)
		assert.Nil(t, x)
		assert.Nil(t, y)
		proj.AssertExpectations(t)
		mapper.AssertNotCalled(t, "Project", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestLL2IJReturnsProjectedPoints(t *testing.T) {
	mapper := &mockMapper{}
	mapper.On("Project", []float64{1, 2}, []float64{3, 4}, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			x, y := args.Get(2).([]float64), args.Get(3).([]float64)
			x[0], y[0] = 0.5, 1.5
			x[1], y[1] = 2.5, 3.5
		}).
		Return(nil)
	proj := &mockProjector{}
	proj.On("Init", stubGrid, mock.Anything, mock.Anything, OrderRaw).Return(mapper, nil)

	b := NewBridge(WithProjector(proj), WithOrder(OrderRaw))
	x, y, err := b.LL2IJ(stubGrid, []float64{0}, []float64{0}, []float64{1, 2}, []float64{3, 4})

	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 2.5}, x)
	assert.Equal(t, []float64{1.5, 3.5}, y)
	mapper.AssertNumberOfCalls(t, "Project", 1)
}

func TestLL2IJProjectStatusPassesThrough(t *testing.T) {
	mapper := &mockMapper{}
	mapper.On("Project", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&StatusError{Code: StatusOutOfDomain, Err: errors.New("off the grid")})
	proj := &mockProjector{}
	proj.On("Init", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(mapper, nil)

	x, y, err := NewBridge(WithProjector(proj)).LL2IJ(stubGrid, []float64{0}, []float64{0}, []float64{1}, []float64{1})
	assert.Equal(t, StatusOutOfDomain, StatusCode(err))
	assert.Len(t, x, 1)
	assert.Len(t, y, 1)
}

func TestLL2IJLengthMismatch(t *testing.T) {
	proj := &mockProjector{}
	b := NewBridge(WithProjector(proj))
	_, _, err := b.LL2IJ(stubGrid, []float64{0}, []float64{0}, []float64{1, 2}, []float64{1})
	assert.Equal(t, StatusBadArgs, StatusCode(err))
	proj.AssertNotCalled(t, "Init", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLL2IJFatalConditionRecovered(t *testing.T) {
	rec := newCountingRecorder()
	proj := &mockProjector{}
	proj.On("Init", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { fatalf("corrupt grid metadata") }).
		Return(nil, nil)

	b := NewBridge(WithProjector(proj), WithRecorder(rec))
	x, y, err := b.LL2IJ(stubGrid, []float64{0}, []float64{0}, []float64{1}, []float64{1})

	require.Error(t, err)
	assert.Equal(t, StatusFatal, StatusCode(err))
	assert.ErrorIs(t, err, ErrFatal)
	var fe *FatalError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, OpLL2IJ, fe.Op)
	assert.Equal(t, "corrupt grid metadata", fe.Reason)
	assert.Nil(t, x)
	assert.Nil(t, y)
	assert.Zero(t, b.Armed())
	assert.Equal(t, 1, rec.fatal[OpLL2IJ])
	assert.Equal(t, []int{StatusFatal}, rec.observed[OpLL2IJ])
}

func TestLL2IJRuntimePanicRecovered(t *testing.T) {
	mapper := &mockMapper{}
	mapper.On("Project", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			x := args.Get(2).([]float64)
			_ = x[len(x)+1]
		}).
		Return(nil)
	proj := &mockProjector{}
	proj.On("Init", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(mapper, nil)

	b := NewBridge(WithProjector(proj))
	_, _, err := b.LL2IJ(stubGrid, []float64{0}, []float64{0}, []float64{1}, []float64{1})
	assert.Equal(t, StatusFatal, StatusCode(err))
	assert.Zero(t, b.Armed())

	// The bridge is reusable after a recovery.
	_, _, err = b.LL2IJ(stubGrid, []float64{0}, []float64{0}, []float64{1}, []float64{})
	assert.Equal(t, StatusBadArgs, StatusCode(err))
	assert.Zero(t, b.Armed())
}

// TestLL2IJLatLonGrid is the 2x2 lat-lon scenario: ref (0,0), point (1,1).
func TestLL2IJLatLonGrid(t *testing.T) {
	sec := mustSec3(t, "latlon 0:2:1 0:2:1")
	x, y, err := LL2IJ(sec, []float64{0}, []float64{0}, []float64{1}, []float64{1})
	require.NoError(t, err)
	require.Len(t, x, 1)
	assert.InDelta(t, 1.0, x[0], 1e-9)
	assert.InDelta(t, 1.0, y[0], 1e-9)
}

func TestLL2IJRealEngineErrors(t *testing.T) {
	sec := mustSec3(t, "latlon 0:2:1 0:2:1")
	cases := []struct {
		name         string
		sec          []byte
		refLon, lons []float64
		want         int
	}{
		{"truncated section", sec[:20], []float64{0}, []float64{1}, StatusBadGrid},
		{"empty reference", sec, nil, []float64{1}, StatusBadArgs},
		{"unsupported template", func() []byte {
			b := append([]byte(nil), sec...)
			b[12], b[13] = 0, 90
			return b
		}(), []float64{0}, []float64{1}, StatusUnsupported},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			refLat := make([]float64, len(tc.refLon))
			_, _, err := LL2IJ(tc.sec, tc.refLon, refLat, tc.lons, []float64{1})
			assert.Equal(t, tc.want, StatusCode(err), "err = %v", err)
		})
	}
}

// ---------------------------------------------------------------------------
// Sec3LatLon
// ---------------------------------------------------------------------------

func TestSec3LatLonPrimarySuccessSkipsFallback(t *testing.T) {
	primary, fallback := &mockExtractor{}, &mockExtractor{}
	primary.On("LatLon", stubGrid, OrderWESN).Return([]float64{1, 2}, []float64{3, 4}, nil)

	rec := newCountingRecorder()
	b := NewBridge(WithPrimary(primary), WithFallback(fallback), WithRecorder(rec))
	lon, lat, err := b.Sec3LatLon(stubGrid)

	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, lon)
	assert.Equal(t, []float64{3, 4}, lat)
	fallback.AssertNotCalled(t, "LatLon", mock.Anything, mock.Anything)
	assert.Zero(t, rec.fallbacks)
}

func TestSec3LatLonFallbackReplacesPrimary(t *testing.T) {
	primary, fallback := &mockExtractor{}, &mockExtractor{}
	primary.On("LatLon", stubGrid, OrderWESN).
		Return([]float64{99}, []float64{99}, &StatusError{Code: 5, Err: errors.New("primary cannot")})
	fallback.On("LatLon", stubGrid, OrderWESN).Return([]float64{10.0}, []float64{20.0}, nil)

	rec := newCountingRecorder()
	b := NewBridge(WithPrimary(primary), WithFallback(fallback), WithRecorder(rec))
	lon, lat, err := b.Sec3LatLon(stubGrid)

	require.NoError(t, err)
	assert.Equal(t, StatusOK, StatusCode(err))
	assert.Equal(t, []float64{10.0}, lon)
	assert.Equal(t, []float64{20.0}, lat)
	fallback.AssertNumberOfCalls(t, "LatLon", 1)
	assert.Equal(t, 1, rec.fallbacks)
}

func TestSec3LatLonFallbackStatusWins(t *testing.T) {
	primary, fallback := &mockExtractor{}, &mockExtractor{}
	primary.On("LatLon", mock.Anything, mock.Anything).
		Return(nil, nil, &StatusError{Code: StatusUnsupported, Err: errors.New("no")})
	fallback.On("LatLon", mock.Anything, mock.Anything).
		Return(nil, nil, &StatusError{Code: StatusBadGrid, Err: errors.New("also no")})

	_, _, err := NewBridge(WithPrimary(primary), WithFallback(fallback)).Sec3LatLon(stubGrid)
	assert.Equal(t, StatusBadGrid, StatusCode(err))
	primary.AssertNumberOfCalls(t, "LatLon", 1)
	fallback.AssertNumberOfCalls(t, "LatLon", 1)
}

func TestSec3LatLonWithoutFallback(t *testing.T) {
	primary := &mockExtractor{}
	primary.On("LatLon", mock.Anything, mock.Anything).
		Return([]float64{1}, []float64{1}, &StatusError{Code: StatusUnsupported, Err: errors.New("no")})

	lon, lat, err := NewBridge(WithPrimary(primary), WithFallback(nil)).Sec3LatLon(stubGrid)
	assert.Equal(t, StatusUnsupported, StatusCode(err))
	assert.Nil(t, lon)
	assert.Nil(t, lat)
}

func TestSec3LatLonFatalInPrimarySkipsFallback(t *testing.T) {
	fallback := &mockExtractor{}
	primary := ExtractorFunc(func([]byte, Order) ([]float64, []float64, error) {
		fatalf("zero increment")
		return nil, nil, nil
	})
	rec := newCountingRecorder()
	b := NewBridge(WithPrimary(primary), WithFallback(fallback), WithRecorder(rec))

	lon, lat, err := b.Sec3LatLon(stubGrid)
	assert.Equal(t, StatusFatal, StatusCode(err))
	assert.Nil(t, lon)
	assert.Nil(t, lat)
	assert.Zero(t, b.Armed())
	assert.Equal(t, 1, rec.fatal[OpSec3LatLon])
	fallback.AssertNotCalled(t, "LatLon", mock.Anything, mock.Anything)
}

func TestSec3LatLonFatalInFallback(t *testing.T) {
	primary := &mockExtractor{}
	primary.On("LatLon", mock.Anything, mock.Anything).
		Return(nil, nil, &StatusError{Code: StatusUnsupported, Err: errors.New("no")})
	fallback := ExtractorFunc(func([]byte, Order) ([]float64, []float64, error) {
		var m map[string]int
		m["boom"] = 1
		return nil, nil, nil
	})
	b := NewBridge(WithPrimary(primary), WithFallback(fallback))

	_, _, err := b.Sec3LatLon(stubGrid)
	assert.Equal(t, StatusFatal, StatusCode(err))
	assert.Zero(t, b.Armed())
}

func TestSec3LatLonPointCountMismatchIsFatal(t *testing.T) {
	sec := mustSec3(t, "latlon 0:4:1 0:3:1")
	sec[9]++ // Section 3 point count no longer equals Ni*Nj

	b := NewBridge()
	_, _, err := b.Sec3LatLon(sec)
	assert.Equal(t, StatusFatal, StatusCode(err))
	assert.ErrorIs(t, err, ErrFatal)
	assert.Zero(t, b.Armed())
}

func TestSec3LatLonZeroIncrementIsFatal(t *testing.T) {
	gd, err := GridFromSpec([]string{"latlon", "0:4:1", "0:3:1"})
	require.NoError(t, err)
	gd.Dj = 0
	sec, err := gd.MarshalBinary()
	require.NoError(t, err)

	_, _, err = Sec3LatLon(sec)
	assert.Equal(t, StatusFatal, StatusCode(err))
}

func TestSec3LatLonOrderIsPassedExplicitly(t *testing.T) {
	sec := mustSec3(t, "latlon 0:3:1 10:2:-1")

	lon, lat, err := NewBridge(WithOrder(OrderWESN)).Sec3LatLon(sec)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 0, 1, 2}, lon)
	assert.Equal(t, []float64{9, 9, 9, 10, 10, 10}, lat)

	lon, lat, err = NewBridge(WithOrder(OrderRaw)).Sec3LatLon(sec)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 0, 1, 2}, lon)
	assert.Equal(t, []float64{10, 10, 10, 9, 9, 9}, lat)
}

func TestBridgeConcurrentCalls(t *testing.T) {
	sec := mustSec3(t, "latlon 0:10:1 0:10:1")
	fatal := ExtractorFunc(func([]byte, Order) ([]float64, []float64, error) {
		fatalf("always")
		return nil, nil, nil
	})
	good := NewBridge()
	bad := NewBridge(WithPrimary(fatal))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, err := good.Sec3LatLon(sec)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, _, err := bad.Sec3LatLon(sec)
			assert.Equal(t, StatusFatal, StatusCode(err))
		}()
	}
	wg.Wait()
	assert.Zero(t, good.Armed())
	assert.Zero(t, bad.Armed())
}

func TestStatusCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, StatusOK},
		{"plain", errors.New("x"), StatusFailure},
		{"status", &StatusError{Code: 42, Err: errors.New("x")}, 42},
		{"wrapped status", errors.Join(errors.New("ctx"), &StatusError{Code: 3, Err: errors.New("x")}), 3},
		{"fatal", &FatalError{Op: OpLL2IJ, Reason: "x"}, StatusFatal},
		{"engine nine", &StatusError{Code: 9, Err: errors.New("x")}, StatusFatal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusCode(tc.err))
		})
	}
}
