package grib2grid

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Bridge operation names, used in errors, logs and metrics.
const (
	OpLL2IJ      = "ll2ij"
	OpSec3LatLon = "sec3latlon"
)

// Recorder observes bridge calls. internal/metrics provides a Prometheus
// implementation.
type Recorder interface {
	Observe(op string, status int, d time.Duration)
	Fallback()
	FatalRecovered(op string)
}

type nopRecorder struct{}

func (nopRecorder) Observe(string, int, time.Duration) {}
func (nopRecorder) Fallback()                          {}
func (nopRecorder) FatalRecovered(string)              {}

// Bridge connects a projection engine and a primary/fallback pair of
// coordinate extractors, and turns fatal engine conditions into
// *FatalError (status 9).
//
// A Bridge holds no per-call state and is safe for concurrent use when its
// engines are.
type Bridge struct {
	projector ProjectionEngine
	primary   Extractor
	fallback  Extractor
	order     Order
	logger    *slog.Logger
	recorder  Recorder

	armed atomic.Int64
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithProjector replaces the projection engine.
func WithProjector(p ProjectionEngine) Option { return func(b *Bridge) { b.projector = p } }

// WithPrimary replaces the primary extractor.
func WithPrimary(e Extractor) Option { return func(b *Bridge) { b.primary = e } }

// WithFallback replaces the fallback extractor. nil disables the fallback.
func WithFallback(e Extractor) Option { return func(b *Bridge) { b.fallback = e } }

// WithOrder sets the point order passed to every engine call.
func WithOrder(o Order) Option { return func(b *Bridge) { b.order = o } }

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option { return func(b *Bridge) { b.logger = l } }

// WithRecorder sets the call recorder.
func WithRecorder(r Recorder) Option { return func(b *Bridge) { b.recorder = r } }

// NewBridge returns a bridge over GridProjector, PrimaryExtractor and
// FallbackExtractor in OrderWESN, modified by opts.
func NewBridge(opts ...Option) *Bridge {
	b := &Bridge{
		projector: GridProjector{},
		primary:   PrimaryExtractor{},
		fallback:  FallbackExtractor{},
		order:     OrderWESN,
		recorder:  nopRecorder{},
	}
	for _, o := range opts {
		o(b)
	}
	if b.recorder == nil {
		b.recorder = nopRecorder{}
	}
	return b
}

// DefaultBridge backs the package-level LL2IJ and Sec3LatLon.
var DefaultBridge = NewBridge()

// LL2IJ calls DefaultBridge.LL2IJ.
func LL2IJ(sec3 []byte, refLon, refLat, lon, lat []float64) (x, y []float64, err error) {
	return DefaultBridge.LL2IJ(sec3, refLon, refLat, lon, lat)
}

// Sec3LatLon calls DefaultBridge.Sec3LatLon.
func Sec3LatLon(sec3 []byte) (lon, lat []float64, err error) {
	return DefaultBridge.Sec3LatLon(sec3)
}

// Order returns the point order the bridge passes to its engines.
func (b *Bridge) Order() Order { return b.order }

// Armed returns the number of bridge calls currently in flight.
func (b *Bridge) Armed() int { return int(b.armed.Load()) }

func (b *Bridge) log() *slog.Logger {
	if b.logger != nil {
		return b.logger
	}
	return slog.Default()
}

// LL2IJ maps each (lon[k], lat[k]) to fractional grid coordinates
// (x[k], y[k]) of the grid described by sec3. refLon/refLat are the grid
// point coordinates in the bridge order; their first element is (0, 0).
//
// An Init failure is returned as is and Project is not attempted.
// A fatal engine condition returns nil slices and a *FatalError.
func (b *Bridge) LL2IJ(sec3 []byte, refLon, refLat, lon, lat []float64) (x, y []float64, err error) {
	start := time.Now()
	g := armGuard(&b.armed)
	defer func() {
		if fe := asFatal(OpLL2IJ, recover()); fe != nil {
			x, y, err = nil, nil, fe
			b.recorder.FatalRecovered(OpLL2IJ)
			b.log().Warn("fatal engine condition recovered", "op", OpLL2IJ, "reason", fe.Reason)
		}
		g.disarm()
		b.recorder.Observe(OpLL2IJ, StatusCode(err), time.Since(start))
	}()

	if len(lat) != len(lon) {
		return nil, nil, statusErrorf(StatusBadArgs, "ll2ij: %d longitudes but %d latitudes", len(lon), len(lat))
	}
	m, err := b.projector.Init(sec3, refLon, refLat, b.order)
	if err != nil {
		return nil, nil, err
	}
	x = make([]float64, len(lon))
	y = make([]float64, len(lon))
	err = m.Project(lon, lat, x, y)
	return x, y, err
}

// Sec3LatLon returns the longitude and latitude of every point of the grid
// described by sec3, in the bridge order.
//
// The primary extractor is tried first; if it fails the fallback is called
// exactly once and its result returned. A fatal engine condition in either
// returns nil slices and a *FatalError.
func (b *Bridge) Sec3LatLon(sec3 []byte) (lon, lat []float64, err error) {
	start := time.Now()
	g := armGuard(&b.armed)
	defer func() {
		if fe := asFatal(OpSec3LatLon, recover()); fe != nil {
			lon, lat, err = nil, nil, fe
			b.recorder.FatalRecovered(OpSec3LatLon)
			b.log().Warn("fatal engine condition recovered", "op", OpSec3LatLon, "reason", fe.Reason)
		}
		g.disarm()
		b.recorder.Observe(OpSec3LatLon, StatusCode(err), time.Since(start))
	}()

	lon, lat, err = b.primary.LatLon(sec3, b.order)
	if err == nil {
		return lon, lat, nil
	}
	if b.fallback == nil {
		return nil, nil, err
	}
	b.log().Debug("primary extractor failed, using fallback",
		"status", StatusCode(err), "error", err)
	b.recorder.Fallback()
	return b.fallback.LatLon(sec3, b.order)
}
