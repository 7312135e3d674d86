// Package metrics exposes Prometheus metrics for the bridge and the HTTP
// service.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grib2grid",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grib2grid",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Bridge metrics
	BridgeCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grib2grid",
		Subsystem: "bridge",
		Name:      "calls_total",
		Help:      "Total bridge calls by operation and status code",
	}, []string{"op", "status"})

	BridgeCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grib2grid",
		Subsystem: "bridge",
		Name:      "call_duration_seconds",
		Help:      "Bridge call latency in seconds",
		Buckets:   []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"op"})

	BridgeFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "grib2grid",
		Subsystem: "bridge",
		Name:      "fallbacks_total",
		Help:      "Total coordinate extractions served by the fallback extractor",
	})

	BridgeFatalRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grib2grid",
		Subsystem: "bridge",
		Name:      "fatal_recoveries_total",
		Help:      "Total fatal engine conditions recovered at the bridge",
	}, []string{"op"})
)

// Recorder records bridge calls into the package metrics. It implements
// grib2grid.Recorder.
type Recorder struct{}

func (Recorder) Observe(op string, status int, d time.Duration) {
	BridgeCalls.WithLabelValues(op, strconv.Itoa(status)).Inc()
	BridgeCallDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (Recorder) Fallback() { BridgeFallbacks.Inc() }

func (Recorder) FatalRecovered(op string) { BridgeFatalRecoveries.WithLabelValues(op).Inc() }

// normalizePath bounds the path label to the registered routes. Anything
// else, including 404s, shares one label.
func normalizePath(path string) string {
	switch path {
	case "/v1/health", "/v1/ll2ij", "/v1/sec3latlon", "/metrics":
		return path
	default:
		return "unmatched"
	}
}

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		code := c.Response().StatusCode()
		// Returned errors are rendered by the app's error handler after the
		// middleware chain unwinds.
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		} else if err != nil {
			code = fiber.StatusInternalServerError
		}
		status := strconv.Itoa(code)
		path := normalizePath(c.Route().Path)
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}
