// Package server exposes the grib2grid bridge over HTTP.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/geal-ai/grib2grid"
	"github.com/geal-ai/grib2grid/internal/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// Config holds the fiber settings the server needs.
type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    int

	// MaxGridPoints rejects larger grids before any coordinates are
	// allocated. Zero leaves only the parser's own cap.
	MaxGridPoints int
}

// Server serves the bridge operations as JSON endpoints.
type Server struct {
	bridge    *grib2grid.Bridge
	logger    *slog.Logger
	maxPoints int
}

// New returns a Server over b.
func New(b *grib2grid.Bridge, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{bridge: b, logger: logger}
}

// App builds the fiber application with all routes registered.
func (s *Server) App(cfg Config) *fiber.App {
	s.maxPoints = cfg.MaxGridPoints
	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		BodyLimit:             cfg.BodyLimit,
		AppName:               "grib2grid",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	s.Routes(app)
	return app
}

// Routes registers the API and metrics routes on app.
func (s *Server) Routes(app *fiber.App) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	startedAt := time.Now()
	app.Get("/v1/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"uptime": time.Since(startedAt).String(),
			"order":  s.bridge.Order().String(),
		})
	})

	v1 := app.Group("/v1")
	v1.Post("/ll2ij", s.handleLL2IJ)
	v1.Post("/sec3latlon", s.handleSec3LatLon)
}

// gridRequest identifies a grid either by its Section 3 bytes (base64 in
// JSON) or by a wgrib2-style grid string.
type gridRequest struct {
	Sec3 []byte `json:"sec3,omitempty"`
	Grid string `json:"grid,omitempty"`
}

func (r gridRequest) section3() ([]byte, error) {
	switch {
	case len(r.Sec3) > 0 && r.Grid != "":
		return nil, errors.New("set one of sec3 or grid, not both")
	case len(r.Sec3) > 0:
		return r.Sec3, nil
	case r.Grid != "":
		return grib2grid.ParseGridString(r.Grid)
	}
	return nil, errors.New("one of sec3 or grid is required")
}

type ll2ijRequest struct {
	gridRequest
	RefLon []float64 `json:"ref_lon"`
	RefLat []float64 `json:"ref_lat"`
	Lon    []float64 `json:"lon"`
	Lat    []float64 `json:"lat"`
}

type ll2ijResponse struct {
	Status int        `json:"status"`
	Error  string     `json:"error,omitempty"`
	X      []*float64 `json:"x"`
	Y      []*float64 `json:"y"`
}

type sec3LatLonResponse struct {
	Status int        `json:"status"`
	Error  string     `json:"error,omitempty"`
	Lon    []*float64 `json:"lon"`
	Lat    []*float64 `json:"lat"`
}

// APIError is a request-level error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func newError(c *fiber.Ctx, status int, code, msg string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   msg,
		RequestID: reqID,
	})
}

func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errGridTooLarge is returned by checkSize for grids over MaxGridPoints.
var errGridTooLarge = errors.New("grid too large")

// checkSize rejects grids with more points than the server allows. Grids
// that fail to parse are left for the bridge to classify.
func (s *Server) checkSize(sec3 []byte) error {
	if s.maxPoints <= 0 {
		return nil
	}
	gd, err := grib2grid.ParseGridDefinition(sec3)
	if err != nil {
		return nil
	}
	if n := gd.Points(); n > s.maxPoints {
		return fmt.Errorf("%w: %d points, limit %d", errGridTooLarge, n, s.maxPoints)
	}
	return nil
}

// grid resolves the request grid and enforces the size limit. When ok is
// false the error response has been written and err is the handler result.
func (s *Server) grid(c *fiber.Ctx, r gridRequest) (sec3 []byte, ok bool, err error) {
	sec3, err = r.section3()
	if err != nil {
		return nil, false, errBadRequest(c, err.Error())
	}
	if err := s.checkSize(sec3); err != nil {
		return nil, false, newError(c, fiber.StatusRequestEntityTooLarge, "grid_too_large", err.Error())
	}
	return sec3, true, nil
}

func (s *Server) handleLL2IJ(c *fiber.Ctx) error {
	var req ll2ijRequest
	if err := c.BodyParser(&req); err != nil {
		return errBadRequest(c, "invalid JSON body: "+err.Error())
	}
	sec3, ok, err := s.grid(c, req.gridRequest)
	if !ok {
		return err
	}
	refLon, refLat := req.RefLon, req.RefLat
	if len(refLon) == 0 && len(refLat) == 0 {
		// The grid origin comes from the grid itself when no reference is given.
		if refLon, refLat, err = s.bridge.Sec3LatLon(sec3); err != nil {
			code := grib2grid.StatusCode(err)
			return s.reply(c, code, ll2ijResponse{Status: code, Error: err.Error()})
		}
	}

	x, y, err := s.bridge.LL2IJ(sec3, refLon, refLat, req.Lon, req.Lat)
	resp := ll2ijResponse{Status: grib2grid.StatusCode(err), X: nullable(x), Y: nullable(y)}
	if err != nil {
		resp.Error = err.Error()
	}
	return s.reply(c, resp.Status, resp)
}

func (s *Server) handleSec3LatLon(c *fiber.Ctx) error {
	var req gridRequest
	if err := c.BodyParser(&req); err != nil {
		return errBadRequest(c, "invalid JSON body: "+err.Error())
	}
	sec3, ok, err := s.grid(c, req)
	if !ok {
		return err
	}
	lon, lat, err := s.bridge.Sec3LatLon(sec3)
	resp := sec3LatLonResponse{Status: grib2grid.StatusCode(err), Lon: nullable(lon), Lat: nullable(lat)}
	if err != nil {
		resp.Error = err.Error()
	}
	return s.reply(c, resp.Status, resp)
}

// reply writes a bridge result. Non-zero bridge statuses are 422.
func (s *Server) reply(c *fiber.Ctx, status int, body any) error {
	if status != grib2grid.StatusOK {
		s.logger.Debug("bridge call failed", "path", c.Path(), "status", status)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(body)
	}
	return c.JSON(body)
}

// nullable converts NaN to JSON null.
func nullable(v []float64) []*float64 {
	if v == nil {
		return nil
	}
	out := make([]*float64, len(v))
	for i := range v {
		if !math.IsNaN(v[i]) {
			out[i] = &v[i]
		}
	}
	return out
}
