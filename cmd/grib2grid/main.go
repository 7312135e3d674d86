// Command grib2grid prints GRIB2 grid point coordinates and maps lat/lon
// points onto grids.
//
// Usage:
//
//	grib2grid latlon [source flags] [-order wesn|raw] [-json]
//	grib2grid ij     [source flags] [-json] <lon> <lat> [<lon> <lat> ...]
//	grib2grid plot   [source flags] -o grid.png [<lon> <lat> ...]
//	grib2grid serve
//
// Source flags (exactly one source):
//
//	-file F [-msg N]          GRIB2 file, Nth message (0-based)
//	-grid "latlon 0:360:1 -90:181:1"
//	-grid "ncep grid 221"
//	-url U -match M           remote file with a .idx inventory
//	-match M [-run T] [-fxx H] latest HRRR CONUS run
//
// Examples:
//
//	grib2grid latlon -grid "lambert:265:25 238.446:2145:2540 20.192:1377:2540"
//	grib2grid ij -match "TMP:2 m above ground" -106.37 39.64
//	grib2grid plot -grid "ncep grid 242" -o nps.png
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/geal-ai/grib2grid"
	"github.com/geal-ai/grib2grid/internal/config"
	"github.com/geal-ai/grib2grid/internal/logging"
	"github.com/geal-ai/grib2grid/internal/metrics"
	"github.com/geal-ai/grib2grid/internal/plotgrid"
	"github.com/geal-ai/grib2grid/internal/server"
	"gonum.org/v1/plot/plotter"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fatalf("load config: %v", err)
	}
	// stdout carries data; logs go to stderr.
	logger := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "latlon":
		runLatLon(cfg, logger, args)
	case "ij":
		runIJ(cfg, logger, args)
	case "plot":
		runPlot(cfg, logger, args)
	case "serve":
		runServe(cfg, logger)
	case "-h", "-help", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}
}

// source holds the flags that select a grid.
type source struct {
	file  string
	msg   int
	grid  string
	url   string
	match string
	run   string
	fxx   int
}

func (s *source) register(fs *flag.FlagSet) {
	fs.StringVar(&s.file, "file", "", "GRIB2 file")
	fs.IntVar(&s.msg, "msg", 0, "message number within -file (0-based)")
	fs.StringVar(&s.grid, "grid", "", `wgrib2-style grid string, e.g. "latlon 0:360:1 -90:181:1"`)
	fs.StringVar(&s.url, "url", "", "remote GRIB2 file with a .idx inventory (needs -match)")
	fs.StringVar(&s.match, "match", "", `inventory substring, e.g. "TMP:2 m above ground"`)
	fs.StringVar(&s.run, "run", "", "HRRR run time UTC (RFC3339) when no -url is given (default: latest)")
	fs.IntVar(&s.fxx, "fxx", 0, "HRRR forecast hour when no -url is given")
}

// section3 loads the Section 3 bytes of the selected grid.
func (s *source) section3(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]byte, error) {
	switch {
	case s.file != "":
		buf, err := os.ReadFile(s.file)
		if err != nil {
			return nil, err
		}
		msgs, err := grib2grid.SplitMessages(buf)
		if err != nil {
			return nil, err
		}
		if s.msg < 0 || s.msg >= len(msgs) {
			return nil, fmt.Errorf("-msg %d out of range: %s has %d messages", s.msg, s.file, len(msgs))
		}
		return grib2grid.GridSection(msgs[s.msg])
	case s.grid != "":
		return grib2grid.ParseGridString(s.grid)
	case s.match != "":
		client := grib2grid.NewClient(cfg.Fetch.Timeout)
		if s.url != "" {
			return client.FetchGrid(ctx, s.url, s.match)
		}
		return fetchHRRR(ctx, client, cfg.Fetch.BaseURL, s.run, s.fxx, s.match, logger)
	}
	return nil, errors.New("one of -file, -grid or -match is required")
}

// fetchHRRR fetches the grid of an HRRR run. Without -run it tries runs
// from 1h ago back to 6h ago and returns the first one published.
func fetchHRRR(ctx context.Context, client *grib2grid.Client, base, runStr string, fxx int, match string, logger *slog.Logger) ([]byte, error) {
	if runStr != "" {
		run, err := time.Parse(time.RFC3339, runStr)
		if err != nil {
			return nil, fmt.Errorf("invalid -run %q: use RFC3339, e.g. 2026-02-21T12:00:00Z", runStr)
		}
		return client.FetchGrid(ctx, grib2grid.HRRRURL(base, run.Truncate(time.Hour), fxx), match)
	}
	now := time.Now().UTC().Truncate(time.Hour)
	var lastErr error
	for lag := 1; lag <= 6; lag++ {
		run := now.Add(-time.Duration(lag) * time.Hour)
		logger.Info("trying HRRR run", "run", run.Format("2006-01-02 15Z"), "lag_hours", lag)
		sec3, err := client.FetchGrid(ctx, grib2grid.HRRRURL(base, run, fxx), match)
		if err == nil {
			return sec3, nil
		}
		// S3 answers 403 or 404 for runs that are not published yet; any
		// other failure would repeat for older runs.
		var he *grib2grid.HTTPError
		if !errors.As(err, &he) || (he.StatusCode != http.StatusNotFound && he.StatusCode != http.StatusForbidden) {
			return nil, err
		}
		logger.Debug("run not available", "error", err)
		lastErr = err
	}
	return nil, lastErr
}

func newBridge(cfg *config.Config, logger *slog.Logger, order grib2grid.Order) *grib2grid.Bridge {
	opts := []grib2grid.Option{
		grib2grid.WithOrder(order),
		grib2grid.WithLogger(logger),
		grib2grid.WithRecorder(metrics.Recorder{}),
	}
	if !cfg.Bridge.Fallback {
		opts = append(opts, grib2grid.WithFallback(nil))
	}
	return grib2grid.NewBridge(opts...)
}

func runLatLon(cfg *config.Config, logger *slog.Logger, args []string) {
	fs := flag.NewFlagSet("latlon", flag.ExitOnError)
	var src source
	src.register(fs)
	orderStr := fs.String("order", cfg.Bridge.Order, "point order: wesn or raw")
	asJSON := fs.Bool("json", false, "output JSON")
	_ = fs.Parse(args)

	order, err := grib2grid.ParseOrder(*orderStr)
	if err != nil {
		fatalf("%v", err)
	}
	sec3, err := src.section3(context.Background(), cfg, logger)
	if err != nil {
		fatalf("load grid: %v", err)
	}
	lon, lat, err := newBridge(cfg, logger, order).Sec3LatLon(sec3)
	if err != nil {
		fatalf("sec3latlon (status %d): %v", grib2grid.StatusCode(err), err)
	}

	if *asJSON {
		emitJSON(map[string]any{"order": order.String(), "lon": lon, "lat": lat})
		return
	}
	for k := range lon {
		fmt.Printf("%d %.6f %.6f\n", k, lon[k], lat[k])
	}
}

func runIJ(cfg *config.Config, logger *slog.Logger, args []string) {
	fs := flag.NewFlagSet("ij", flag.ExitOnError)
	var src source
	src.register(fs)
	asJSON := fs.Bool("json", false, "output JSON")
	_ = fs.Parse(args)

	lon, lat := parsePoints(fs.Args())
	if len(lon) == 0 {
		fatalf("ij: at least one <lon> <lat> pair is required")
	}
	sec3, err := src.section3(context.Background(), cfg, logger)
	if err != nil {
		fatalf("load grid: %v", err)
	}
	b := newBridge(cfg, logger, cfg.Order())
	refLon, refLat, err := b.Sec3LatLon(sec3)
	if err != nil {
		fatalf("sec3latlon (status %d): %v", grib2grid.StatusCode(err), err)
	}
	x, y, err := b.LL2IJ(sec3, refLon, refLat, lon, lat)
	if err != nil && grib2grid.StatusCode(err) != grib2grid.StatusOutOfDomain {
		fatalf("ll2ij (status %d): %v", grib2grid.StatusCode(err), err)
	}

	if *asJSON {
		type point struct {
			Lon float64  `json:"lon"`
			Lat float64  `json:"lat"`
			X   *float64 `json:"x"`
			Y   *float64 `json:"y"`
		}
		out := make([]point, len(lon))
		for k := range lon {
			out[k] = point{Lon: lon[k], Lat: lat[k]}
			if !math.IsNaN(x[k]) {
				out[k].X, out[k].Y = &x[k], &y[k]
			}
		}
		emitJSON(out)
		return
	}
	for k := range lon {
		fmt.Printf("%.4f %.4f -> x=%.3f y=%.3f\n", lon[k], lat[k], x[k], y[k])
	}
}

func runPlot(cfg *config.Config, logger *slog.Logger, args []string) {
	fs := flag.NewFlagSet("plot", flag.ExitOnError)
	var src source
	src.register(fs)
	out := fs.String("o", "grid.png", "output file (.png, .svg, .pdf)")
	title := fs.String("title", "", "plot title")
	_ = fs.Parse(args)

	lon, lat := parsePoints(fs.Args())
	sec3, err := src.section3(context.Background(), cfg, logger)
	if err != nil {
		fatalf("load grid: %v", err)
	}
	glon, glat, err := newBridge(cfg, logger, grib2grid.OrderWESN).Sec3LatLon(sec3)
	if err != nil {
		fatalf("sec3latlon (status %d): %v", grib2grid.StatusCode(err), err)
	}
	marks := make([]plotter.XY, len(lon))
	for k := range lon {
		marks[k] = plotter.XY{X: lon[k], Y: lat[k]}
	}
	if err := plotgrid.Save(*out, glon, glat, plotgrid.Options{Title: *title, Marks: marks}); err != nil {
		fatalf("plot: %v", err)
	}
	logger.Info("plot written", "file", *out, "points", len(glon))
}

func runServe(cfg *config.Config, logger *slog.Logger) {
	srv := server.New(newBridge(cfg, logger, cfg.Order()), logger)
	app := srv.App(server.Config{
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		BodyLimit:     cfg.Server.BodyLimit,
		MaxGridPoints: cfg.Server.MaxGridPoints,
	})

	go func() {
		logger.Info("grib2grid server starting", "addr", cfg.Server.Addr, "order", cfg.Bridge.Order)
		if err := app.Listen(cfg.Server.Addr); err != nil {
			fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutdown signal received, draining connections", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	logger.Info("server stopped")
}

// parsePoints parses <lon> <lat> pairs.
func parsePoints(args []string) (lon, lat []float64) {
	if len(args)%2 != 0 {
		fatalf("points must be <lon> <lat> pairs, got %d values", len(args))
	}
	for i := 0; i < len(args); i += 2 {
		lo, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			fatalf("invalid lon %q: %v", args[i], err)
		}
		la, err := strconv.ParseFloat(args[i+1], 64)
		if err != nil {
			fatalf("invalid lat %q: %v", args[i+1], err)
		}
		lon = append(lon, lo)
		lat = append(lat, la)
	}
	return lon, lat
}

// emitJSON writes v to stdout as indented JSON.
func emitJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatalf("json encode: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `grib2grid: GRIB2 grid point coordinates and lat/lon to grid mapping

Usage:
  grib2grid latlon [source] [-order wesn|raw] [-json]
  grib2grid ij     [source] [-json] <lon> <lat> [<lon> <lat> ...]
  grib2grid plot   [source] [-o grid.png] [-title T] [<lon> <lat> ...]
  grib2grid serve

Source (one of):
  -file F [-msg N]            GRIB2 file, Nth message (0-based)
  -grid "G"                   wgrib2-style grid, or "ncep grid N"
  -url U -match M             remote GRIB2 file with a .idx inventory
  -match M [-run T] [-fxx H]  HRRR CONUS file (default: latest run)

Configuration is read from grib2grid.yaml (., ./configs) and GRIB2GRID_*
environment variables, e.g. GRIB2GRID_LOG_LEVEL=debug.`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
