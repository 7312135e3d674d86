// Package plotgrid draws grid point locations with gonum/plot.
package plotgrid

import (
	"fmt"
	"image/color"
	"io"

	"github.com/geal-ai/grib2grid"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// MaxPoints caps the number of markers drawn; larger grids are thinned.
const MaxPoints = 20000

// Options controls the figure.
type Options struct {
	Title  string
	Width  vg.Length
	Height vg.Length
	Marks  []plotter.XY // optional highlighted (lon, lat) points
}

// New returns a scatter plot of the (lon, lat) grid points.
// Longitudes are drawn in [-180, 180).
func New(lon, lat []float64, opts Options) (*plot.Plot, error) {
	if len(lon) != len(lat) {
		return nil, fmt.Errorf("plotgrid: %d longitudes but %d latitudes", len(lon), len(lat))
	}
	if len(lon) == 0 {
		return nil, fmt.Errorf("plotgrid: no points")
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "longitude (°E)"
	p.Y.Label.Text = "latitude (°N)"
	p.Add(plotter.NewGrid())

	stride := (len(lon) + MaxPoints - 1) / MaxPoints
	pts := make(plotter.XYs, 0, len(lon)/stride+1)
	for k := 0; k < len(lon); k += stride {
		pts = append(pts, plotter.XY{X: grib2grid.NormLon(lon[k]), Y: lat[k]})
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("plotgrid: scatter: %w", err)
	}
	sc.GlyphStyle.Radius = vg.Points(0.6)
	sc.GlyphStyle.Color = color.RGBA{R: 40, G: 90, B: 160, A: 255}
	p.Add(sc)

	// The first point is the grid origin (0, 0).
	origin, err := plotter.NewScatter(plotter.XYs{{X: grib2grid.NormLon(lon[0]), Y: lat[0]}})
	if err != nil {
		return nil, fmt.Errorf("plotgrid: origin: %w", err)
	}
	origin.GlyphStyle.Shape = draw.TriangleGlyph{}
	origin.GlyphStyle.Radius = vg.Points(4)
	origin.GlyphStyle.Color = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	p.Add(origin)
	p.Legend.Add("origin", origin)

	if len(opts.Marks) > 0 {
		marks := make(plotter.XYs, len(opts.Marks))
		for i, m := range opts.Marks {
			marks[i] = plotter.XY{X: grib2grid.NormLon(m.X), Y: m.Y}
		}
		ms, err := plotter.NewScatter(marks)
		if err != nil {
			return nil, fmt.Errorf("plotgrid: marks: %w", err)
		}
		ms.GlyphStyle.Shape = draw.CrossGlyph{}
		ms.GlyphStyle.Radius = vg.Points(4)
		p.Add(ms)
		p.Legend.Add("points", ms)
	}
	return p, nil
}

func (o Options) size() (vg.Length, vg.Length) {
	w, h := o.Width, o.Height
	if w == 0 {
		w = 8 * vg.Inch
	}
	if h == 0 {
		h = 6 * vg.Inch
	}
	return w, h
}

// Save writes the plot to path; the extension selects the format.
func Save(path string, lon, lat []float64, opts Options) error {
	p, err := New(lon, lat, opts)
	if err != nil {
		return err
	}
	w, h := opts.size()
	return p.Save(w, h, path)
}

// Write encodes the plot to w in the given format ("png", "svg", "pdf").
func Write(w io.Writer, format string, lon, lat []float64, opts Options) error {
	p, err := New(lon, lat, opts)
	if err != nil {
		return err
	}
	width, height := opts.size()
	wt, err := p.WriterTo(width, height, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
