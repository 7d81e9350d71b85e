// Package plots renders lattice diagnostics as PNG images: a heatmap of the
// zero-lag slice of the autocorrelation and per-axis autocorrelation
// profiles through the centre.
package plots

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/banshee-data/glyph.codec/internal/glyph/lattice"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoData is returned when there is no autocorrelation to plot.
var ErrNoData = errors.New("plots: no autocorrelation data")

const (
	heatmapSize  = 6 * vg.Inch
	profileWidth = 10 * vg.Inch
	profileHeight = 4 * vg.Inch
)

// sliceGrid exposes the z = centre slice of an autocorrelation volume as a
// plotter.GridXYZ. Columns are x lags and rows are y lags.
type sliceGrid struct {
	ac *lattice.Autocorrelation
}

func (s sliceGrid) Dims() (c, r int) { return s.ac.N, s.ac.N }
func (s sliceGrid) Z(c, r int) float64 {
	return s.ac.At(c, r, s.ac.Center())
}
func (s sliceGrid) X(c int) float64 { return float64(c - s.ac.Center()) }
func (s sliceGrid) Y(r int) float64 { return float64(r - s.ac.Center()) }

// Heatmap writes a PNG heatmap of the zero z-lag slice.
func Heatmap(w io.Writer, ac *lattice.Autocorrelation, title string) error {
	if ac == nil || ac.N == 0 {
		return ErrNoData
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x lag (voxels)"
	p.Y.Label.Text = "y lag (voxels)"

	hm := plotter.NewHeatMap(sliceGrid{ac: ac}, palette.Heat(32, 1))
	hm.Min, hm.Max = 0, 1
	p.Add(hm)

	return writePNG(w, p, heatmapSize, heatmapSize)
}

// Profile writes a PNG line plot of the autocorrelation along each axis
// through the zero-lag centre, with the peak threshold drawn as a
// horizontal rule.
func Profile(w io.Writer, ac *lattice.Autocorrelation, threshold float64, title string) error {
	if ac == nil || ac.N == 0 {
		return ErrNoData
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "lag (voxels)"
	p.Y.Label.Text = "normalized autocorrelation"
	p.Y.Min, p.Y.Max = 0, 1.05
	p.Legend.Top = true

	c := ac.Center()
	axes := []struct {
		name  string
		at    func(i int) float64
		color color.Color
	}{
		{"x", func(i int) float64 { return ac.At(i, c, c) }, color.RGBA{R: 200, G: 40, B: 40, A: 255}},
		{"y", func(i int) float64 { return ac.At(c, i, c) }, color.RGBA{R: 40, G: 160, B: 40, A: 255}},
		{"z", func(i int) float64 { return ac.At(c, c, i) }, color.RGBA{R: 40, G: 40, B: 200, A: 255}},
	}
	for _, a := range axes {
		pts := make(plotter.XYs, ac.N)
		for i := range pts {
			pts[i] = plotter.XY{X: float64(i - c), Y: a.at(i)}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to create %s profile: %w", a.name, err)
		}
		line.Color = a.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(a.name, line)
	}

	rule, err := plotter.NewLine(plotter.XYs{
		{X: float64(-c), Y: threshold},
		{X: float64(ac.N - 1 - c), Y: threshold},
	})
	if err != nil {
		return fmt.Errorf("failed to create threshold line: %w", err)
	}
	rule.Color = color.Gray{Y: 128}
	rule.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(rule)

	return writePNG(w, p, profileWidth, profileHeight)
}

func writePNG(w io.Writer, p *plot.Plot, width, height vg.Length) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}

// SaveAll writes <stem>_autocorr.png and <stem>_profile.png into dir and
// returns the written paths.
func SaveAll(dir, stem string, ac *lattice.Autocorrelation, threshold float64) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create plot dir: %w", err)
	}
	heat := filepath.Join(dir, fmt.Sprintf("%s_autocorr.png", stem))
	prof := filepath.Join(dir, fmt.Sprintf("%s_profile.png", stem))

	if err := saveFile(heat, func(w io.Writer) error { return Heatmap(w, ac, stem+" autocorrelation (z=0)") }); err != nil {
		return nil, err
	}
	if err := saveFile(prof, func(w io.Writer) error { return Profile(w, ac, threshold, stem+" axis profiles") }); err != nil {
		return nil, err
	}
	return []string{heat, prof}, nil
}

func saveFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
