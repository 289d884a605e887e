package plot

import (
	"fmt"
	"image/color"
	"math"
	"os"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"echidna/domain/limit"
	"echidna/internal/errors"
)

// numLevels matches the resolution of the colour boundaries
const numLevels = 100

// analyserGrid exposes a SystAnalyser map as a GridXYZ with increasing
// signal counts along X and systematic values along Y.
type analyserGrid struct {
	a      *limit.SystAnalyser
	xs, ys []int
}

func newAnalyserGrid(a *limit.SystAnalyser) analyserGrid {
	return analyserGrid{a: a, xs: argsort(a.ActualCounts), ys: argsort(a.SystValues)}
}

func argsort(values []float64) []int {
	sorted := append([]float64(nil), values...)
	inds := make([]int, len(values))
	floats.Argsort(sorted, inds)
	return inds
}

func (g analyserGrid) Dims() (c, r int)   { return len(g.xs), len(g.ys) }
func (g analyserGrid) Z(c, r int) float64 { return g.a.ChiSquareds[g.xs[c]][g.ys[r]] }
func (g analyserGrid) X(c int) float64    { return g.a.ActualCounts[g.xs[c]] }
func (g analyserGrid) Y(r int) float64    { return g.a.SystValues[g.ys[r]] }

// SqrtLevels returns n boundaries between lo and hi spaced linearly in
// square root, so low chi-squared values get finer colour steps.
func SqrtLevels(lo, hi float64, n int) []float64 {
	if n < 2 {
		n = 2
	}
	levels := floats.Span(make([]float64, n), math.Sqrt(math.Max(lo, 0)), math.Sqrt(math.Max(hi, 0)))
	for i, l := range levels {
		levels[i] = l * l
	}
	return levels
}

// levelPalette assigns each of n linearly spaced values between the first and
// last level the colour of the level band it falls in.
type levelPalette []color.Color

func (p levelPalette) Colors() []color.Color { return p }

func newLevelPalette(cm palette.ColorMap, levels []float64, n int) (palette.Palette, error) {
	lo, hi := levels[0], levels[len(levels)-1]
	if !(hi > lo) {
		return cm.Palette(n), nil
	}
	bands := len(levels) - 1
	colors := make(levelPalette, n)
	band := 0
	for k := range colors {
		v := lo + (hi-lo)*float64(k)/float64(n-1)
		for band < bands-1 && v >= levels[band+1] {
			band++
		}
		frac := 0.0
		if bands > 1 {
			frac = float64(band) / float64(bands-1)
		}
		c, err := cm.At(cm.Min() + frac*(cm.Max()-cm.Min()))
		if err != nil {
			return nil, err
		}
		colors[k] = c
	}
	return colors, nil
}

// finite returns the map entries that were filled during the scan
func finite(a *limit.SystAnalyser) stats.Float64Data {
	var data stats.Float64Data
	for _, row := range a.ChiSquareds {
		for _, v := range row {
			if !math.IsInf(v, 0) && !math.IsNaN(v) {
				data = append(data, v)
			}
		}
	}
	return data
}

// ChiSquaredMap draws the chi-squared map of a SystAnalyser with a colour
// bar, the preferred systematic value per signal count and the global minima.
func ChiSquaredMap(path string, a *limit.SystAnalyser, opts ...Option) error {
	o := newOptions(opts)
	chart := "chi-squared map"
	if a == nil {
		return errors.RenderError(chart, fmt.Errorf("no analyser"))
	}
	data := finite(a)
	if len(data) == 0 {
		return errors.RenderError(chart, fmt.Errorf("analyser %s has an empty map", a.Name))
	}
	lo, _ := data.Min()
	hi, _ := data.Max()
	if !(hi > lo) {
		hi = lo + 1
	}

	levels := SqrtLevels(lo, hi, numLevels)
	colorMap := moreland.ExtendedBlackBody()
	colorMap.SetMin(levels[0])
	colorMap.SetMax(levels[len(levels)-1])
	pal, err := newLevelPalette(colorMap, levels, 1000)
	if err != nil {
		return errors.RenderError(chart, err)
	}

	p := gplot.New()
	p.Title.Text = o.Title
	p.X.Label.Text = "Signal counts"
	p.Y.Label.Text = "Value of systematic"
	if o.YLabel != "" {
		p.Y.Label.Text = o.YLabel
	}
	p.Legend.Top = true
	p.Legend.Left = true

	grid := newAnalyserGrid(a)
	if o.Contours {
		p.Add(plotter.NewContour(grid, levels, pal))
	} else {
		heatMap := plotter.NewHeatMap(grid, pal)
		heatMap.Min = levels[0]
		heatMap.Max = levels[len(levels)-1]
		p.Add(heatMap)
	}

	if err := addPreferred(p, a, grid); err != nil {
		return errors.RenderError(chart, err)
	}

	img := vgimg.New(o.Width+vg.Inch, o.Height)
	dc := draw.New(img)
	dc0 := draw.Crop(dc, 0, -vg.Inch, 0, 0)
	dc1 := draw.Crop(dc, o.Width+vg.Inch/4, 0, 0, 0)
	p.Draw(dc0)

	bar := gplot.New()
	colorBar := &plotter.ColorBar{ColorMap: colorMap}
	colorBar.Vertical = true
	bar.Add(colorBar)
	bar.HideX()
	bar.Y.Padding = 0
	bar.Draw(dc1)

	if err := ensureDir(path); err != nil {
		return errors.RenderError(chart, err)
	}
	w, err := os.Create(path)
	if err != nil {
		return errors.RenderError(chart, err)
	}
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		w.Close()
		return errors.RenderError(chart, err)
	}
	if err := w.Close(); err != nil {
		return errors.RenderError(chart, err)
	}
	return nil
}

func addPreferred(p *gplot.Plot, a *limit.SystAnalyser, grid analyserGrid) error {
	if len(a.PreferredValues) == len(a.ActualCounts) && len(a.ActualCounts) > 0 {
		pts := make(plotter.XYs, len(grid.xs))
		for c, i := range grid.xs {
			pts[c] = plotter.XY{X: a.ActualCounts[i], Y: a.PreferredValues[i]}
		}
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return err
		}
		line.Color = blue
		points.Color = blue
		points.Shape = draw.CircleGlyph{}
		p.Add(line, points)
		p.Legend.Add("Preferred values", line, points)
	}

	if len(a.Minima) > 0 {
		pts := make(plotter.XYs, len(a.Minima))
		for i, m := range a.Minima {
			pts[i] = plotter.XY{X: m.X, Y: m.Y}
		}
		minima, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		minima.Color = black
		minima.Shape = draw.CircleGlyph{}
		p.Add(minima)
		p.Legend.Add("Minima", minima)
	}
	return nil
}
