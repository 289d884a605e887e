package plot

import (
	"fmt"
	"image/color"

	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg/draw"

	"echidna/domain/limit"
	"echidna/internal/errors"
	"echidna/internal/utilities"
)

// errorPoints pairs points with symmetric y errors for YErrorBars
type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

// ChiSquaredVsSignal plots the chi-squared scan of a signal config against
// signal counts. With a penalty config both scans are drawn with a legend.
func ChiSquaredVsSignal(path string, cfg *limit.Config, opts ...Option) error {
	o := newOptions(opts)
	if cfg == nil || len(cfg.ChiSquareds()) == 0 {
		return errors.RenderError("chi-squared scan", fmt.Errorf("no chi-squared values stored"))
	}

	p := gplot.New()
	p.Title.Text = o.Title
	p.X.Label.Text = "Signal counts"
	p.Y.Label.Text = "Chi-squared"
	p.Legend.Top = true
	p.Legend.Left = true

	label := ""
	if o.Penalty != nil {
		label = "no penalty term"
	}
	if err := addScan(p, cfg, label, blue, o.Errors); err != nil {
		return errors.RenderError("chi-squared scan", err)
	}
	if o.Penalty != nil {
		if err := addScan(p, o.Penalty, "penalty term", red, o.Errors); err != nil {
			return errors.RenderError("chi-squared scan", err)
		}
	}

	if err := ensureDir(path); err != nil {
		return errors.RenderError("chi-squared scan", err)
	}
	if err := p.Save(o.Width, o.Height, path); err != nil {
		return errors.RenderError("chi-squared scan", err)
	}
	return nil
}

func addScan(p *gplot.Plot, cfg *limit.Config, label string, c color.Color, errOpts *utilities.ErrorOptions) error {
	records := cfg.SortedByCount()
	pts := make(plotter.XYs, len(records))
	values := make([]float64, len(records))
	for i, r := range records {
		pts[i] = plotter.XY{X: r.Count, Y: r.ChiSquared}
		values[i] = r.ChiSquared
	}

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	line.Color = c
	points.Color = c
	points.Shape = draw.CircleGlyph{}
	p.Add(line, points)
	if label != "" {
		p.Legend.Add(label, line, points)
	}

	if errOpts == nil {
		return nil
	}
	errs, err := utilities.ArrayErrors(values, *errOpts)
	if err != nil {
		return err
	}
	yerrs := make(plotter.YErrors, len(errs))
	for i, e := range errs {
		yerrs[i].Low, yerrs[i].High = e, e
	}
	bars, err := plotter.NewYErrorBars(errorPoints{XYs: pts, YErrors: yerrs})
	if err != nil {
		return err
	}
	bars.Color = c
	p.Add(bars)
	return nil
}

// PenaltyValues plots the penalty term against the systematic value
func PenaltyValues(path string, a *limit.SystAnalyser, opts ...Option) error {
	o := newOptions(opts)
	if a == nil || len(a.PenaltyValues) == 0 {
		return errors.RenderError("penalty values", fmt.Errorf("no penalty values"))
	}

	p := gplot.New()
	p.Title.Text = o.Title
	p.X.Label.Text = "Value of systematic"
	p.Y.Label.Text = "Value of penalty term"

	pts := make(plotter.XYs, len(a.PenaltyValues))
	for i, pv := range a.PenaltyValues {
		pts[i] = plotter.XY{X: pv.Value, Y: pv.Penalty}
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return errors.RenderError("penalty values", err)
	}
	points.Shape = draw.CircleGlyph{}
	p.Add(line, points)

	if err := ensureDir(path); err != nil {
		return errors.RenderError("penalty values", err)
	}
	if err := p.Save(o.Width, o.Height, path); err != nil {
		return errors.RenderError("penalty values", err)
	}
	return nil
}
