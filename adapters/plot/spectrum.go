package plot

import (
	"go-hep.org/x/hep/hplot"

	"echidna/domain/spectra"
	"echidna/internal/errors"
)

var axisLabels = map[string]string{
	spectra.DimEnergy: "Energy [MeV]",
	spectra.DimRadial: "Radius [mm]",
	spectra.DimTime:   "Time [years]",
}

// Spectrum draws the projection of a spectrum onto one dimension
func Spectrum(path string, s *spectra.Spectra, dim string, opts ...Option) error {
	o := newOptions(opts)
	h, err := s.ProjectH1D(dim)
	if err != nil {
		return errors.RenderError("spectrum", err)
	}

	p := hplot.New()
	p.Title.Text = o.Title
	if p.Title.Text == "" {
		p.Title.Text = s.Name
	}
	p.X.Label.Text = axisLabels[dim]
	p.Y.Label.Text = "Events"

	hh := hplot.NewH1D(h)
	hh.LineStyle.Color = blue
	p.Add(hh, hplot.NewGrid())

	if err := ensureDir(path); err != nil {
		return errors.RenderError("spectrum", err)
	}
	if err := p.Save(o.Width, o.Height, path); err != nil {
		return errors.RenderError("spectrum", err)
	}
	return nil
}
