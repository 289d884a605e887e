package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"echidna/domain/core"
	"echidna/domain/limit"
	"echidna/domain/spectra"
	"echidna/internal/chisquared"
	"echidna/internal/decay"
	"echidna/internal/errors"
)

// Analysis describes one limit-setting run: which spectra to load, how to cut
// them and how to scan the signal and background normalisations.
type Analysis struct {
	Name            string           `yaml:"name"`
	ConfidenceLevel float64          `yaml:"confidence_level"`
	ChiSquared      string           `yaml:"chi_squared"`
	FitDimension    string           `yaml:"fit_dimension"`
	Livetime        float64          `yaml:"livetime"`
	Binning         Binning          `yaml:"binning"`
	Cuts            Cuts             `yaml:"cuts"`
	Isotope         decay.DBIsotope  `yaml:"isotope"`
	Signals         []SignalSpec     `yaml:"signals"`
	Backgrounds     []BackgroundSpec `yaml:"backgrounds"`
	Modes           []core.Mode      `yaml:"modes"`
	Output          OutputSpec       `yaml:"output"`
}

// Binning is the histogram layout used when generating spectra
type Binning struct {
	Energy spectra.Axis `yaml:"energy"`
	Radial spectra.Axis `yaml:"radial"`
	Time   spectra.Axis `yaml:"time"`
}

// Range is a closed interval
type Range struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// ROICut shrinks a dimension to a region of interest and records its efficiency
type ROICut struct {
	Dimension string  `yaml:"dimension"`
	Low       float64 `yaml:"low"`
	High      float64 `yaml:"high"`
}

// Cuts applied to every spectrum before limit setting. Time is a cut (bins
// zeroed), Radial a shrink.
type Cuts struct {
	Time   *Range  `yaml:"time,omitempty"`
	Radial *Range  `yaml:"radial,omitempty"`
	ROI    *ROICut `yaml:"roi,omitempty"`
}

// SignalSpec describes a signal spectrum and its count scan. A zero Start
// means the spectrum's number of decays.
type SignalSpec struct {
	Spectrum      string  `yaml:"spectrum"`
	Start         float64 `yaml:"start,omitempty"`
	Stop          float64 `yaml:"stop"`
	Points        int     `yaml:"points"`
	Endpoint      bool    `yaml:"endpoint"`
	PhaseSpace    float64 `yaml:"phase_space,omitempty"`
	MatrixElement float64 `yaml:"matrix_element,omitempty"`
}

// BackgroundSpec describes a background spectrum. Floating backgrounds are
// scanned over [LowFraction, HighFraction]*Prior in the penalty mode and held
// at the prior otherwise.
type BackgroundSpec struct {
	Spectrum         string  `yaml:"spectrum"`
	Prior            float64 `yaml:"prior"`
	SigmaFraction    float64 `yaml:"sigma_fraction"`
	LowFraction      float64 `yaml:"low_fraction"`
	HighFraction     float64 `yaml:"high_fraction"`
	Points           int     `yaml:"points"`
	Fixed            bool    `yaml:"fixed"`
	NumDecaysFromSum bool    `yaml:"num_decays_from_sum"`
	PlotSystematic   bool    `yaml:"plot_systematic"`
}

// OutputSpec toggles the artefacts written after a run
type OutputSpec struct {
	Workbook bool `yaml:"workbook"`
	Plots    bool `yaml:"plots"`
	Report   bool `yaml:"report"`
	Dumps    bool `yaml:"dumps"`
	// ErrorBars is the fractional error drawn on chi-squared scans. Zero
	// draws none.
	ErrorBars float64 `yaml:"error_bars"`
	// Contours adds a contour rendition of every chi-squared map
	Contours bool `yaml:"contours"`
}

// Livetimes are in years
const daysPerYear = 365.25

// DefaultAnalysis returns the KamLAND-Zen Majoron analysis
func DefaultAnalysis() *Analysis {
	xe136 := 135.907219
	xe134 := 133.90539450
	return &Analysis{
		Name:            "klz_majoron",
		ConfidenceLevel: 0.9,
		ChiSquared:      string(chisquared.PoissonLikelihood),
		FitDimension:    spectra.DimEnergy,
		Livetime:        112.3 / daysPerYear,
		Binning: Binning{
			Energy: spectra.Axis{Name: spectra.DimEnergy, Low: 0, High: 10, Bins: 200},
			Radial: spectra.Axis{Name: spectra.DimRadial, Low: 0, High: 2000, Bins: 20},
			Time:   spectra.Axis{Name: spectra.DimTime, Low: 0, High: 10, Bins: 10},
		},
		Cuts: Cuts{
			Time:   &Range{Low: 0, High: 1},
			Radial: &Range{Low: 0, High: 1200},
			ROI:    &ROICut{Dimension: spectra.DimEnergy, Low: 0.5, High: 3.0},
		},
		Isotope: decay.DBIsotope{
			Name:         "Xe136",
			AtmWeightIso: xe136,
			AtmWeightNat: 0.9093*xe136 + 0.0889*xe134,
			Abundance:    0.089,
			Loading:      0.0244,
			FVRadius:     1200,
			OuterRadius:  1540,
			ScintDensity: 7.5628e-7,
		},
		Signals: []SignalSpec{
			{Spectrum: "Xe136_0n2b_n1", Points: 100, PhaseSpace: 6.02e-16, MatrixElement: 2.57},
			{Spectrum: "Xe136_0n2b_n2", Points: 100},
			{Spectrum: "Xe136_0n2b_n3", Points: 100, PhaseSpace: 1.06e-17, MatrixElement: 1e-3},
			{Spectrum: "Xe136_0n2b_n7", Points: 100, PhaseSpace: 4.54e-17, MatrixElement: 1e-3},
		},
		Backgrounds: []BackgroundSpec{
			{
				Spectrum: "Xe136_2n2b", Prior: 1.132e6, SigmaFraction: 0.053,
				LowFraction: 0.947, HighFraction: 1.053, Points: 51, PlotSystematic: true,
			},
			{
				Spectrum: "B8_Solar", Prior: 1252.99691, SigmaFraction: 0.04,
				LowFraction: 0.96, HighFraction: 1.04, Points: 10,
				NumDecaysFromSum: true, PlotSystematic: true,
			},
		},
		Modes:  []core.Mode{core.ModeNoPenalty, core.ModePenalty},
		Output: OutputSpec{Workbook: true, Plots: true, Report: true, Dumps: true, Contours: true},
	}
}

// LoadAnalysis reads an analysis file over the defaults. A missing file
// yields the default analysis.
func LoadAnalysis(path string) (*Analysis, error) {
	analysis := DefaultAnalysis()
	if path == "" {
		return analysis, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return analysis, nil
		}
		return nil, errors.Wrapf(err, "failed to read analysis %s", path)
	}

	analysis, err = ParseAnalysis(data)
	if err != nil {
		return nil, errors.Wrapf(err, "analysis %s", path)
	}
	return analysis, nil
}

// ParseAnalysis decodes a YAML analysis over the defaults and validates it
func ParseAnalysis(data []byte) (*Analysis, error) {
	analysis := DefaultAnalysis()
	if err := yaml.Unmarshal(data, analysis); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("failed to parse analysis: %w", err))
	}
	analysis.applyDefaults()

	if err := analysis.Validate(); err != nil {
		return nil, err
	}
	return analysis, nil
}

// Save writes the analysis as YAML
func (a *Analysis) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create analysis directory")
	}
	data, err := yaml.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "failed to marshal analysis")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write analysis %s", path)
	}
	return nil
}

func (a *Analysis) applyDefaults() {
	if a.ChiSquared == "" {
		a.ChiSquared = string(chisquared.PoissonLikelihood)
	}
	if a.FitDimension == "" {
		a.FitDimension = spectra.DimEnergy
	}
	if len(a.Modes) == 0 {
		a.Modes = []core.Mode{core.ModeNoPenalty, core.ModePenalty}
	}
	a.Binning.Energy.Name = spectra.DimEnergy
	a.Binning.Radial.Name = spectra.DimRadial
	a.Binning.Time.Name = spectra.DimTime
	for i := range a.Signals {
		if a.Signals[i].Points == 0 {
			a.Signals[i].Points = 100
		}
	}
	for i := range a.Backgrounds {
		b := &a.Backgrounds[i]
		if b.Points == 0 {
			b.Points = 1
		}
		if b.LowFraction == 0 && b.HighFraction == 0 {
			b.LowFraction, b.HighFraction = 1, 1
		}
	}
}

// Validate checks the analysis for consistency
func (a *Analysis) Validate() error {
	if a.Name == "" {
		return errors.ConfigInvalid("analysis name is required")
	}
	if !(a.ConfidenceLevel > 0 && a.ConfidenceLevel < 1) {
		return errors.ConfigInvalid(fmt.Sprintf("confidence_level must be in (0, 1), got %g", a.ConfidenceLevel))
	}
	if _, err := chisquared.ParseForm(a.ChiSquared); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	switch a.FitDimension {
	case spectra.DimEnergy, spectra.DimRadial, spectra.DimTime:
	default:
		return errors.ConfigInvalid("unknown fit_dimension " + a.FitDimension)
	}
	if !(a.Livetime > 0) {
		return errors.ConfigInvalid("livetime must be positive")
	}
	for _, axis := range []spectra.Axis{a.Binning.Energy, a.Binning.Radial, a.Binning.Time} {
		if err := axis.Validate(); err != nil {
			return errors.WithCode(errors.CodeConfigInvalid, err)
		}
	}
	if roi := a.Cuts.ROI; roi != nil && roi.Dimension == "" {
		return errors.ConfigInvalid("roi dimension is required")
	}
	if a.Isotope.Name != "" {
		if err := a.Isotope.Validate(); err != nil {
			return errors.WithCode(errors.CodeConfigInvalid, err)
		}
	}
	if a.Output.ErrorBars < 0 {
		return errors.ConfigInvalid("output error_bars must not be negative")
	}
	if len(a.Signals) == 0 {
		return errors.ConfigInvalid("at least one signal is required")
	}

	seen := make(map[string]bool)
	unique := func(name string) error {
		if name == "" {
			return errors.ConfigInvalid("spectrum name is required")
		}
		if seen[name] {
			return errors.ConfigInvalid("duplicate spectrum " + name)
		}
		seen[name] = true
		return nil
	}
	for _, s := range a.Signals {
		if err := unique(s.Spectrum); err != nil {
			return err
		}
		if s.Points < 1 {
			return errors.ConfigInvalid(fmt.Sprintf("signal %s needs at least one point", s.Spectrum))
		}
		if s.Start < 0 || s.Stop < 0 {
			return errors.ConfigInvalid(fmt.Sprintf("signal %s counts must be non-negative", s.Spectrum))
		}
	}
	for _, b := range a.Backgrounds {
		if err := unique(b.Spectrum); err != nil {
			return err
		}
		if !(b.Prior >= 0) {
			return errors.ConfigInvalid(fmt.Sprintf("background %s prior must be non-negative", b.Spectrum))
		}
		if b.SigmaFraction < 0 {
			return errors.ConfigInvalid(fmt.Sprintf("background %s sigma_fraction must be non-negative", b.Spectrum))
		}
		if b.Points < 1 || b.LowFraction < 0 || b.HighFraction < b.LowFraction {
			return errors.ConfigInvalid(fmt.Sprintf("background %s has an invalid scan range", b.Spectrum))
		}
	}
	for _, m := range a.Modes {
		if m != core.ModeNoPenalty && m != core.ModePenalty {
			return errors.ConfigInvalid(fmt.Sprintf("unknown mode %q", m))
		}
	}
	return nil
}

// Fingerprint hashes the YAML form of the analysis
func (a *Analysis) Fingerprint() (core.ConfigFingerprint, error) {
	data, err := yaml.Marshal(a)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal analysis")
	}
	return core.NewConfigFingerprint(data), nil
}

// SignalCounts returns the signal count grid. numDecays replaces a zero Start.
func (s SignalSpec) SignalCounts(numDecays float64) ([]float64, error) {
	start := s.Start
	if start == 0 {
		start = numDecays
	}
	return limit.CountGrid(start, s.Stop, s.Points, s.Endpoint)
}

// SignalConfig builds the signal limit config. Signals carry no penalty.
func (s SignalSpec) SignalConfig(numDecays float64) (*limit.Config, error) {
	counts, err := s.SignalCounts(numDecays)
	if err != nil {
		return nil, err
	}
	return limit.NewConfig(0, counts, 0)
}

// Converter returns the isotope with this signal's nuclear parameters and ROI efficiency
func (s SignalSpec) Converter(isotope decay.DBIsotope, roiEfficiency float64) decay.DBIsotope {
	isotope.PhaseSpace = s.PhaseSpace
	isotope.MatrixElement = s.MatrixElement
	isotope.ROIEfficiency = roiEfficiency
	return isotope
}

// Config builds the background limit config for a mode. Without a penalty
// term the background is held at its prior.
func (b BackgroundSpec) Config(mode core.Mode) (*limit.Config, error) {
	if mode == core.ModeNoPenalty || b.Fixed {
		return limit.NewConfig(b.Prior, []float64{b.Prior}, 0)
	}
	counts, err := limit.FractionalGrid(b.Prior, b.LowFraction, b.HighFraction, b.Points)
	if err != nil {
		return nil, err
	}
	return limit.NewConfig(b.Prior, counts, b.SigmaFraction*b.Prior)
}

// SignalNames lists the signal spectra in order
func (a *Analysis) SignalNames() []string {
	names := make([]string, len(a.Signals))
	for i, s := range a.Signals {
		names[i] = s.Spectrum
	}
	return names
}
