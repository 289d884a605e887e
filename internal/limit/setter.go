// Package limit sets confidence level limits on a signal count by scanning
// chi-squared over signal and background normalisations.
package limit

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"echidna/domain/core"
	domainLimit "echidna/domain/limit"
	"echidna/domain/spectra"
	"echidna/internal/chisquared"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// DefaultConfidenceLevel is the one-sided 90% CL used by the experiment
const DefaultConfidenceLevel = 0.9

// Setter scans a grid of signal counts against floating and fixed
// backgrounds and extracts the limit on the signal.
type Setter struct {
	signal    *spectra.Spectra
	floating  []*spectra.Spectra
	fixed     []*spectra.Spectra
	data      []float64
	dimension string
	cl        float64
	workers   int
	logger    *zap.Logger

	calculator   *chisquared.Calculator
	signalConfig *domainLimit.Config
	configs      map[string]*domainLimit.Config
	plotSyst     map[string]bool
	analysers    map[string]*domainLimit.SystAnalyser
}

// Option configures a Setter
type Option func(*Setter)

// WithFloatingBackgrounds adds backgrounds whose normalisation is scanned
func WithFloatingBackgrounds(backgrounds ...*spectra.Spectra) Option {
	return func(s *Setter) { s.floating = append(s.floating, backgrounds...) }
}

// WithFixedBackgrounds adds backgrounds included at their current normalisation
func WithFixedBackgrounds(backgrounds ...*spectra.Spectra) Option {
	return func(s *Setter) { s.fixed = append(s.fixed, backgrounds...) }
}

// WithData sets the observed projection. Without it the Asimov dataset of
// all backgrounds at their priors is used.
func WithData(observed []float64) Option {
	return func(s *Setter) { s.data = append([]float64(nil), observed...) }
}

// WithDimension selects the dimension the fit is done in
func WithDimension(dim string) Option {
	return func(s *Setter) { s.dimension = dim }
}

// WithConfidenceLevel sets the confidence level of the limit
func WithConfidenceLevel(cl float64) Option {
	return func(s *Setter) { s.cl = cl }
}

// WithWorkers bounds the number of signal counts scanned concurrently
func WithWorkers(n int) Option {
	return func(s *Setter) { s.workers = n }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Setter) { s.logger = logger }
}

// NewSetter creates a limit setter for signal
func NewSetter(signal *spectra.Spectra, opts ...Option) (*Setter, error) {
	if signal == nil {
		return nil, fmt.Errorf("%w: no signal spectra", core.ErrNotConfigured)
	}
	s := &Setter{
		signal:    signal,
		dimension: spectra.DimEnergy,
		cl:        DefaultConfidenceLevel,
		workers:   runtime.GOMAXPROCS(0),
		logger:    zap.NewNop(),
		configs:   make(map[string]*domainLimit.Config),
		plotSyst:  make(map[string]bool),
		analysers: make(map[string]*domainLimit.SystAnalyser),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	seen := map[string]bool{signal.Name: true}
	for _, b := range append(append([]*spectra.Spectra(nil), s.floating...), s.fixed...) {
		if seen[b.Name] {
			return nil, fmt.Errorf("%w: duplicate spectra name %q", core.ErrNotConfigured, b.Name)
		}
		seen[b.Name] = true
	}
	return s, nil
}

// ConfigureSignal sets the signal counts to scan
func (s *Setter) ConfigureSignal(cfg *domainLimit.Config) {
	s.signalConfig = cfg
}

// ConfigureBackground sets the counts scanned for a floating background.
// With plotSystematic the chi-squared map over its counts is kept in a
// SystAnalyser.
func (s *Setter) ConfigureBackground(name string, cfg *domainLimit.Config, plotSystematic bool) error {
	for _, b := range s.floating {
		if b.Name == name {
			s.configs[name] = cfg
			s.plotSyst[name] = plotSystematic
			return nil
		}
	}
	return core.NewNotFoundError("floating background", name)
}

// SetCalculator sets the chi-squared calculator
func (s *Setter) SetCalculator(calculator *chisquared.Calculator) {
	s.calculator = calculator
}

// SignalConfig returns the signal config holding the scanned chi-squareds
func (s *Setter) SignalConfig() *domainLimit.Config {
	return s.signalConfig
}

// SystAnalysers returns the analysers filled by the last GetLimit call
func (s *Setter) SystAnalysers() map[string]*domainLimit.SystAnalyser {
	return s.analysers
}

// scanPoint is the outcome of scanning every background combination at one
// signal count.
type scanPoint struct {
	chiSquared float64
	penalty    float64
	rows       [][]float64
}

// GetLimit scans the signal counts and extracts the limit
func (s *Setter) GetLimit(ctx context.Context) (domainLimit.Limit, error) {
	if err := s.validate(); err != nil {
		return domainLimit.Limit{Signal: s.signal.Name}, err
	}

	signalShape, err := s.shape(s.signal)
	if err != nil {
		return domainLimit.Limit{Signal: s.signal.Name}, err
	}
	shapes := make([][]float64, len(s.floating))
	for i, b := range s.floating {
		if shapes[i], err = s.shape(b); err != nil {
			return domainLimit.Limit{Signal: s.signal.Name}, err
		}
	}
	base := make([]float64, len(signalShape))
	for _, b := range s.fixed {
		projection, err := b.Project(s.dimension)
		if err != nil {
			return domainLimit.Limit{Signal: s.signal.Name}, err
		}
		if err := addScaled(base, projection, 1); err != nil {
			return domainLimit.Limit{Signal: s.signal.Name}, fmt.Errorf("fixed background %s: %w", b.Name, err)
		}
	}
	observed, err := s.observed(base, shapes)
	if err != nil {
		return domainLimit.Limit{Signal: s.signal.Name}, err
	}

	counts := s.signalConfig.Counts
	points := make([]scanPoint, len(counts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, count := range counts {
		g.Go(func() error {
			p, err := s.scan(gctx, observed, base, signalShape, shapes, count)
			if err != nil {
				return fmt.Errorf("signal count %g: %w", count, err)
			}
			points[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domainLimit.Limit{Signal: s.signal.Name}, err
	}

	s.signalConfig.Reset()
	s.analysers = make(map[string]*domainLimit.SystAnalyser)
	for bi, b := range s.floating {
		if s.plotSyst[b.Name] {
			s.analysers[b.Name] = domainLimit.NewSystAnalyser(b.Name, counts, s.configs[b.Name].Counts)
		}
		for i, p := range points {
			if a, ok := s.analysers[b.Name]; ok {
				a.MergeRow(i, p.rows[bi])
			}
		}
	}
	for i, p := range points {
		s.signalConfig.AddChiSquared(p.chiSquared, p.penalty, counts[i])
	}
	for name, a := range s.analysers {
		a.Finalize(s.configs[name])
	}

	result, err := ExtractLimit(s.signalConfig.ChiSquareds(), s.cl)
	result.Signal = s.signal.Name
	if err != nil {
		s.logger.Warn("Limit not extracted", zap.String("signal", s.signal.Name), zap.Error(err))
		return result, err
	}
	s.logger.Info("Limit extracted",
		zap.String("signal", s.signal.Name),
		zap.Float64("cl", s.cl),
		zap.Float64("counts", result.Counts),
		zap.Float64("best_fit", result.BestFit))
	return result, nil
}

func (s *Setter) validate() error {
	if s.calculator == nil {
		return fmt.Errorf("%w: no chi-squared calculator", core.ErrNotConfigured)
	}
	if s.signalConfig == nil {
		return fmt.Errorf("%w: signal %s has no config", core.ErrNotConfigured, s.signal.Name)
	}
	for _, b := range s.floating {
		if _, ok := s.configs[b.Name]; !ok {
			return fmt.Errorf("%w: floating background %s has no config", core.ErrNotConfigured, b.Name)
		}
	}
	return nil
}

// shape returns the projection of sp per decay
func (s *Setter) shape(sp *spectra.Spectra) ([]float64, error) {
	if sp.NumDecays == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrEmptySpectra, sp.Name)
	}
	projection, err := sp.Project(s.dimension)
	if err != nil {
		return nil, err
	}
	for i := range projection {
		projection[i] /= sp.NumDecays
	}
	return projection, nil
}

func (s *Setter) observed(base []float64, shapes [][]float64) ([]float64, error) {
	if s.data != nil {
		if len(s.data) != len(base) {
			return nil, fmt.Errorf("%w: data has %d bins, spectra %d", core.ErrLengthMismatch, len(s.data), len(base))
		}
		return s.data, nil
	}
	asimov := append([]float64(nil), base...)
	for i, b := range s.floating {
		if err := addScaled(asimov, shapes[i], s.configs[b.Name].Prior); err != nil {
			return nil, fmt.Errorf("floating background %s: %w", b.Name, err)
		}
	}
	return asimov, nil
}

// scan evaluates every floating background combination at one signal count
// and keeps the minimum. Combinations are visited in odometer order with the
// last background varying fastest; the first minimum found wins ties.
func (s *Setter) scan(ctx context.Context, observed, base, signalShape []float64, shapes [][]float64, count float64) (scanPoint, error) {
	p := scanPoint{chiSquared: math.Inf(1), rows: make([][]float64, len(s.floating))}
	dims := make([]int, len(s.floating))
	cfgs := make([]*domainLimit.Config, len(s.floating))
	for i, b := range s.floating {
		cfgs[i] = s.configs[b.Name]
		dims[i] = len(cfgs[i].Counts)
		p.rows[i] = make([]float64, dims[i])
		for j := range p.rows[i] {
			p.rows[i][j] = math.Inf(1)
		}
	}

	withSignal := append([]float64(nil), base...)
	if err := addScaled(withSignal, signalShape, count); err != nil {
		return p, err
	}
	expected := make([]float64, len(base))
	idx := make([]int, len(dims))
	for {
		if err := ctx.Err(); err != nil {
			return p, err
		}
		copy(expected, withSignal)
		penalty := 0.0
		for b, j := range idx {
			c := cfgs[b].Counts[j]
			if err := addScaled(expected, shapes[b], c); err != nil {
				return p, err
			}
			penalty += cfgs[b].Penalty(c)
		}
		chiSquared, err := s.calculator.Evaluate(observed, expected, penalty)
		if err != nil {
			return p, err
		}
		if chiSquared < p.chiSquared {
			p.chiSquared = chiSquared
			p.penalty = penalty
		}
		for b, j := range idx {
			if chiSquared < p.rows[b][j] {
				p.rows[b][j] = chiSquared
			}
		}
		if !next(idx, dims) {
			return p, nil
		}
	}
}

// next advances an odometer over dims. It returns false once every
// combination has been visited.
func next(idx, dims []int) bool {
	for i := len(idx) - 1; i >= 0; i-- {
		idx[i]++
		if idx[i] < dims[i] {
			return true
		}
		idx[i] = 0
	}
	return false
}

func addScaled(dst, src []float64, scale float64) error {
	if len(dst) != len(src) {
		return fmt.Errorf("%w: %d and %d bins", core.ErrLengthMismatch, len(dst), len(src))
	}
	floats.AddScaled(dst, scale, src)
	return nil
}
