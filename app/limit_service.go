package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"echidna/domain/core"
	"echidna/domain/limit"
	"echidna/domain/spectra"
	"echidna/internal/chisquared"
	"echidna/internal/config"
	appErrors "echidna/internal/errors"
	limitsetter "echidna/internal/limit"
	"echidna/internal/report"
	"echidna/internal/utilities"
	"echidna/ports"
)

// LimitService runs limit-setting analyses over stored spectra
type LimitService struct {
	spectra   ports.SpectraRepository
	results   ports.ResultRepository
	progress  ports.ProgressReporter
	outputDir string
	workers   int
	logger    *zap.Logger

	baseCtx  context.Context
	running  sync.WaitGroup
	launches *semaphore.Weighted
}

// LimitServiceOption configures a LimitService
type LimitServiceOption func(*LimitService)

// WithProgress sets where progress events are reported
func WithProgress(progress ports.ProgressReporter) LimitServiceOption {
	return func(s *LimitService) { s.progress = progress }
}

// WithOutputDir sets the directory workbooks, plots and reports are written to
func WithOutputDir(dir string) LimitServiceOption {
	return func(s *LimitService) { s.outputDir = dir }
}

// WithWorkers bounds the number of concurrent scans
func WithWorkers(n int) LimitServiceOption {
	return func(s *LimitService) { s.workers = n }
}

// WithBaseContext sets the context background runs are derived from
func WithBaseContext(ctx context.Context) LimitServiceOption {
	return func(s *LimitService) { s.baseCtx = ctx }
}

// NewLimitService creates a limit service
func NewLimitService(spectraRepo ports.SpectraRepository, results ports.ResultRepository, logger *zap.Logger, opts ...LimitServiceOption) *LimitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &LimitService{
		spectra:   spectraRepo,
		results:   results,
		progress:  ports.NopProgress{},
		outputDir: "results",
		workers:   1,
		logger:    logger,
		baseCtx:   context.Background(),
		launches:  semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	return s
}

// RunOutcome is everything produced by one analysis run
type RunOutcome struct {
	Run       *limit.Run
	Configs   []limit.ConfigDump
	Analysers []limit.AnalyserDump
	Spectra   []report.SpectrumRow
	Outputs   []string
}

// Run executes an analysis under a new run id
func (s *LimitService) Run(ctx context.Context, analysis *config.Analysis) (*RunOutcome, error) {
	return s.RunWithID(ctx, core.NewRunID(), analysis)
}

// Launch starts an analysis in the background and returns its run id.
// Launched runs execute one at a time. Progress and failures are reported
// through the progress reporter.
func (s *LimitService) Launch(analysis *config.Analysis) (core.RunID, error) {
	if err := analysis.Validate(); err != nil {
		return "", err
	}
	runID := core.NewRunID()
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("background run panicked", zap.String("run_id", runID.String()), zap.Any("panic", r))
				s.report(ports.ProgressEvent{RunID: runID, Stage: ports.StageError, Message: fmt.Sprintf("run panicked: %v", r)})
			}
		}()
		if err := s.launches.Acquire(s.baseCtx, 1); err != nil {
			s.report(ports.ProgressEvent{RunID: runID, Stage: ports.StageError, Message: err.Error()})
			return
		}
		defer s.launches.Release(1)

		if _, err := s.RunWithID(s.baseCtx, runID, analysis); err != nil {
			s.logger.Error("background run failed", zap.String("run_id", runID.String()), zap.Error(err))
		}
	}()
	return runID, nil
}

// Wait blocks until every launched run has returned
func (s *LimitService) Wait() {
	s.running.Wait()
}

// RunWithID executes an analysis: spectra are loaded and cut, limits are set
// for every signal in every mode, results are stored and the configured
// outputs written. A signal whose limit cannot be extracted is recorded as
// failed and the run goes on.
func (s *LimitService) RunWithID(ctx context.Context, runID core.RunID, analysis *config.Analysis) (*RunOutcome, error) {
	timer := utilities.StartTimer()
	logger := s.logger.With(zap.String("run_id", runID.String()), zap.String("analysis", analysis.Name))
	s.report(ports.ProgressEvent{RunID: runID, Stage: ports.StageStarted, Message: analysis.Name})

	outcome, err := s.run(ctx, runID, analysis, logger)
	if err != nil {
		s.report(ports.ProgressEvent{RunID: runID, Stage: ports.StageError, Message: err.Error()})
		return nil, err
	}

	timer.StopAndLog(logger, "analysis run complete",
		zap.Int("limits", len(outcome.Run.Limits)),
		zap.Int("outputs", len(outcome.Outputs)))
	s.report(ports.ProgressEvent{RunID: runID, Stage: ports.StageFinished, Progress: 1})
	return outcome, nil
}

func (s *LimitService) run(ctx context.Context, runID core.RunID, analysis *config.Analysis, logger *zap.Logger) (*RunOutcome, error) {
	if err := analysis.Validate(); err != nil {
		return nil, err
	}
	fingerprint, err := analysis.Fingerprint()
	if err != nil {
		return nil, err
	}
	form, err := chisquared.ParseForm(analysis.ChiSquared)
	if err != nil {
		return nil, appErrors.WithCode(appErrors.CodeConfigInvalid, err)
	}
	calculator, err := chisquared.NewCalculator(form)
	if err != nil {
		return nil, appErrors.WithCode(appErrors.CodeConfigInvalid, err)
	}

	set, err := s.prepare(ctx, analysis, logger)
	if err != nil {
		return nil, err
	}

	outcome := &RunOutcome{
		Run: &limit.Run{
			ID:          runID,
			Name:        analysis.Name,
			Fingerprint: fingerprint,
			CreatedAt:   time.Now().UTC(),
		},
		Spectra: set.rows,
	}

	tracker := newProgressTracker(s.progress, runID, len(analysis.Modes)*len(analysis.Signals))
	for _, mode := range analysis.Modes {
		results, err := s.runMode(ctx, analysis, set, mode, calculator, tracker, logger)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			outcome.Run.Limits = append(outcome.Run.Limits, r.limit)
			outcome.Configs = append(outcome.Configs, r.configs...)
			outcome.Analysers = append(outcome.Analysers, r.analysers...)
		}
	}

	if err := s.persist(ctx, analysis, outcome); err != nil {
		return nil, err
	}

	outputs, err := s.writeOutputs(analysis, set, outcome, logger)
	if err != nil {
		return nil, err
	}
	outcome.Outputs = outputs
	s.report(ports.ProgressEvent{RunID: runID, Stage: ports.StageOutputs, Progress: 1,
		Message: fmt.Sprintf("%d files written", len(outputs))})
	return outcome, nil
}

// signalResult is the outcome of one signal in one mode
type signalResult struct {
	limit     limit.Limit
	configs   []limit.ConfigDump
	analysers []limit.AnalyserDump
}

// runMode sets the limit of every signal concurrently
func (s *LimitService) runMode(ctx context.Context, analysis *config.Analysis, set *spectraSet, mode core.Mode,
	calculator *chisquared.Calculator, tracker *progressTracker, logger *zap.Logger) ([]signalResult, error) {
	results := make([]signalResult, len(analysis.Signals))

	concurrent := s.workers
	if concurrent > len(analysis.Signals) {
		concurrent = len(analysis.Signals)
	}
	perSetter := s.workers / concurrent
	if perSetter < 1 {
		perSetter = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrent)
	for i, spec := range analysis.Signals {
		g.Go(func() error {
			res, err := s.setSignalLimit(gctx, analysis, set, mode, i, spec, calculator, perSetter, logger)
			if err != nil {
				return err
			}
			results[i] = res
			if res.limit.Failed() {
				tracker.failed(mode, spec.Spectrum, res.limit.Failure)
			} else {
				tracker.done(mode, spec.Spectrum)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *LimitService) setSignalLimit(ctx context.Context, analysis *config.Analysis, set *spectraSet, mode core.Mode,
	index int, spec config.SignalSpec, calculator *chisquared.Calculator, workers int, logger *zap.Logger) (signalResult, error) {
	logger = logger.With(zap.String("signal", spec.Spectrum), zap.String("mode", string(mode)))
	signal := set.byName[spec.Spectrum]

	setter, err := limitsetter.NewSetter(signal,
		limitsetter.WithFloatingBackgrounds(set.floating...),
		limitsetter.WithFixedBackgrounds(set.fixed...),
		limitsetter.WithDimension(analysis.FitDimension),
		limitsetter.WithConfidenceLevel(analysis.ConfidenceLevel),
		limitsetter.WithWorkers(workers),
		limitsetter.WithLogger(logger))
	if err != nil {
		return signalResult{}, err
	}
	setter.SetCalculator(calculator)

	signalConfig, err := spec.SignalConfig(signal.NumDecays)
	if err != nil {
		return signalResult{}, appErrors.WithCode(appErrors.CodeConfigInvalid, err)
	}
	setter.ConfigureSignal(signalConfig)

	backgroundConfigs := make(map[string]*limit.Config)
	for _, b := range analysis.Backgrounds {
		if b.Fixed {
			continue
		}
		cfg, err := b.Config(mode)
		if err != nil {
			return signalResult{}, appErrors.WithCode(appErrors.CodeConfigInvalid, err)
		}
		plotSystematic := mode == core.ModePenalty && b.PlotSystematic
		if err := setter.ConfigureBackground(b.Spectrum, cfg, plotSystematic); err != nil {
			return signalResult{}, err
		}
		backgroundConfigs[b.Spectrum] = cfg
	}

	result, err := setter.GetLimit(ctx)
	result.Signal = spec.Spectrum
	result.Mode = mode
	if err != nil {
		if ctx.Err() != nil {
			return signalResult{}, ctx.Err()
		}
		if !recoverable(err) {
			return signalResult{}, fmt.Errorf("limit for %s (%s): %w", spec.Spectrum, mode, err)
		}
		logger.Warn("limit not set", zap.Error(err))
		result.Failure = err.Error()
	} else {
		s.convert(&result, analysis, spec, signal, logger)
	}

	res := signalResult{limit: result}
	res.configs = append(res.configs, limit.NewConfigDump(mode, spec.Spectrum, spec.Spectrum, setter.SignalConfig()))
	for _, b := range analysis.Backgrounds {
		if cfg, ok := backgroundConfigs[b.Spectrum]; ok {
			res.configs = append(res.configs, limit.NewConfigDump(mode, spec.Spectrum, b.Spectrum, cfg))
		}
	}

	analysers := setter.SystAnalysers()
	names := make([]string, 0, len(analysers))
	for name := range analysers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		res.analysers = append(res.analysers, limit.AnalyserDump{
			Mode:        mode,
			SignalIndex: index,
			Signal:      spec.Spectrum,
			Analyser:    analysers[name],
		})
	}
	return res, nil
}

// recoverable reports whether a limit error fails only its own signal
func recoverable(err error) bool {
	return errors.Is(err, core.ErrLimitNotReached) ||
		errors.Is(err, core.ErrZeroExpectation) ||
		core.IsSpectraError(err)
}

// convert fills the half-life and effective mass of a limit. Conversion
// errors are logged and leave the fields empty.
func (s *LimitService) convert(result *limit.Limit, analysis *config.Analysis, spec config.SignalSpec, signal *spectra.Spectra, logger *zap.Logger) {
	if analysis.Isotope.Name == "" {
		return
	}
	converter := spec.Converter(analysis.Isotope, roiEfficiency(signal))

	halfLife, err := converter.CountsToHalfLife(result.Counts, analysis.Livetime)
	if err != nil {
		logger.Warn("half-life conversion failed", zap.Float64("counts", result.Counts), zap.Error(err))
		return
	}
	result.HalfLife = halfLife

	mass, err := converter.HalfLifeToEffMass(halfLife)
	if err != nil {
		logger.Warn("effective mass conversion failed", zap.Float64("half_life", halfLife), zap.Error(err))
		return
	}
	result.EffectiveMass = mass
	logger.Info("limit converted",
		zap.Float64("counts", result.Counts),
		zap.Float64("half_life", halfLife),
		zap.Float64("effective_mass", mass))
}

// roiEfficiency is the product of the efficiencies of every ROI applied
func roiEfficiency(s *spectra.Spectra) float64 {
	eff := 1.0
	for _, roi := range s.ROIs() {
		eff *= roi.Efficiency
	}
	return eff
}

func (s *LimitService) persist(ctx context.Context, analysis *config.Analysis, outcome *RunOutcome) error {
	if s.results == nil {
		return nil
	}
	run := outcome.Run
	if err := s.results.CreateRun(ctx, run); err != nil {
		return err
	}
	for _, l := range run.Limits {
		if err := s.results.SaveLimit(ctx, run.ID, l); err != nil {
			return err
		}
	}
	if !analysis.Output.Dumps {
		return nil
	}
	for _, dump := range outcome.Configs {
		if err := s.results.SaveConfig(ctx, run.ID, dump); err != nil {
			return err
		}
	}
	for _, dump := range outcome.Analysers {
		if err := s.results.SaveAnalyser(ctx, run.ID, dump); err != nil {
			return err
		}
	}
	return nil
}

func (s *LimitService) report(event ports.ProgressEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	s.progress.Report(event)
}
