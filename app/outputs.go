package app

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"echidna/adapters/excel"
	"echidna/adapters/plot"
	"echidna/domain/core"
	"echidna/domain/limit"
	"echidna/internal/config"
	"echidna/internal/report"
	"echidna/internal/utilities"
)

const (
	workbookName = "results.xlsx"
	plotsDir     = "plots"
)

// RunDir is the directory the outputs of a run are written to
func RunDir(outputDir string, runID core.RunID) string {
	return filepath.Join(outputDir, runID.String())
}

func (s *LimitService) writeOutputs(analysis *config.Analysis, set *spectraSet, outcome *RunOutcome, logger *zap.Logger) ([]string, error) {
	dir := RunDir(s.outputDir, outcome.Run.ID)
	var written []string

	if analysis.Output.Workbook {
		path := filepath.Join(dir, workbookName)
		if err := excel.WriteResults(path, excel.Results{
			Run:       outcome.Run,
			Configs:   outcome.Configs,
			Analysers: outcome.Analysers,
		}); err != nil {
			return nil, fmt.Errorf("failed to write workbook: %w", err)
		}
		written = append(written, path)
	}

	var plots []string
	if analysis.Output.Plots {
		plots = renderPlots(dir, outcome.Configs, outcome.Analysers, analysis.Output, logger)
		for _, sp := range set.ordered {
			rel := filepath.Join(plotsDir, "spectrum_"+sp.Name+".png")
			if err := plot.Spectrum(filepath.Join(dir, rel), sp, analysis.FitDimension, plot.WithTitle(sp.Name)); err != nil {
				logger.Warn("spectrum plot failed", zap.String("spectra", sp.Name), zap.Error(err))
				continue
			}
			plots = append(plots, rel)
		}
		for _, rel := range plots {
			written = append(written, filepath.Join(dir, rel))
		}
	}

	if analysis.Output.Report {
		mdPath, htmlPath, err := report.Write(dir, report.Input{
			Run:             outcome.Run,
			ChiSquared:      analysis.ChiSquared,
			ConfidenceLevel: analysis.ConfidenceLevel,
			Livetime:        analysis.Livetime,
			Spectra:         outcome.Spectra,
			Plots:           plots,
		})
		if err != nil {
			return nil, err
		}
		written = append(written, mdPath, htmlPath)
	}
	return written, nil
}

// Render rewrites the workbook and plots of a stored run from its dumps.
// out selects the error bars and contour maps drawn.
func (s *LimitService) Render(ctx context.Context, runID core.RunID, out config.OutputSpec) ([]string, error) {
	run, err := s.results.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	configs, err := s.results.ListConfigs(ctx, runID)
	if err != nil {
		return nil, err
	}
	analysers, err := s.results.ListAnalysers(ctx, runID)
	if err != nil {
		return nil, err
	}

	dir := RunDir(s.outputDir, runID)
	path := filepath.Join(dir, workbookName)
	if err := excel.WriteResults(path, excel.Results{Run: run, Configs: configs, Analysers: analysers}); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	written := []string{path}

	logger := s.logger.With(zap.String("run_id", runID.String()))
	for _, rel := range renderPlots(dir, configs, analysers, out, logger) {
		written = append(written, filepath.Join(dir, rel))
	}
	logger.Info("run rendered", zap.Int("files", len(written)))
	return written, nil
}

// renderPlots draws the chi-squared scan of every signal, with the penalty
// scan overlaid when both modes ran, and the map and penalty values of every
// analyser. Failed plots are logged and skipped. Paths are relative to dir.
func renderPlots(dir string, configs []limit.ConfigDump, analysers []limit.AnalyserDump, out config.OutputSpec, logger *zap.Logger) []string {
	var scanOpts []plot.Option
	if out.ErrorBars > 0 {
		scanOpts = append(scanOpts, plot.WithErrors(utilities.ErrorOptions{FracErr: out.ErrorBars}))
	}

	var plots []string
	save := func(rel string, draw func(path string) error) {
		if err := draw(filepath.Join(dir, rel)); err != nil {
			logger.Warn("plot failed", zap.String("plot", rel), zap.Error(err))
			return
		}
		plots = append(plots, rel)
	}

	var signals []string
	scans := make(map[string]map[core.Mode]*limit.Config)
	for _, dump := range configs {
		if dump.Owner != dump.Signal {
			continue
		}
		cfg, err := dump.Config()
		if err != nil {
			logger.Warn("invalid config dump", zap.String("signal", dump.Signal), zap.Error(err))
			continue
		}
		if _, ok := scans[dump.Signal]; !ok {
			scans[dump.Signal] = make(map[core.Mode]*limit.Config)
			signals = append(signals, dump.Signal)
		}
		scans[dump.Signal][dump.Mode] = cfg
	}

	for _, signal := range signals {
		byMode := scans[signal]
		opts := append([]plot.Option{plot.WithTitle(signal)}, scanOpts...)
		base, ok := byMode[core.ModeNoPenalty]
		if penalty, both := byMode[core.ModePenalty]; both && ok {
			opts = append(opts, plot.WithPenalty(penalty))
		} else if !ok {
			base = penalty
		}
		save(filepath.Join(plotsDir, "chi_squared_"+signal+".png"), func(path string) error {
			return plot.ChiSquaredVsSignal(path, base, opts...)
		})
	}

	for _, dump := range analysers {
		if dump.Analyser == nil {
			continue
		}
		a := dump.Analyser
		stem := dump.Signal + "_" + a.Name + dump.Mode.Suffix()
		title := plot.WithTitle(fmt.Sprintf("%s: %s", dump.Signal, a.Name))
		save(filepath.Join(plotsDir, "chi_squared_map_"+stem+".png"), func(path string) error {
			return plot.ChiSquaredMap(path, a, title)
		})
		if out.Contours {
			save(filepath.Join(plotsDir, "chi_squared_contours_"+stem+".png"), func(path string) error {
				return plot.ChiSquaredMap(path, a, title, plot.WithContours())
			})
		}
		save(filepath.Join(plotsDir, "penalty_"+stem+".png"), func(path string) error {
			return plot.PenaltyValues(path, a, title)
		})
	}
	return plots
}
