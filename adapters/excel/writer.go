package excel

import (
	"fmt"
	"os"
	"path/filepath"

	"echidna/domain/limit"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the results workbook
const (
	LimitsSheet      = "Limits"
	ScansSheet       = "Scans"
	SystematicsSheet = "Systematics"
)

// Results is everything written to the results workbook for one run
type Results struct {
	Run       *limit.Run
	Configs   []limit.ConfigDump
	Analysers []limit.AnalyserDump
}

// WriteResults saves the limits, chi-squared scans and preferred systematic
// values of a run as an xlsx workbook.
func WriteResults(path string, res Results) error {
	if res.Run == nil {
		return fmt.Errorf("no run to write")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", LimitsSheet); err != nil {
		return err
	}
	if err := writeLimits(f, res.Run); err != nil {
		return fmt.Errorf("failed to write limits: %w", err)
	}

	if _, err := f.NewSheet(ScansSheet); err != nil {
		return err
	}
	if err := writeScans(f, res.Configs); err != nil {
		return fmt.Errorf("failed to write scans: %w", err)
	}

	if _, err := f.NewSheet(SystematicsSheet); err != nil {
		return err
	}
	if err := writeSystematics(f, res.Analysers); err != nil {
		return fmt.Errorf("failed to write systematics: %w", err)
	}

	return f.SaveAs(path)
}

func writeLimits(f *excelize.File, run *limit.Run) error {
	header := []interface{}{
		"Signal", "Mode", "Limit [counts]", "Best fit [counts]", "Min chi2",
		"Threshold", "CL", "Half-life [y]", "Effective mass [eV]", "Failure",
	}
	if err := setRow(f, LimitsSheet, 1, header); err != nil {
		return err
	}
	for i, l := range run.Limits {
		row := []interface{}{
			l.Signal, string(l.Mode), l.Counts, l.BestFit, l.MinChiSquared,
			l.Threshold, l.ConfidenceLevel, l.HalfLife, l.EffectiveMass, l.Failure,
		}
		if err := setRow(f, LimitsSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeScans(f *excelize.File, dumps []limit.ConfigDump) error {
	if err := setRow(f, ScansSheet, 1, []interface{}{"Mode", "Signal", "Spectrum", "Count", "Chi2", "Penalty"}); err != nil {
		return err
	}
	row := 2
	for _, d := range dumps {
		for _, r := range d.Records {
			if err := setRow(f, ScansSheet, row, []interface{}{
				string(d.Mode), d.Signal, d.Owner, r.Count, r.ChiSquared, r.PenaltyTerm,
			}); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

func writeSystematics(f *excelize.File, dumps []limit.AnalyserDump) error {
	if err := setRow(f, SystematicsSheet, 1, []interface{}{"Mode", "Signal", "Systematic", "Signal counts", "Preferred value"}); err != nil {
		return err
	}
	row := 2
	for _, d := range dumps {
		a := d.Analyser
		if a == nil {
			continue
		}
		for i, count := range a.ActualCounts {
			if i >= len(a.PreferredValues) {
				break
			}
			if err := setRow(f, SystematicsSheet, row, []interface{}{
				string(d.Mode), d.Signal, a.Name, count, a.PreferredValues[i],
			}); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
