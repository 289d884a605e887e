package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"echidna/domain/core"
	"echidna/domain/spectra"
	"echidna/internal/config"
	"echidna/internal/report"
)

// spectraSet holds the cut spectra of a run
type spectraSet struct {
	byName   map[string]*spectra.Spectra
	floating []*spectra.Spectra
	fixed    []*spectra.Spectra
	ordered  []*spectra.Spectra
	rows     []report.SpectrumRow
}

// prepare loads every spectrum named by the analysis and applies its cuts.
// Fixed backgrounds are scaled to their prior.
func (s *LimitService) prepare(ctx context.Context, analysis *config.Analysis, logger *zap.Logger) (*spectraSet, error) {
	set := &spectraSet{byName: make(map[string]*spectra.Spectra)}

	load := func(name string) (*spectra.Spectra, error) {
		sp, err := s.spectra.Get(ctx, core.SpectraName(name))
		if err != nil {
			return nil, fmt.Errorf("failed to load spectra %s: %w", name, err)
		}
		logger.Info("spectra loaded",
			zap.String("name", sp.Name),
			zap.Float64("num_decays", sp.NumDecays),
			zap.Int("raw_events", sp.RawEvents),
			zap.Float64("events", sp.Sum()))
		return sp, nil
	}

	for _, spec := range analysis.Signals {
		sp, err := load(spec.Spectrum)
		if err != nil {
			return nil, err
		}
		set.add(sp)
	}

	for _, b := range analysis.Backgrounds {
		sp, err := load(b.Spectrum)
		if err != nil {
			return nil, err
		}
		if b.NumDecaysFromSum {
			sp.NumDecays = sp.Sum()
		}
		set.add(sp)
		if b.Fixed {
			set.fixed = append(set.fixed, sp)
		} else {
			set.floating = append(set.floating, sp)
		}
	}

	for _, sp := range set.ordered {
		if err := applyCuts(sp, analysis.Cuts); err != nil {
			return nil, fmt.Errorf("failed to cut spectra %s: %w", sp.Name, err)
		}
		set.rows = append(set.rows, report.SpectrumRow{
			Name:          sp.Name,
			NumDecays:     sp.NumDecays,
			RawEvents:     sp.RawEvents,
			Events:        sp.Sum(),
			ROIEfficiency: roiEfficiency(sp),
		})
	}

	for _, b := range analysis.Backgrounds {
		if !b.Fixed {
			continue
		}
		if err := set.byName[b.Spectrum].Scale(b.Prior); err != nil {
			return nil, fmt.Errorf("failed to scale fixed background %s: %w", b.Spectrum, err)
		}
	}
	return set, nil
}

func (set *spectraSet) add(sp *spectra.Spectra) {
	set.byName[sp.Name] = sp
	set.ordered = append(set.ordered, sp)
}

// applyCuts zeroes the time bins outside the time cut, shrinks the radial
// axis and then shrinks to the ROI recording its efficiency.
func applyCuts(sp *spectra.Spectra, cuts config.Cuts) error {
	if cuts.Time != nil {
		if err := sp.Cut(spectra.DimTime, cuts.Time.Low, cuts.Time.High); err != nil {
			return err
		}
	}
	if cuts.Radial != nil {
		if err := sp.Shrink(spectra.DimRadial, cuts.Radial.Low, cuts.Radial.High); err != nil {
			return err
		}
	}
	if cuts.ROI != nil {
		if err := sp.ShrinkToROI(cuts.ROI.Low, cuts.ROI.High, cuts.ROI.Dimension); err != nil {
			return err
		}
	}
	return nil
}
