package limit

import (
	"math"
)

// Point is a position on a (signal count, systematic value) map
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PenaltyPoint pairs a systematic value with its penalty term
type PenaltyPoint struct {
	Value   float64 `json:"value"`
	Penalty float64 `json:"penalty"`
}

// SystAnalyser stores the chi-squared map of one nuisance parameter. Entry
// [i][j] is the chi-squared at signal count i and systematic value j,
// minimised over every other nuisance parameter.
type SystAnalyser struct {
	Name            string         `json:"name"`
	ActualCounts    []float64      `json:"actual_counts"`
	SystValues      []float64      `json:"syst_values"`
	ChiSquareds     [][]float64    `json:"chi_squareds"`
	PreferredValues []float64      `json:"preferred_values"`
	Minima          []Point        `json:"minima"`
	PenaltyValues   []PenaltyPoint `json:"penalty_values"`
}

// NewSystAnalyser creates an analyser with every map entry unset (+Inf)
func NewSystAnalyser(name string, actualCounts, systValues []float64) *SystAnalyser {
	chiSquareds := make([][]float64, len(actualCounts))
	for i := range chiSquareds {
		row := make([]float64, len(systValues))
		for j := range row {
			row[j] = math.Inf(1)
		}
		chiSquareds[i] = row
	}
	return &SystAnalyser{
		Name:         name,
		ActualCounts: append([]float64(nil), actualCounts...),
		SystValues:   append([]float64(nil), systValues...),
		ChiSquareds:  chiSquareds,
	}
}

// Update keeps the smaller of the stored and offered chi-squared
func (a *SystAnalyser) Update(signalIdx, systIdx int, chiSquared float64) {
	if chiSquared < a.ChiSquareds[signalIdx][systIdx] {
		a.ChiSquareds[signalIdx][systIdx] = chiSquared
	}
}

// MergeRow folds a row computed elsewhere into the map
func (a *SystAnalyser) MergeRow(signalIdx int, row []float64) {
	for j, v := range row {
		a.Update(signalIdx, j, v)
	}
}

// Finalize derives preferred values, minima and penalty values once the map
// is filled.
func (a *SystAnalyser) Finalize(cfg *Config) {
	a.PreferredValues = make([]float64, len(a.ActualCounts))
	globalMin := math.Inf(1)
	for i, row := range a.ChiSquareds {
		best := 0
		for j, v := range row {
			if v < row[best] {
				best = j
			}
			if v < globalMin {
				globalMin = v
			}
		}
		if len(row) > 0 {
			a.PreferredValues[i] = a.SystValues[best]
		}
	}

	a.Minima = a.Minima[:0]
	for i, row := range a.ChiSquareds {
		for j, v := range row {
			if v == globalMin && !math.IsInf(v, 1) {
				a.Minima = append(a.Minima, Point{X: a.ActualCounts[i], Y: a.SystValues[j]})
			}
		}
	}

	a.PenaltyValues = make([]PenaltyPoint, len(a.SystValues))
	for j, v := range a.SystValues {
		a.PenaltyValues[j] = PenaltyPoint{Value: v, Penalty: cfg.Penalty(v)}
	}
}
