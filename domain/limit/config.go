package limit

import (
	"fmt"
	"math"
	"sort"

	"echidna/domain/core"
)

// ChiSquaredRecord is one point of a chi-squared scan
type ChiSquaredRecord struct {
	ChiSquared  float64 `json:"chi_squared" db:"chi_squared"`
	PenaltyTerm float64 `json:"penalty_term" db:"penalty_term"`
	Count       float64 `json:"count" db:"count"`
}

// Config holds the counts scanned for one spectrum, the prior expectation
// and the width of its penalty term. The chi-squared values found during a
// scan are stored alongside.
type Config struct {
	Prior  float64   `json:"prior"`
	Counts []float64 `json:"counts"`
	Sigma  float64   `json:"sigma"`

	records []ChiSquaredRecord
}

// NewConfig validates and builds a limit config. Sigma of zero disables the
// penalty term.
func NewConfig(prior float64, counts []float64, sigma float64) (*Config, error) {
	if len(counts) == 0 {
		return nil, core.NewValidationError("counts", "must not be empty")
	}
	for i, c := range counts {
		if math.IsNaN(c) || math.IsInf(c, 0) || c < 0 {
			return nil, core.NewValidationError("counts", fmt.Sprintf("entry %d is %g", i, c))
		}
	}
	if math.IsNaN(prior) || prior < 0 {
		return nil, core.NewValidationError("prior", fmt.Sprintf("is %g", prior))
	}
	if math.IsNaN(sigma) || sigma < 0 {
		return nil, core.NewValidationError("sigma", fmt.Sprintf("is %g", sigma))
	}
	return &Config{
		Prior:  prior,
		Counts: append([]float64(nil), counts...),
		Sigma:  sigma,
	}, nil
}

// HasPenalty reports whether the config constrains its count towards the prior
func (c *Config) HasPenalty() bool {
	return c.Sigma > 0
}

// Penalty returns the chi-squared penalty for moving the count away from the prior
func (c *Config) Penalty(count float64) float64 {
	if !c.HasPenalty() {
		return 0
	}
	d := (count - c.Prior) / c.Sigma
	return d * d
}

// AddChiSquared appends a scan point
func (c *Config) AddChiSquared(chiSquared, penalty, count float64) {
	c.records = append(c.records, ChiSquaredRecord{ChiSquared: chiSquared, PenaltyTerm: penalty, Count: count})
}

// ChiSquareds returns the scan points in insertion order
func (c *Config) ChiSquareds() []ChiSquaredRecord {
	return append([]ChiSquaredRecord(nil), c.records...)
}

// Reset drops stored scan points so the config can be reused
func (c *Config) Reset() {
	c.records = nil
}

// Minimum returns the scan point with the smallest chi-squared. Ties go to
// the lowest count.
func (c *Config) Minimum() (ChiSquaredRecord, bool) {
	if len(c.records) == 0 {
		return ChiSquaredRecord{}, false
	}
	best := c.records[0]
	for _, r := range c.records[1:] {
		if r.ChiSquared < best.ChiSquared || (r.ChiSquared == best.ChiSquared && r.Count < best.Count) {
			best = r
		}
	}
	return best, true
}

// SortedByCount returns the scan points ordered by increasing count
func (c *Config) SortedByCount() []ChiSquaredRecord {
	records := c.ChiSquareds()
	sort.SliceStable(records, func(i, j int) bool { return records[i].Count < records[j].Count })
	return records
}
