package limit

import (
	"time"

	"echidna/domain/core"
)

// Limit is the outcome of one limit-setting pass for one signal
type Limit struct {
	Signal          string    `json:"signal" db:"signal"`
	Mode            core.Mode `json:"mode" db:"mode"`
	Counts          float64   `json:"counts" db:"counts"`
	BestFit         float64   `json:"best_fit" db:"best_fit"`
	MinChiSquared   float64   `json:"min_chi_squared" db:"min_chi_squared"`
	Threshold       float64   `json:"threshold" db:"threshold"`
	ConfidenceLevel float64   `json:"confidence_level" db:"confidence_level"`
	HalfLife        float64   `json:"half_life,omitempty" db:"half_life"`
	EffectiveMass   float64   `json:"effective_mass,omitempty" db:"effective_mass"`
	Failure         string    `json:"failure,omitempty" db:"failure"`
}

// Failed reports whether no limit could be extracted
func (l Limit) Failed() bool {
	return l.Failure != ""
}

// Run groups every limit produced from one analysis definition
type Run struct {
	ID          core.RunID             `json:"id" db:"id"`
	Name        string                 `json:"name" db:"name"`
	Fingerprint core.ConfigFingerprint `json:"fingerprint" db:"fingerprint"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
	Limits      []Limit                `json:"limits,omitempty" db:"-"`
}

// ConfigDump is a stored snapshot of a limit config and its scan points.
// Owner names the spectrum the config scans.
type ConfigDump struct {
	Mode    core.Mode          `json:"mode"`
	Signal  string             `json:"signal"`
	Owner   string             `json:"owner"`
	Prior   float64            `json:"prior"`
	Sigma   float64            `json:"sigma"`
	Counts  []float64          `json:"counts"`
	Records []ChiSquaredRecord `json:"records"`
}

// NewConfigDump snapshots cfg
func NewConfigDump(mode core.Mode, signal, owner string, cfg *Config) ConfigDump {
	return ConfigDump{
		Mode:    mode,
		Signal:  signal,
		Owner:   owner,
		Prior:   cfg.Prior,
		Sigma:   cfg.Sigma,
		Counts:  append([]float64(nil), cfg.Counts...),
		Records: cfg.ChiSquareds(),
	}
}

// Config rebuilds the limit config with its scan points
func (d ConfigDump) Config() (*Config, error) {
	cfg, err := NewConfig(d.Prior, d.Counts, d.Sigma)
	if err != nil {
		return nil, err
	}
	for _, r := range d.Records {
		cfg.AddChiSquared(r.ChiSquared, r.PenaltyTerm, r.Count)
	}
	return cfg, nil
}

// AnalyserDump is a stored SystAnalyser for one signal of a run
type AnalyserDump struct {
	Mode        core.Mode     `json:"mode"`
	SignalIndex int           `json:"signal_index"`
	Signal      string        `json:"signal"`
	Analyser    *SystAnalyser `json:"analyser"`
}
