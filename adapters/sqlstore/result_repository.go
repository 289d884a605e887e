package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"echidna/domain/core"
	"echidna/domain/limit"
	"echidna/ports"

	"github.com/jmoiron/sqlx"
)

// resultRepository implements the ResultRepository interface
type resultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *sqlx.DB) ports.ResultRepository {
	return &resultRepository{db: db}
}

type runRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Fingerprint string `db:"fingerprint"`
	CreatedAt   string `db:"created_at"`
}

func (row runRow) toRun() (*limit.Run, error) {
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return &limit.Run{
		ID:          core.RunID(row.ID),
		Name:        row.Name,
		Fingerprint: core.ConfigFingerprint(row.Fingerprint),
		CreatedAt:   createdAt,
	}, nil
}

// CreateRun inserts a new run
func (r *resultRepository) CreateRun(ctx context.Context, run *limit.Run) error {
	query := r.db.Rebind(`INSERT INTO runs (id, name, fingerprint, created_at) VALUES (?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		run.ID.String(), run.Name, run.Fingerprint.String(), formatTime(run.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// SaveLimit inserts or replaces the limit of one signal and mode
func (r *resultRepository) SaveLimit(ctx context.Context, runID core.RunID, l limit.Limit) error {
	query := r.db.Rebind(`INSERT INTO limits (
		run_id, signal, mode, counts, best_fit, min_chi_squared, threshold,
		confidence_level, half_life, effective_mass, failure
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (run_id, signal, mode) DO UPDATE SET
		counts = excluded.counts,
		best_fit = excluded.best_fit,
		min_chi_squared = excluded.min_chi_squared,
		threshold = excluded.threshold,
		confidence_level = excluded.confidence_level,
		half_life = excluded.half_life,
		effective_mass = excluded.effective_mass,
		failure = excluded.failure`)

	_, err := r.db.ExecContext(ctx, query,
		runID.String(), l.Signal, string(l.Mode), l.Counts, l.BestFit, l.MinChiSquared, l.Threshold,
		l.ConfidenceLevel, l.HalfLife, l.EffectiveMass, l.Failure,
	)
	if err != nil {
		return fmt.Errorf("failed to save limit for %s: %w", l.Signal, err)
	}
	return nil
}

// SaveConfig stores a config snapshot as JSON
func (r *resultRepository) SaveConfig(ctx context.Context, runID core.RunID, dump limit.ConfigDump) error {
	payload, err := json.Marshal(dump)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	query := r.db.Rebind(`INSERT INTO limit_configs (run_id, mode, signal, owner, payload)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (run_id, mode, signal, owner) DO UPDATE SET payload = excluded.payload`)

	if _, err := r.db.ExecContext(ctx, query, runID.String(), string(dump.Mode), dump.Signal, dump.Owner, string(payload)); err != nil {
		return fmt.Errorf("failed to save config for %s: %w", dump.Owner, err)
	}
	return nil
}

// SaveAnalyser stores a SystAnalyser as JSON
func (r *resultRepository) SaveAnalyser(ctx context.Context, runID core.RunID, dump limit.AnalyserDump) error {
	if dump.Analyser == nil {
		return fmt.Errorf("failed to save analyser: nil analyser for %s", dump.Signal)
	}
	payload, err := json.Marshal(dump)
	if err != nil {
		return fmt.Errorf("failed to marshal analyser: %w", err)
	}

	query := r.db.Rebind(`INSERT INTO syst_analysers (run_id, mode, signal_index, signal, name, payload)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (run_id, mode, signal_index, name) DO UPDATE SET
		signal = excluded.signal,
		payload = excluded.payload`)

	_, err = r.db.ExecContext(ctx, query,
		runID.String(), string(dump.Mode), dump.SignalIndex, dump.Signal, dump.Analyser.Name, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save analyser %s: %w", dump.Analyser.Name, err)
	}
	return nil
}

// GetRun retrieves a run with its limits
func (r *resultRepository) GetRun(ctx context.Context, runID core.RunID) (*limit.Run, error) {
	query := r.db.Rebind(`SELECT id, name, fingerprint, created_at FROM runs WHERE id = ?`)

	var row runRow
	if err := r.db.GetContext(ctx, &row, query, runID.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run, err := row.toRun()
	if err != nil {
		return nil, err
	}
	if run.Limits, err = r.ListLimits(ctx, runID); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first, without their limits
func (r *resultRepository) ListRuns(ctx context.Context, max int) ([]*limit.Run, error) {
	if max <= 0 {
		max = 50
	}
	query := r.db.Rebind(`SELECT id, name, fingerprint, created_at FROM runs ORDER BY created_at DESC LIMIT ?`)

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, query, max); err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	runs := make([]*limit.Run, 0, len(rows))
	for _, row := range rows {
		run, err := row.toRun()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// ListLimits returns the limits of a run ordered by mode then signal
func (r *resultRepository) ListLimits(ctx context.Context, runID core.RunID) ([]limit.Limit, error) {
	query := r.db.Rebind(`SELECT signal, mode, counts, best_fit, min_chi_squared, threshold,
		confidence_level, half_life, effective_mass, failure
	FROM limits WHERE run_id = ? ORDER BY mode, signal`)

	var limits []limit.Limit
	if err := r.db.SelectContext(ctx, &limits, query, runID.String()); err != nil {
		return nil, fmt.Errorf("failed to query limits: %w", err)
	}
	return limits, nil
}

// ListConfigs returns every config snapshot of a run
func (r *resultRepository) ListConfigs(ctx context.Context, runID core.RunID) ([]limit.ConfigDump, error) {
	query := r.db.Rebind(`SELECT payload FROM limit_configs WHERE run_id = ? ORDER BY mode, signal, owner`)

	var payloads []string
	if err := r.db.SelectContext(ctx, &payloads, query, runID.String()); err != nil {
		return nil, fmt.Errorf("failed to query configs: %w", err)
	}

	dumps := make([]limit.ConfigDump, len(payloads))
	for i, p := range payloads {
		if err := json.Unmarshal([]byte(p), &dumps[i]); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}
	return dumps, nil
}

// ListAnalysers returns every SystAnalyser of a run
func (r *resultRepository) ListAnalysers(ctx context.Context, runID core.RunID) ([]limit.AnalyserDump, error) {
	query := r.db.Rebind(`SELECT payload FROM syst_analysers WHERE run_id = ? ORDER BY mode, signal_index, name`)

	var payloads []string
	if err := r.db.SelectContext(ctx, &payloads, query, runID.String()); err != nil {
		return nil, fmt.Errorf("failed to query analysers: %w", err)
	}

	dumps := make([]limit.AnalyserDump, len(payloads))
	for i, p := range payloads {
		if err := json.Unmarshal([]byte(p), &dumps[i]); err != nil {
			return nil, fmt.Errorf("failed to unmarshal analyser: %w", err)
		}
	}
	return dumps, nil
}
