package migration

import (
	"context"

	"echidna/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the spectra and results schema. The statements are
// valid for both sqlite and postgres.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createSpectraTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create spectra table")
	}

	if err := r.createRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create runs table")
	}

	if err := r.createLimitsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create limits table")
	}

	if err := r.createConfigsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create limit_configs table")
	}

	if err := r.createAnalysersTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create syst_analysers table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createSpectraTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS spectra (
			name TEXT PRIMARY KEY,
			num_decays DOUBLE PRECISION NOT NULL,
			raw_events INTEGER NOT NULL DEFAULT 0,
			events DOUBLE PRECISION NOT NULL DEFAULT 0,
			axes TEXT NOT NULL,
			rois TEXT NOT NULL,
			data TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createLimitsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS limits (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			signal TEXT NOT NULL,
			mode TEXT NOT NULL,
			counts DOUBLE PRECISION NOT NULL DEFAULT 0,
			best_fit DOUBLE PRECISION NOT NULL DEFAULT 0,
			min_chi_squared DOUBLE PRECISION NOT NULL DEFAULT 0,
			threshold DOUBLE PRECISION NOT NULL DEFAULT 0,
			confidence_level DOUBLE PRECISION NOT NULL,
			half_life DOUBLE PRECISION NOT NULL DEFAULT 0,
			effective_mass DOUBLE PRECISION NOT NULL DEFAULT 0,
			failure TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, signal, mode)
		)
	`)
	return err
}

func (r *MigrationRunner) createConfigsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS limit_configs (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			mode TEXT NOT NULL,
			signal TEXT NOT NULL,
			owner TEXT NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (run_id, mode, signal, owner)
		)
	`)
	return err
}

func (r *MigrationRunner) createAnalysersTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS syst_analysers (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			mode TEXT NOT NULL,
			signal_index INTEGER NOT NULL,
			signal TEXT NOT NULL,
			name TEXT NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (run_id, mode, signal_index, name)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_limits_run_id ON limits(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_syst_analysers_run_id ON syst_analysers(run_id)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
