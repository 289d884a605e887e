package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"echidna/domain/core"
	"echidna/domain/spectra"
	"echidna/ports"

	"github.com/jmoiron/sqlx"
)

// spectraRepository implements the SpectraRepository interface
type spectraRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSpectraRepository creates a new spectra repository
func NewSpectraRepository(db *sqlx.DB) ports.SpectraRepository {
	return &spectraRepository{db: db, now: time.Now}
}

type spectraRow struct {
	Name      string  `db:"name"`
	NumDecays float64 `db:"num_decays"`
	RawEvents int     `db:"raw_events"`
	Events    float64 `db:"events"`
	Axes      string  `db:"axes"`
	ROIs      string  `db:"rois"`
	Data      string  `db:"data"`
	UpdatedAt string  `db:"updated_at"`
}

// Save inserts or replaces a spectrum
func (r *spectraRepository) Save(ctx context.Context, s *spectra.Spectra) error {
	axesJSON, err := json.Marshal(s.Axes())
	if err != nil {
		return fmt.Errorf("failed to marshal axes: %w", err)
	}
	roisJSON, err := json.Marshal(s.ROIs())
	if err != nil {
		return fmt.Errorf("failed to marshal rois: %w", err)
	}
	dataJSON, err := json.Marshal(s.Data())
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	query := r.db.Rebind(`INSERT INTO spectra (
		name, num_decays, raw_events, events, axes, rois, data, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (name) DO UPDATE SET
		num_decays = excluded.num_decays,
		raw_events = excluded.raw_events,
		events = excluded.events,
		axes = excluded.axes,
		rois = excluded.rois,
		data = excluded.data,
		updated_at = excluded.updated_at`)

	_, err = r.db.ExecContext(ctx, query,
		s.Name, s.NumDecays, s.RawEvents, s.Sum(),
		string(axesJSON), string(roisJSON), string(dataJSON), formatTime(r.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save spectra %s: %w", s.Name, err)
	}
	return nil
}

// Get loads a spectrum by name
func (r *spectraRepository) Get(ctx context.Context, name core.SpectraName) (*spectra.Spectra, error) {
	query := r.db.Rebind(`SELECT name, num_decays, raw_events, events, axes, rois, data, updated_at
	FROM spectra WHERE name = ?`)

	var row spectraRow
	if err := r.db.GetContext(ctx, &row, query, name.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", core.ErrSpectraNotFound, name)
		}
		return nil, fmt.Errorf("failed to get spectra: %w", err)
	}

	var axes [3]spectra.Axis
	if err := json.Unmarshal([]byte(row.Axes), &axes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal axes: %w", err)
	}
	var rois []spectra.ROI
	if err := json.Unmarshal([]byte(row.ROIs), &rois); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rois: %w", err)
	}
	var data []float64
	if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal data: %w", err)
	}

	return spectra.Restore(row.Name, axes, data, row.NumDecays, row.RawEvents, rois)
}

// List returns every stored spectrum ordered by name
func (r *spectraRepository) List(ctx context.Context) ([]ports.SpectraInfo, error) {
	query := `SELECT name, num_decays, raw_events, events, updated_at FROM spectra ORDER BY name`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query spectra: %w", err)
	}
	defer rows.Close()

	var infos []ports.SpectraInfo
	for rows.Next() {
		var info ports.SpectraInfo
		var updatedAt string
		if err := rows.Scan(&info.Name, &info.NumDecays, &info.RawEvents, &info.Events, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan spectra: %w", err)
		}
		if info.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Delete removes a spectrum
func (r *spectraRepository) Delete(ctx context.Context, name core.SpectraName) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM spectra WHERE name = ?`), name.String())
	if err != nil {
		return fmt.Errorf("failed to delete spectra: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete spectra: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrSpectraNotFound, name)
	}
	return nil
}
