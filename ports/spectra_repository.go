package ports

import (
	"context"
	"time"

	"echidna/domain/core"
	"echidna/domain/spectra"
)

// SpectraRepository stores binned spectra by name
type SpectraRepository interface {
	Save(ctx context.Context, s *spectra.Spectra) error
	Get(ctx context.Context, name core.SpectraName) (*spectra.Spectra, error)
	List(ctx context.Context) ([]SpectraInfo, error)
	Delete(ctx context.Context, name core.SpectraName) error
}

// SpectraInfo summarises a stored spectrum without its bin contents
type SpectraInfo struct {
	Name      string    `json:"name" db:"name"`
	NumDecays float64   `json:"num_decays" db:"num_decays"`
	RawEvents int       `json:"raw_events" db:"raw_events"`
	Events    float64   `json:"events" db:"events"`
	UpdatedAt time.Time `json:"updated_at" db:"-"`
}
