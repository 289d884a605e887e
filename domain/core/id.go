package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID       ID
	SpectraName ID
)

func (id RunID) String() string       { return ID(id).String() }
func (id SpectraName) String() string { return ID(id).String() }

// NewRunID creates a time-ordered identifier for an analysis run
func NewRunID() RunID {
	return RunID(NewID())
}

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("run ID %q is not a UUID: %w", s, err)
	}
	return RunID(s), nil
}

// ParseSpectraName parses a string into SpectraName
func ParseSpectraName(s string) (SpectraName, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("spectra name cannot be empty")
	}
	return SpectraName(s), nil
}

// Mode distinguishes the two limit-setting passes of an analysis run.
type Mode string

const (
	ModeNoPenalty Mode = "no_penalty"
	ModePenalty   Mode = "penalty"
)

// Suffix is appended to dump names so both passes can live side by side.
func (m Mode) Suffix() string {
	if m == ModeNoPenalty {
		return "_np"
	}
	return ""
}
