package core

import (
	"errors"
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}
}

func TestParseRunID(t *testing.T) {
	id := NewRunID()
	parsed, err := ParseRunID(id.String())
	if err != nil {
		t.Fatalf("Expected valid run ID, got error: %v", err)
	}
	if parsed != id {
		t.Errorf("Expected %s, got %s", id, parsed)
	}

	if _, err := ParseRunID("   "); err == nil {
		t.Error("Expected error for blank run ID")
	}
	if _, err := ParseRunID("not-a-uuid"); err == nil {
		t.Error("Expected error for malformed run ID")
	}
}

func TestModeSuffix(t *testing.T) {
	if ModeNoPenalty.Suffix() != "_np" {
		t.Errorf("Expected _np suffix, got %q", ModeNoPenalty.Suffix())
	}
	if ModePenalty.Suffix() != "" {
		t.Errorf("Expected empty suffix, got %q", ModePenalty.Suffix())
	}
}

func TestHashShort(t *testing.T) {
	h := NewHash([]byte("analysis"))
	if len(h.String()) != 64 {
		t.Fatalf("Expected 64 hex characters, got %d", len(h.String()))
	}
	if len(h.Short()) != 12 {
		t.Errorf("Expected 12 character short hash, got %q", h.Short())
	}
	if NewConfigFingerprint([]byte("a")) == NewConfigFingerprint([]byte("b")) {
		t.Error("Expected different fingerprints for different inputs")
	}
}

func TestErrorHelpers(t *testing.T) {
	err := NewNotFoundError("spectra", "B8_Solar")
	if !IsNotFoundError(err) {
		t.Error("Expected not found error to be recognised")
	}
	if !errors.Is(ErrSpectraNotFound, ErrNotFound) {
		t.Error("Expected ErrSpectraNotFound to wrap ErrNotFound")
	}
	if !errors.Is(NewLimitNotReachedError(10, 1.2, 2.7), ErrLimitNotReached) {
		t.Error("Expected limit error to wrap ErrLimitNotReached")
	}
	if !IsSpectraError(ErrOutOfRange) {
		t.Error("Expected ErrOutOfRange to be a spectra error")
	}
}
