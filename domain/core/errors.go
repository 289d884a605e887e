package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound        = errors.New("resource not found")
	ErrSpectraNotFound = fmt.Errorf("%w: spectra", ErrNotFound)
	ErrRunNotFound     = fmt.Errorf("%w: run", ErrNotFound)
	ErrROINotFound     = fmt.Errorf("%w: roi", ErrNotFound)

	// Spectra errors
	ErrInvalidAxis      = errors.New("invalid axis")
	ErrUnknownDimension = errors.New("unknown dimension")
	ErrOutOfRange       = errors.New("value outside spectra range")
	ErrEmptySpectra     = errors.New("spectra has no decays")

	// Statistics errors
	ErrLengthMismatch  = errors.New("observed and expected lengths differ")
	ErrZeroExpectation = errors.New("zero expectation with non-zero observation")
	ErrUnknownForm     = errors.New("unknown chi-squared form")
	ErrInvalidConfig   = errors.New("invalid limit config")
	ErrNotConfigured   = errors.New("limit setter not fully configured")
	ErrLimitNotReached = errors.New("chi-squared threshold not reached within scanned counts")
	ErrNoErrorModel    = errors.New("must provide either a linear or fractional error")

	// Conversion errors
	ErrMissingNuclearParams = errors.New("phase space factor or matrix element unknown")
	ErrInvalidIsotope       = errors.New("invalid isotope parameters")
)

// NewNotFoundError wraps ErrNotFound with the resource and its key
func NewNotFoundError(resource string, key string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, resource, key)
}

// NewValidationError reports an invalid field of a limit config
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidConfig, field, reason)
}

// NewLimitNotReachedError records how far the scan got before running out of counts
func NewLimitNotReachedError(lastCount, lastChiSquared, threshold float64) error {
	return fmt.Errorf("%w: chi-squared %.4f at %.4g counts is below threshold %.4f",
		ErrLimitNotReached, lastChiSquared, lastCount, threshold)
}

// IsNotFoundError reports whether err is any not-found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsSpectraError reports whether err came from spectra manipulation
func IsSpectraError(err error) bool {
	return errors.Is(err, ErrInvalidAxis) ||
		errors.Is(err, ErrUnknownDimension) ||
		errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrEmptySpectra)
}
