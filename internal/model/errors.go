package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData means the series is too short for the longest
	// lookback, or the requested index precedes the warm-up region.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrIndeterminate marks a flat high/low window in the range-relative
	// normalizer. The bar is excluded from evaluation.
	ErrIndeterminate = errors.New("indeterminate normalization")

	// ErrNoConsolidation is returned when no trailing window qualifies.
	ErrNoConsolidation = errors.New("no consolidation found")

	// ErrInvalidSeries flags an empty, unsorted or duplicated bar sequence.
	ErrInvalidSeries = errors.New("invalid series")
)

// ConfigError is a fatal configuration problem detected before processing.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// NewConfigError builds a ConfigError with a formatted reason.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// SymbolFailure records a symbol that was skipped during a multi-symbol run.
type SymbolFailure struct {
	Symbol string
	Err    error
}
