package engine

import "errors"

var (
	// ErrInvalidInput marks a call rejected before any computation: empty
	// collections, malformed records or duplicate ids.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownStrategy is returned for a strategy name outside the catalogue.
	ErrUnknownStrategy = errors.New("unknown strategy")
	// ErrManualStrategy is returned when MANUAL is passed to AutoResolve.
	ErrManualStrategy = errors.New("manual strategy requires an explicit decision")
	// ErrDuplicateDecision is returned when a batch would assign one subject twice.
	ErrDuplicateDecision = errors.New("duplicate decision for subject")
)
