package models

import "errors"

// Error kinds for the analysis core. Per-feature and per-symbol failures are
// isolated; only ErrNoUsableData stops an analysis step outright.
var (
	// ErrMissingColumn signals a required source column is absent. The
	// derived feature family is skipped, never synthesized from a substitute.
	ErrMissingColumn = errors.New("missing source column")

	// ErrInsufficientSample signals fewer non-missing observations than a
	// statistical computation requires; the computation is omitted from
	// results.
	ErrInsufficientSample = errors.New("insufficient sample")

	// ErrInsufficientData signals too few usable rows to train a model for a
	// symbol. Fatal for that symbol's training call only.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNoUsableData signals a wholesale absence of usable input.
	ErrNoUsableData = errors.New("no usable data")
)
