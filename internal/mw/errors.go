package mw

import "errors"

// Sentinel causes wrapped into a *swaperr.Error by the primitives below.
// Kept distinct from the coarser swaperr.Kind values so callers that care
// can match on the exact condition with errors.Is.
var (
	ErrNoInputs       = errors.New("no inputs provided")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrDuplicateInput = errors.New("duplicate input commitment")
)
