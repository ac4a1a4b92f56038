package rankingdb

import "errors"

// Sentinel errors for the repository layer.
// These are infrastructure-level errors that indicate storage state, not business outcomes.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("ranking record not found")

	// ErrInvalidOrder indicates an ordering the query does not support.
	ErrInvalidOrder = errors.New("unsupported ordering")
)
