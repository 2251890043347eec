package inventory

import "github.com/pkg/errors"

var (
	// ErrNotFound indicates no inventory object matched the lookup.
	ErrNotFound = errors.New("inventory object not found")

	// ErrMultipleFound indicates a lookup that expects at most one object
	// matched several. Callers never resolve this by picking one.
	ErrMultipleFound = errors.New("multiple inventory objects found")

	// ErrConflict indicates a write violated a store uniqueness
	// constraint (e.g. device name already taken by another device).
	ErrConflict = errors.New("inventory uniqueness conflict")

	errAPIRequest = errors.New("inventory API request error")
)
