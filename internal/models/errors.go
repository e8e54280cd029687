package models

import "errors"

// Domain errors shared by stores, services and handlers.
var (
	// ErrNotFound is returned when a short code has no mapping.
	ErrNotFound = errors.New("mapping not found")

	// ErrDuplicateCode is returned by a store when the code is already taken.
	// The allocator absorbs it; it never leaves Allocate.
	ErrDuplicateCode = errors.New("short code already exists")

	// ErrAllocationExhausted is returned when neither the short codes nor the
	// longer fallback code could be stored.
	ErrAllocationExhausted = errors.New("short code space exhausted")

	// ErrStoreUnavailable wraps transport and I/O failures of a backing store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidCode is returned for codes that cannot exist in any store.
	ErrInvalidCode = errors.New("invalid short code")
)

// Unavailable reports whether err came from a failing store.
func Unavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
