package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a record does not exist within the active
	// tenant's scope. Records of other tenants report the same error, so a
	// caller cannot distinguish "absent" from "foreign".
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a record with the given ID already exists.
	ErrConflict = errors.New("record already exists")
)
