// Package storage declares the repository interfaces the deployment
// manager server stores clients, versions, and update logs through, plus
// the sentinel errors every backend (postgres, sqlite, in-memory) maps
// its driver-specific errors onto.
package storage

import "errors"

var (
	// ErrNotFound is returned when a lookup by id, name, api key, or
	// version string finds no row.
	ErrNotFound = errors.New("storage: not found")

	// ErrConflict is returned when a write would violate a uniqueness
	// invariant (duplicate client name, duplicate version string).
	ErrConflict = errors.New("storage: conflict")

	// ErrValidation is returned when an input fails validation before
	// ever reaching a backend (e.g. a non-semver version string).
	ErrValidation = errors.New("storage: validation")
)
