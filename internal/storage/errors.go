package storage

import "errors"

var (
	// ErrNotFound is returned when no link matches the lookup.
	ErrNotFound = errors.New("link not found")

	// ErrAlreadyExists is returned when a link with the same ID or
	// fingerprint is already stored.
	ErrAlreadyExists = errors.New("link already exists")
)
