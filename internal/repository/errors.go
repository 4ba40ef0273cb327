// Package repository holds the sentinel errors shared by every identity
// store backend.
package repository

import "errors"

var (
	// ErrNotFound is returned when no identity exists for a handle
	ErrNotFound = errors.New("identity not found")
	// ErrConflict is returned when a handle already has an identity
	ErrConflict = errors.New("identity already exists")
)
