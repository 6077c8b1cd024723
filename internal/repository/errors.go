// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as the
// auth service to distinguish a missing row from a storage failure.
package repository

import "errors"

// ErrNotFound is returned when a lookup or delete matches no row.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when inserting a user whose email is taken.
var ErrEmailExists = errors.New("email already exists")
