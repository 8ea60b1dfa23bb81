package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when creating a user with an email
// that is already registered.
var ErrDuplicateEmail = errors.New("email already registered")
