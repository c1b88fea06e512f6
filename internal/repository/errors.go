package repository

import "errors"

// ErrNotFound is returned when a row the caller named does not exist.
var ErrNotFound = errors.New("record not found")
