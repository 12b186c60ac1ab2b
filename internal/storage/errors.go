package storage

import "errors"

// Common storage errors
var (
	ErrNotFound         = errors.New("not found")
	ErrRevisionConflict = errors.New("revision already exists")
	ErrInvalidCursor    = errors.New("invalid cursor")
)
