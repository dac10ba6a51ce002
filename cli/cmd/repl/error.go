package repl

import "errors"

// Sentinel errors.
var (
	ErrOutOfBounds   = errors.New("index out of range")
	ErrEditDeclined  = errors.New("decline edit")
	ErrNoSource      = errors.New("no manifest sources")
	ErrScopeNotFound = errors.New("scope not found")
	ErrBadQuery      = errors.New("malformed query")
)
