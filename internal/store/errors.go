package store

import "errors"

// ErrDimensionMismatch is returned when a vector's dimension does not match
// the store's configured embedding dimension. Fatal to the call, not to the
// process.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ErrUnknownPerson is returned by write-path operations that require an
// existing person. Read-path lookups report missing persons as nil results
// instead.
var ErrUnknownPerson = errors.New("unknown person")
