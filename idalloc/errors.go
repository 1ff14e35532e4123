package idalloc

import "errors"

var (
	// ErrExhausted is returned by Allocate when the manager already has
	// its configured maximum number of packet identifiers outstanding.
	ErrExhausted = errors.New("packet identifier space exhausted")
)
