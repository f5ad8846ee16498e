package domain

import (
	"errors"
	"fmt"
)

// ErrMalformedDocument marks a stored document that failed its typed decode.
// Decoding is a single validation step per entity kind; callers either get a
// well-formed entity or this error with a reason, never a half-defaulted one.
var ErrMalformedDocument = errors.New("malformed document")

func Malformed(collection, id, reason string) error {
	return fmt.Errorf("%w: %s/%s: %s", ErrMalformedDocument, collection, id, reason)
}
