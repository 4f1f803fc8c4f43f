package search

import (
	"errors"
	"fmt"
)

// ErrNoResults signals a well-formed feed response with zero usable items.
// Recoverable: surfaced to the user, never retried automatically.
var ErrNoResults = errors.New("no results")

// MalformedResponseError wraps a feed response that could not be parsed,
// keeping the status code around for diagnostics.
type MalformedResponseError struct {
	StatusCode int
	Err        error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed feed response (HTTP %d): %v", e.StatusCode, e.Err)
	}

	return fmt.Sprintf("malformed feed response (HTTP %d)", e.StatusCode)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
