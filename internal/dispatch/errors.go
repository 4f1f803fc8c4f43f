package dispatch

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get and Remove when the backend no longer knows
// the transfer id. Recoverable: the id was probably removed out of band.
var ErrNotFound = errors.New("transfer not found")

// UnreachableError represents a backend that could not be reached: connection
// refused, timeouts, a missing CLI binary, or 5xx responses.
type UnreachableError struct {
	Operation string // the operation that failed (e.g. "torrent-add", "list")
	Err       error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("backend unreachable during %s: %v", e.Operation, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// AuthError represents rejected credentials: 401/403 responses or the CLI
// refusing the --auth pair.
type AuthError struct {
	Operation string
	Err       error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("backend authentication failed during %s", e.Operation)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// InvalidLocatorError represents a magnet or URL the backend refused to
// accept.
type InvalidLocatorError struct {
	Locator string
	Reason  string
}

func (e *InvalidLocatorError) Error() string {
	return fmt.Sprintf("backend rejected locator %q: %s", e.Locator, e.Reason)
}
