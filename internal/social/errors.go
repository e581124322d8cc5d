package social

import (
	"errors"
	"fmt"
)

// Error taxonomy. Adapter and generation failures are recovered close to
// where they happen; store and validation failures surface to the caller.
var (
	// ErrNotFound signals a lookup for a record that does not exist or does
	// not belong to the requesting user.
	ErrNotFound = errors.New("not found")

	// ErrValidation signals rejected input before any I/O was attempted.
	ErrValidation = errors.New("validation failed")

	// ErrAllPlatformsFailed is returned by the aggregator only when every
	// participating adapter failed. Partial failure is not an error.
	ErrAllPlatformsFailed = errors.New("all platform adapters failed")
)

// AdapterError wraps a single platform adapter failure. It is logged and
// counted but never aborts an aggregation.
type AdapterError struct {
	Platform  Platform
	AccountID string
	Err       error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s (account %s): %v", e.Platform, e.AccountID, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// RequireUserID validates the user identifier shared by every entry point.
func RequireUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return nil
}
