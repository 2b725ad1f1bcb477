package storage

import "errors"

// Common errors returned by storage providers.
//
// These can be checked with errors.Is() at the call site:
//
//	if errors.Is(err, storage.ErrSessionExpired) {
//	    // prompt the user to re-authenticate
//	}
var (
	// ErrNotAuthenticated is returned by cloud operations that require a
	// session when none exists. Never retried.
	ErrNotAuthenticated = errors.New("must sign in to access cloud data")

	// ErrOffline is returned when a cloud load or save is attempted while
	// the network status is offline. The caller must re-invoke after
	// connectivity returns; there is no automatic retry.
	ErrOffline = errors.New("cannot reach cloud storage while offline")

	// ErrSessionExpired is returned when the backend rejects a request
	// because the session token is no longer valid. The user must
	// re-authenticate.
	ErrSessionExpired = errors.New("session expired, please sign in again")

	// ErrLocalAuthUnsupported is returned by the local provider's auth
	// methods. This is a deliberate hard boundary, not a missing feature.
	ErrLocalAuthUnsupported = errors.New("authentication unavailable in local mode")

	// ErrNoSnapshot is returned when an operation needs a loaded snapshot
	// but none has been loaded yet.
	ErrNoSnapshot = errors.New("no snapshot loaded")
)

// IsRetryable reports whether the error is likely to succeed on a later
// retry without user action, e.g. once connectivity returns.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrOffline)
}

// NeedsReauth reports whether resolving the error requires the user to
// sign in again.
func NeedsReauth(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) || errors.Is(err, ErrSessionExpired)
}
