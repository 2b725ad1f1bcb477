// Package storage defines the capability contract every persistence backend
// must satisfy, so the state store stays agnostic to whether data lives in
// the local state file or in the cloud.
//
// Two implementations exist: the local provider (storage/local), a thin
// adapter over the command boundary, and the cloud provider (storage/cloud),
// which owns the sync protocol against the remote relational backend.
package storage

import (
	"context"

	"todo-overlay/internal/model"
)

// Mode identifies which backend a provider instance is. It is fixed at
// construction time.
type Mode string

const (
	ModeLocal Mode = "local"
	ModeCloud Mode = "cloud"
)

// Status is the observable connection/sync state surfaced to UI indicators.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSynced  Status = "synced"
	StatusError   Status = "error"
	StatusOffline Status = "offline"
)

// AuthUser is the identity of the currently signed-in user.
type AuthUser struct {
	ID    string
	Email string
}

// Unsubscribe tears down the realtime subscriptions opened by Subscribe.
// Calling it more than once is safe.
type Unsubscribe func()

// Provider is the uniform contract over the local and cloud backends.
//
// Mode, IsAuthenticated and SyncStatus are pure getters; every other method
// may block on disk or network and takes a context. Snapshots returned by
// Load or delivered to the Subscribe callback are replaced wholesale and
// must be treated as read-only values by callers.
type Provider interface {
	// Mode reports which backend this instance is.
	Mode() Mode

	// IsAuthenticated reports whether a session is currently established.
	// The local backend always returns false.
	IsAuthenticated() bool

	// CurrentUser returns the signed-in identity, or nil.
	CurrentUser() *AuthUser

	// SyncStatus returns the current connection/sync state.
	SyncStatus() Status

	// Initialize restores any persisted session, attaches auth-state and
	// network-state listeners, and performs the initial connectivity check.
	// It is idempotent against repeated calls within one process lifetime.
	Initialize(ctx context.Context) error

	// Load returns the full current snapshot. For the cloud backend this
	// performs four table reads plus default-bootstrap inserts when the
	// user has no lists or labels yet.
	Load(ctx context.Context) (*model.Snapshot, error)

	// Save persists the full snapshot. The local backend's Save is a
	// deliberate no-op: mutations are already persisted through the
	// command boundary, and writing here again would double-write. The
	// cloud backend upserts every list, label, setting and task.
	Save(ctx context.Context, snap *model.Snapshot) error

	// SignIn establishes a session. Local mode fails with
	// ErrLocalAuthUnsupported.
	SignIn(ctx context.Context, email, password string) error

	// SignUp registers a new account and signs it in. Local mode fails
	// with ErrLocalAuthUnsupported.
	SignUp(ctx context.Context, email, password string) error

	// SignOut ends the current session. Local mode fails with
	// ErrLocalAuthUnsupported.
	SignOut(ctx context.Context) error

	// Subscribe opens realtime change feeds and invokes callback with a
	// reconciled snapshot on every remote change. The local backend is a
	// no-op returning a trivial Unsubscribe. The cloud backend fails with
	// ErrNotAuthenticated when no session exists.
	Subscribe(callback func(*model.Snapshot)) (Unsubscribe, error)

	// Destroy releases all subscriptions and listeners. Safe to call
	// multiple times.
	Destroy() error
}
