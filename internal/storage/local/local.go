// Package local implements the storage provider backed by the on-disk
// state file via the command boundary.
package local

import (
	"context"
	"fmt"

	"todo-overlay/internal/localstate"
	"todo-overlay/internal/model"
	"todo-overlay/internal/storage"
)

// Provider is a thin adapter over the local command boundary. It carries no
// session and no sync channel; its status is always idle.
type Provider struct {
	store *localstate.Store
}

// New creates a local provider over an opened state store.
func New(store *localstate.Store) *Provider {
	return &Provider{store: store}
}

func (p *Provider) Mode() storage.Mode { return storage.ModeLocal }

func (p *Provider) IsAuthenticated() bool { return false }

func (p *Provider) CurrentUser() *storage.AuthUser { return nil }

func (p *Provider) SyncStatus() storage.Status { return storage.StatusIdle }

// Initialize is a no-op; the state store is opened before construction.
func (p *Provider) Initialize(ctx context.Context) error { return nil }

// Load delegates to the command boundary's state read.
func (p *Provider) Load(ctx context.Context) (*model.Snapshot, error) {
	snap := p.store.LoadState()
	if snap == nil {
		return nil, fmt.Errorf("failed to load local data")
	}
	return snap, nil
}

// Save is a deliberate no-op. Every mutation is already persisted
// atomically by the command that performed it; writing the snapshot here
// again would double-write the same change. The method exists only to
// satisfy the Provider contract.
func (p *Provider) Save(ctx context.Context, snap *model.Snapshot) error {
	return nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) error {
	return storage.ErrLocalAuthUnsupported
}

func (p *Provider) SignUp(ctx context.Context, email, password string) error {
	return storage.ErrLocalAuthUnsupported
}

func (p *Provider) SignOut(ctx context.Context) error {
	return storage.ErrLocalAuthUnsupported
}

// Subscribe is a no-op: no push channel exists for local storage.
func (p *Provider) Subscribe(callback func(*model.Snapshot)) (storage.Unsubscribe, error) {
	return func() {}, nil
}

func (p *Provider) Destroy() error { return nil }
