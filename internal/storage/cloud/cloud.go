// Package cloud implements the storage provider backed by the remote
// relational backend, including the sync protocol, default bootstrap,
// realtime reconciliation and device-echo suppression.
package cloud

import (
	"context"
	"log"
	"os"
	"sync"

	"todo-overlay/internal/model"
	"todo-overlay/internal/netmon"
	"todo-overlay/internal/remote"
	"todo-overlay/internal/remote/auth"
	"todo-overlay/internal/storage"
)

// Backend is the slice of the remote store the provider depends on.
// *remote.Store satisfies it; tests substitute fakes.
type Backend interface {
	Tasks(ctx context.Context, userID string) ([]model.Task, error)
	Lists(ctx context.Context, userID string) ([]model.List, error)
	Labels(ctx context.Context, userID string) ([]model.Label, error)
	Settings(ctx context.Context, userID string) (*remote.UserSettings, error)
	InsertList(ctx context.Context, userID, deviceID string, list model.List) error
	InsertLabel(ctx context.Context, userID, deviceID string, label model.Label) error
	UpsertLists(ctx context.Context, userID, deviceID string, now int64, lists []model.List) error
	UpsertLabels(ctx context.Context, userID, deviceID string, now int64, labels []model.Label) error
	UpsertSettings(ctx context.Context, userID, deviceID string, now int64, settings model.Settings) error
	UpsertTasks(ctx context.Context, userID, deviceID string, now int64, tasks []model.Task) error
	SoftDeleteTask(ctx context.Context, userID, deviceID, taskID string) error
	Subscribe(ctx context.Context, userID string, logger *log.Logger) (<-chan remote.Event, error)
}

// AuthService is the slice of the auth client the provider depends on.
type AuthService interface {
	Restore() error
	Session() *auth.Session
	OnChange(fn func(*auth.Session)) func()
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignUp(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(ctx context.Context) error
}

// Config holds provider construction settings.
type Config struct {
	// DataDir is where the device identifier slot lives.
	DataDir string

	// Logger for sync and reconciliation activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(dataDir string) *Config {
	return &Config{
		DataDir: dataDir,
		Logger:  log.New(os.Stderr, "[cloud] ", log.LstdFlags),
	}
}

// Provider is the cloud storage provider.
//
// The cached snapshot is mutated only by the provider itself (Load, Save
// and the reconciliation handlers) and is handed out only as a copy, so
// callers can never corrupt it. Overlapping Save calls are NOT serialized
// internally; callers must sequence their own writes.
type Provider struct {
	backend Backend
	authsvc AuthService
	monitor netmon.Monitor
	config  *Config

	mu          sync.Mutex
	status      storage.Status
	user        *storage.AuthUser
	current     *model.Snapshot
	deviceID    string
	initialized bool
	destroyed   bool
	detachAuth  func()
	detachNet   func()
	subCancels  map[int]context.CancelFunc
	nextSubID   int
	subWG       sync.WaitGroup
}

// New creates a cloud provider over its three collaborators.
func New(backend Backend, authsvc AuthService, monitor netmon.Monitor, config *Config) *Provider {
	if config == nil {
		config = DefaultConfig(".")
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[cloud] ", log.LstdFlags)
	}
	return &Provider{
		backend:    backend,
		authsvc:    authsvc,
		monitor:    monitor,
		config:     config,
		status:     storage.StatusIdle,
		subCancels: make(map[int]context.CancelFunc),
	}
}

func (p *Provider) Mode() storage.Mode { return storage.ModeCloud }

func (p *Provider) IsAuthenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.user != nil
}

func (p *Provider) CurrentUser() *storage.AuthUser {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user == nil {
		return nil
	}
	u := *p.user
	return &u
}

func (p *Provider) SyncStatus() storage.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Provider) setStatus(s storage.Status) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

// Initialize restores any persisted session, attaches the auth-state and
// network-state listeners and records the initial connectivity state.
// Repeated calls within one process are no-ops so global listeners are
// never attached twice.
func (p *Provider) Initialize(ctx context.Context) error {
	p.mu.Lock()
	if p.initialized {
		p.mu.Unlock()
		return nil
	}
	p.initialized = true
	p.mu.Unlock()

	if err := p.authsvc.Restore(); err != nil {
		return err
	}
	p.applySession(p.authsvc.Session())

	p.detachAuth = p.authsvc.OnChange(func(session *auth.Session) {
		p.applySession(session)
	})

	p.detachNet = p.monitor.OnChange(func(online bool) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if !online {
			p.status = storage.StatusOffline
			return
		}
		// Back online: idle, not synced — a fresh load must confirm
		// data freshness before the UI may claim to be in sync.
		if p.status == storage.StatusOffline {
			p.status = storage.StatusIdle
		}
	})

	if !p.monitor.Online() {
		p.setStatus(storage.StatusOffline)
	}
	return nil
}

func (p *Provider) applySession(session *auth.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if session == nil {
		p.user = nil
		return
	}
	p.user = &storage.AuthUser{ID: session.UserID, Email: session.Email}
}

// SignIn delegates to the auth service and caches the identity.
func (p *Provider) SignIn(ctx context.Context, email, password string) error {
	session, err := p.authsvc.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	p.applySession(session)
	return nil
}

// SignUp registers a new account and caches the identity.
func (p *Provider) SignUp(ctx context.Context, email, password string) error {
	session, err := p.authsvc.SignUp(ctx, email, password)
	if err != nil {
		return err
	}
	p.applySession(session)
	return nil
}

// SignOut ends the session and drops all cached state and subscriptions.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.authsvc.SignOut(ctx); err != nil {
		return err
	}
	p.unsubscribeAll()

	p.mu.Lock()
	p.user = nil
	p.current = nil
	p.status = storage.StatusIdle
	p.mu.Unlock()
	return nil
}

// Destroy releases subscriptions and listeners. Safe to call repeatedly.
func (p *Provider) Destroy() error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil
	}
	p.destroyed = true
	detachAuth, detachNet := p.detachAuth, p.detachNet
	p.detachAuth, p.detachNet = nil, nil
	p.mu.Unlock()

	if detachAuth != nil {
		detachAuth()
	}
	if detachNet != nil {
		detachNet()
	}
	p.unsubscribeAll()
	return nil
}

// currentUserID returns the signed-in user id or an error.
func (p *Provider) currentUserID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user == nil {
		return "", storage.ErrNotAuthenticated
	}
	return p.user.ID, nil
}

// gate enforces the shared preconditions of Load and Save.
func (p *Provider) gate() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user == nil {
		return "", storage.ErrNotAuthenticated
	}
	if p.status == storage.StatusOffline {
		return "", storage.ErrOffline
	}
	return p.user.ID, nil
}
