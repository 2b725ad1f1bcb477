package cloud

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"todo-overlay/internal/model"
	"todo-overlay/internal/remote"
	"todo-overlay/internal/remote/auth"
	"todo-overlay/internal/storage"
)

// fakeBackend is an in-memory Backend recording the order of write calls.
type fakeBackend struct {
	mu sync.Mutex

	tasks    []model.Task
	lists    []model.List
	labels   []model.Label
	settings *remote.UserSettings

	calls   []string
	failOn  string
	failErr error

	events chan remote.Event
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{events: make(chan remote.Event, 16)}
}

func (b *fakeBackend) record(call string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
	if b.failOn == call {
		return b.failErr
	}
	return nil
}

func (b *fakeBackend) Tasks(ctx context.Context, userID string) ([]model.Task, error) {
	if err := b.record("tasks"); err != nil {
		return nil, err
	}
	return append([]model.Task(nil), b.tasks...), nil
}

func (b *fakeBackend) Lists(ctx context.Context, userID string) ([]model.List, error) {
	if err := b.record("lists"); err != nil {
		return nil, err
	}
	return append([]model.List(nil), b.lists...), nil
}

func (b *fakeBackend) Labels(ctx context.Context, userID string) ([]model.Label, error) {
	if err := b.record("labels"); err != nil {
		return nil, err
	}
	return append([]model.Label(nil), b.labels...), nil
}

func (b *fakeBackend) Settings(ctx context.Context, userID string) (*remote.UserSettings, error) {
	if err := b.record("settings"); err != nil {
		return nil, err
	}
	if b.settings == nil {
		return nil, remote.ErrNoSettings
	}
	return b.settings, nil
}

func (b *fakeBackend) InsertList(ctx context.Context, userID, deviceID string, list model.List) error {
	if err := b.record("insertList"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range b.lists {
		if l.ID == list.ID {
			return nil
		}
	}
	b.lists = append(b.lists, list)
	return nil
}

func (b *fakeBackend) InsertLabel(ctx context.Context, userID, deviceID string, label model.Label) error {
	if err := b.record("insertLabel"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range b.labels {
		if l.ID == label.ID {
			return nil
		}
	}
	b.labels = append(b.labels, label)
	return nil
}

func (b *fakeBackend) UpsertLists(ctx context.Context, userID, deviceID string, now int64, lists []model.List) error {
	if err := b.record("upsertLists"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lists = append([]model.List(nil), lists...)
	return nil
}

func (b *fakeBackend) UpsertLabels(ctx context.Context, userID, deviceID string, now int64, labels []model.Label) error {
	if err := b.record("upsertLabels"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.labels = append([]model.Label(nil), labels...)
	return nil
}

func (b *fakeBackend) UpsertSettings(ctx context.Context, userID, deviceID string, now int64, settings model.Settings) error {
	return b.record("upsertSettings")
}

func (b *fakeBackend) UpsertTasks(ctx context.Context, userID, deviceID string, now int64, tasks []model.Task) error {
	if err := b.record("upsertTasks"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks = append([]model.Task(nil), tasks...)
	return nil
}

func (b *fakeBackend) SoftDeleteTask(ctx context.Context, userID, deviceID, taskID string) error {
	if err := b.record("softDelete:" + taskID); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.tasks[:0]
	for _, t := range b.tasks {
		if t.ID != taskID {
			kept = append(kept, t)
		}
	}
	b.tasks = kept
	return nil
}

func (b *fakeBackend) Subscribe(ctx context.Context, userID string, logger *log.Logger) (<-chan remote.Event, error) {
	out := make(chan remote.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-b.events:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *fakeBackend) callLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// fakeAuth holds a fixed session.
type fakeAuth struct {
	mu      sync.Mutex
	session *auth.Session
	watcher func(*auth.Session)
}

func (a *fakeAuth) Restore() error { return nil }

func (a *fakeAuth) Session() *auth.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

func (a *fakeAuth) OnChange(fn func(*auth.Session)) func() {
	a.mu.Lock()
	a.watcher = fn
	a.mu.Unlock()
	return func() {}
}

func (a *fakeAuth) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	session := &auth.Session{UserID: "user-1", Email: email}
	a.mu.Lock()
	a.session = session
	a.mu.Unlock()
	return session, nil
}

func (a *fakeAuth) SignUp(ctx context.Context, email, password string) (*auth.Session, error) {
	return a.SignIn(ctx, email, password)
}

func (a *fakeAuth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	a.session = nil
	a.mu.Unlock()
	return nil
}

// fakeMonitor reports a switchable connectivity state.
type fakeMonitor struct {
	mu      sync.Mutex
	online  bool
	watcher func(bool)
}

func (m *fakeMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *fakeMonitor) OnChange(fn func(bool)) func() {
	m.mu.Lock()
	m.watcher = fn
	m.mu.Unlock()
	return func() {}
}

func (m *fakeMonitor) set(online bool) {
	m.mu.Lock()
	m.online = online
	fn := m.watcher
	m.mu.Unlock()
	if fn != nil {
		fn(online)
	}
}

func newTestProvider(t *testing.T, backend *fakeBackend) (*Provider, *fakeAuth, *fakeMonitor) {
	t.Helper()
	authsvc := &fakeAuth{session: &auth.Session{UserID: "user-1", Email: "u@example.com"}}
	monitor := &fakeMonitor{online: true}
	cfg := &Config{DataDir: t.TempDir(), Logger: log.New(io.Discard, "", 0)}
	p := New(backend, authsvc, monitor, cfg)
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { p.Destroy() })
	return p, authsvc, monitor
}

func TestLoad_BootstrapsDefaultsOnce(t *testing.T) {
	backend := newFakeBackend()
	p, _, _ := newTestProvider(t, backend)
	ctx := context.Background()

	snap, err := p.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Settings.Lists) != 1 || snap.Settings.Lists[0].ID != model.DefaultListID {
		t.Errorf("default list not bootstrapped: %+v", snap.Settings.Lists)
	}
	if len(snap.Settings.Labels) != 1 || snap.Settings.Labels[0].ID != model.DefaultLabelID {
		t.Errorf("default label not bootstrapped: %+v", snap.Settings.Labels)
	}
	if snap.Settings.ActiveListID != model.DefaultListID {
		t.Errorf("ActiveListID = %q", snap.Settings.ActiveListID)
	}

	// Second load sees the created rows and inserts nothing further.
	if _, err := p.Load(ctx); err != nil {
		t.Fatal(err)
	}
	inserts := 0
	for _, c := range backend.callLog() {
		if c == "insertList" || c == "insertLabel" {
			inserts++
		}
	}
	if inserts != 2 {
		t.Errorf("bootstrap should insert exactly once per collection, got %d inserts", inserts)
	}

	if got := p.SyncStatus(); got != storage.StatusSynced {
		t.Errorf("status after load = %q, want synced", got)
	}
}

func TestLoad_RequiresAuth(t *testing.T) {
	backend := newFakeBackend()
	p, authsvc, _ := newTestProvider(t, backend)
	if err := p.SignOut(context.Background()); err != nil {
		t.Fatal(err)
	}
	_ = authsvc

	_, err := p.Load(context.Background())
	if !errors.Is(err, storage.ErrNotAuthenticated) {
		t.Errorf("Load without session = %v, want ErrNotAuthenticated", err)
	}
}

func TestLoadSave_OfflineGate(t *testing.T) {
	backend := newFakeBackend()
	p, _, monitor := newTestProvider(t, backend)
	monitor.set(false)

	if _, err := p.Load(context.Background()); !errors.Is(err, storage.ErrOffline) {
		t.Errorf("Load while offline = %v, want ErrOffline", err)
	}
	if err := p.Save(context.Background(), &model.Snapshot{}); !errors.Is(err, storage.ErrOffline) {
		t.Errorf("Save while offline = %v, want ErrOffline", err)
	}

	// Back online the status resets to idle, not synced.
	monitor.set(true)
	if got := p.SyncStatus(); got != storage.StatusIdle {
		t.Errorf("status after reconnect = %q, want idle", got)
	}
}

func TestLoad_SettingsRowApplied(t *testing.T) {
	backend := newFakeBackend()
	backend.lists = []model.List{{ID: "work", Name: "Work", CreatedAt: 1}}
	backend.labels = []model.Label{{ID: "general", Name: "General", Color: "gray"}}
	backend.settings = &remote.UserSettings{
		SortMode:     "title",
		SortOrder:    "asc",
		ThemeMode:    "dark",
		ActiveListID: "work",
	}
	p, _, _ := newTestProvider(t, backend)

	snap, err := p.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Settings.SortMode != model.SortTitle || snap.Settings.ThemeMode != model.ThemeDark {
		t.Errorf("settings row not applied: %+v", snap.Settings)
	}
	if snap.Settings.ActiveListID != "work" {
		t.Errorf("ActiveListID = %q", snap.Settings.ActiveListID)
	}
}

func TestLoad_DanglingActiveListFallsBack(t *testing.T) {
	backend := newFakeBackend()
	backend.lists = []model.List{{ID: "work", Name: "Work", CreatedAt: 1}}
	backend.labels = []model.Label{{ID: "general", Name: "General", Color: "gray"}}
	backend.settings = &remote.UserSettings{
		SortMode:     "recent",
		SortOrder:    "desc",
		ThemeMode:    "system",
		ActiveListID: "deleted-on-another-device",
	}
	p, _, _ := newTestProvider(t, backend)

	snap, err := p.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Settings.ActiveListID != "work" {
		t.Errorf("dangling active list should fall back to first list, got %q", snap.Settings.ActiveListID)
	}
}

func TestSave_WriteOrder(t *testing.T) {
	backend := newFakeBackend()
	p, _, _ := newTestProvider(t, backend)

	snap := &model.Snapshot{
		Settings: model.DefaultSettings([]model.List{model.DefaultList()}, []model.Label{model.DefaultLabel()}),
		Tasks:    []model.Task{{ID: "t1", Title: "one", ListID: model.DefaultListID, CreatedAt: 1}},
	}
	if err := p.Save(context.Background(), snap); err != nil {
		t.Fatal(err)
	}

	want := []string{"upsertLists", "upsertLabels", "upsertSettings", "upsertTasks"}
	got := backend.callLog()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("write order = %v, want %v", got, want)
		}
	}

	if got := p.SyncStatus(); got != storage.StatusSynced {
		t.Errorf("status after save = %q, want synced", got)
	}
}

func TestSave_BackendFailureSetsErrorStatus(t *testing.T) {
	backend := newFakeBackend()
	backend.failOn = "upsertSettings"
	backend.failErr = errors.New("constraint violation")
	p, _, _ := newTestProvider(t, backend)

	snap := &model.Snapshot{Settings: model.DefaultSettings(nil, nil)}
	err := p.Save(context.Background(), snap)
	if err == nil {
		t.Fatal("Save should fail")
	}
	if got := p.SyncStatus(); got != storage.StatusError {
		t.Errorf("status after failed save = %q, want error", got)
	}

	// Tasks must not have been written after the settings failure.
	for _, c := range backend.callLog() {
		if c == "upsertTasks" {
			t.Errorf("tasks written despite settings failure: %v", backend.callLog())
		}
	}
}

func TestTranslate_SessionExpiry(t *testing.T) {
	backend := newFakeBackend()
	backend.failOn = "tasks"
	p, _, _ := newTestProvider(t, backend)

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "jwt text", err: errors.New("JWT malformed"), want: storage.ErrSessionExpired},
		{name: "expired text", err: errors.New("token expired"), want: storage.ErrSessionExpired},
		{name: "other errors wrapped", err: errors.New("connection refused"), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend.failErr = tt.err
			_, err := p.Load(context.Background())
			if err == nil {
				t.Fatal("Load should fail")
			}
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Errorf("Load = %v, want %v", err, tt.want)
				}
				return
			}
			if errors.Is(err, storage.ErrSessionExpired) {
				t.Errorf("unrelated error misclassified as session expiry: %v", err)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("original cause lost: %v", err)
			}
		})
	}
}

func TestDeviceID_StableAcrossProviders(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{DataDir: dir, Logger: log.New(io.Discard, "", 0)}
	authsvc := &fakeAuth{}
	monitor := &fakeMonitor{online: true}

	p1 := New(newFakeBackend(), authsvc, monitor, cfg)
	id1, err := p1.DeviceID()
	if err != nil {
		t.Fatal(err)
	}
	if id1 == "" {
		t.Fatal("empty device id")
	}

	p2 := New(newFakeBackend(), authsvc, monitor, cfg)
	id2, err := p2.DeviceID()
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("device id not stable: %q vs %q", id1, id2)
	}
}

func TestDeleteTask_SoftDeletesSubtree(t *testing.T) {
	backend := newFakeBackend()
	backend.lists = []model.List{model.DefaultList()}
	backend.labels = []model.Label{model.DefaultLabel()}
	backend.tasks = []model.Task{
		{ID: "root", Title: "root", CreatedAt: 1},
		{ID: "child", Title: "child", ParentID: "root", CreatedAt: 1},
		{ID: "other", Title: "other", CreatedAt: 1},
	}
	p, _, _ := newTestProvider(t, backend)
	ctx := context.Background()

	if _, err := p.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.DeleteTask(ctx, "root"); err != nil {
		t.Fatal(err)
	}

	deleted := map[string]bool{}
	for _, c := range backend.callLog() {
		if len(c) > 11 && c[:11] == "softDelete:" {
			deleted[c[11:]] = true
		}
	}
	if !deleted["root"] || !deleted["child"] || deleted["other"] {
		t.Errorf("soft deletes = %v", deleted)
	}

	snap, err := p.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].ID != "other" {
		t.Errorf("expected only the bystander to remain, got %+v", snap.Tasks)
	}
}
