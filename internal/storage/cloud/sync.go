package cloud

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"todo-overlay/internal/model"
	"todo-overlay/internal/remote"
	"todo-overlay/internal/storage"
)

// Load reads the four tables, bootstraps defaults when the user has no
// lists or labels yet, and returns the assembled snapshot.
func (p *Provider) Load(ctx context.Context) (*model.Snapshot, error) {
	userID, err := p.gate()
	if err != nil {
		return nil, err
	}

	p.setStatus(storage.StatusSyncing)

	snap, err := p.loadSnapshot(ctx, userID)
	if err != nil {
		p.setStatus(storage.StatusError)
		p.config.Logger.Printf("failed to load cloud data: %v", err)
		return nil, p.translate(err, "failed to load cloud data")
	}

	p.mu.Lock()
	p.current = snap
	p.status = storage.StatusSynced
	p.mu.Unlock()

	return snap.Clone(), nil
}

func (p *Provider) loadSnapshot(ctx context.Context, userID string) (*model.Snapshot, error) {
	tasks, err := p.backend.Tasks(ctx, userID)
	if err != nil {
		return nil, err
	}

	lists, err := p.backend.Lists(ctx, userID)
	if err != nil {
		return nil, err
	}

	labels, err := p.backend.Labels(ctx, userID)
	if err != nil {
		return nil, err
	}

	lists, labels, err = p.ensureDefaults(ctx, userID, lists, labels)
	if err != nil {
		return nil, err
	}

	settings := model.DefaultSettings(lists, labels)
	row, err := p.backend.Settings(ctx, userID)
	switch {
	case errors.Is(err, remote.ErrNoSettings):
		// First load: no settings row yet, keep the constructed defaults.
	case err != nil:
		return nil, err
	default:
		row.Apply(&settings)
		if settings.ActiveList() == nil && len(settings.Lists) > 0 {
			settings.ActiveListID = settings.Lists[0].ID
		}
	}

	return &model.Snapshot{Settings: settings, Tasks: tasks}, nil
}

// ensureDefaults materializes the fixed default list and label when the
// user has none. Isolated from the read path so the read side effect is
// independently testable; the fixed ids keep it idempotent — a second
// load observes the rows the first one created.
func (p *Provider) ensureDefaults(ctx context.Context, userID string, lists []model.List, labels []model.Label) ([]model.List, []model.Label, error) {
	deviceID, err := p.DeviceID()
	if err != nil {
		return nil, nil, err
	}

	if len(lists) == 0 {
		list := model.DefaultList()
		if err := p.backend.InsertList(ctx, userID, deviceID, list); err != nil {
			return nil, nil, fmt.Errorf("failed to create default list: %w", err)
		}
		lists = append(lists, list)
	}

	if len(labels) == 0 {
		label := model.DefaultLabel()
		if err := p.backend.InsertLabel(ctx, userID, deviceID, label); err != nil {
			return nil, nil, fmt.Errorf("failed to create default label: %w", err)
		}
		labels = append(labels, label)
	}

	return lists, labels, nil
}

// Save upserts the full snapshot, ordered to respect referential
// integrity: lists and labels first, then the settings row referencing the
// active list, then tasks referencing all three. Every row is stamped with
// this device's id and a fresh updated_at; that stamp is what suppresses
// the realtime echo of this very write.
func (p *Provider) Save(ctx context.Context, snap *model.Snapshot) error {
	userID, err := p.gate()
	if err != nil {
		return err
	}

	deviceID, err := p.DeviceID()
	if err != nil {
		return err
	}

	p.setStatus(storage.StatusSyncing)

	now := model.NowMillis()
	if err := p.saveSnapshot(ctx, userID, deviceID, now, snap); err != nil {
		p.setStatus(storage.StatusError)
		p.config.Logger.Printf("failed to save cloud data: %v", err)
		return p.translate(err, "failed to save cloud data")
	}

	p.mu.Lock()
	p.current = snap.Clone()
	p.status = storage.StatusSynced
	p.mu.Unlock()
	return nil
}

func (p *Provider) saveSnapshot(ctx context.Context, userID, deviceID string, now int64, snap *model.Snapshot) error {
	if err := p.backend.UpsertLists(ctx, userID, deviceID, now, snap.Settings.Lists); err != nil {
		return err
	}
	if err := p.backend.UpsertLabels(ctx, userID, deviceID, now, snap.Settings.Labels); err != nil {
		return err
	}
	if err := p.backend.UpsertSettings(ctx, userID, deviceID, now, snap.Settings); err != nil {
		return err
	}
	return p.backend.UpsertTasks(ctx, userID, deviceID, now, snap.Tasks)
}

// DeleteTask soft-deletes a task and its subtree. The rows keep their
// deleted_at stamp instead of disappearing, so the change feed can carry
// the deletion to other devices.
func (p *Provider) DeleteTask(ctx context.Context, id string) error {
	userID, err := p.gate()
	if err != nil {
		return err
	}
	deviceID, err := p.DeviceID()
	if err != nil {
		return err
	}

	doomed := []string{id}
	p.mu.Lock()
	if p.current != nil {
		doomed = subtreeIDs(p.current.Tasks, id)
	}
	p.mu.Unlock()

	p.setStatus(storage.StatusSyncing)
	for _, taskID := range doomed {
		if err := p.backend.SoftDeleteTask(ctx, userID, deviceID, taskID); err != nil {
			p.setStatus(storage.StatusError)
			return p.translate(err, "failed to delete task")
		}
	}

	p.mu.Lock()
	if p.current != nil {
		snap := p.current.Clone()
		for _, taskID := range doomed {
			snap.Tasks = deleteTask(snap.Tasks, taskID)
		}
		p.current = snap
	}
	p.status = storage.StatusSynced
	p.mu.Unlock()
	return nil
}

// subtreeIDs returns root plus every descendant, parents before children.
func subtreeIDs(tasks []model.Task, root string) []string {
	doomed := map[string]bool{root: true}
	ids := []string{root}
	for changed := true; changed; {
		changed = false
		for _, t := range tasks {
			if !doomed[t.ID] && doomed[t.ParentID] {
				doomed[t.ID] = true
				ids = append(ids, t.ID)
				changed = true
			}
		}
	}
	return ids
}

// translate maps backend failures onto the storage error taxonomy.
//
// Session expiry is detected structurally first, by checking the cached
// token's exp claim. The substring match on the backend's error text is
// kept only as a compatibility shim: backends phrase token errors
// differently and a changed message would otherwise bypass detection.
func (p *Provider) translate(err error, fallback string) error {
	if errors.Is(err, storage.ErrNotAuthenticated) || errors.Is(err, storage.ErrOffline) || errors.Is(err, storage.ErrSessionExpired) {
		return err
	}

	if session := p.authsvc.Session(); session.Expired() {
		return storage.ErrSessionExpired
	}

	text := err.Error()
	if strings.Contains(text, "JWT") || strings.Contains(text, "expired") {
		return storage.ErrSessionExpired
	}

	return fmt.Errorf("%s: %w", fallback, err)
}
