package cloud

import (
	"context"

	"todo-overlay/internal/model"
	"todo-overlay/internal/remote"
	"todo-overlay/internal/storage"
)

// Subscribe opens the realtime change feed for the signed-in user and
// invokes callback with a reconciled snapshot after every remote change.
//
// Task, list and label events are reconciled incrementally against the
// cached snapshot. Settings events always trigger a full reload: settings
// is a singleton row, so incremental patching buys nothing over a refetch.
//
// Events stamped with this device's own id are discarded unconditionally —
// they are the realtime echo of a write this instance just performed and
// is already reflecting optimistically.
//
// Channel errors and timeouts set the sync status to error. There is no
// automatic resubscription; callers that observe StatusError must
// resubscribe (and reload) themselves. This mirrors the original design
// and is a known gap rather than an accident.
func (p *Provider) Subscribe(callback func(*model.Snapshot)) (storage.Unsubscribe, error) {
	userID, err := p.currentUserID()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	events, err := p.backend.Subscribe(ctx, userID, p.config.Logger)
	if err != nil {
		cancel()
		return nil, err
	}

	p.mu.Lock()
	id := p.nextSubID
	p.nextSubID++
	p.subCancels[id] = cancel
	p.mu.Unlock()

	p.subWG.Add(1)
	go func() {
		defer p.subWG.Done()
		for ev := range events {
			if ctx.Err() != nil {
				continue
			}
			p.handleEvent(ctx, ev, callback)
		}
	}()

	var once bool
	return func() {
		if once {
			return
		}
		once = true
		p.mu.Lock()
		delete(p.subCancels, id)
		p.mu.Unlock()
		cancel()
	}, nil
}

func (p *Provider) unsubscribeAll() {
	p.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(p.subCancels))
	for id, cancel := range p.subCancels {
		cancels = append(cancels, cancel)
		delete(p.subCancels, id)
	}
	p.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	p.subWG.Wait()
}

func (p *Provider) handleEvent(ctx context.Context, ev remote.Event, callback func(*model.Snapshot)) {
	if ev.Op == remote.OpHealth {
		switch ev.Health {
		case remote.HealthError, remote.HealthTimeout:
			p.config.Logger.Printf("realtime channel unhealthy: %s", ev.Health)
			p.setStatus(storage.StatusError)
		case remote.HealthSubscribed:
			p.config.Logger.Printf("realtime channel subscribed")
		}
		return
	}

	deviceID, err := p.DeviceID()
	if err == nil && deviceID != "" && ev.DeviceID == deviceID {
		// Echo of our own write; already reflected optimistically.
		return
	}

	if ev.Table == remote.TableSettings {
		p.reloadAndNotify(ctx, callback)
		return
	}

	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		p.reloadAndNotify(ctx, callback)
		return
	}

	snap := p.current.Clone()
	switch ev.Table {
	case remote.TableTasks:
		snap.Tasks = reconcileTasks(snap.Tasks, ev)
	case remote.TableLists:
		snap.Settings.Lists = reconcileLists(snap.Settings.Lists, ev)
	case remote.TableLabels:
		snap.Settings.Labels = reconcileLabels(snap.Settings.Labels, ev)
	default:
		p.mu.Unlock()
		return
	}
	p.current = snap
	p.mu.Unlock()

	callback(snap.Clone())
}

// reloadAndNotify falls back to a full load. Failures are logged and
// swallowed rather than crashing the subscription.
func (p *Provider) reloadAndNotify(ctx context.Context, callback func(*model.Snapshot)) {
	snap, err := p.Load(ctx)
	if err != nil {
		p.config.Logger.Printf("reload after remote change failed: %v", err)
		return
	}
	callback(snap)
}

// reconcileTasks applies one change event to the task collection. A
// soft-deleted row (deleted_at set) surfaces as an update and is treated
// as a removal. An update for an unknown id is dropped — there is no
// insert-on-missing-update fallback.
func reconcileTasks(tasks []model.Task, ev remote.Event) []model.Task {
	if ev.Op == remote.OpDelete || ev.Deleted {
		return deleteTask(tasks, ev.RowID)
	}
	switch ev.Op {
	case remote.OpInsert:
		if ev.Task != nil {
			tasks = append(tasks, *ev.Task)
		}
	case remote.OpUpdate:
		if ev.Task != nil {
			for i := range tasks {
				if tasks[i].ID == ev.Task.ID {
					tasks[i] = *ev.Task
					break
				}
			}
		}
	}
	return tasks
}

func deleteTask(tasks []model.Task, id string) []model.Task {
	kept := tasks[:0]
	for _, t := range tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	return kept
}

func reconcileLists(lists []model.List, ev remote.Event) []model.List {
	if ev.Op == remote.OpDelete || ev.Deleted {
		kept := lists[:0]
		for _, l := range lists {
			if l.ID != ev.RowID {
				kept = append(kept, l)
			}
		}
		return kept
	}
	switch ev.Op {
	case remote.OpInsert:
		if ev.List != nil {
			lists = append(lists, *ev.List)
		}
	case remote.OpUpdate:
		if ev.List != nil {
			for i := range lists {
				if lists[i].ID == ev.List.ID {
					lists[i] = *ev.List
					break
				}
			}
		}
	}
	return lists
}

func reconcileLabels(labels []model.Label, ev remote.Event) []model.Label {
	if ev.Op == remote.OpDelete || ev.Deleted {
		kept := labels[:0]
		for _, l := range labels {
			if l.ID != ev.RowID {
				kept = append(kept, l)
			}
		}
		return kept
	}
	switch ev.Op {
	case remote.OpInsert:
		if ev.Label != nil {
			labels = append(labels, *ev.Label)
		}
	case remote.OpUpdate:
		if ev.Label != nil {
			for i := range labels {
				if labels[i].ID == ev.Label.ID {
					labels[i] = *ev.Label
					break
				}
			}
		}
	}
	return labels
}
