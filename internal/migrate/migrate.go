// Package migrate copies the full application state between the local
// file store and the cloud provider when the user switches modes.
package migrate

import (
	"context"
	"fmt"
	"log"

	"todo-overlay/internal/localstate"
	"todo-overlay/internal/model"
	"todo-overlay/internal/storage"
)

// Direction selects which way the data flows.
type Direction string

const (
	// ToCloud pushes the local file state into the cloud account.
	ToCloud Direction = "to-cloud"
	// ToLocal replays the cloud snapshot through the local command layer.
	ToLocal Direction = "to-local"
)

// Config holds a migration's collaborators.
type Config struct {
	Cloud  storage.Provider
	Local  *localstate.Store
	Logger *log.Logger

	// OnProgress, when set, receives monotonically increasing percentages
	// from 0 to 100. It is called synchronously.
	OnProgress func(percent int)
}

type runner struct {
	config Config
	last   int
}

// Run performs a one-shot migration in the given direction. Cloud-bound
// migration requires a signed-in, online cloud provider; errors from the
// provider surface unchanged so callers can distinguish auth and
// connectivity failures.
func Run(ctx context.Context, direction Direction, config Config) error {
	if config.Cloud == nil || config.Local == nil {
		return fmt.Errorf("migrate: cloud provider and local store are required")
	}
	r := &runner{config: config, last: -1}
	r.progress(0)

	var err error
	switch direction {
	case ToCloud:
		err = r.toCloud(ctx)
	case ToLocal:
		err = r.toLocal(ctx)
	default:
		return fmt.Errorf("migrate: unknown direction %q", direction)
	}
	if err != nil {
		return err
	}
	r.progress(100)
	return nil
}

func (r *runner) progress(percent int) {
	if percent <= r.last {
		return
	}
	r.last = percent
	if r.config.OnProgress != nil {
		r.config.OnProgress(percent)
	}
}

// toCloud is a single bulk save: the provider already writes lists,
// labels, settings and tasks in dependency order.
func (r *runner) toCloud(ctx context.Context) error {
	snap := r.config.Local.LoadState()
	r.progress(20)
	if err := r.config.Cloud.Save(ctx, snap); err != nil {
		return fmt.Errorf("migrate: saving to cloud: %w", err)
	}
	return nil
}

// toLocal replays the cloud snapshot through the local command layer
// rather than writing the file directly, so every row passes the same
// validation a user action would. Settings go first so lists and labels
// exist before tasks reference them.
func (r *runner) toLocal(ctx context.Context) error {
	snap, err := r.config.Cloud.Load(ctx)
	if err != nil {
		return fmt.Errorf("migrate: loading from cloud: %w", err)
	}
	r.progress(10)

	if _, err := r.config.Local.UpdateSettings(snap.Settings); err != nil {
		return fmt.Errorf("migrate: applying settings: %w", err)
	}
	r.progress(20)

	ordered := parentsFirst(snap.Tasks)
	if len(ordered) == 0 {
		return nil
	}
	idMap := make(map[string]string, len(ordered))
	for i, task := range ordered {
		if err := r.replayTask(task, idMap); err != nil {
			return err
		}
		r.progress(20 + (i+1)*80/len(ordered))
	}
	return nil
}

// replayTask creates one task locally and applies the attribute commands
// the create call cannot express. The locally minted id is recorded so
// children can point at their migrated parent.
func (r *runner) replayTask(task model.Task, idMap map[string]string) error {
	parentID := idMap[task.ParentID]

	before := r.config.Local.LoadState()
	after, err := r.config.Local.CreateTask(task.Title, task.Details, task.ReminderAt, parentID, task.ListID)
	if err != nil {
		return fmt.Errorf("migrate: creating task %q: %w", task.Title, err)
	}
	newID := newTaskID(before, after)
	if newID == "" {
		// Empty titles are dropped by the command layer; skip silently,
		// matching what a user retyping the data could produce.
		if r.config.Logger != nil {
			r.config.Logger.Printf("skipped unmigratable task %s", task.ID)
		}
		return nil
	}
	idMap[task.ID] = newID

	if task.CompletedAt != nil {
		if _, err := r.config.Local.SetCompleted(newID, true); err != nil {
			return fmt.Errorf("migrate: completing task %q: %w", task.Title, err)
		}
	}
	if task.Starred {
		if _, err := r.config.Local.SetStarred(newID, true); err != nil {
			return fmt.Errorf("migrate: starring task %q: %w", task.Title, err)
		}
	}
	if task.Priority != "" && task.Priority != model.PriorityNone {
		if _, err := r.config.Local.SetPriority(newID, task.Priority); err != nil {
			return fmt.Errorf("migrate: setting priority on %q: %w", task.Title, err)
		}
	}
	if task.LabelID != "" {
		if _, err := r.config.Local.SetLabel(newID, task.LabelID); err != nil {
			return fmt.Errorf("migrate: labelling task %q: %w", task.Title, err)
		}
	}
	return nil
}

// parentsFirst orders tasks so every parent precedes its children. Tasks
// whose parent is absent from the snapshot migrate as top-level.
func parentsFirst(tasks []model.Task) []model.Task {
	present := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		present[t.ID] = true
	}

	ordered := make([]model.Task, 0, len(tasks))
	placed := make(map[string]bool, len(tasks))
	pending := append([]model.Task(nil), tasks...)
	for len(pending) > 0 {
		next := pending[:0]
		advanced := false
		for _, t := range pending {
			if t.ParentID == "" || !present[t.ParentID] || placed[t.ParentID] {
				ordered = append(ordered, t)
				placed[t.ID] = true
				advanced = true
				continue
			}
			next = append(next, t)
		}
		if !advanced {
			// Parent cycle; flatten the remainder as top-level.
			for _, t := range next {
				t.ParentID = ""
				ordered = append(ordered, t)
			}
			break
		}
		pending = append([]model.Task(nil), next...)
	}
	return ordered
}

// newTaskID finds the id minted by the create call by diffing snapshots.
func newTaskID(before, after *model.Snapshot) string {
	known := make(map[string]bool, len(before.Tasks))
	for _, t := range before.Tasks {
		known[t.ID] = true
	}
	for _, t := range after.Tasks {
		if !known[t.ID] {
			return t.ID
		}
	}
	return ""
}
