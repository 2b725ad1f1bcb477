package localstate

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"todo-overlay/internal/model"
)

// CreateTask appends a new task and returns the refreshed snapshot.
//
// The title is trimmed; an empty title is a silent no-op, matching the
// original command. The list id is validated against the known lists and
// falls back to the active list; the parent id must name a task in the
// target list or it is dropped.
func (s *Store) CreateTask(title, details string, reminderAt *int64, parentID, listID string) (*model.Snapshot, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return s.LoadState(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	targetList := s.data.Settings.ActiveListID
	if candidate := normalizeOptional(listID); candidate != "" {
		for _, l := range s.data.Settings.Lists {
			if l.ID == candidate {
				targetList = candidate
				break
			}
		}
	}

	validParent := ""
	if candidate := normalizeOptional(parentID); candidate != "" {
		for i := range s.data.Tasks {
			if s.data.Tasks[i].ID == candidate && s.data.Tasks[i].ListID == targetList {
				validParent = candidate
				break
			}
		}
	}

	s.data.Tasks = append(s.data.Tasks, model.Task{
		ID:         uuid.NewString(),
		Title:      trimmed,
		Details:    normalizeOptional(details),
		ParentID:   validParent,
		ListID:     targetList,
		Priority:   model.PriorityNone,
		CreatedAt:  model.NowMillis(),
		ReminderAt: reminderAt,
	})

	return s.persistAndSnapshot()
}

// UpdateTask replaces the title, details and reminder of an existing task.
// An empty trimmed title leaves the task untouched. Unknown ids are
// ignored.
func (s *Store) UpdateTask(id, title, details string, reminderAt *int64) (*model.Snapshot, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return s.LoadState(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Tasks {
		if s.data.Tasks[i].ID == id {
			s.data.Tasks[i].Title = trimmed
			s.data.Tasks[i].Details = normalizeOptional(details)
			s.data.Tasks[i].ReminderAt = reminderAt
			break
		}
	}

	return s.persistAndSnapshot()
}

// SetCompleted marks a task completed (stamping the completion time) or
// active again.
func (s *Store) SetCompleted(id string, completed bool) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Tasks {
		if s.data.Tasks[i].ID == id {
			if completed {
				now := model.NowMillis()
				s.data.Tasks[i].CompletedAt = &now
			} else {
				s.data.Tasks[i].CompletedAt = nil
			}
			break
		}
	}

	return s.persistAndSnapshot()
}

// SetStarred toggles the starred flag on a task.
func (s *Store) SetStarred(id string, starred bool) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Tasks {
		if s.data.Tasks[i].ID == id {
			s.data.Tasks[i].Starred = starred
			break
		}
	}

	return s.persistAndSnapshot()
}

// SetPriority sets the task priority.
func (s *Store) SetPriority(id string, priority model.Priority) (*model.Snapshot, error) {
	if !priority.Valid() {
		return nil, fmt.Errorf("unknown priority %q", priority)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Tasks {
		if s.data.Tasks[i].ID == id {
			s.data.Tasks[i].Priority = priority
			break
		}
	}

	return s.persistAndSnapshot()
}

// SetLabel assigns a label to a task. An empty label id clears the label;
// a label id that does not exist is ignored.
func (s *Store) SetLabel(id, labelID string) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	labelID = normalizeOptional(labelID)
	if labelID != "" {
		known := false
		for _, l := range s.data.Settings.Labels {
			if l.ID == labelID {
				known = true
				break
			}
		}
		if !known {
			return s.persistAndSnapshot()
		}
	}

	for i := range s.data.Tasks {
		if s.data.Tasks[i].ID == id {
			s.data.Tasks[i].LabelID = labelID
			break
		}
	}

	return s.persistAndSnapshot()
}

// Reorder assigns explicit sort indexes following the given id order.
// Ids not present in the snapshot are skipped; tasks absent from ids keep
// their previous index.
func (s *Store) Reorder(ids []string) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	position := make(map[string]int, len(ids))
	for i, id := range ids {
		position[id] = i
	}

	for i := range s.data.Tasks {
		if idx, ok := position[s.data.Tasks[i].ID]; ok {
			n := idx
			s.data.Tasks[i].SortIndex = &n
		}
	}

	return s.persistAndSnapshot()
}

// DeleteTask removes a task and its whole subtree of nested tasks.
func (s *Store) DeleteTask(id string) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := collectSubtree(s.data.Tasks, id)
	if len(doomed) > 0 {
		kept := s.data.Tasks[:0]
		for _, t := range s.data.Tasks {
			if !doomed[t.ID] {
				kept = append(kept, t)
			}
		}
		s.data.Tasks = kept
	}

	return s.persistAndSnapshot()
}

// ClearHistory removes all completed tasks.
func (s *Store) ClearHistory() (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.data.Tasks[:0]
	for _, t := range s.data.Tasks {
		if !t.Completed() {
			kept = append(kept, t)
		}
	}
	s.data.Tasks = kept

	return s.persistAndSnapshot()
}

// CreateList adds a new list.
func (s *Store) CreateList(name string) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Settings.Lists = append(s.data.Settings.Lists, model.List{
		ID:        uuid.NewString(),
		Name:      normalizeName(name, "New List"),
		CreatedAt: model.NowMillis(),
	})

	return s.persistAndSnapshot()
}

// RenameList changes a list's display name. Unknown ids are ignored.
func (s *Store) RenameList(id, name string) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Settings.Lists {
		if s.data.Settings.Lists[i].ID == id {
			s.data.Settings.Lists[i].Name = normalizeName(name, s.data.Settings.Lists[i].Name)
			break
		}
	}

	return s.persistAndSnapshot()
}

// SetActiveList switches the active list. An unknown id is ignored so the
// active reference never dangles.
func (s *Store) SetActiveList(id string) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.data.Settings.Lists {
		if l.ID == id {
			s.data.Settings.ActiveListID = id
			break
		}
	}

	return s.persistAndSnapshot()
}

// UpdateSettings replaces the settings wholesale after sanitizing them.
// This is also the first step of a cloud-to-local migration, since tasks
// replayed afterwards may reference the incoming lists and labels.
func (s *Store) UpdateSettings(settings model.Settings) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Settings = sanitizeSettings(settings)

	return s.persistAndSnapshot()
}

// persistAndSnapshot writes the state file and returns a copy of the fresh
// snapshot. Caller holds s.mu.
func (s *Store) persistAndSnapshot() (*model.Snapshot, error) {
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return s.data.Clone(), nil
}

// collectSubtree returns the ids of root and every task nested (directly or
// transitively) under it.
func collectSubtree(tasks []model.Task, root string) map[string]bool {
	found := false
	for i := range tasks {
		if tasks[i].ID == root {
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	doomed := map[string]bool{root: true}
	for {
		grew := false
		for i := range tasks {
			if tasks[i].ParentID != "" && doomed[tasks[i].ParentID] && !doomed[tasks[i].ID] {
				doomed[tasks[i].ID] = true
				grew = true
			}
		}
		if !grew {
			return doomed
		}
	}
}
