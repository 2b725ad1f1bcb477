package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"todo-overlay/internal/model"
)

// Snapshot edit helpers for cloud mode. They apply the same validation
// the local command layer does, so both backends accept the same input.

func appendTask(snap *model.Snapshot, title, details string, reminderAt *int64, parentID, listID string) (*model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("task title is empty")
	}

	if listID == "" || !hasList(snap, listID) {
		listID = snap.Settings.ActiveListID
	}
	if parentID != "" {
		parent := findTask(snap, parentID)
		if parent == nil || parent.ListID != listID {
			return nil, fmt.Errorf("parent task %s not found in list %s", parentID, listID)
		}
	}

	task := model.Task{
		ID:         uuid.NewString(),
		Title:      title,
		Details:    strings.TrimSpace(details),
		ParentID:   parentID,
		ListID:     listID,
		Priority:   model.PriorityNone,
		CreatedAt:  model.NowMillis(),
		ReminderAt: reminderAt,
	}
	snap.Tasks = append(snap.Tasks, task)
	return &snap.Tasks[len(snap.Tasks)-1], nil
}

func markCompleted(snap *model.Snapshot, id string, completed bool) error {
	task := findTask(snap, id)
	if task == nil {
		return fmt.Errorf("task %s not found", id)
	}
	if completed {
		now := model.NowMillis()
		task.CompletedAt = &now
	} else {
		task.CompletedAt = nil
	}
	return nil
}

func markStarred(snap *model.Snapshot, id string, starred bool) error {
	task := findTask(snap, id)
	if task == nil {
		return fmt.Errorf("task %s not found", id)
	}
	task.Starred = starred
	return nil
}

func findTask(snap *model.Snapshot, id string) *model.Task {
	for i := range snap.Tasks {
		if snap.Tasks[i].ID == id {
			return &snap.Tasks[i]
		}
	}
	return nil
}

func hasList(snap *model.Snapshot, id string) bool {
	for _, l := range snap.Settings.Lists {
		if l.ID == id {
			return true
		}
	}
	return false
}
