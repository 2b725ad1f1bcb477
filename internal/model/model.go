// Package model defines the canonical data shapes exchanged between the
// storage providers and the rest of the application.
//
// The structures are deliberately flat with last-write-wins semantics:
// every field is re-sent on every save, there is no partial-patch protocol
// at the wire level. Timestamps are epoch milliseconds throughout, matching
// the on-disk state file format.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Priority is the task priority scale. The zero value is PriorityNone.
type Priority string

const (
	PriorityNone   Priority = "none"
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// SortMode selects how the task list is ordered in the UI.
type SortMode string

const (
	SortManual  SortMode = "manual"
	SortRecent  SortMode = "recent"
	SortOldest  SortMode = "oldest"
	SortTitle   SortMode = "title"
	SortDueDate SortMode = "dueDate"
)

// SortOrder is the direction applied on top of the sort mode.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ThemeMode is the UI color scheme preference.
type ThemeMode string

const (
	ThemeSystem ThemeMode = "system"
	ThemeLight  ThemeMode = "light"
	ThemeDark   ThemeMode = "dark"
)

// LabelColor is the closed set of label swatches.
type LabelColor string

const (
	ColorGray   LabelColor = "gray"
	ColorRed    LabelColor = "red"
	ColorOrange LabelColor = "orange"
	ColorYellow LabelColor = "yellow"
	ColorGreen  LabelColor = "green"
	ColorBlue   LabelColor = "blue"
)

// Valid reports whether c is one of the six named swatches.
func (c LabelColor) Valid() bool {
	switch c {
	case ColorGray, ColorRed, ColorOrange, ColorYellow, ColorGreen, ColorBlue:
		return true
	}
	return false
}

// Fixed identifiers materialized on first load when a user has no lists or
// labels yet. Using stable ids keeps the bootstrap idempotent across devices.
const (
	DefaultListID   = "default"
	DefaultListName = "My Tasks"

	DefaultLabelID   = "general"
	DefaultLabelName = "General"
)

// Task is a single todo item. ParentID enables one level of nesting per the
// UI; this layer validates that a parent exists when set but performs no
// cycle detection.
type Task struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Details   string   `json:"details,omitempty"`
	ParentID  string   `json:"parentId,omitempty"`
	ListID    string   `json:"listId,omitempty"`
	Starred   bool     `json:"starred"`
	Priority  Priority `json:"priority"`
	LabelID   string   `json:"labelId,omitempty"`
	SortIndex *int     `json:"sortIndex,omitempty"` // only meaningful under manual sort

	CreatedAt   int64  `json:"createdAt"`
	CompletedAt *int64 `json:"completedAt,omitempty"` // presence means completed
	ReminderAt  *int64 `json:"reminderAt,omitempty"`
}

// Completed reports whether the task carries a completion timestamp.
func (t *Task) Completed() bool {
	return t.CompletedAt != nil
}

// Validate checks the task's required fields.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if t.Priority != "" && !t.Priority.Valid() {
		return fmt.Errorf("unknown priority %q", t.Priority)
	}
	if t.CreatedAt == 0 {
		return fmt.Errorf("createdAt is required")
	}
	return nil
}

// List is a named container for tasks. Every user always has at least one;
// the storage layer materializes the default list when none exists.
type List struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
}

// Validate checks the list's required fields.
func (l *List) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// Label is a colored tag assignable to tasks.
type Label struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Color LabelColor `json:"color"`
}

// Validate checks the label's required fields.
func (l *Label) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if !l.Color.Valid() {
		return fmt.Errorf("unknown color %q", l.Color)
	}
	return nil
}

// Settings is the per-user configuration, including the full set of lists
// and labels. ActiveListID must always resolve to an entry in Lists.
//
// OverlayBlur is device-local: it is stored in the local state file but is
// never written to or read from the cloud settings row.
type Settings struct {
	SortMode        SortMode  `json:"sortMode"`
	SortOrder       SortOrder `json:"sortOrder"`
	AutoCloseOnBlur bool      `json:"autoCloseOnBlur"`
	GlobalShortcut  string    `json:"globalShortcut"`
	ThemeMode       ThemeMode `json:"themeMode"`
	ActiveListID    string    `json:"activeListId"`
	Lists           []List    `json:"lists"`
	Labels          []Label   `json:"labels"`
	EnableAutostart bool      `json:"enableAutostart"`

	SoundEnabled       bool   `json:"soundEnabled"`
	SoundOnComplete    bool   `json:"soundOnComplete"`
	SoundOnCreate      bool   `json:"soundOnCreate"`
	SoundOnDelete      bool   `json:"soundOnDelete"`
	Language           string `json:"language,omitempty"`
	OverlayBlur        bool   `json:"overlayBlur"`
}

// ActiveList returns the list referenced by ActiveListID, or nil when the
// reference is dangling.
func (s *Settings) ActiveList() *List {
	for i := range s.Lists {
		if s.Lists[i].ID == s.ActiveListID {
			return &s.Lists[i]
		}
	}
	return nil
}

// Snapshot is the aggregate exchanged between provider and store on every
// load and every reconciled change. Receivers must treat it as read-only;
// providers only ever replace it wholesale.
type Snapshot struct {
	Settings Settings `json:"settings"`
	Tasks    []Task   `json:"todos"`
}

// Clone returns a deep copy of the snapshot so callers can hand it out
// without sharing the backing slices.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{Settings: s.Settings}
	out.Settings.Lists = append([]List(nil), s.Settings.Lists...)
	out.Settings.Labels = append([]Label(nil), s.Settings.Labels...)
	out.Tasks = make([]Task, len(s.Tasks))
	for i := range s.Tasks {
		out.Tasks[i] = s.Tasks[i]
		if v := s.Tasks[i].SortIndex; v != nil {
			n := *v
			out.Tasks[i].SortIndex = &n
		}
		if v := s.Tasks[i].CompletedAt; v != nil {
			n := *v
			out.Tasks[i].CompletedAt = &n
		}
		if v := s.Tasks[i].ReminderAt; v != nil {
			n := *v
			out.Tasks[i].ReminderAt = &n
		}
	}
	return out
}

// DefaultList returns the fixed default list stamped with the current time.
func DefaultList() List {
	return List{ID: DefaultListID, Name: DefaultListName, CreatedAt: NowMillis()}
}

// DefaultLabel returns the fixed default label.
func DefaultLabel() Label {
	return Label{ID: DefaultLabelID, Name: DefaultLabelName, Color: ColorGray}
}

// DefaultSettings constructs settings from an already-resolved set of lists
// and labels. The active list is the first resolved list, falling back to
// the fixed default id so the reference never dangles.
func DefaultSettings(lists []List, labels []Label) Settings {
	activeID := DefaultListID
	if len(lists) > 0 {
		activeID = lists[0].ID
	}
	return Settings{
		SortMode:        SortRecent,
		SortOrder:       SortDesc,
		AutoCloseOnBlur: true,
		GlobalShortcut:  "Shift+Space",
		ThemeMode:       ThemeSystem,
		ActiveListID:    activeID,
		Lists:           append([]List(nil), lists...),
		Labels:          append([]Label(nil), labels...),
		EnableAutostart: true,
		SoundEnabled:    true,
		SoundOnComplete: true,
		SoundOnCreate:   true,
		SoundOnDelete:   true,
		Language:        "en",
	}
}

// NowMillis returns the current time as epoch milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
