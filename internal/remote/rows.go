// Package remote implements the relational backend client used by the
// cloud storage provider: four row-level tables keyed by user_id, soft
// deletes via deleted_at, device_id/version stamping for echo suppression,
// and a LISTEN/NOTIFY change feed per user.
package remote

import (
	"database/sql"

	"todo-overlay/internal/model"
)

// taskRow mirrors the todos table.
type taskRow struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	Title       string         `db:"title"`
	Details     sql.NullString `db:"details"`
	ParentID    sql.NullString `db:"parent_id"`
	ListID      sql.NullString `db:"list_id"`
	Starred     bool           `db:"starred"`
	Priority    string         `db:"priority"`
	LabelID     sql.NullString `db:"label_id"`
	SortIndex   sql.NullInt64  `db:"sort_index"`
	CreatedAt   int64          `db:"created_at"`
	CompletedAt sql.NullInt64  `db:"completed_at"`
	ReminderAt  sql.NullInt64  `db:"reminder_at"`
	UpdatedAt   int64          `db:"updated_at"`
	DeletedAt   sql.NullInt64  `db:"deleted_at"`
	DeviceID    sql.NullString `db:"device_id"`
	Version     int64          `db:"version"`
}

func (r *taskRow) toTask() model.Task {
	t := model.Task{
		ID:        r.ID,
		Title:     r.Title,
		Details:   r.Details.String,
		ParentID:  r.ParentID.String,
		ListID:    r.ListID.String,
		Starred:   r.Starred,
		Priority:  model.Priority(r.Priority),
		LabelID:   r.LabelID.String,
		CreatedAt: r.CreatedAt,
	}
	if r.SortIndex.Valid {
		n := int(r.SortIndex.Int64)
		t.SortIndex = &n
	}
	if r.CompletedAt.Valid {
		n := r.CompletedAt.Int64
		t.CompletedAt = &n
	}
	if r.ReminderAt.Valid {
		n := r.ReminderAt.Int64
		t.ReminderAt = &n
	}
	return t
}

// listRow mirrors the lists table.
type listRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	Name      string         `db:"name"`
	CreatedAt int64          `db:"created_at"`
	UpdatedAt int64          `db:"updated_at"`
	DeletedAt sql.NullInt64  `db:"deleted_at"`
	DeviceID  sql.NullString `db:"device_id"`
	Version   int64          `db:"version"`
}

func (r *listRow) toList() model.List {
	return model.List{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt}
}

// labelRow mirrors the labels table.
type labelRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	Name      string         `db:"name"`
	Color     string         `db:"color"`
	CreatedAt int64          `db:"created_at"`
	UpdatedAt int64          `db:"updated_at"`
	DeletedAt sql.NullInt64  `db:"deleted_at"`
	DeviceID  sql.NullString `db:"device_id"`
	Version   int64          `db:"version"`
}

func (r *labelRow) toLabel() model.Label {
	return model.Label{ID: r.ID, Name: r.Name, Color: model.LabelColor(r.Color)}
}

// UserSettings mirrors the user_settings row. Lists, labels and the
// device-local overlay flag are not part of this row; the provider
// assembles full model.Settings from this plus the resolved collections.
type UserSettings struct {
	UserID          string         `db:"user_id"`
	SortMode        string         `db:"sort_mode"`
	SortOrder       string         `db:"sort_order"`
	AutoCloseOnBlur bool           `db:"auto_close_on_blur"`
	EnableAutostart bool           `db:"enable_autostart"`
	GlobalShortcut  string         `db:"global_shortcut"`
	ThemeMode       string         `db:"theme_mode"`
	ActiveListID    string         `db:"active_list_id"`
	SoundEnabled    bool           `db:"sound_enabled"`
	SoundOnComplete bool           `db:"sound_on_complete"`
	SoundOnCreate   bool           `db:"sound_on_create"`
	SoundOnDelete   bool           `db:"sound_on_delete"`
	Language        sql.NullString `db:"language"`
	UpdatedAt       int64          `db:"updated_at"`
	DeviceID        sql.NullString `db:"device_id"`
	Version         int64          `db:"version"`
}

// Apply merges the row's fields into settings, leaving the collections and
// device-local fields untouched.
func (u *UserSettings) Apply(settings *model.Settings) {
	settings.SortMode = model.SortMode(u.SortMode)
	settings.SortOrder = model.SortOrder(u.SortOrder)
	settings.AutoCloseOnBlur = u.AutoCloseOnBlur
	settings.EnableAutostart = u.EnableAutostart
	settings.GlobalShortcut = u.GlobalShortcut
	settings.ThemeMode = model.ThemeMode(u.ThemeMode)
	settings.ActiveListID = u.ActiveListID
	settings.SoundEnabled = u.SoundEnabled
	settings.SoundOnComplete = u.SoundOnComplete
	settings.SoundOnCreate = u.SoundOnCreate
	settings.SoundOnDelete = u.SoundOnDelete
	if u.Language.Valid {
		settings.Language = u.Language.String
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullIntFromInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
