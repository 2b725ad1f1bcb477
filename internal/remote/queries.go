package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"todo-overlay/internal/model"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var taskColumns = []string{
	"id", "user_id", "title", "details", "parent_id", "list_id", "starred",
	"priority", "label_id", "sort_index", "created_at", "completed_at",
	"reminder_at", "updated_at", "deleted_at", "device_id", "version",
}

var listColumns = []string{
	"id", "user_id", "name", "created_at", "updated_at", "deleted_at",
	"device_id", "version",
}

var labelColumns = []string{
	"id", "user_id", "name", "color", "created_at", "updated_at",
	"deleted_at", "device_id", "version",
}

var settingsColumns = []string{
	"user_id", "sort_mode", "sort_order", "auto_close_on_blur",
	"enable_autostart", "global_shortcut", "theme_mode", "active_list_id",
	"sound_enabled", "sound_on_complete", "sound_on_create",
	"sound_on_delete", "language", "updated_at", "device_id", "version",
}

// Tasks returns all non-deleted tasks for the user.
func (s *Store) Tasks(ctx context.Context, userID string) ([]model.Task, error) {
	query, args, err := psql.Select(taskColumns...).
		From("todos").
		Where(sq.Eq{"user_id": userID, "deleted_at": nil}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build tasks query: %w", err)
	}

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(rows))
	for i := range rows {
		tasks = append(tasks, rows[i].toTask())
	}
	return tasks, nil
}

// Lists returns all non-deleted lists for the user.
func (s *Store) Lists(ctx context.Context, userID string) ([]model.List, error) {
	query, args, err := psql.Select(listColumns...).
		From("lists").
		Where(sq.Eq{"user_id": userID, "deleted_at": nil}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build lists query: %w", err)
	}

	var rows []listRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query lists: %w", err)
	}

	lists := make([]model.List, 0, len(rows))
	for i := range rows {
		lists = append(lists, rows[i].toList())
	}
	return lists, nil
}

// Labels returns all non-deleted labels for the user.
func (s *Store) Labels(ctx context.Context, userID string) ([]model.Label, error) {
	query, args, err := psql.Select(labelColumns...).
		From("labels").
		Where(sq.Eq{"user_id": userID, "deleted_at": nil}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build labels query: %w", err)
	}

	var rows []labelRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}

	labels := make([]model.Label, 0, len(rows))
	for i := range rows {
		labels = append(labels, rows[i].toLabel())
	}
	return labels, nil
}

// Settings returns the user's settings row, or ErrNoSettings when the user
// has none yet.
func (s *Store) Settings(ctx context.Context, userID string) (*UserSettings, error) {
	query, args, err := psql.Select(settingsColumns...).
		From("user_settings").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build settings query: %w", err)
	}

	var row UserSettings
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSettings
		}
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	return &row, nil
}

// InsertList inserts a single list stamped with the device id, used by the
// default-bootstrap step.
func (s *Store) InsertList(ctx context.Context, userID, deviceID string, list model.List) error {
	query := `
	INSERT INTO lists (id, user_id, name, created_at, updated_at, deleted_at, device_id, version)
	VALUES ($1, $2, $3, $4, $5, NULL, $6, 1)
	ON CONFLICT (id) DO NOTHING
	`
	now := model.NowMillis()
	if _, err := s.db.ExecContext(ctx, query, list.ID, userID, list.Name, list.CreatedAt, now, nullString(deviceID)); err != nil {
		return fmt.Errorf("failed to insert list %s: %w", list.ID, err)
	}
	return nil
}

// InsertLabel inserts a single label stamped with the device id, used by
// the default-bootstrap step.
func (s *Store) InsertLabel(ctx context.Context, userID, deviceID string, label model.Label) error {
	query := `
	INSERT INTO labels (id, user_id, name, color, created_at, updated_at, deleted_at, device_id, version)
	VALUES ($1, $2, $3, $4, $5, $5, NULL, $6, 1)
	ON CONFLICT (id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, label.ID, userID, label.Name, string(label.Color), model.NowMillis(), nullString(deviceID)); err != nil {
		return fmt.Errorf("failed to insert label %s: %w", label.ID, err)
	}
	return nil
}

// UpsertLists writes every list in the snapshot, stamping each row with the
// device id and the given updated_at.
func (s *Store) UpsertLists(ctx context.Context, userID, deviceID string, now int64, lists []model.List) error {
	query := `
	INSERT INTO lists (id, user_id, name, created_at, updated_at, deleted_at, device_id, version)
	VALUES ($1, $2, $3, $4, $5, NULL, $6, 1)
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		updated_at = excluded.updated_at,
		deleted_at = NULL,
		device_id = excluded.device_id
	`
	for _, list := range lists {
		if _, err := s.db.ExecContext(ctx, query, list.ID, userID, list.Name, list.CreatedAt, now, nullString(deviceID)); err != nil {
			return fmt.Errorf("failed to upsert list %s: %w", list.ID, err)
		}
	}
	return nil
}

// UpsertLabels writes every label in the snapshot.
func (s *Store) UpsertLabels(ctx context.Context, userID, deviceID string, now int64, labels []model.Label) error {
	query := `
	INSERT INTO labels (id, user_id, name, color, created_at, updated_at, deleted_at, device_id, version)
	VALUES ($1, $2, $3, $4, $5, $5, NULL, $6, 1)
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		color = excluded.color,
		updated_at = excluded.updated_at,
		deleted_at = NULL,
		device_id = excluded.device_id
	`
	for _, label := range labels {
		if _, err := s.db.ExecContext(ctx, query, label.ID, userID, label.Name, string(label.Color), now, nullString(deviceID)); err != nil {
			return fmt.Errorf("failed to upsert label %s: %w", label.ID, err)
		}
	}
	return nil
}

// UpsertSettings writes the single settings row for the user. Lists,
// labels and the device-local overlay flag never reach this row.
func (s *Store) UpsertSettings(ctx context.Context, userID, deviceID string, now int64, settings model.Settings) error {
	query := `
	INSERT INTO user_settings (
		user_id, sort_mode, sort_order, auto_close_on_blur, enable_autostart,
		global_shortcut, theme_mode, active_list_id, sound_enabled,
		sound_on_complete, sound_on_create, sound_on_delete, language,
		updated_at, device_id, version
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 1)
	ON CONFLICT (user_id) DO UPDATE SET
		sort_mode = excluded.sort_mode,
		sort_order = excluded.sort_order,
		auto_close_on_blur = excluded.auto_close_on_blur,
		enable_autostart = excluded.enable_autostart,
		global_shortcut = excluded.global_shortcut,
		theme_mode = excluded.theme_mode,
		active_list_id = excluded.active_list_id,
		sound_enabled = excluded.sound_enabled,
		sound_on_complete = excluded.sound_on_complete,
		sound_on_create = excluded.sound_on_create,
		sound_on_delete = excluded.sound_on_delete,
		language = excluded.language,
		updated_at = excluded.updated_at,
		device_id = excluded.device_id
	`
	_, err := s.db.ExecContext(ctx, query,
		userID,
		string(settings.SortMode),
		string(settings.SortOrder),
		settings.AutoCloseOnBlur,
		settings.EnableAutostart,
		settings.GlobalShortcut,
		string(settings.ThemeMode),
		settings.ActiveListID,
		settings.SoundEnabled,
		settings.SoundOnComplete,
		settings.SoundOnCreate,
		settings.SoundOnDelete,
		nullString(settings.Language),
		now,
		nullString(deviceID),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}
	return nil
}

// UpsertTasks writes every task in the snapshot. Tasks must be written
// after lists, labels and settings so their references resolve.
func (s *Store) UpsertTasks(ctx context.Context, userID, deviceID string, now int64, tasks []model.Task) error {
	query := `
	INSERT INTO todos (
		id, user_id, title, details, parent_id, list_id, starred, priority,
		label_id, sort_index, created_at, completed_at, reminder_at,
		updated_at, deleted_at, device_id, version
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NULL, $15, 1)
	ON CONFLICT (id) DO UPDATE SET
		title = excluded.title,
		details = excluded.details,
		parent_id = excluded.parent_id,
		list_id = excluded.list_id,
		starred = excluded.starred,
		priority = excluded.priority,
		label_id = excluded.label_id,
		sort_index = excluded.sort_index,
		completed_at = excluded.completed_at,
		reminder_at = excluded.reminder_at,
		updated_at = excluded.updated_at,
		deleted_at = NULL,
		device_id = excluded.device_id
	`
	for _, task := range tasks {
		priority := task.Priority
		if priority == "" {
			priority = model.PriorityNone
		}
		_, err := s.db.ExecContext(ctx, query,
			task.ID,
			userID,
			task.Title,
			nullString(task.Details),
			nullString(task.ParentID),
			nullString(task.ListID),
			task.Starred,
			string(priority),
			nullString(task.LabelID),
			nullIntFromInt(task.SortIndex),
			task.CreatedAt,
			nullInt(task.CompletedAt),
			nullInt(task.ReminderAt),
			now,
			nullString(deviceID),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert task %s: %w", task.ID, err)
		}
	}
	return nil
}

// SoftDeleteTask stamps a task's deleted_at so the deletion propagates
// through the change feed instead of vanishing.
func (s *Store) SoftDeleteTask(ctx context.Context, userID, deviceID, taskID string) error {
	query := `
	UPDATE todos SET deleted_at = $1, updated_at = $1, device_id = $2
	WHERE id = $3 AND user_id = $4 AND deleted_at IS NULL
	`
	if _, err := s.db.ExecContext(ctx, query, model.NowMillis(), nullString(deviceID), taskID, userID); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", taskID, err)
	}
	return nil
}
