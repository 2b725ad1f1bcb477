package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ErrNoSettings is returned by Settings when the user has no settings row
// yet. This is an expected state on first load, not a failure.
var ErrNoSettings = errors.New("no settings row for user")

// NotifyChannel is the Postgres notification channel the schema triggers
// publish row changes on.
const NotifyChannel = "todo_changes"

// Store wraps the Postgres connection with the schema and queries used by
// the cloud provider.
type Store struct {
	db  *sqlx.DB
	dsn string
}

// Open connects to Postgres at the given DSN and verifies the connection.
// The caller MUST call Close() when done.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db, dsn: dsn}, nil
}

// DB returns the underlying sqlx handle. Useful for tests and for
// integrating with other tooling.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// InitSchema creates the four tables, their indexes and the change-notify
// triggers. Idempotent, safe to call on every startup.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS todos (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		title        TEXT NOT NULL,
		details      TEXT,
		parent_id    TEXT,
		list_id      TEXT,
		starred      BOOLEAN NOT NULL DEFAULT FALSE,
		priority     TEXT NOT NULL DEFAULT 'none',
		label_id     TEXT,
		sort_index   BIGINT,
		created_at   BIGINT NOT NULL,
		completed_at BIGINT,
		reminder_at  BIGINT,
		updated_at   BIGINT NOT NULL,
		deleted_at   BIGINT,
		device_id    TEXT,
		version      BIGINT NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS lists (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		name       TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		deleted_at BIGINT,
		device_id  TEXT,
		version    BIGINT NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS labels (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		name       TEXT NOT NULL,
		color      TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		deleted_at BIGINT,
		device_id  TEXT,
		version    BIGINT NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS user_settings (
		user_id            TEXT PRIMARY KEY,
		sort_mode          TEXT NOT NULL DEFAULT 'recent',
		sort_order         TEXT NOT NULL DEFAULT 'desc',
		auto_close_on_blur BOOLEAN NOT NULL DEFAULT TRUE,
		enable_autostart   BOOLEAN NOT NULL DEFAULT TRUE,
		global_shortcut    TEXT NOT NULL DEFAULT 'Shift+Space',
		theme_mode         TEXT NOT NULL DEFAULT 'system',
		active_list_id     TEXT NOT NULL,
		sound_enabled      BOOLEAN NOT NULL DEFAULT TRUE,
		sound_on_complete  BOOLEAN NOT NULL DEFAULT TRUE,
		sound_on_create    BOOLEAN NOT NULL DEFAULT TRUE,
		sound_on_delete    BOOLEAN NOT NULL DEFAULT TRUE,
		language           TEXT,
		updated_at         BIGINT NOT NULL,
		device_id          TEXT,
		version            BIGINT NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_todos_user  ON todos(user_id, deleted_at);
	CREATE INDEX IF NOT EXISTS idx_lists_user  ON lists(user_id, deleted_at);
	CREATE INDEX IF NOT EXISTS idx_labels_user ON labels(user_id, deleted_at);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Row changes are published as JSON on a single NOTIFY channel; the
	// feed filters by user_id client-side.
	trigger := `
	CREATE OR REPLACE FUNCTION todo_notify_change() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('` + NotifyChannel + `', json_build_object(
			'table', TG_TABLE_NAME,
			'op', TG_OP,
			'row', row_to_json(CASE WHEN TG_OP = 'DELETE' THEN OLD ELSE NEW END)
		)::text);
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql;
	`
	if _, err := s.db.ExecContext(ctx, trigger); err != nil {
		return fmt.Errorf("failed to create notify function: %w", err)
	}

	for _, table := range []string{"todos", "lists", "labels", "user_settings"} {
		stmt := fmt.Sprintf(`
		DROP TRIGGER IF EXISTS %[1]s_notify ON %[1]s;
		CREATE TRIGGER %[1]s_notify
			AFTER INSERT OR UPDATE OR DELETE ON %[1]s
			FOR EACH ROW EXECUTE FUNCTION todo_notify_change();
		`, table)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create trigger on %s: %w", table, err)
		}
	}

	return nil
}
