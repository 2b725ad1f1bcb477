package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/lib/pq"

	"todo-overlay/internal/model"
)

// Table identifies which of the four tables an event refers to.
type Table string

const (
	TableTasks    Table = "todos"
	TableLists    Table = "lists"
	TableLabels   Table = "labels"
	TableSettings Table = "user_settings"
)

// Op is the kind of change an event carries.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
	// OpHealth events carry no row; they report channel transitions so
	// subscribers can surface a broken realtime connection.
	OpHealth Op = "HEALTH"
)

// Health reports a channel transition on an OpHealth event.
type Health string

const (
	HealthSubscribed Health = "subscribed"
	HealthError      Health = "channel-error"
	HealthTimeout    Health = "timed-out"
	HealthClosed     Health = "closed"
)

// Event is one change delivered by the feed. Exactly one of Task, List,
// Label or Settings is set for row events, matching Table. DeviceID is the
// stamp of the writer, used by subscribers for echo suppression.
type Event struct {
	Table    Table
	Op       Op
	Health   Health
	UserID   string
	DeviceID string
	RowID    string
	Deleted  bool // the row carries a non-null deleted_at

	Task     *model.Task
	List     *model.List
	Label    *model.Label
	Settings *UserSettings
}

// notifyPayload is the JSON shape published by the schema triggers.
type notifyPayload struct {
	Table string          `json:"table"`
	Op    string          `json:"op"`
	Row   json.RawMessage `json:"row"`
}

type taskWire struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Title       string  `json:"title"`
	Details     *string `json:"details"`
	ParentID    *string `json:"parent_id"`
	ListID      *string `json:"list_id"`
	Starred     bool    `json:"starred"`
	Priority    string  `json:"priority"`
	LabelID     *string `json:"label_id"`
	SortIndex   *int    `json:"sort_index"`
	CreatedAt   int64   `json:"created_at"`
	CompletedAt *int64  `json:"completed_at"`
	ReminderAt  *int64  `json:"reminder_at"`
	DeletedAt   *int64  `json:"deleted_at"`
	DeviceID    *string `json:"device_id"`
}

type listWire struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Name      string  `json:"name"`
	CreatedAt int64   `json:"created_at"`
	DeletedAt *int64  `json:"deleted_at"`
	DeviceID  *string `json:"device_id"`
}

type labelWire struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Name      string  `json:"name"`
	Color     string  `json:"color"`
	DeletedAt *int64  `json:"deleted_at"`
	DeviceID  *string `json:"device_id"`
}

type settingsWire struct {
	UserID   string  `json:"user_id"`
	DeviceID *string `json:"device_id"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Subscribe opens a LISTEN connection and delivers the user's row changes
// on the returned channel until ctx is cancelled. Changes for other users
// are filtered out. Channel transitions are delivered as OpHealth events;
// pq reconnects the listener connection itself, but missed notifications
// during an outage are NOT replayed — subscribers observe HealthError and
// must re-load if they need to be sure they are current.
//
// The channel is closed when ctx is cancelled or the listener shuts down.
func (s *Store) Subscribe(ctx context.Context, userID string, logger *log.Logger) (<-chan Event, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	health := make(chan Health, 8)
	listener := pq.NewListener(s.dsn, 2*time.Second, 30*time.Second, func(ev pq.ListenerEventType, err error) {
		var h Health
		switch ev {
		case pq.ListenerEventConnected, pq.ListenerEventReconnected:
			h = HealthSubscribed
		case pq.ListenerEventDisconnected:
			h = HealthError
		case pq.ListenerEventConnectionAttemptFailed:
			h = HealthError
		default:
			return
		}
		if err != nil {
			logger.Printf("listener event %v: %v", ev, err)
		}
		select {
		case health <- h:
		default:
		}
	})

	if err := listener.Listen(NotifyChannel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", NotifyChannel, err)
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		defer func() {
			if err := listener.Close(); err != nil {
				logger.Printf("failed to close listener: %v", err)
			}
		}()

		ping := time.NewTicker(90 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				events <- Event{Op: OpHealth, Health: HealthClosed}
				return

			case h := <-health:
				events <- Event{Op: OpHealth, Health: h}

			case <-ping.C:
				// Keeps the connection honest during quiet periods; a
				// failed ping surfaces through the listener callback.
				if err := listener.Ping(); err != nil {
					logger.Printf("listener ping failed: %v", err)
				}

			case n, ok := <-listener.Notify:
				if !ok {
					events <- Event{Op: OpHealth, Health: HealthClosed}
					return
				}
				if n == nil {
					// nil notification signals the connection was
					// re-established; notifications may have been missed.
					events <- Event{Op: OpHealth, Health: HealthError}
					continue
				}
				ev, err := decodeNotification(n.Extra)
				if err != nil {
					logger.Printf("failed to decode notification: %v", err)
					continue
				}
				if ev.UserID != userID {
					continue
				}
				events <- *ev
			}
		}
	}()

	return events, nil
}

func decodeNotification(raw string) (*Event, error) {
	var p notifyPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}

	ev := &Event{Table: Table(p.Table), Op: Op(p.Op)}

	switch ev.Table {
	case TableTasks:
		var w taskWire
		if err := json.Unmarshal(p.Row, &w); err != nil {
			return nil, fmt.Errorf("invalid task row: %w", err)
		}
		ev.UserID = w.UserID
		ev.DeviceID = deref(w.DeviceID)
		ev.RowID = w.ID
		ev.Deleted = w.DeletedAt != nil
		task := model.Task{
			ID:          w.ID,
			Title:       w.Title,
			Details:     deref(w.Details),
			ParentID:    deref(w.ParentID),
			ListID:      deref(w.ListID),
			Starred:     w.Starred,
			Priority:    model.Priority(w.Priority),
			LabelID:     deref(w.LabelID),
			SortIndex:   w.SortIndex,
			CreatedAt:   w.CreatedAt,
			CompletedAt: w.CompletedAt,
			ReminderAt:  w.ReminderAt,
		}
		ev.Task = &task

	case TableLists:
		var w listWire
		if err := json.Unmarshal(p.Row, &w); err != nil {
			return nil, fmt.Errorf("invalid list row: %w", err)
		}
		ev.UserID = w.UserID
		ev.DeviceID = deref(w.DeviceID)
		ev.RowID = w.ID
		ev.Deleted = w.DeletedAt != nil
		list := model.List{ID: w.ID, Name: w.Name, CreatedAt: w.CreatedAt}
		ev.List = &list

	case TableLabels:
		var w labelWire
		if err := json.Unmarshal(p.Row, &w); err != nil {
			return nil, fmt.Errorf("invalid label row: %w", err)
		}
		ev.UserID = w.UserID
		ev.DeviceID = deref(w.DeviceID)
		ev.RowID = w.ID
		ev.Deleted = w.DeletedAt != nil
		label := model.Label{ID: w.ID, Name: w.Name, Color: model.LabelColor(w.Color)}
		ev.Label = &label

	case TableSettings:
		var w settingsWire
		if err := json.Unmarshal(p.Row, &w); err != nil {
			return nil, fmt.Errorf("invalid settings row: %w", err)
		}
		ev.UserID = w.UserID
		ev.DeviceID = deref(w.DeviceID)
		ev.RowID = w.UserID

	default:
		return nil, fmt.Errorf("unknown table %q", p.Table)
	}

	return ev, nil
}
