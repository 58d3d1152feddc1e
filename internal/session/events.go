package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Session lifecycle events.
const (
	EventOpened    = "session_opened"
	EventSaved     = "responses_saved"
	EventSubmitted = "assessment_submitted"
)

var errNoEventType = errors.New("event type is required")

// Event is one entry of a session's history, stored in session_events.
type Event struct {
	SessionID string
	EventType string
	Data      map[string]any
	CreatedAt time.Time
}

// stamped returns e with a creation time and a non-nil payload.
func (e Event) stamped() (Event, error) {
	if e.EventType == "" {
		return e, errNoEventType
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	return e, nil
}

// EventLogger records session history.
type EventLogger interface {
	LogEvent(ctx context.Context, event Event) error
}

// NopEventLogger drops every event.
type NopEventLogger struct{}

func (NopEventLogger) LogEvent(context.Context, Event) error { return nil }

// MemoryEventLogger keeps events in process.
type MemoryEventLogger struct {
	mu  sync.Mutex
	log []Event
}

func NewMemoryEventLogger() *MemoryEventLogger {
	return &MemoryEventLogger{}
}

func (l *MemoryEventLogger) LogEvent(_ context.Context, event Event) error {
	event, err := event.stamped()
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log = append(l.log, event)
	return nil
}

// Events returns recorded events in order, limited to the given types when
// any are passed.
func (l *MemoryEventLogger) Events(types ...string) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, 0, len(l.log))
	for _, ev := range l.log {
		if len(types) == 0 || slices.Contains(types, ev.EventType) {
			out = append(out, ev)
		}
	}
	return out
}

// PostgresEventLogger writes events to the session_events table.
type PostgresEventLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresEventLogger(pool *pgxpool.Pool) *PostgresEventLogger {
	return &PostgresEventLogger{pool: pool}
}

func (l *PostgresEventLogger) LogEvent(ctx context.Context, event Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if event.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	event, err := event.stamped()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := l.pool.Exec(ctx,
		`INSERT INTO session_events (session_id, event_type, data, created_at)
		 VALUES ($1::uuid, $2, $3::jsonb, $4)`,
		event.SessionID, event.EventType, string(payload), event.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert %s event: %w", event.EventType, err)
	}

	slog.Debug("session event stored", "type", event.EventType, "session_id", event.SessionID)
	return nil
}

// History returns a session's events oldest first.
func (l *PostgresEventLogger) History(ctx context.Context, sessionID string) ([]Event, error) {
	if l == nil || l.pool == nil {
		return nil, fmt.Errorf("event logger pool is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := l.pool.Query(ctx,
		`SELECT session_id::text, event_type, data, created_at
		 FROM session_events
		 WHERE session_id = $1::uuid
		 ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var ev Event
		var data []byte
		if err := row.Scan(&ev.SessionID, &ev.EventType, &data, &ev.CreatedAt); err != nil {
			return Event{}, err
		}
		if err := json.Unmarshal(data, &ev.Data); err != nil {
			return Event{}, fmt.Errorf("decode event data: %w", err)
		}
		return ev, nil
	})
}
