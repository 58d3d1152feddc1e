// Package notify fans out save and submit notifications to the clients
// watching an assessment session.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Event types.
const (
	TypeSaved     = "saved"
	TypeSaveError = "save_error"
	TypeSubmitted = "submitted"
)

const defaultBuffer = 16

// Event is a notification about a session.
type Event struct {
	SessionID string    `json:"sessionId"`
	Type      string    `json:"type"`
	Message   string    `json:"message,omitempty"`
	Answered  int       `json:"answered"`
	Total     int       `json:"total"`
	At        time.Time `json:"at"`
}

// Publisher is implemented by anything that accepts events.
type Publisher interface {
	Publish(ev Event)
}

// NopPublisher drops all events.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

// Hub routes events to subscribers of a session.
type Hub struct {
	subs   map[string]map[*subscription]struct{}
	buffer int
	mu     sync.RWMutex
}

type subscription struct {
	ch chan Event
}

// NewHub creates a new hub.
func NewHub() *Hub {
	return &Hub{
		subs:   make(map[string]map[*subscription]struct{}),
		buffer: defaultBuffer,
	}
}

// Subscribe registers interest in a session. The returned cancel func must be
// called to release the subscription; it closes the channel.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	sub := &subscription{ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*subscription]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
	h.mu.Unlock()

	slog.Debug("notification subscriber added", "session_id", sessionID)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[sessionID], sub)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers ev to every subscriber of its session without blocking.
// Subscribers with a full buffer miss the event.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[ev.SessionID] {
		select {
		case sub.ch <- ev:
		default:
			slog.Warn("notification dropped for slow subscriber",
				"session_id", ev.SessionID,
				"type", ev.Type,
			)
		}
	}
}

// Subscribers returns the number of subscribers of a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// MemoryPublisher records events for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemoryPublisher) Publish(ev Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (m *MemoryPublisher) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event{}, m.events...)
}
