// Package events publishes submission events to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TypeSubmission is emitted after every transaction submission.
const TypeSubmission = "submission"

// Event is a submission notification.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Source     string    `json:"source"`
	Action     string    `json:"action"`
	Status     string    `json:"status"`
	Hash       string    `json:"hash,omitempty"`
	Ledger     int32     `json:"ledger,omitempty"`
	Code       string    `json:"code,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewSubmission builds a submission event.
func NewSubmission(source, action, status, hash string, ledger int32, code string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       TypeSubmission,
		Source:     source,
		Action:     action,
		Status:     status,
		Hash:       hash,
		Ledger:     ledger,
		Code:       code,
		OccurredAt: time.Now().UTC(),
	}
}

func (e Event) encode() ([]byte, error) { return json.Marshal(e) }

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// MemoryPublisher keeps the most recent events in memory.
type MemoryPublisher struct {
	mu       sync.Mutex
	capacity int
	events   []Event
}

// NewMemoryPublisher creates a publisher holding at most capacity events.
func NewMemoryPublisher(capacity int) *MemoryPublisher {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemoryPublisher{capacity: capacity}
}

// Publish implements Publisher.
func (m *MemoryPublisher) Publish(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	if over := len(m.events) - m.capacity; over > 0 {
		m.events = append([]Event(nil), m.events[over:]...)
	}
	return nil
}

// Events returns a copy of the retained events, oldest first.
func (m *MemoryPublisher) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Close implements Publisher.
func (m *MemoryPublisher) Close() error { return nil }
