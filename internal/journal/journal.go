// Package journal records the outcome of every transaction submission.
package journal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one submission record.
type Entry struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Action      string    `json:"action"`
	Status      string    `json:"status"`
	Hash        string    `json:"hash,omitempty"`
	Ledger      int32     `json:"ledger,omitempty"`
	Code        string    `json:"code,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	EnvelopeXDR string    `json:"envelope_xdr,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists entries.
type Store interface {
	Record(ctx context.Context, entry Entry) error
	// Latest returns the newest entries first. An empty source lists all.
	Latest(ctx context.Context, source string, limit int) ([]Entry, error)
	Close() error
}

// Prepare fills ID and CreatedAt when absent.
func Prepare(entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return entry
}

// MemoryStore keeps the most recent entries in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	entries  []Entry
}

// NewMemoryStore creates a store holding at most capacity entries.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 512
	}
	return &MemoryStore{capacity: capacity}
}

// Record implements Store.
func (m *MemoryStore) Record(_ context.Context, entry Entry) error {
	entry = Prepare(entry)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append([]Entry{entry}, m.entries...)
	if len(m.entries) > m.capacity {
		m.entries = m.entries[:m.capacity]
	}
	return nil
}

// Latest implements Store.
func (m *MemoryStore) Latest(_ context.Context, source string, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if source != "" && e.Source != source {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
