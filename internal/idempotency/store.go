// Package idempotency replays stored responses for repeated Idempotency-Key
// requests.
package idempotency

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"OpenMCP-Stellar/internal/errors"
)

const (
	keyPrefix        = "stellarmcp:idempotency:v1:"
	inProgressMarker = "__in_progress__"
)

// ErrInProgress is returned by Lookup while the first request still runs.
var ErrInProgress = stdErrors.New("idempotent request in progress")

// Response is a stored HTTP response.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Store keeps responses by key.
type Store interface {
	// Lookup returns the stored response, nil when the key is unknown, or
	// ErrInProgress when the key is reserved.
	Lookup(ctx context.Context, key string) (*Response, error)
	// Reserve marks key in progress. It reports false when key is taken.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Save(ctx context.Context, key string, resp Response, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	Close() error
}

type memoryEntry struct {
	resp      *Response
	expiresAt time.Time
}

// MemoryStore is a process local Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) live(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if ok && m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, ok
}

// Lookup implements Store.
func (m *MemoryStore) Lookup(_ context.Context, key string) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return nil, nil
	}
	if e.resp == nil {
		return nil, ErrInProgress
	}
	resp := *e.resp
	return &resp, nil
}

// Reserve implements Store.
func (m *MemoryStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.entries[key] = memoryEntry{expiresAt: m.now().Add(ttl)}
	return true, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, key string, resp Response, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{resp: &resp, expiresAt: m.now().Add(ttl)}
	return nil
}

// Release implements Store.
func (m *MemoryStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

// RedisStore keeps responses in redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to url and verifies the connection.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInitializationFailure, err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(errors.CodeInitializationFailure, err, "ping redis")
	}
	return &RedisStore{client: client}, nil
}

// Lookup implements Store.
func (r *RedisStore) Lookup(ctx context.Context, key string) (*Response, error) {
	cached, err := r.client.Get(ctx, keyPrefix+key).Result()
	if stdErrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorageFailure, err, "idempotency lookup")
	}
	if cached == inProgressMarker {
		return nil, ErrInProgress
	}
	var resp Response
	if err := json.Unmarshal([]byte(cached), &resp); err != nil {
		return nil, errors.Wrap(errors.CodeStorageFailure, err, "decode stored response")
	}
	return &resp, nil
}

// Reserve implements Store.
func (r *RedisStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, keyPrefix+key, inProgressMarker, ttl).Result()
	if err != nil {
		return false, errors.Wrap(errors.CodeStorageFailure, err, "idempotency reservation")
	}
	return ok, nil
}

// Save implements Store.
func (r *RedisStore) Save(ctx context.Context, key string, resp Response, ttl time.Duration) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return errors.Wrap(errors.CodeStorageFailure, err, "encode response")
	}
	if err := r.client.Set(ctx, keyPrefix+key, payload, ttl).Err(); err != nil {
		return errors.Wrap(errors.CodeStorageFailure, err, "persist response")
	}
	return nil
}

// Release implements Store.
func (r *RedisStore) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, keyPrefix+key).Err()
}

// Close implements Store.
func (r *RedisStore) Close() error { return r.client.Close() }
