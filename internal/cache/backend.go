// Package cache provides the TTL store, the tag index and the tagged cache
// that analytics results are kept in.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Backend is a TTL key/value store for encoded values. A zero or negative
// ttl stores the value without expiry.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	Flush(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// Sweeper is implemented by backends that need expired entries removed
// explicitly rather than by the server
type Sweeper interface {
	PurgeExpired() []string
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryBackend keeps entries in process memory. It is safe for concurrent use.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// WithClock replaces the time source, for tests
func (b *MemoryBackend) WithClock(now func() time.Time) *MemoryBackend {
	b.now = now
	return b
}

// Get returns the value stored under key if it has not expired
func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	e, ok := b.entries[key]
	b.mu.RUnlock()

	if !ok || e.expired(b.now()) {
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value under key. Expiry is truncated to whole seconds.
func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: value}
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		e.expiresAt = b.now().Add(ttl.Truncate(time.Second))
	}

	b.mu.Lock()
	b.entries[key] = e
	b.mu.Unlock()
	return nil
}

// Delete removes key and reports whether a live entry was present
func (b *MemoryBackend) Delete(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[key]
	if !ok {
		return false, nil
	}
	delete(b.entries, key)
	return !e.expired(b.now()), nil
}

// Flush removes every entry
func (b *MemoryBackend) Flush(_ context.Context) error {
	b.mu.Lock()
	b.entries = make(map[string]memoryEntry)
	b.mu.Unlock()
	return nil
}

// Len returns the number of live entries
func (b *MemoryBackend) Len(_ context.Context) (int, error) {
	now := b.now()
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, e := range b.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n, nil
}

// PurgeExpired drops expired entries and returns their keys in sorted order
func (b *MemoryBackend) PurgeExpired() []string {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()

	var purged []string
	for k, e := range b.entries {
		if e.expired(now) {
			delete(b.entries, k)
			purged = append(purged, k)
		}
	}
	sort.Strings(purged)
	return purged
}
