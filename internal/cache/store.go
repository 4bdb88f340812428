package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrCodec is returned when a value cannot be encoded or decoded
var ErrCodec = errors.New("cache codec error")

// Stats are cumulative counters of a Store
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Sets    uint64 `json:"sets"`
	Deletes uint64 `json:"deletes"`
	Keys    int    `json:"keys"`
}

// Store encodes values with msgpack on top of a Backend
type Store struct {
	backend Backend

	hits    atomic.Uint64
	misses  atomic.Uint64
	sets    atomic.Uint64
	deletes atomic.Uint64
}

// NewStore wraps backend
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Backend exposes the underlying backend
func (s *Store) Backend() Backend {
	return s.backend
}

// Get decodes the value under key into dst. It reports false on a miss.
// An undecodable entry is dropped and reported as ErrCodec.
func (s *Store) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		s.misses.Add(1)
		return false, nil
	}

	if err := msgpack.Unmarshal(raw, dst); err != nil {
		logrus.WithField("cache_key", key).Warnf("Dropping undecodable cache entry: %v", err)
		_, _ = s.backend.Delete(ctx, key)
		s.misses.Add(1)
		return false, fmt.Errorf("%w: decode %s: %v", ErrCodec, key, err)
	}
	s.hits.Add(1)
	return true, nil
}

// Set encodes value and stores it for ttl
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrCodec, key, err)
	}
	if err := s.backend.Set(ctx, key, raw, ttl); err != nil {
		return err
	}
	s.sets.Add(1)
	return nil
}

// Delete removes key and reports whether it was present
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	ok, err := s.backend.Delete(ctx, key)
	if err != nil {
		return false, err
	}
	if ok {
		s.deletes.Add(1)
	}
	return ok, nil
}

// FlushAll removes every entry
func (s *Store) FlushAll(ctx context.Context) error {
	return s.backend.Flush(ctx)
}

// Stats returns the counters and the current number of keys
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	n, err := s.backend.Len(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Sets:    s.sets.Load(),
		Deletes: s.deletes.Load(),
		Keys:    n,
	}, nil
}
