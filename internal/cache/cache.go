package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/vault-risk-engine/internal/metrics"
)

// Cache combines a Store with a TagIndex. Entries expire at their TTL or
// when one of their tags is invalidated, whichever comes first.
type Cache struct {
	store   *Store
	index   *TagIndex
	metrics *metrics.Metrics

	// sweeping is held exclusively by Sweep so that a Set cannot land
	// between purging a key and dropping it from the index
	sweeping sync.RWMutex
}

// New builds a tagged cache over backend
func New(backend Backend, m *metrics.Metrics) *Cache {
	return &Cache{
		store:   NewStore(backend),
		index:   NewTagIndex(),
		metrics: m,
	}
}

// Index exposes the tag index
func (c *Cache) Index() *TagIndex {
	return c.index
}

// Get decodes the value under key into dst
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	return c.store.Get(ctx, key, dst)
}

// Set stores value for ttl and registers key under tags
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration, tags ...Tag) error {
	c.sweeping.RLock()
	defer c.sweeping.RUnlock()

	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	c.index.Register(key, tags...)
	return nil
}

// InvalidateByTag deletes every entry indexed under tag and returns how
// many keys were invalidated. TagAll also flushes unindexed entries.
func (c *Cache) InvalidateByTag(ctx context.Context, tag Tag) (int, error) {
	keys := c.index.Take(tag)

	if tag == TagAll {
		if err := c.store.FlushAll(ctx); err != nil {
			return 0, err
		}
	} else {
		for _, key := range keys {
			if _, err := c.store.Delete(ctx, key); err != nil {
				return 0, err
			}
		}
	}

	c.metrics.Invalidated(string(tag), len(keys))
	logrus.WithFields(logrus.Fields{
		"tag":   tag,
		"count": len(keys),
	}).Info("Invalidated cache entries by tag")
	return len(keys), nil
}

// InvalidateKey deletes key and its index membership. It reports whether
// the key existed in either.
func (c *Cache) InvalidateKey(ctx context.Context, key string) (bool, error) {
	deleted, err := c.store.Delete(ctx, key)
	if err != nil {
		return false, err
	}
	indexed := c.index.Remove(key)
	return deleted || indexed, nil
}

// Sweep purges expired entries from backends that need it and drops them
// from the index. It returns the number of purged keys.
func (c *Cache) Sweep() int {
	s, ok := c.store.Backend().(Sweeper)
	if !ok {
		return 0
	}

	c.sweeping.Lock()
	defer c.sweeping.Unlock()
	purged := s.PurgeExpired()
	for _, key := range purged {
		c.index.Remove(key)
	}
	if len(purged) > 0 {
		logrus.WithField("count", len(purged)).Debug("Swept expired cache entries")
	}
	return len(purged)
}

// Flush removes every entry and clears the index
func (c *Cache) Flush(ctx context.Context) error {
	c.index.Take(TagAll)
	return c.store.FlushAll(ctx)
}

// Stats reports store counters and the index size
func (c *Cache) Stats(ctx context.Context) (Stats, int, error) {
	st, err := c.store.Stats(ctx)
	if err != nil {
		return Stats{}, 0, err
	}
	return st, c.index.Len(), nil
}
