// Package coalesce deduplicates concurrent computations for the same cache key
package coalesce

import (
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/yourorg/vault-risk-engine/internal/metrics"
)

// Coalescer lets at most one computation per key run at a time. Callers
// arriving while it runs wait for and share its result. The key is released
// when the computation returns, whether it failed or not.
type Coalescer struct {
	group   singleflight.Group
	metrics *metrics.Metrics

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates a coalescer
func New(m *metrics.Metrics) *Coalescer {
	return &Coalescer{
		metrics:  m,
		inFlight: make(map[string]struct{}),
	}
}

// Do runs fn for key unless a call for key is already in flight, in which
// case it waits for that call. joined reports whether the result came from
// another caller's run. tool labels the metrics.
func (c *Coalescer) Do(tool, key string, fn func() (any, error)) (v any, joined bool, err error) {
	leader := false
	v, err, _ = c.group.Do(key, func() (any, error) {
		leader = true
		c.track(key, true)
		defer c.track(key, false)
		return fn()
	})

	if !leader {
		c.metrics.Coalesced(tool)
		logrus.WithFields(logrus.Fields{
			"tool":      tool,
			"cache_key": key,
		}).Debug("Joined in-flight computation")
	}
	return v, !leader, err
}

// InFlight reports whether a computation for key is running
func (c *Coalescer) InFlight(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[key]
	return ok
}

// Len returns the number of computations running
func (c *Coalescer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inFlight)
}

func (c *Coalescer) track(key string, running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if running {
		c.inFlight[key] = struct{}{}
	} else {
		delete(c.inFlight, key)
	}
}

// Do is a typed wrapper around Coalescer.Do
func Do[T any](c *Coalescer, tool, key string, fn func() (T, error)) (T, bool, error) {
	v, joined, err := c.Do(tool, key, func() (any, error) {
		return fn()
	})
	t, _ := v.(T)
	return t, joined, err
}
