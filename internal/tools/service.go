// Package tools is the request boundary of the engine. Every tool checks the
// cache, coalesces concurrent misses for the same key, computes, and stores
// the result under its tags. Errors are never cached.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourorg/vault-risk-engine/internal/analysis"
	"github.com/yourorg/vault-risk-engine/internal/cache"
	"github.com/yourorg/vault-risk-engine/internal/coalesce"
	"github.com/yourorg/vault-risk-engine/internal/config"
	"github.com/yourorg/vault-risk-engine/internal/metrics"
	"github.com/yourorg/vault-risk-engine/internal/otel"
	"github.com/yourorg/vault-risk-engine/internal/validation"
)

// Tool names, used as metric labels and span names
const (
	ToolAnalyzeRisk       = "analyze_risk"
	ToolAnalyzeRisks      = "analyze_risks"
	ToolOptimizePortfolio = "optimize_portfolio"
)

// Options holds the tunables of a Service
type Options struct {
	RiskTTL            time.Duration
	PortfolioTTL       time.Duration
	RiskFreeRate       float64
	RebalanceThreshold float64
}

// OptionsFromConfig picks the service options out of cfg
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		RiskTTL:            cfg.RiskCacheTTL,
		PortfolioTTL:       cfg.PortfolioCacheTTL,
		RiskFreeRate:       cfg.RiskFreeRate,
		RebalanceThreshold: cfg.RebalanceThreshold,
	}
}

// Service implements the tools on top of a data source and a tagged cache
type Service struct {
	ds           analysis.DataSource
	cache        *cache.Cache
	coalescer    *coalesce.Coalescer
	orchestrator *analysis.Orchestrator
	batch        *analysis.BatchCoordinator
	metrics      *metrics.Metrics
	opts         Options
}

// NewService creates a service. m may be nil.
func NewService(ds analysis.DataSource, c *cache.Cache, m *metrics.Metrics, opts Options) *Service {
	return &Service{
		ds:           ds,
		cache:        c,
		coalescer:    coalesce.New(m),
		orchestrator: analysis.NewOrchestrator(ds, m),
		batch:        analysis.NewBatchCoordinator(ds, m),
		metrics:      m,
		opts:         opts,
	}
}

// WithClock sets the clock used for vault ages
func (s *Service) WithClock(now func() time.Time) *Service {
	s.orchestrator.WithClock(now)
	s.batch.WithClock(now)
	return s
}

// cached returns the value under key, computing and storing it on a miss.
// Concurrent misses for one key share a single compute call, which runs to
// completion even if the caller that started it goes away.
func cached[T any](ctx context.Context, s *Service, tool, key string, ttl time.Duration, tags []cache.Tag, compute func(context.Context) (T, error)) (T, error) {
	ctx, span := otel.Tracer().Start(ctx, "tools."+tool, trace.WithAttributes(
		attribute.String("cache_key", key),
	))
	defer span.End()

	log := logrus.WithFields(logrus.Fields{
		"tool":      tool,
		"cache_key": key,
	})

	var out T
	if ok := s.lookup(ctx, log, key, &out); ok {
		s.metrics.CacheHit(tool)
		span.SetAttributes(attribute.Bool("cache_hit", true))
		log.Debug("Cache hit")
		return out, nil
	}
	s.metrics.CacheMiss(tool)
	log.Debug("Cache miss")

	v, joined, err := coalesce.Do(s.coalescer, tool, key, func() (T, error) {
		// the computation is shared, so it must outlive the leader's request
		shared := context.WithoutCancel(ctx)

		// a previous leader may have stored the value after our lookup
		var again T
		if s.lookup(shared, log, key, &again) {
			return again, nil
		}

		res, err := compute(shared)
		if err != nil {
			return res, err
		}
		if err := s.cache.Set(shared, key, res, ttl, tags...); err != nil {
			log.Warnf("Failed to store result: %v", err)
		}
		return res, nil
	})
	span.SetAttributes(attribute.Bool("coalesced", joined))
	if err != nil {
		otel.RecordError(ctx, err)
		return out, err
	}
	return v, nil
}

// lookup treats an unreadable entry as a miss
func (s *Service) lookup(ctx context.Context, log *logrus.Entry, key string, dst any) bool {
	ok, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		log.Warnf("Cache read failed, recomputing: %v", err)
		return false
	}
	return ok
}

// InvalidateTag drops every entry registered under the named tag
func (s *Service) InvalidateTag(ctx context.Context, name string) (int, error) {
	tag, err := cache.ParseTag(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", validation.ErrInvalidRequest, err)
	}
	return s.cache.InvalidateByTag(ctx, tag)
}

// InvalidateKey drops one entry and reports whether it existed
func (s *Service) InvalidateKey(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("%w: empty cache key", validation.ErrInvalidRequest)
	}
	return s.cache.InvalidateKey(ctx, key)
}

// CacheStats reports cache counters, index size and running computations
func (s *Service) CacheStats(ctx context.Context) (CacheStats, error) {
	st, indexed, err := s.cache.Stats(ctx)
	if err != nil {
		return CacheStats{}, err
	}
	return CacheStats{
		Stats:       st,
		IndexedKeys: indexed,
		InFlight:    s.coalescer.Len(),
	}, nil
}

// Sweep purges expired entries; it is run on a schedule
func (s *Service) Sweep() int {
	return s.cache.Sweep()
}
