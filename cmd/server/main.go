// Package main is the entry point of the vault risk engine: an HTTP service
// scoring vault risk and optimizing vault portfolios on top of a tagged,
// coalescing result cache.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/vault-risk-engine/internal/cache"
	"github.com/yourorg/vault-risk-engine/internal/circuitbreaker"
	"github.com/yourorg/vault-risk-engine/internal/config"
	"github.com/yourorg/vault-risk-engine/internal/events"
	"github.com/yourorg/vault-risk-engine/internal/fetch"
	"github.com/yourorg/vault-risk-engine/internal/metrics"
	"github.com/yourorg/vault-risk-engine/internal/otel"
	"github.com/yourorg/vault-risk-engine/internal/tools"
)

// main is the entry point for the application
func main() {
	envErr := godotenv.Load()

	cfg, err := config.LoadFile(os.Getenv("CONFIG_FILE"))
	setupLogging(cfg)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logrus.Warnf("Ignoring .env: %v", envErr)
	}
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	shutdownTracer := otel.InitTracer(cfg)
	defer shutdownTracer()

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	breaker := circuitbreaker.New(cfg.CircuitFailureThreshold).
		WithResetDelay(cfg.CircuitResetDelay).
		WithMetrics(m).
		WithTripCallback(func(lastErr error) {
			logrus.Warnf("Circuit breaker tripped, upstream calls suspended: %v", lastErr)
		})
	repo := fetch.NewRepository(fetch.NewGraphQLClient(cfg, breaker, m))

	backend, closeBackend := newBackend(cfg)
	defer closeBackend()
	c := cache.New(backend, m)

	svc := tools.NewService(repo, c, m, tools.OptionsFromConfig(cfg))

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.CacheSweepSchedule, func() { svc.Sweep() }); err != nil {
		logrus.Fatalf("Invalid cache sweep schedule %q: %v", cfg.CacheSweepSchedule, err)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	if cfg.NATSURL != "" {
		sub, err := events.Subscribe(cfg.NATSURL, cfg.NATSSubject, c)
		if err != nil {
			logrus.Warnf("Invalidation events disabled: %v", err)
		} else {
			defer sub.Close()
		}
	}

	server := NewServer(cfg, svc, registry)
	run(server)
}

// newBackend selects the cache backend. The returned func releases it.
func newBackend(cfg config.Config) (cache.Backend, func()) {
	if cfg.CacheBackend != config.BackendRedis {
		logrus.Info("Using in-memory cache backend")
		return cache.NewMemoryBackend(), func() {}
	}

	rb := cache.NewRedisBackend(cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rb.Ping(ctx); err != nil {
		logrus.Fatalf("Redis cache backend unreachable at %s: %v", cfg.RedisAddr, err)
	}
	logrus.WithField("addr", cfg.RedisAddr).Info("Using Redis cache backend")
	return rb, func() {
		if err := rb.Close(); err != nil {
			logrus.Warnf("Closing Redis: %v", err)
		}
	}
}

// run serves until SIGINT or SIGTERM, then shuts down gracefully
func run(s *http.Server) {
	go func() {
		logrus.Infof("Server starting on %s", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		logrus.Errorf("Server shutdown failed: %v", err)
		return
	}
	logrus.Info("Server stopped")
}

// setupLogging configures the logging for the application
func setupLogging(cfg config.Config) {
	switch cfg.LogFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch cfg.LogLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}
