package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/vault-risk-engine/internal/config"
	"github.com/yourorg/vault-risk-engine/internal/model"
	"github.com/yourorg/vault-risk-engine/internal/tools"
)

// requestIDHeader carries the request id in both directions
const requestIDHeader = "X-Request-ID"

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// toolService is what the HTTP layer needs from the tool boundary
type toolService interface {
	AnalyzeRisk(ctx context.Context, req tools.RiskRequest) (tools.RiskResult, error)
	AnalyzeRisks(ctx context.Context, req tools.BatchRequest) (model.BatchRiskAnalysisResult, error)
	OptimizePortfolio(ctx context.Context, req tools.PortfolioRequest) (model.PortfolioOptimization, error)
	InvalidateTag(ctx context.Context, tag string) (int, error)
	InvalidateKey(ctx context.Context, key string) (bool, error)
	CacheStats(ctx context.Context) (tools.CacheStats, error)
}

type handlers struct {
	svc toolService
}

// NewServer builds the HTTP server with its routes and middleware
func NewServer(cfg config.Config, svc toolService, registry *prometheus.Registry) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(svc, registry, rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func newRouter(svc toolService, registry *prometheus.Registry, limiter *rate.Limiter) http.Handler {
	h := &handlers{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(accessLog)

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(rateLimit(limiter))

		r.Post("/risk", h.analyzeRisk)
		r.Post("/risks", h.analyzeRisks)
		r.Post("/portfolio/optimize", h.optimizePortfolio)
		r.Post("/cache/invalidate", h.invalidate)
		r.Get("/cache/stats", h.cacheStats)
	})
	return r
}

type ctxKey struct{}

// requestID keeps an incoming X-Request-ID or assigns a new uuid
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// accessLog logs every request once it completes
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logrus.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  requestIDFrom(r.Context()),
		}).Info("HTTP request")
	})
}

// rateLimit rejects requests beyond the token bucket with 429
func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				errorResponse(w, r, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
