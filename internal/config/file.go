package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// FileConfig is the JSON overlay accepted by LoadFile. Durations are Go
// duration strings ("15m"). Omitted fields keep their defaults.
type FileConfig struct {
	Port                    *string  `json:"port"`
	GraphQLURL              *string  `json:"graphql_url"`
	RequestTimeout          *string  `json:"request_timeout"`
	RetryMax                *int     `json:"upstream_retry_max"`
	RateLimitRPS            *float64 `json:"rate_limit_rps"`
	RateLimitBurst          *int     `json:"rate_limit_burst"`
	RiskCacheTTL            *string  `json:"risk_cache_ttl"`
	PortfolioCacheTTL       *string  `json:"portfolio_cache_ttl"`
	CacheBackend            *string  `json:"cache_backend"`
	RedisAddr               *string  `json:"redis_addr"`
	RedisDB                 *int     `json:"redis_db"`
	CacheSweepSchedule      *string  `json:"cache_sweep_schedule"`
	NATSURL                 *string  `json:"nats_url"`
	NATSSubject             *string  `json:"nats_subject"`
	CircuitFailureThreshold *int     `json:"circuit_failure_threshold"`
	CircuitResetDelay       *string  `json:"circuit_reset_delay"`
	RiskFreeRate            *float64 `json:"risk_free_rate"`
	RebalanceThreshold      *float64 `json:"rebalance_threshold"`
	OtelEndpoint            *string  `json:"otel_endpoint"`
	OtelSampleRatio         *float64 `json:"otel_sample_ratio"`
	LogLevel                *string  `json:"log_level"`
	LogFormat               *string  `json:"log_format"`
}

// LoadFile loads the environment configuration and overlays the JSON file
// at path. Environment variables that are set win over file values.
// Secrets (API key, Redis password) are only read from the environment.
func LoadFile(path string) (Config, error) {
	cfg := Load()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc FileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := fc.apply(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logrus.Infof("Loaded configuration from %s", path)
	return cfg, nil
}

func (fc FileConfig) apply(cfg *Config) error {
	overlay(&cfg.Port, fc.Port, "PORT")
	overlay(&cfg.GraphQLURL, fc.GraphQLURL, "GRAPHQL_URL")
	overlay(&cfg.RetryMax, fc.RetryMax, "UPSTREAM_RETRY_MAX")
	overlay(&cfg.RateLimitRPS, fc.RateLimitRPS, "RATE_LIMIT_RPS")
	overlay(&cfg.RateLimitBurst, fc.RateLimitBurst, "RATE_LIMIT_BURST")
	overlay(&cfg.CacheBackend, fc.CacheBackend, "CACHE_BACKEND")
	overlay(&cfg.RedisAddr, fc.RedisAddr, "REDIS_ADDR")
	overlay(&cfg.RedisDB, fc.RedisDB, "REDIS_DB")
	overlay(&cfg.CacheSweepSchedule, fc.CacheSweepSchedule, "CACHE_SWEEP_SCHEDULE")
	overlay(&cfg.NATSURL, fc.NATSURL, "NATS_URL")
	overlay(&cfg.NATSSubject, fc.NATSSubject, "NATS_SUBJECT")
	overlay(&cfg.CircuitFailureThreshold, fc.CircuitFailureThreshold, "CIRCUIT_FAILURE_THRESHOLD")
	overlay(&cfg.RiskFreeRate, fc.RiskFreeRate, "RISK_FREE_RATE")
	overlay(&cfg.RebalanceThreshold, fc.RebalanceThreshold, "REBALANCE_THRESHOLD")
	overlay(&cfg.OtelEndpoint, fc.OtelEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	overlay(&cfg.OtelSampleRatio, fc.OtelSampleRatio, "OTEL_SAMPLE_RATIO")
	overlay(&cfg.LogLevel, fc.LogLevel, "LOG_LEVEL")
	overlay(&cfg.LogFormat, fc.LogFormat, "LOG_FORMAT")
	cfg.CacheBackend = strings.ToLower(cfg.CacheBackend)

	durations := []struct {
		dst *time.Duration
		src *string
		env string
	}{
		{&cfg.RequestTimeout, fc.RequestTimeout, "REQUEST_TIMEOUT"},
		{&cfg.RiskCacheTTL, fc.RiskCacheTTL, "RISK_CACHE_TTL"},
		{&cfg.PortfolioCacheTTL, fc.PortfolioCacheTTL, "PORTFOLIO_CACHE_TTL"},
		{&cfg.CircuitResetDelay, fc.CircuitResetDelay, "CIRCUIT_RESET_DELAY"},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		if _, set := GetEnv(d.env); set {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", strings.ToLower(d.env), err)
		}
		*d.dst = v
	}
	return nil
}

func overlay[T any](dst *T, src *T, env string) {
	if src == nil {
		return
	}
	if _, set := GetEnv(env); set {
		return
	}
	*dst = *src
}

// Validate rejects settings the server cannot start with
func (c Config) Validate() error {
	switch c.CacheBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unsupported cache backend %q", c.CacheBackend)
	}
	if c.GraphQLURL == "" {
		return fmt.Errorf("graphql url must be set")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit must be positive, got %.2f rps burst %d", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.RetryMax < 0 {
		return fmt.Errorf("upstream retry max must not be negative")
	}
	if c.OtelSampleRatio < 0 || c.OtelSampleRatio > 1 {
		return fmt.Errorf("otel sample ratio must be within [0, 1], got %.2f", c.OtelSampleRatio)
	}
	if c.RebalanceThreshold < 0 {
		return fmt.Errorf("rebalance threshold must not be negative")
	}
	return nil
}
