// Package config provides configuration loading and management for the application.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Cache backend names
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	// Upstream GraphQL data source
	GraphQLURL     string
	GraphQLAPIKey  string
	RequestTimeout time.Duration
	RetryMax       int
	RateLimitRPS   float64
	RateLimitBurst int

	// Cache TTLs and backend selection
	RiskCacheTTL       time.Duration
	PortfolioCacheTTL  time.Duration
	CacheBackend       string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	CacheSweepSchedule string

	// Invalidation events, disabled when NATSURL is empty
	NATSURL     string
	NATSSubject string

	// Circuit breaker settings
	CircuitFailureThreshold int
	CircuitResetDelay       time.Duration

	// Portfolio defaults
	RiskFreeRate       float64
	RebalanceThreshold float64

	// OpenTelemetry export, disabled when OtelEndpoint is empty
	OtelEndpoint    string
	OtelInsecure    bool
	OtelSampleRatio float64

	LogLevel  string
	LogFormat string
}

// Load creates a new Config from environment variables
func Load() Config {
	return Config{
		Port:                    GetEnvOrDefault("PORT", "8080"),
		GraphQLURL:              GetEnvOrDefault("GRAPHQL_URL", "https://api.lagoon.finance/query"),
		GraphQLAPIKey:           GetEnvOrDefault("GRAPHQL_API_KEY", ""),
		RequestTimeout:          GetEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second),
		RetryMax:                GetEnvAsInt("UPSTREAM_RETRY_MAX", 0),
		RateLimitRPS:            GetEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:          GetEnvAsInt("RATE_LIMIT_BURST", 20),
		RiskCacheTTL:            GetEnvAsDuration("RISK_CACHE_TTL", 15*time.Minute),
		PortfolioCacheTTL:       GetEnvAsDuration("PORTFOLIO_CACHE_TTL", 10*time.Minute),
		CacheBackend:            strings.ToLower(GetEnvOrDefault("CACHE_BACKEND", BackendMemory)),
		RedisAddr:               GetEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:           GetEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:                 GetEnvAsInt("REDIS_DB", 0),
		CacheSweepSchedule:      GetEnvOrDefault("CACHE_SWEEP_SCHEDULE", "@every 1m"),
		NATSURL:                 GetEnvOrDefault("NATS_URL", ""),
		NATSSubject:             GetEnvOrDefault("NATS_SUBJECT", "vaults.events"),
		CircuitFailureThreshold: GetEnvAsInt("CIRCUIT_FAILURE_THRESHOLD", 5),
		CircuitResetDelay:       GetEnvAsDuration("CIRCUIT_RESET_DELAY", 30*time.Second),
		RiskFreeRate:            GetEnvAsFloat("RISK_FREE_RATE", 0.02),
		RebalanceThreshold:      GetEnvAsFloat("REBALANCE_THRESHOLD", 5),
		OtelEndpoint:            GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OtelInsecure:            GetEnvAsBool("OTEL_INSECURE", true),
		OtelSampleRatio:         GetEnvAsFloat("OTEL_SAMPLE_RATIO", 1),
		LogLevel:                strings.ToLower(GetEnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:               strings.ToLower(GetEnvOrDefault("LOG_FORMAT", "text")),
	}
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a bool with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
