// Package fetch provides the GraphQL client and the typed vault repository
// used to read vault state from the upstream data source.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/yourorg/vault-risk-engine/internal/circuitbreaker"
	"github.com/yourorg/vault-risk-engine/internal/config"
	"github.com/yourorg/vault-risk-engine/internal/metrics"
	"github.com/yourorg/vault-risk-engine/internal/otel"
)

var (
	// ErrUpstream is returned for non-200 responses and GraphQL errors
	ErrUpstream = errors.New("upstream data source error")

	// ErrMalformedResponse is returned when an expected structure is
	// missing or null. A legitimately empty collection is not malformed.
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// Querier executes a GraphQL query and decodes its data into out
type Querier interface {
	Query(ctx context.Context, operation, query string, variables map[string]any, out any) error
}

// GraphQLClient talks to the upstream GraphQL endpoint
type GraphQLClient struct {
	url        string
	apiKey     string
	httpClient *retryablehttp.Client
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
	metrics    *metrics.Metrics
}

// NewGraphQLClient creates a client from the configuration. breaker and m may be nil.
func NewGraphQLClient(cfg config.Config, breaker *circuitbreaker.CircuitBreaker, m *metrics.Metrics) *GraphQLClient {
	rc := newRetryClient(cfg.RetryMax)
	rc.HTTPClient.Timeout = cfg.RequestTimeout

	return &GraphQLClient{
		url:        cfg.GraphQLURL,
		apiKey:     cfg.GraphQLAPIKey,
		httpClient: rc,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		breaker:    breaker,
		metrics:    m,
	}
}

// WithRetryMax sets how many times a failed request is retried
func (c *GraphQLClient) WithRetryMax(n int) *GraphQLClient {
	c.httpClient.RetryMax = n
	return c
}

// newRetryClient creates the upstream HTTP client. Failures surface to the
// caller as they happen unless retryMax is raised; then only transport
// errors and 5xx responses are retried.
func newRetryClient(retryMax int) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = nil
	return c
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Query sends query with variables and decodes the data member into out
func (c *GraphQLClient) Query(ctx context.Context, operation, query string, variables map[string]any, out any) error {
	ctx, span := otel.Tracer().Start(ctx, "graphql."+operation)
	defer span.End()
	span.SetAttributes(attribute.String("graphql.operation", operation))

	started := time.Now()
	err := c.guard(func() error {
		return c.do(ctx, query, variables, out)
	})
	c.metrics.ObserveUpstream(operation, started, err)

	if err != nil {
		otel.RecordError(ctx, err)
		logrus.WithField("operation", operation).Warnf("Upstream query failed: %v", err)
		return err
	}
	return nil
}

func (c *GraphQLClient) guard(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Execute(fn)
}

func (c *GraphQLClient) do(ctx context.Context, query string, variables map[string]any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d, body: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var envelope graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrMalformedResponse, err)
	}

	if len(envelope.Errors) > 0 {
		msgs := make([]string, len(envelope.Errors))
		for i, e := range envelope.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("%w: %s", ErrUpstream, strings.Join(msgs, "; "))
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return fmt.Errorf("%w: response has no data", ErrMalformedResponse)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("%w: failed to decode data: %v", ErrMalformedResponse, err)
	}
	return nil
}
