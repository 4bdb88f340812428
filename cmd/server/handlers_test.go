package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/yourorg/vault-risk-engine/internal/circuitbreaker"
	"github.com/yourorg/vault-risk-engine/internal/fetch"
	"github.com/yourorg/vault-risk-engine/internal/model"
	"github.com/yourorg/vault-risk-engine/internal/tools"
	"github.com/yourorg/vault-risk-engine/internal/validation"
)

type fakeTools struct {
	riskErr   error
	found     bool
	lastRisk  tools.RiskRequest
	lastTag   string
	lastKey   string
	riskCalls int
}

func (f *fakeTools) AnalyzeRisk(_ context.Context, req tools.RiskRequest) (tools.RiskResult, error) {
	f.riskCalls++
	f.lastRisk = req
	if f.riskErr != nil {
		return tools.RiskResult{}, f.riskErr
	}
	if !f.found {
		return tools.RiskResult{}, nil
	}
	return tools.RiskResult{Found: true, Analysis: &model.RiskAnalysis{Address: req.Address, RiskLevel: model.RiskLow}}, nil
}

func (f *fakeTools) AnalyzeRisks(context.Context, tools.BatchRequest) (model.BatchRiskAnalysisResult, error) {
	return model.BatchRiskAnalysisResult{Results: []model.VaultRiskResult{}}, nil
}

func (f *fakeTools) OptimizePortfolio(context.Context, tools.PortfolioRequest) (model.PortfolioOptimization, error) {
	return model.PortfolioOptimization{}, fmt.Errorf("%w: 0xdead", tools.ErrVaultNotFound)
}

func (f *fakeTools) InvalidateTag(_ context.Context, tag string) (int, error) {
	f.lastTag = tag
	return 3, nil
}

func (f *fakeTools) InvalidateKey(_ context.Context, key string) (bool, error) {
	f.lastKey = key
	return false, nil
}

func (f *fakeTools) CacheStats(context.Context) (tools.CacheStats, error) {
	return tools.CacheStats{IndexedKeys: 2}, nil
}

func newTestRouter(f *fakeTools, limit rate.Limit, burst int) http.Handler {
	return newRouter(f, prometheus.NewRegistry(), rate.NewLimiter(limit, burst))
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeRiskEndpoint(t *testing.T) {
	f := &fakeTools{found: true}
	h := newTestRouter(f, rate.Inf, 1)

	rec := post(t, h, "/v1/risk", `{"chainId":1,"address":"0xabc","includeComparative":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.Equal(t, "0xabc", f.lastRisk.Address)
	assert.True(t, f.lastRisk.IncludeComparative)

	var res tools.RiskResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Found)
	assert.Equal(t, model.RiskLow, res.Analysis.RiskLevel)
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newTestRouter(&fakeTools{found: true}, rate.Inf, 1)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		found bool
		body  string
		want  int
	}{
		{"not found", nil, false, `{"chainId":1,"address":"0xabc"}`, http.StatusNotFound},
		{"invalid", fmt.Errorf("%w: bad address", validation.ErrInvalidRequest), true, `{"chainId":1,"address":"x"}`, http.StatusBadRequest},
		{"breaker open", circuitbreaker.ErrOpen, true, `{"chainId":1,"address":"0xabc"}`, http.StatusServiceUnavailable},
		{"upstream", fmt.Errorf("fetch vault: %w", fetch.ErrMalformedResponse), true, `{"chainId":1,"address":"0xabc"}`, http.StatusBadGateway},
		{"unknown field", nil, true, `{"chain":1}`, http.StatusBadRequest},
		{"bad json", nil, true, `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&fakeTools{riskErr: tt.err, found: tt.found}, rate.Inf, 1)
			rec := post(t, h, "/v1/risk", tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	h := newTestRouter(&fakeTools{}, rate.Inf, 1)
	rec := post(t, h, "/v1/portfolio/optimize", `{"chainId":1,"vaults":[]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidateEndpoint(t *testing.T) {
	f := &fakeTools{}
	h := newTestRouter(f, rate.Inf, 1)

	rec := post(t, h, "/v1/cache/invalidate", `{"tag":"vault"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "vault", f.lastTag)
	assert.Contains(t, rec.Body.String(), `"invalidated":3`)

	rec = post(t, h, "/v1/cache/invalidate", `{"key":"risk:1:0xa:detailed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "risk:1:0xa:detailed", f.lastKey)
	assert.Contains(t, rec.Body.String(), `"existed":false`)

	assert.Equal(t, http.StatusBadRequest, post(t, h, "/v1/cache/invalidate", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, h, "/v1/cache/invalidate", `{"tag":"vault","key":"k"}`).Code)
}

func TestCacheStatsEndpoint(t *testing.T) {
	h := newTestRouter(&fakeTools{}, rate.Inf, 1)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/cache/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"indexedKeys":2`)
}

func TestRateLimit(t *testing.T) {
	f := &fakeTools{found: true}
	h := newTestRouter(f, rate.Limit(0.001), 1)

	assert.Equal(t, http.StatusOK, post(t, h, "/v1/risk", `{"chainId":1,"address":"0xabc"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(t, h, "/v1/risk", `{"chainId":1,"address":"0xabc"}`).Code)
	assert.Equal(t, 1, f.riskCalls)
}
