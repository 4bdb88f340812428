package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/yourorg/vault-risk-engine/internal/tools"
	"github.com/yourorg/vault-risk-engine/internal/validation"
)

// invalidateRequest names either a tag or a single key
type invalidateRequest struct {
	Tag string `json:"tag,omitempty"`
	Key string `json:"key,omitempty"`
}

// health is a simple health check endpoint
func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"uptime":    time.Since(startTime).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// analyzeRisk serves POST /v1/risk. An unknown vault is a 404 carrying
// the found=false result.
func (h *handlers) analyzeRisk(w http.ResponseWriter, r *http.Request) {
	var req tools.RiskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.svc.AnalyzeRisk(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	status := http.StatusOK
	if !res.Found {
		status = http.StatusNotFound
	}
	writeJSON(w, status, res)
}

func (h *handlers) analyzeRisks(w http.ResponseWriter, r *http.Request) {
	var req tools.BatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.svc.AnalyzeRisks(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) optimizePortfolio(w http.ResponseWriter, r *http.Request) {
	var req tools.PortfolioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.svc.OptimizePortfolio(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) invalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}

	switch {
	case req.Tag != "" && req.Key != "":
		fail(w, r, fmt.Errorf("%w: give either tag or key", validation.ErrInvalidRequest))
	case req.Tag != "":
		n, err := h.svc.InvalidateTag(r.Context(), req.Tag)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tag": req.Tag, "invalidated": n})
	case req.Key != "":
		existed, err := h.svc.InvalidateKey(r.Context(), req.Key)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"key": req.Key, "existed": existed})
	default:
		fail(w, r, fmt.Errorf("%w: tag or key is required", validation.ErrInvalidRequest))
	}
}

func (h *handlers) cacheStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.CacheStats(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
