package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/vault-risk-engine/internal/circuitbreaker"
	"github.com/yourorg/vault-risk-engine/internal/tools"
	"github.com/yourorg/vault-risk-engine/internal/validation"
)

// Helper functions for request decoding and JSON responses

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every error response
type errorBody struct {
	Status    string `json:"status"`
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// decodeJSON reads the request body into dst, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", validation.ErrInvalidRequest, err)
	}
	return nil
}

// writeJSON sends v with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("Failed to write response: %v", err)
	}
}

// errorResponse writes a JSON error with the request id attached
func errorResponse(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorBody{
		Status:    "error",
		Error:     msg,
		RequestID: requestIDFrom(r.Context()),
	})
}

// statusFor maps tool errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, validation.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, tools.ErrVaultNotFound):
		return http.StatusNotFound
	case errors.Is(err, circuitbreaker.ErrOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// fail logs err and writes the matching error response
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	entry := logrus.WithFields(logrus.Fields{
		"path":       r.URL.Path,
		"status":     status,
		"request_id": requestIDFrom(r.Context()),
	})
	if status >= http.StatusInternalServerError {
		entry.Warnf("Request failed: %v", err)
	} else {
		entry.Debugf("Request rejected: %v", err)
	}
	errorResponse(w, r, status, err.Error())
}
