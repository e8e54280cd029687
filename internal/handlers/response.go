// Package handlers implements the HTTP endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/emadnahed/linkguard/internal/models"
	"github.com/emadnahed/linkguard/internal/security"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// mapErrorToResponse maps service errors to HTTP status codes and bodies.
// Validation messages are passed through; internal causes are not.
func mapErrorToResponse(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, security.ErrInvalidTarget):
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_URL",
		}
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error: "URL not found",
			Code:  "NOT_FOUND",
		}
	case errors.Is(err, models.ErrAllocationExhausted):
		return http.StatusInternalServerError, ErrorResponse{
			Error: "could not generate short code, try again",
			Code:  "ALLOCATION_EXHAUSTED",
		}
	case models.Unavailable(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, ErrorResponse{
			Error: "service temporarily unavailable",
			Code:  "STORE_UNAVAILABLE",
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		}
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
