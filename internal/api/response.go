// Package api holds the shared HTTP plumbing: JSON encoding, request
// decoding, validation, pagination, and the wire types exchanged with
// clients.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/bugbase/bugbase/internal/domain"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// RespondJSON writes data as a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Failed to encode JSON response: %v", err)
		}
	}
}

// RespondError writes a standard error response.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message})
}

// RespondValidationError writes field-level validation errors as a 422 response.
func RespondValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	RespondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "Validation failed",
		Code:    "validation_error",
		Details: fieldErrors,
	})
}

// RespondNoContent writes a 204 No Content response with no body.
func RespondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// RespondDomainError maps a domain error onto the HTTP surface. In
// production, messages are redacted before leaving the process; the full
// error is always logged server-side.
func RespondDomainError(w http.ResponseWriter, err error, production bool) {
	message := domain.Sanitize(err, production)

	var validationErr *domain.ValidationError
	var notFoundErr *domain.NotFoundError
	var providerErr *domain.ProviderError
	var mergeErr *domain.MergeFailedError

	switch {
	case errors.As(err, &validationErr):
		RespondJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "validation_error"})
	case errors.As(err, &notFoundErr):
		RespondJSON(w, http.StatusNotFound, ErrorResponse{Error: message, Code: "not_found"})
	case errors.As(err, &providerErr):
		RespondJSON(w, http.StatusBadGateway, ErrorResponse{Error: message, Code: "provider_error"})
	case errors.As(err, &mergeErr):
		log.Printf("Merge failed: %v", err)
		RespondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: message, Code: "merge_failed"})
	default:
		log.Printf("Unhandled error: %v", err)
		RespondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: message, Code: "internal_error"})
	}
}
