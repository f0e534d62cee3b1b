package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bugbase/bugbase/internal/domain"
)

func TestRespondDomainErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.NewValidationError("bad input"), http.StatusBadRequest, "validation_error"},
		{domain.NewNotFoundError("bug", "x"), http.StatusNotFound, "not_found"},
		{domain.NewProviderError("embedding", errors.New("down")), http.StatusBadGateway, "provider_error"},
		{&domain.MergeFailedError{Err: errors.New("rollback")}, http.StatusInternalServerError, "merge_failed"},
		{errors.New("something else"), http.StatusInternalServerError, "internal_error"},
	}

	for _, c := range cases {
		rec := httptest.NewRecorder()
		RespondDomainError(rec, c.err, false)
		if rec.Code != c.status {
			t.Errorf("%v: expected status %d, got %d", c.err, c.status, rec.Code)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%v: response is not JSON: %v", c.err, err)
		}
		if resp.Code != c.code {
			t.Errorf("%v: expected code %q, got %q", c.err, c.code, resp.Code)
		}
	}
}

func TestRespondDomainErrorRedactsInProduction(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondDomainError(rec, domain.NewProviderError("embedding", errors.New("api key sk-secret")), true)

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.Error != "AI service temporarily unavailable" {
		t.Errorf("production errors must be redacted, got %q", resp.Error)
	}
}

func TestRespondDomainErrorWrapped(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), domain.NewNotFoundError("bug", "b1"))
	rec := httptest.NewRecorder()
	RespondDomainError(rec, wrapped, false)
	if rec.Code != http.StatusNotFound {
		t.Errorf("wrapped NotFoundError must map to 404, got %d", rec.Code)
	}
}
