package handlers

import (
	"net/http"

	"github.com/bugbase/bugbase/internal/api"
	"github.com/bugbase/bugbase/internal/database"
)

// HTTPHandler handles non-API HTTP endpoints
type HTTPHandler struct{}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler() *HTTPHandler {
	return &HTTPHandler{}
}

// SetupRoutes configures all HTTP routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
}

// handleHealth returns a simple health check response. The database ping is
// included so load balancers catch a lost connection pool.
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	if db := database.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	api.RespondJSON(w, code, map[string]string{"status": status})
}
