// Package handlers wires the HTTP surface: REST endpoints for bugs,
// comments, users and chat sessions, the agent tool endpoints with their
// approval workflow, and the event stream WebSocket.
package handlers

import (
	"net/http"

	"github.com/bugbase/bugbase/internal/agent"
	"github.com/bugbase/bugbase/internal/services"
)

// APIHandler handles the JSON API consumed by the UI and the agent runtime
type APIHandler struct {
	bugService *services.BugService
	similarity *services.SimilarityService
	dispatcher *agent.Dispatcher
	production bool
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(bugService *services.BugService, similarity *services.SimilarityService, dispatcher *agent.Dispatcher, production bool) *APIHandler {
	return &APIHandler{
		bugService: bugService,
		similarity: similarity,
		dispatcher: dispatcher,
		production: production,
	}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Bugs
	mux.HandleFunc("GET /api/bugs", h.handleListBugs)
	mux.HandleFunc("POST /api/bugs", h.handleCreateBug)
	mux.HandleFunc("GET /api/bugs/{id}", h.handleGetBug)
	mux.HandleFunc("PATCH /api/bugs/{id}", h.handleUpdateBug)
	mux.HandleFunc("GET /api/bugs/{id}/similar", h.handleSimilarBugs)
	mux.HandleFunc("POST /api/bugs/search", h.handleSearchBugs)

	// Comments
	mux.HandleFunc("GET /api/bugs/{id}/comments", h.handleListComments)
	mux.HandleFunc("POST /api/bugs/{id}/comments", h.handleCreateComment)

	// Users
	mux.HandleFunc("GET /api/users", h.handleListUsers)
	mux.HandleFunc("POST /api/users", h.handleCreateUser)

	// Chat sessions
	mux.HandleFunc("GET /api/chat/sessions", h.handleListChatSessions)
	mux.HandleFunc("POST /api/chat/sessions", h.handleCreateChatSession)
	mux.HandleFunc("GET /api/chat/sessions/{id}/messages", h.handleListChatMessages)
	mux.HandleFunc("POST /api/chat/sessions/{id}/messages", h.handleAppendChatMessage)

	// Agent tool surface
	mux.HandleFunc("GET /api/agent/tools", h.handleListTools)
	mux.HandleFunc("POST /api/agent/tools/{name}", h.handleInvokeTool)
	mux.HandleFunc("GET /api/agent/approvals", h.handleListApprovals)
	mux.HandleFunc("GET /api/agent/approvals/{id}", h.handleGetApproval)
	mux.HandleFunc("POST /api/agent/approvals/{id}", h.handleResolveApproval)
}
