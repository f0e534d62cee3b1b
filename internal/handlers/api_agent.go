package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bugbase/bugbase/internal/agent"
	"github.com/bugbase/bugbase/internal/api"
)

// handleListTools handles GET /api/agent/tools
func (h *APIHandler) handleListTools(w http.ResponseWriter, r *http.Request) {
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"tools": agent.Descriptors(),
	})
}

// handleInvokeTool handles POST /api/agent/tools/{name}. Gated tools return
// 202 with the pending operation; everything else runs synchronously.
func (h *APIHandler) handleInvokeTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req api.InvokeToolRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	input, err := json.Marshal(req.Input)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, "invalid tool input")
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), req.SessionID, name, input)
	if err != nil {
		api.RespondDomainError(w, err, h.production)
		return
	}

	if pending, ok := result.(*agent.PendingResult); ok {
		api.RespondJSON(w, http.StatusAccepted, pending)
		return
	}
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{"result": result})
}

// handleListApprovals handles GET /api/agent/approvals
func (h *APIHandler) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"operations": h.dispatcher.Gate.List(),
	})
}

// handleGetApproval handles GET /api/agent/approvals/{id}
func (h *APIHandler) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	op, err := h.dispatcher.Gate.Get(r.PathValue("id"))
	if err != nil {
		api.RespondDomainError(w, err, h.production)
		return
	}
	api.RespondJSON(w, http.StatusOK, op)
}

// handleResolveApproval handles POST /api/agent/approvals/{id}. Approving
// executes the gated operation before responding, so the caller sees the
// final state and result in one round trip.
func (h *APIHandler) handleResolveApproval(w http.ResponseWriter, r *http.Request) {
	var req api.ResolveApprovalRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	op, err := h.dispatcher.Gate.Resolve(r.Context(), r.PathValue("id"), req.Approved)
	if err != nil {
		api.RespondDomainError(w, err, h.production)
		return
	}
	api.RespondJSON(w, http.StatusOK, op)
}
