package handlers

import (
	"net/http"

	"github.com/bugbase/bugbase/internal/api"
)

// handleListComments handles GET /api/bugs/{id}/comments
func (h *APIHandler) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.bugService.ListComments(r.Context(), r.PathValue("id"))
	if err != nil {
		api.RespondDomainError(w, err, h.production)
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"comments": api.CommentsToResponses(comments),
	})
}

// handleCreateComment handles POST /api/bugs/{id}/comments
func (h *APIHandler) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req api.CreateCommentRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	comment, err := h.bugService.AddComment(r.Context(), r.PathValue("id"), req.UserID, req.Content)
	if err != nil {
		api.RespondDomainError(w, err, h.production)
		return
	}

	api.RespondJSON(w, http.StatusCreated, api.CommentToResponse(*comment))
}
