package handlers

import (
	"net/http"
	"strconv"

	"github.com/bugbase/bugbase/internal/api"
	"github.com/bugbase/bugbase/internal/database"
	"github.com/bugbase/bugbase/internal/services"
)

const defaultSimilarLimit = 5

// handleListBugs handles GET /api/bugs with optional severity/area/status filters
func (h *APIHandler) handleListBugs(w http.ResponseWriter, r *http.Request) {
	p := api.ParsePagination(r)
	filters, ok := parseBugFilters(w, r)
	if !ok {
		return
	}

	bugs, err := h.bugService.List(r.Context(), filters, p.PerPage, p.Offset())
	if err != nil {
		api.RespondDomainError(w, err, h.production)
		return
	}

	api.RespondJSON(w, http.StatusOK, api.BugListResponse{
		Bugs:    api.BugsToResponses(bugs),
		Page:    p.Page,
		PerPage: p.PerPage,
	})
}

// handleCreateBug handles POST /api/bugs
func (h *APIHandler) handleCreateBug(w http.ResponseWriter, r *http.Request) {
	var req api.CreateBugRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	bug, similar, err := h.bugService.Create(r.Context(), services.CreateBugInput{
		Title:       req.Title,
		Description: req.Description,
		UserID:      req.UserID,
	})
	if err != nil {
		api.RespondDomainError(w, err, h.production)
		return
	}

	api.RespondJSON(w, http.StatusCreated, api.BugWithSimilarResponse{
		Bug:     api.BugToResponse(*bug),
		Similar: api.NeighborsToResponses(similar),
	})
}

// handleGetBug handles GET /api/bugs/{id}
func (h *APIHandler) handleGetBug(w http.ResponseWriter, r *http.Request) {
	bug, similar, err := h.bugService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		api.RespondDomainError(w, err, h.production)
		return
	}

	api.RespondJSON(w, http.StatusOK, api.BugWithSimilarResponse{
		Bug:     api.BugToResponse(*bug),
		Similar: api.NeighborsToResponses(similar),
	})
}

// handleUpdateBug handles PATCH /api/bugs/{id}
func (h *APIHandler) handleUpdateBug(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateBugRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	bug, err := h.bugService.Update(r.Context(), r.PathValue("id"), req.Fields())
	if err != nil {
		api.RespondDomainError(w, err, h.production)
		return
	}

	api.RespondJSON(w, http.StatusOK, api.BugToResponse(*bug))
}

// handleSimilarBugs handles GET /api/bugs/{id}/similar
func (h *APIHandler) handleSimilarBugs(w http.ResponseWriter, r *http.Request) {
	limit := defaultSimilarLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	neighbors, err := h.similarity.FindSimilarToBug(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		api.RespondDomainError(w, err, h.production)
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"similar_bugs": api.NeighborsToResponses(neighbors),
	})
}

// handleSearchBugs handles POST /api/bugs/search (semantic search)
func (h *APIHandler) handleSearchBugs(w http.ResponseWriter, r *http.Request) {
	var req api.SearchBugsRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	limit := defaultSimilarLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	filters := services.SimilarityFilters{
		Severity: (*database.Severity)(req.Severity),
		Area:     (*database.Area)(req.Area),
		Status:   (*database.BugStatus)(req.Status),
	}

	neighbors, err := h.similarity.SearchByText(r.Context(), req.Query, filters, limit)
	if err != nil {
		api.RespondDomainError(w, err, h.production)
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"results": api.NeighborsToResponses(neighbors),
	})
}

// parseBugFilters reads severity/area/status query parameters. Invalid enum
// values fail the request instead of silently matching nothing.
func parseBugFilters(w http.ResponseWriter, r *http.Request) (services.BugFilters, bool) {
	var filters services.BugFilters
	q := r.URL.Query()

	if v := q.Get("severity"); v != "" {
		sev := database.Severity(v)
		if !database.ValidSeverity(sev) {
			api.RespondError(w, http.StatusBadRequest, "invalid severity "+strconv.Quote(v))
			return filters, false
		}
		filters.Severity = &sev
	}
	if v := q.Get("area"); v != "" {
		area := database.Area(v)
		if !database.ValidArea(area) {
			api.RespondError(w, http.StatusBadRequest, "invalid area "+strconv.Quote(v))
			return filters, false
		}
		filters.Area = &area
	}
	if v := q.Get("status"); v != "" {
		status := database.BugStatus(v)
		if !database.ValidBugStatus(status) {
			api.RespondError(w, http.StatusBadRequest, "invalid status "+strconv.Quote(v))
			return filters, false
		}
		filters.Status = &status
	}
	return filters, true
}
