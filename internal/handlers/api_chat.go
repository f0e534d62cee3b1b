package handlers

import (
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/bugbase/bugbase/internal/api"
	"github.com/bugbase/bugbase/internal/database"
)

// handleListChatSessions handles GET /api/chat/sessions
func (h *APIHandler) handleListChatSessions(w http.ResponseWriter, r *http.Request) {
	var sessions []database.ChatSession
	err := database.GetDB().WithContext(r.Context()).
		Order("updated_at DESC").
		Find(&sessions).Error
	if err != nil {
		api.RespondDomainError(w, err, h.production)
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// handleCreateChatSession handles POST /api/chat/sessions
func (h *APIHandler) handleCreateChatSession(w http.ResponseWriter, r *http.Request) {
	var req api.CreateChatSessionRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	session := database.ChatSession{}
	if req.Title != "" {
		session.Title = &req.Title
	}
	if err := database.GetDB().WithContext(r.Context()).Create(&session).Error; err != nil {
		api.RespondDomainError(w, err, h.production)
		return
	}

	api.RespondJSON(w, http.StatusCreated, session)
}

// handleListChatMessages handles GET /api/chat/sessions/{id}/messages
func (h *APIHandler) handleListChatMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	db := database.GetDB().WithContext(r.Context())

	var session database.ChatSession
	if err := db.First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "chat session not found: "+sessionID)
			return
		}
		api.RespondDomainError(w, err, h.production)
		return
	}

	var messages []database.ChatMessage
	err := db.Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		api.RespondDomainError(w, err, h.production)
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

// handleAppendChatMessage handles POST /api/chat/sessions/{id}/messages
func (h *APIHandler) handleAppendChatMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req api.AppendChatMessageRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	db := database.GetDB().WithContext(r.Context())

	var session database.ChatSession
	if err := db.First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "chat session not found: "+sessionID)
			return
		}
		api.RespondDomainError(w, err, h.production)
		return
	}

	message := database.ChatMessage{
		Role:        database.MessageRole(req.Role),
		Content:     req.Content,
		SessionID:   sessionID,
		CreatedByID: req.UserID,
	}
	if err := db.Create(&message).Error; err != nil {
		api.RespondDomainError(w, err, h.production)
		return
	}

	// Touch the session so ordering by recency stays correct
	if err := db.Model(&session).Update("updated_at", message.CreatedAt).Error; err != nil {
		api.RespondDomainError(w, err, h.production)
		return
	}

	api.RespondJSON(w, http.StatusCreated, message)
}
