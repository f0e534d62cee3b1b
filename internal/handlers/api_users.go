package handlers

import (
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/bugbase/bugbase/internal/api"
	"github.com/bugbase/bugbase/internal/database"
)

// handleListUsers handles GET /api/users
func (h *APIHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	var users []database.User
	if err := database.GetDB().WithContext(r.Context()).Order("created_at ASC").Find(&users).Error; err != nil {
		api.RespondDomainError(w, err, h.production)
		return
	}

	out := make([]api.UserResponse, len(users))
	for i, u := range users {
		out[i] = api.UserToResponse(u)
	}
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{"users": out})
}

// handleCreateUser handles POST /api/users
func (h *APIHandler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req api.CreateUserRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	db := database.GetDB().WithContext(r.Context())

	var existing database.User
	err := db.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		api.RespondError(w, http.StatusConflict, "user with this email already exists")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		api.RespondDomainError(w, err, h.production)
		return
	}

	user := database.User{Email: req.Email, Name: req.Name}
	if err := db.Create(&user).Error; err != nil {
		api.RespondDomainError(w, err, h.production)
		return
	}

	api.RespondJSON(w, http.StatusCreated, api.UserToResponse(user))
}
