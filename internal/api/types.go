package api

import (
	"time"

	"github.com/bugbase/bugbase/internal/database"
	"github.com/bugbase/bugbase/internal/services"
)

// ========== Bug Types ==========

// CreateBugRequest is the request body for POST /api/bugs.
type CreateBugRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=256"`
	Description string `json:"description" validate:"required,min=1"`
	UserID      string `json:"user_id" validate:"required"`
}

// UpdateBugRequest is the request body for PATCH /api/bugs/{id}.
// At least one field must be present.
type UpdateBugRequest struct {
	Severity *string `json:"severity" validate:"omitempty,oneof=S0 S1 S2 S3"`
	Area     *string `json:"area" validate:"omitempty,oneof=FRONTEND BACKEND INFRA DATA"`
	Status   *string `json:"status" validate:"omitempty,oneof=OPEN IN_PROGRESS RESOLVED CLOSED"`
}

// BugResponse is a bug as returned by the API. The embedding never leaves
// the process.
type BugResponse struct {
	ID                string             `json:"id"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Severity          *database.Severity `json:"severity"`
	Area              *database.Area     `json:"area"`
	SuggestedSeverity *database.Severity `json:"suggested_severity"`
	SuggestedArea     *database.Area     `json:"suggested_area"`
	Status            database.BugStatus `json:"status"`
	CreatedByID       string             `json:"created_by_id"`
	CreatedByName     string             `json:"created_by_name,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// SimilarBugResponse is one nearest neighbor of a bug or search query.
type SimilarBugResponse struct {
	Bug   BugResponse `json:"bug"`
	Score float64     `json:"similarity_score"`
	Label string      `json:"label"`
}

// BugWithSimilarResponse is the response body for bug creation and detail
// endpoints, carrying the bug plus its nearest neighbors.
type BugWithSimilarResponse struct {
	Bug     BugResponse          `json:"bug"`
	Similar []SimilarBugResponse `json:"similar_bugs"`
}

// BugListResponse is the paginated response body for GET /api/bugs.
type BugListResponse struct {
	Bugs    []BugResponse `json:"bugs"`
	Page    int           `json:"page"`
	PerPage int           `json:"per_page"`
}

// SearchBugsRequest is the request body for POST /api/bugs/search.
type SearchBugsRequest struct {
	Query    string  `json:"query" validate:"required,min=1"`
	Severity *string `json:"severity" validate:"omitempty,oneof=S0 S1 S2 S3"`
	Area     *string `json:"area" validate:"omitempty,oneof=FRONTEND BACKEND INFRA DATA"`
	Status   *string `json:"status" validate:"omitempty,oneof=OPEN IN_PROGRESS RESOLVED CLOSED"`
	Limit    *int    `json:"limit" validate:"omitempty,min=1,max=50"`
}

// ========== Comment Types ==========

// CreateCommentRequest is the request body for POST /api/bugs/{id}/comments.
type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,min=1"`
	UserID  string `json:"user_id" validate:"required"`
}

// CommentResponse is a comment as returned by the API.
type CommentResponse struct {
	ID        string    `json:"id"`
	BugID     string    `json:"bug_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ========== User Types ==========

// CreateUserRequest is the request body for POST /api/users.
type CreateUserRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required,min=1,max=128"`
}

// UserResponse is a user as returned by the API.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ========== Chat Types ==========

// CreateChatSessionRequest is the request body for POST /api/chat/sessions.
type CreateChatSessionRequest struct {
	Title string `json:"title" validate:"omitempty,max=256"`
}

// AppendChatMessageRequest is the request body for POST /api/chat/sessions/{id}/messages.
type AppendChatMessageRequest struct {
	Role    string  `json:"role" validate:"required,oneof=user assistant tool"`
	Content string  `json:"content" validate:"required"`
	UserID  *string `json:"user_id"`
}

// ========== Agent Types ==========

// InvokeToolRequest is the request body for POST /api/agent/tools/{name}.
type InvokeToolRequest struct {
	SessionID string                 `json:"session_id"`
	Input     map[string]interface{} `json:"input"`
}

// ResolveApprovalRequest is the request body for POST /api/agent/approvals/{id}.
type ResolveApprovalRequest struct {
	Approved bool `json:"approved"`
}

// Fields converts the request body into the services-layer update input.
func (r UpdateBugRequest) Fields() services.UpdateBugInput {
	return services.UpdateBugInput{
		Severity: (*database.Severity)(r.Severity),
		Area:     (*database.Area)(r.Area),
		Status:   (*database.BugStatus)(r.Status),
	}
}
