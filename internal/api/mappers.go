package api

import (
	"github.com/bugbase/bugbase/internal/database"
	"github.com/bugbase/bugbase/internal/services"
)

// BugToResponse converts a database Bug to its API representation.
func BugToResponse(b database.Bug) BugResponse {
	resp := BugResponse{
		ID:                b.ID,
		Title:             b.Title,
		Description:       b.Description,
		Severity:          b.Severity,
		Area:              b.Area,
		SuggestedSeverity: b.SuggestedSeverity,
		SuggestedArea:     b.SuggestedArea,
		Status:            b.Status,
		CreatedByID:       b.CreatedByID,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
	if b.CreatedBy != nil {
		resp.CreatedByName = b.CreatedBy.Name
	}
	return resp
}

// BugsToResponses converts a slice of database Bugs.
func BugsToResponses(bugs []database.Bug) []BugResponse {
	out := make([]BugResponse, len(bugs))
	for i, b := range bugs {
		out[i] = BugToResponse(b)
	}
	return out
}

// NeighborToResponse converts a similarity neighbor to its API representation.
func NeighborToResponse(n services.Neighbor) SimilarBugResponse {
	return SimilarBugResponse{
		Bug:   BugToResponse(n.Bug),
		Score: n.Score,
		Label: n.Label(),
	}
}

// NeighborsToResponses converts a slice of similarity neighbors.
func NeighborsToResponses(neighbors []services.Neighbor) []SimilarBugResponse {
	out := make([]SimilarBugResponse, len(neighbors))
	for i, n := range neighbors {
		out[i] = NeighborToResponse(n)
	}
	return out
}

// CommentToResponse converts a database Comment to its API representation.
func CommentToResponse(c database.Comment) CommentResponse {
	resp := CommentResponse{
		ID:        c.ID,
		BugID:     c.BugID,
		UserID:    c.UserID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
	if c.User != nil {
		resp.UserName = c.User.Name
	}
	return resp
}

// CommentsToResponses converts a slice of database Comments.
func CommentsToResponses(comments []database.Comment) []CommentResponse {
	out := make([]CommentResponse, len(comments))
	for i, c := range comments {
		out[i] = CommentToResponse(c)
	}
	return out
}

// UserToResponse converts a database User to its API representation.
func UserToResponse(u database.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}
