package services

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/bugbase/bugbase/internal/database"
)

// MaxDetailBugs bounds how many bugs one details request may fetch
const MaxDetailBugs = 10

// detailSimilarLimit is how many neighbors each detail entry carries
const detailSimilarLimit = 3

// CommentDetail is one comment within a bug detail entry
type CommentDetail struct {
	Content   string    `json:"content"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// SimilarBugDetail is one neighbor within a bug detail entry
type SimilarBugDetail struct {
	ID       string             `json:"id"`
	Title    string             `json:"title"`
	Severity *database.Severity `json:"severity"`
	Area     *database.Area     `json:"area"`
	Status   database.BugStatus `json:"status"`
	Score    float64            `json:"similarity_score"`
	Label    string             `json:"label"`
}

// BugDetail is one entry of a details request. A bug that does not resolve
// produces an entry with only Error set instead of failing the whole request.
type BugDetail struct {
	ID                string             `json:"id,omitempty"`
	Title             string             `json:"title,omitempty"`
	Description       string             `json:"description,omitempty"`
	Severity          *database.Severity `json:"severity,omitempty"`
	Area              *database.Area     `json:"area,omitempty"`
	SuggestedSeverity *database.Severity `json:"suggested_severity,omitempty"`
	SuggestedArea     *database.Area     `json:"suggested_area,omitempty"`
	Status            database.BugStatus `json:"status,omitempty"`
	CreatedBy         string             `json:"created_by,omitempty"`
	CreatedAt         *time.Time         `json:"created_at,omitempty"`
	Comments          []CommentDetail    `json:"comments,omitempty"`
	SimilarBugs       []SimilarBugDetail `json:"similar_bugs,omitempty"`
	Error             string             `json:"error,omitempty"`
}

// GetDetails fetches detailed information for up to MaxDetailBugs bugs,
// optionally including comment threads and nearest neighbors. Similarity
// failures degrade per-bug to an empty list.
func (s *BugService) GetDetails(ctx context.Context, bugIDs []string, includeComments, includeSimilar bool) ([]BugDetail, error) {
	details := make([]BugDetail, 0, len(bugIDs))
	for _, bugID := range bugIDs {
		var bug database.Bug
		err := s.db.WithContext(ctx).Preload("CreatedBy").First(&bug, "id = ?", bugID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				details = append(details, BugDetail{Error: "bug " + bugID + " not found"})
				continue
			}
			return nil, err
		}

		createdAt := bug.CreatedAt
		detail := BugDetail{
			ID:                bug.ID,
			Title:             bug.Title,
			Description:       bug.Description,
			Severity:          bug.Severity,
			Area:              bug.Area,
			SuggestedSeverity: bug.SuggestedSeverity,
			SuggestedArea:     bug.SuggestedArea,
			Status:            bug.Status,
			CreatedAt:         &createdAt,
		}
		if bug.CreatedBy != nil {
			detail.CreatedBy = bug.CreatedBy.Name
		}

		if includeComments {
			comments, err := s.ListComments(ctx, bug.ID)
			if err != nil {
				return nil, err
			}
			detail.Comments = make([]CommentDetail, len(comments))
			for i, c := range comments {
				cd := CommentDetail{Content: c.Content, CreatedAt: c.CreatedAt}
				if c.User != nil {
					cd.User = c.User.Name
				}
				detail.Comments[i] = cd
			}
		}

		if includeSimilar && bug.Embedding != nil && s.similarity != nil {
			neighbors, err := s.similarity.NearestNeighbors(ctx, *bug.Embedding, bug.ID, SimilarityFilters{}, detailSimilarLimit)
			if err != nil {
				log.Printf("Similar-bug lookup failed for %s: %v", bug.ID, err)
			} else {
				detail.SimilarBugs = make([]SimilarBugDetail, len(neighbors))
				for i, n := range neighbors {
					detail.SimilarBugs[i] = SimilarBugDetail{
						ID:       n.Bug.ID,
						Title:    n.Bug.Title,
						Severity: n.Bug.Severity,
						Area:     n.Bug.Area,
						Status:   n.Bug.Status,
						Score:    n.Score,
						Label:    n.Label(),
					}
				}
			}
		}

		details = append(details, detail)
	}
	return details, nil
}
