package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/bugbase/bugbase/internal/database"
	"github.com/bugbase/bugbase/internal/domain"
	"github.com/bugbase/bugbase/internal/llm"
)

// SimilarOnCreateLimit is how many similar bugs are surfaced alongside a
// newly created or viewed bug
const SimilarOnCreateLimit = 5

// CreateBugInput is the validated input for filing a new bug
type CreateBugInput struct {
	Title       string
	Description string
	UserID      string
}

// UpdateBugInput carries the optional classification fields a bug update may
// set. Nil fields are left untouched.
type UpdateBugInput struct {
	Severity *database.Severity
	Area     *database.Area
	Status   *database.BugStatus
}

// BugFilters restrict bug listing
type BugFilters struct {
	Severity *database.Severity
	Area     *database.Area
	Status   *database.BugStatus
}

// BugService handles bug and comment CRUD plus the best-effort AI pipeline
// that runs on creation.
type BugService struct {
	db         *gorm.DB
	embedder   EmbeddingProvider
	classifier BugClassifier
	similarity *SimilarityService
	notifier   Notifier
}

// NewBugService creates a new bug service. The embedder and classifier may be
// nil, in which case new bugs are stored without embeddings or suggestions.
func NewBugService(db *gorm.DB, embedder EmbeddingProvider, classifier BugClassifier, similarity *SimilarityService, notifier Notifier) *BugService {
	return &BugService{
		db:         db,
		embedder:   embedder,
		classifier: classifier,
		similarity: similarity,
		notifier:   notifier,
	}
}

// Create files a new bug. The embedding and suggested classification are
// computed best-effort: any AI failure is logged and leaves the fields null,
// it never fails the creation. Returns the created bug plus its nearest
// neighbors (empty when no embedding could be computed).
func (s *BugService) Create(ctx context.Context, input CreateBugInput) (*database.Bug, []Neighbor, error) {
	var user database.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", input.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domain.NewNotFoundError("user", input.UserID)
		}
		return nil, nil, err
	}

	bug := database.Bug{
		Title:       input.Title,
		Description: input.Description,
		Status:      database.BugStatusOpen,
		CreatedByID: input.UserID,
	}

	if s.embedder != nil {
		vec, err := s.embedder.Generate(ctx, llm.FormatBugText(input.Title, input.Description))
		if err != nil {
			log.Printf("Embedding generation failed during bug creation: %v", err)
		} else {
			bug.Embedding = &vec
		}
	}

	if s.classifier != nil {
		classification, err := s.classifier.Classify(ctx, input.Title, input.Description)
		if err != nil {
			log.Printf("Classification failed during bug creation: %v", err)
		} else {
			bug.SuggestedSeverity = &classification.Severity
			bug.SuggestedArea = &classification.Area
		}
	}

	if err := s.db.WithContext(ctx).Create(&bug).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create bug: %w", err)
	}

	var similar []Neighbor
	if bug.Embedding != nil && s.similarity != nil {
		neighbors, err := s.similarity.NearestNeighbors(ctx, *bug.Embedding, bug.ID, SimilarityFilters{}, SimilarOnCreateLimit)
		if err != nil {
			log.Printf("Similar-bug lookup failed after creation of %s: %v", bug.ID, err)
		} else {
			similar = neighbors
		}
	}

	if s.notifier != nil {
		s.notifier.BugCreated(&bug)
	}

	return &bug, similar, nil
}

// Get returns one bug with its reporter and nearest neighbors. Similarity
// failures degrade to an empty list rather than failing the page.
func (s *BugService) Get(ctx context.Context, id string) (*database.Bug, []Neighbor, error) {
	var bug database.Bug
	err := s.db.WithContext(ctx).Preload("CreatedBy").First(&bug, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domain.NewNotFoundError("bug", id)
		}
		return nil, nil, err
	}

	var similar []Neighbor
	if bug.Embedding != nil && s.similarity != nil {
		neighbors, err := s.similarity.NearestNeighbors(ctx, *bug.Embedding, bug.ID, SimilarityFilters{}, SimilarOnCreateLimit)
		if err != nil {
			log.Printf("Similar-bug lookup failed for %s: %v", bug.ID, err)
		} else {
			similar = neighbors
		}
	}
	bug.Embedding = nil

	return &bug, similar, nil
}

// List returns bugs matching the filters, newest first
func (s *BugService) List(ctx context.Context, filters BugFilters, limit, offset int) ([]database.Bug, error) {
	q := s.db.WithContext(ctx).Preload("CreatedBy").Order("created_at DESC")
	if filters.Severity != nil {
		q = q.Where("severity = ?", *filters.Severity)
	}
	if filters.Area != nil {
		q = q.Where("area = ?", *filters.Area)
	}
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}

	var bugs []database.Bug
	if err := q.Limit(limit).Offset(offset).Find(&bugs).Error; err != nil {
		return nil, fmt.Errorf("failed to list bugs: %w", err)
	}
	return bugs, nil
}

// Update sets confirmed severity/area/status on one bug. The AI-suggested
// fields are never touched here. The stored embedding is also untouched:
// classification changes do not alter the embedded text.
func (s *BugService) Update(ctx context.Context, id string, input UpdateBugInput) (*database.Bug, error) {
	if input.Severity == nil && input.Area == nil && input.Status == nil {
		return nil, domain.NewValidationError("at least one of severity, area or status must be provided")
	}

	var bug database.Bug
	if err := s.db.WithContext(ctx).First(&bug, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("bug", id)
		}
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Severity != nil {
		updates["severity"] = *input.Severity
	}
	if input.Area != nil {
		updates["area"] = *input.Area
	}
	if input.Status != nil {
		updates["status"] = *input.Status
	}

	if err := s.db.WithContext(ctx).Model(&bug).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update bug: %w", err)
	}
	bug.Embedding = nil
	return &bug, nil
}

// AddComment attaches a comment to a bug
func (s *BugService) AddComment(ctx context.Context, bugID, userID, content string) (*database.Comment, error) {
	var bug database.Bug
	if err := s.db.WithContext(ctx).Select("id").First(&bug, "id = ?", bugID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("bug", bugID)
		}
		return nil, err
	}

	comment := database.Comment{
		Content: content,
		BugID:   bugID,
		UserID:  userID,
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return &comment, nil
}

// ListComments returns a bug's comments oldest first
func (s *BugService) ListComments(ctx context.Context, bugID string) ([]database.Comment, error) {
	var comments []database.Comment
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("bug_id = ?", bugID).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}
