package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/bugbase/bugbase/internal/database"
	"github.com/bugbase/bugbase/internal/domain"
)

// MaxBulkUpdateBugs bounds how many bugs one bulk update may touch
const MaxBulkUpdateBugs = 20

// FieldChange is one before/after pair in a bulk update diff
type FieldChange struct {
	From interface{} `json:"from"`
	To   interface{} `json:"to"`
}

// BugChange is the per-bug diff produced by a bulk update
type BugChange struct {
	ID      string                 `json:"id"`
	Title   string                 `json:"title"`
	Changes map[string]FieldChange `json:"changes"`
}

// UpdateService applies classification changes to batches of bugs
type UpdateService struct {
	db *gorm.DB
}

// NewUpdateService creates a new update service
func NewUpdateService(db *gorm.DB) *UpdateService {
	return &UpdateService{db: db}
}

// BulkUpdate sets severity/area/status on 1-20 bugs at once. At least one
// field must be provided; this is checked before any database access. Every
// id must resolve before any change is applied, and missing ids are reported
// together. All bugs update inside a single transaction, so a failure midway
// leaves nothing changed.
func (s *UpdateService) BulkUpdate(ctx context.Context, bugIDs []string, input UpdateBugInput) ([]BugChange, error) {
	if input.Severity == nil && input.Area == nil && input.Status == nil {
		return nil, domain.NewValidationError("at least one of severity, area or status must be provided")
	}
	if len(bugIDs) < 1 || len(bugIDs) > MaxBulkUpdateBugs {
		return nil, domain.NewValidationError("between 1 and %d bugs can be updated at once, got %d", MaxBulkUpdateBugs, len(bugIDs))
	}
	seen := make(map[string]bool, len(bugIDs))
	for _, id := range bugIDs {
		if seen[id] {
			return nil, domain.NewValidationError("bug ids must be unique")
		}
		seen[id] = true
	}

	var bugs []database.Bug
	if err := s.db.WithContext(ctx).Where("id IN ?", bugIDs).Find(&bugs).Error; err != nil {
		return nil, err
	}
	if len(bugs) != len(bugIDs) {
		found := make(map[string]bool, len(bugs))
		for _, b := range bugs {
			found[b.ID] = true
		}
		var missing []string
		for _, id := range bugIDs {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, domain.NewNotFoundError("bug", missing...)
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

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&database.Bug{}).Where("id IN ?", bugIDs).Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update bugs: %w", result.Error)
		}
		if result.RowsAffected != int64(len(bugIDs)) {
			return fmt.Errorf("expected to update %d bugs, updated %d", len(bugIDs), result.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Build the diff from the pre-update rows, in the caller's id order
	byID := make(map[string]database.Bug, len(bugs))
	for _, b := range bugs {
		byID[b.ID] = b
	}

	changes := make([]BugChange, len(bugIDs))
	for i, id := range bugIDs {
		old := byID[id]
		change := BugChange{
			ID:      old.ID,
			Title:   old.Title,
			Changes: map[string]FieldChange{},
		}
		if input.Severity != nil {
			change.Changes["severity"] = FieldChange{From: nullable(old.Severity), To: *input.Severity}
		}
		if input.Area != nil {
			change.Changes["area"] = FieldChange{From: nullable(old.Area), To: *input.Area}
		}
		if input.Status != nil {
			change.Changes["status"] = FieldChange{From: old.Status, To: *input.Status}
		}
		changes[i] = change
	}
	return changes, nil
}

// nullable unwraps an optional enum for JSON diff output
func nullable[T ~string](v *T) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
