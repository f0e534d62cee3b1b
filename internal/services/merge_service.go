package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bugbase/bugbase/internal/database"
	"github.com/bugbase/bugbase/internal/domain"
	"github.com/bugbase/bugbase/internal/llm"
)

const (
	// MaxDuplicatesPerMerge bounds how many bugs one merge may consume
	MaxDuplicatesPerMerge = 10
	// previewDescriptionLimit bounds each description sent to the LLM so the
	// prompt stays a predictable size. Snapshots returned to callers are
	// always full and untruncated.
	previewDescriptionLimit = 1000
)

// BugSnapshot is the subset of a bug shown in a merge preview
type BugSnapshot struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Severity    *database.Severity `json:"severity"`
	Area        *database.Area     `json:"area"`
	Status      database.BugStatus `json:"status"`
}

// MergePreview is the advisory output of the preview builder. It is transient:
// it exists only for one approval round-trip and is never persisted. Building
// it performs no mutation, so it is safe to call repeatedly and speculatively.
type MergePreview struct {
	PrimaryBug        BugSnapshot   `json:"primary_bug"`
	DuplicateBugs     []BugSnapshot `json:"duplicate_bugs"`
	MergedTitle       string        `json:"merged_title"`
	MergedDescription string        `json:"merged_description"`
	CommentCount      int64         `json:"comment_count"`
}

// MergeInput is the operator-approved input to the merge executor. The merged
// content comes verbatim from an approved preview; the executor never
// re-derives it, so what the human approved is exactly what gets written.
type MergeInput struct {
	PrimaryBugID      string
	DuplicateBugIDs   []string
	MergedTitle       string
	MergedDescription string
	Reason            string
	MergedBy          string
}

// MergeResult reports what a completed merge did
type MergeResult struct {
	PrimaryBugID        string `json:"primary_bug_id"`
	MergedTitle         string `json:"merged_title"`
	MergedDescription   string `json:"merged_description"`
	DuplicatesRemoved   int    `json:"duplicates_removed"`
	CommentsTransferred int64  `json:"comments_transferred"`
}

// MergeService builds merge previews and executes approved merges
type MergeService struct {
	db        *gorm.DB
	completer CompletionProvider
	embedder  EmbeddingProvider
	notifier  Notifier
	model     string

	// beforeDelete is a test seam invoked inside the merge transaction after
	// comment reassignment and before duplicate deletion
	beforeDelete func(tx *gorm.DB) error
}

// NewMergeService creates a new merge service
func NewMergeService(db *gorm.DB, completer CompletionProvider, embedder EmbeddingProvider, notifier Notifier, model string) *MergeService {
	return &MergeService{
		db:        db,
		completer: completer,
		embedder:  embedder,
		notifier:  notifier,
		model:     model,
	}
}

// validateMergeSet checks the structural constraints on a merge id set and
// resolves all participating bugs. Validation order: primary-in-duplicates,
// duplicate uniqueness, cardinality, then existence (primary first, then all
// duplicates together so every missing id is reported at once).
func (s *MergeService) validateMergeSet(ctx context.Context, primaryID string, duplicateIDs []string) (*database.Bug, []database.Bug, error) {
	for _, id := range duplicateIDs {
		if id == primaryID {
			return nil, nil, domain.NewValidationError("primary bug cannot be in the list of duplicates")
		}
	}

	seen := make(map[string]bool, len(duplicateIDs))
	for _, id := range duplicateIDs {
		if seen[id] {
			return nil, nil, domain.NewValidationError("duplicate bug ids must be unique")
		}
		seen[id] = true
	}

	if len(duplicateIDs) < 1 || len(duplicateIDs) > MaxDuplicatesPerMerge {
		return nil, nil, domain.NewValidationError("between 1 and %d duplicate bugs can be merged, got %d", MaxDuplicatesPerMerge, len(duplicateIDs))
	}

	var primary database.Bug
	if err := s.db.WithContext(ctx).First(&primary, "id = ?", primaryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domain.NewNotFoundError("bug", primaryID)
		}
		return nil, nil, err
	}

	var duplicates []database.Bug
	if err := s.db.WithContext(ctx).Where("id IN ?", duplicateIDs).Find(&duplicates).Error; err != nil {
		return nil, nil, err
	}
	if len(duplicates) != len(duplicateIDs) {
		found := make(map[string]bool, len(duplicates))
		for _, d := range duplicates {
			found[d.ID] = true
		}
		var missing []string
		for _, id := range duplicateIDs {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, nil, domain.NewNotFoundError("bug", missing...)
	}

	return &primary, duplicates, nil
}

// mergeSystemPrompt instructs the model how to combine duplicate reports
const mergeSystemPrompt = `You are merging multiple duplicate bug reports into one comprehensive report.

Your task:
1. Create a merged title that captures the core issue from ALL bugs
2. Create a merged description that combines all relevant information from ALL bugs

Guidelines:
- Preserve ALL technical details, error messages, and reproduction steps from all bugs
- If information conflicts, include all perspectives
- Keep the merged content clear and well-organized
- Use markdown formatting for readability
- Start the description with a brief summary, then include detailed information from all reports
- If merging many bugs, organize by theme or commonality

Output format (JSON):
{
  "merged_title": "Clear, concise title",
  "merged_description": "Comprehensive markdown description"
}`

// truncateDescription bounds a description for prompt inclusion, marking the
// cut with an ellipsis
func truncateDescription(s string) string {
	if len(s) <= previewDescriptionLimit {
		return s
	}
	return s[:previewDescriptionLimit] + "..."
}

// formatBugForPrompt renders one bug for the merge prompt
func formatBugForPrompt(label string, bug database.Bug) string {
	severity := "not set"
	if bug.Severity != nil {
		severity = string(*bug.Severity)
	}
	area := "not set"
	if bug.Area != nil {
		area = string(*bug.Area)
	}
	return fmt.Sprintf("%s:\nTitle: %s\nDescription: %s\nSeverity: %s\nArea: %s",
		label, bug.Title, truncateDescription(bug.Description), severity, area)
}

// mergedContent is the parsed LLM synthesis output
type mergedContent struct {
	MergedTitle       string `json:"merged_title"`
	MergedDescription string `json:"merged_description"`
}

// GeneratePreview validates the merge set, synthesizes merged content via the
// text-generation provider, and counts the comments that would move. It
// performs no mutation.
func (s *MergeService) GeneratePreview(ctx context.Context, primaryID string, duplicateIDs []string) (*MergePreview, error) {
	if s.completer == nil {
		return nil, domain.NewProviderError("merge synthesis", errors.New("no text-generation provider configured"))
	}

	primary, duplicates, err := s.validateMergeSet(ctx, primaryID, duplicateIDs)
	if err != nil {
		return nil, err
	}

	var commentCount int64
	if err := s.db.WithContext(ctx).Model(&database.Comment{}).
		Where("bug_id IN ?", duplicateIDs).
		Count(&commentCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count comments: %w", err)
	}

	sections := make([]string, 0, len(duplicates)+1)
	sections = append(sections, formatBugForPrompt("Primary Bug", *primary))
	for i, dup := range duplicates {
		sections = append(sections, formatBugForPrompt(fmt.Sprintf("Duplicate Bug %d", i+1), dup))
	}
	userPrompt := fmt.Sprintf("%s\n\nGenerate the merged bug report combining ALL %d bugs above.",
		strings.Join(sections, "\n\n"), len(duplicates)+1)

	content, err := s.completer.CompleteJSON(ctx, s.model, mergeSystemPrompt, userPrompt, 0.3)
	if err != nil {
		return nil, err
	}

	var merged mergedContent
	if err := json.Unmarshal([]byte(content), &merged); err != nil {
		return nil, domain.NewProviderError("merge synthesis", fmt.Errorf("invalid JSON in response: %w", err))
	}
	if merged.MergedTitle == "" || merged.MergedDescription == "" {
		return nil, domain.NewProviderError("merge synthesis", errors.New("response missing merged_title or merged_description"))
	}

	preview := &MergePreview{
		PrimaryBug:    snapshotOf(*primary),
		DuplicateBugs: make([]BugSnapshot, len(duplicates)),
		// Snapshots below are full and untruncated; only the prompt was bounded
		MergedTitle:       merged.MergedTitle,
		MergedDescription: merged.MergedDescription,
		CommentCount:      commentCount,
	}
	for i, dup := range duplicates {
		preview.DuplicateBugs[i] = snapshotOf(dup)
	}
	return preview, nil
}

func snapshotOf(bug database.Bug) BugSnapshot {
	return BugSnapshot{
		ID:          bug.ID,
		Title:       bug.Title,
		Description: bug.Description,
		Severity:    bug.Severity,
		Area:        bug.Area,
		Status:      bug.Status,
	}
}

// Merge executes an approved merge. It trusts the caller to have obtained
// approval; no approval logic lives here. Everything is re-validated because
// preview and execution are decoupled in time and the data may have changed.
//
// The consolidation runs as one all-or-nothing transaction:
//  1. overwrite the primary's title and description with the merged content
//     (severity, area and status are untouched)
//  2. reassign every comment on any duplicate to the primary
//  3. delete all duplicate bugs
//
// On PostgreSQL all participating rows are locked for the duration of the
// transaction so overlapping merges serialize instead of racing.
func (s *MergeService) Merge(ctx context.Context, input MergeInput) (*MergeResult, error) {
	if strings.TrimSpace(input.MergedTitle) == "" || strings.TrimSpace(input.MergedDescription) == "" {
		return nil, domain.NewValidationError("merged title and description must not be empty")
	}

	if _, _, err := s.validateMergeSet(ctx, input.PrimaryBugID, input.DuplicateBugIDs); err != nil {
		return nil, err
	}

	mergedBy := input.MergedBy
	if mergedBy == "" {
		mergedBy = "agent"
	}

	var commentsMoved int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock every participant. SQLite has a single writer and rejects
		// FOR UPDATE, so the clause is Postgres-only.
		if tx.Dialector.Name() == "postgres" {
			allIDs := append([]string{input.PrimaryBugID}, input.DuplicateBugIDs...)
			var locked []database.Bug
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Select("id").
				Where("id IN ?", allIDs).
				Find(&locked).Error; err != nil {
				return err
			}
			if len(locked) != len(allIDs) {
				return errors.New("participating bug disappeared before merge")
			}
		}

		if err := tx.Model(&database.Bug{}).
			Where("id = ?", input.PrimaryBugID).
			Updates(map[string]interface{}{
				"title":       input.MergedTitle,
				"description": input.MergedDescription,
			}).Error; err != nil {
			return fmt.Errorf("failed to update primary bug: %w", err)
		}

		reassign := tx.Model(&database.Comment{}).
			Where("bug_id IN ?", input.DuplicateBugIDs).
			Update("bug_id", input.PrimaryBugID)
		if reassign.Error != nil {
			return fmt.Errorf("failed to transfer comments: %w", reassign.Error)
		}
		commentsMoved = reassign.RowsAffected

		if s.beforeDelete != nil {
			if err := s.beforeDelete(tx); err != nil {
				return err
			}
		}

		result := tx.Where("id IN ?", input.DuplicateBugIDs).Delete(&database.Bug{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete duplicates: %w", result.Error)
		}
		if result.RowsAffected != int64(len(input.DuplicateBugIDs)) {
			return fmt.Errorf("expected to delete %d duplicates, deleted %d", len(input.DuplicateBugIDs), result.RowsAffected)
		}

		for _, dupID := range input.DuplicateBugIDs {
			record := database.BugMerge{
				PrimaryBugID:   input.PrimaryBugID,
				DuplicateBugID: dupID,
				Reason:         input.Reason,
				MergedBy:       mergedBy,
				CommentsMoved:  commentsMoved,
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("failed to record merge audit: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, &domain.MergeFailedError{Err: err}
	}

	// The primary's text changed, so its stored embedding is stale.
	// Recompute best-effort outside the transaction; a failure leaves the
	// old embedding in place and never unwinds the merge.
	s.refreshEmbedding(ctx, input.PrimaryBugID, input.MergedTitle, input.MergedDescription)

	if s.notifier != nil {
		s.notifier.MergeCompleted(input.PrimaryBugID, input.MergedTitle, len(input.DuplicateBugIDs), commentsMoved)
	}

	return &MergeResult{
		PrimaryBugID:        input.PrimaryBugID,
		MergedTitle:         input.MergedTitle,
		MergedDescription:   input.MergedDescription,
		DuplicatesRemoved:   len(input.DuplicateBugIDs),
		CommentsTransferred: commentsMoved,
	}, nil
}

func (s *MergeService) refreshEmbedding(ctx context.Context, bugID, title, description string) {
	if s.embedder == nil {
		return
	}
	vec, err := s.embedder.Generate(ctx, llm.FormatBugText(title, description))
	if err != nil {
		log.Printf("Failed to refresh embedding for merged bug %s: %v", bugID, err)
		return
	}
	if err := s.db.WithContext(ctx).Model(&database.Bug{}).
		Where("id = ?", bugID).
		Update("embedding", &vec).Error; err != nil {
		log.Printf("Failed to store refreshed embedding for merged bug %s: %v", bugID, err)
	}
}
