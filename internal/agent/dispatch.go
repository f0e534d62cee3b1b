package agent

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/bugbase/bugbase/internal/database"
	"github.com/bugbase/bugbase/internal/domain"
	"github.com/bugbase/bugbase/internal/services"
)

const defaultQueryLimit = 20

// QueryBugsInput is the decoded input of the queryBugs tool
type QueryBugsInput struct {
	Query    *string `json:"query" validate:"omitempty,min=1"`
	Severity *string `json:"severity" validate:"omitempty,oneof=S0 S1 S2 S3"`
	Area     *string `json:"area" validate:"omitempty,oneof=FRONTEND BACKEND INFRA DATA"`
	Status   *string `json:"status" validate:"omitempty,oneof=OPEN IN_PROGRESS RESOLVED CLOSED"`
	Limit    *int    `json:"limit" validate:"omitempty,min=1,max=50"`
}

// AnalyzeTrendsInput is the decoded input of the analyzeTrends tool
type AnalyzeTrendsInput struct {
	Timeframe *string `json:"timeframe" validate:"omitempty,oneof=last_day last_week last_month all_time"`
	FocusArea *string `json:"focus_area" validate:"omitempty,oneof=FRONTEND BACKEND INFRA DATA"`
}

// GetBugDetailsInput is the decoded input of the getBugDetails tool
type GetBugDetailsInput struct {
	BugIDs          []string `json:"bug_ids" validate:"required,min=1,max=10,dive,required"`
	IncludeComments bool     `json:"include_comments"`
	IncludeSimilar  bool     `json:"include_similar"`
}

// GenerateMergePreviewInput is the decoded input of the generateMergePreview tool
type GenerateMergePreviewInput struct {
	PrimaryBugID    string   `json:"primary_bug_id" validate:"required"`
	DuplicateBugIDs []string `json:"duplicate_bug_ids" validate:"required,min=1,max=10,dive,required"`
}

// MergeBugsInput is the decoded input of the mergeBugs tool. The merged
// content is carried over from an approved preview.
type MergeBugsInput struct {
	PrimaryBugID      string   `json:"primary_bug_id" validate:"required"`
	DuplicateBugIDs   []string `json:"duplicate_bug_ids" validate:"required,min=1,max=10,dive,required"`
	MergedTitle       string   `json:"merged_title" validate:"required"`
	MergedDescription string   `json:"merged_description" validate:"required"`
	Reason            string   `json:"reason"`
}

// UpdateBugsInput is the decoded input of the updateBugs tool
type UpdateBugsInput struct {
	BugIDs  []string       `json:"bug_ids" validate:"required,min=1,max=20,dive,required"`
	Updates BugFieldUpdate `json:"updates" validate:"required"`
}

// BugFieldUpdate mirrors the optional classification fields of a bulk update
type BugFieldUpdate struct {
	Severity *string `json:"severity" validate:"omitempty,oneof=S0 S1 S2 S3"`
	Area     *string `json:"area" validate:"omitempty,oneof=FRONTEND BACKEND INFRA DATA"`
	Status   *string `json:"status" validate:"omitempty,oneof=OPEN IN_PROGRESS RESOLVED CLOSED"`
}

// QueryBugsResult is the output of the queryBugs tool
type QueryBugsResult struct {
	Bugs  []QueryBugEntry `json:"bugs"`
	Total int             `json:"total"`
}

// QueryBugEntry is one bug in a queryBugs result. Score and Label are only
// set on semantic search results.
type QueryBugEntry struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Severity    *database.Severity `json:"severity"`
	Area        *database.Area     `json:"area"`
	Status      database.BugStatus `json:"status"`
	Score       *float64           `json:"similarity_score,omitempty"`
	Label       string             `json:"label,omitempty"`
}

// PendingResult is returned in place of a tool result when the call was
// parked behind the approval gate.
type PendingResult struct {
	OperationID string        `json:"operation_id"`
	Tool        string        `json:"tool"`
	State       ApprovalState `json:"state"`
	Message     string        `json:"message"`
}

// Dispatcher routes tool calls to the services layer. Gated tools are parked
// in the approval gate instead of executing; the gate calls back into the
// dispatcher once a human approves.
type Dispatcher struct {
	bugs       *services.BugService
	similarity *services.SimilarityService
	merges     *services.MergeService
	updates    *services.UpdateService
	trends     *services.TrendsService
	validate   *validator.Validate

	// Gate is exported so handlers can list and resolve operations
	Gate *ApprovalGate
}

// NewDispatcher wires the tool surface over the services layer
func NewDispatcher(bugs *services.BugService, similarity *services.SimilarityService, merges *services.MergeService, updates *services.UpdateService, trends *services.TrendsService, production bool) *Dispatcher {
	d := &Dispatcher{
		bugs:       bugs,
		similarity: similarity,
		merges:     merges,
		updates:    updates,
		trends:     trends,
		validate:   validator.New(),
	}
	d.Gate = NewApprovalGate(d.executeApproved, production)
	return d
}

// Dispatch decodes, validates and runs one tool call. Unknown tool names and
// malformed inputs fail before any database access. Tools flagged as needing
// approval return a PendingResult and execute nothing yet.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID, tool string, input json.RawMessage) (interface{}, error) {
	switch tool {
	case ToolQueryBugs:
		var in QueryBugsInput
		if err := d.decode(input, &in); err != nil {
			return nil, err
		}
		return d.queryBugs(ctx, in)

	case ToolAnalyzeTrends:
		var in AnalyzeTrendsInput
		if err := d.decode(input, &in); err != nil {
			return nil, err
		}
		return d.analyzeTrends(ctx, in)

	case ToolGetBugDetails:
		var in GetBugDetailsInput
		if err := d.decode(input, &in); err != nil {
			return nil, err
		}
		return d.bugs.GetDetails(ctx, in.BugIDs, in.IncludeComments, in.IncludeSimilar)

	case ToolGenerateMergePreview:
		var in GenerateMergePreviewInput
		if err := d.decode(input, &in); err != nil {
			return nil, err
		}
		return d.merges.GeneratePreview(ctx, in.PrimaryBugID, in.DuplicateBugIDs)

	case ToolMergeBugs:
		var in MergeBugsInput
		if err := d.decode(input, &in); err != nil {
			return nil, err
		}
		return d.park(sessionID, tool, input, "Merge of "+in.PrimaryBugID+" awaits approval"), nil

	case ToolUpdateBugs:
		var in UpdateBugsInput
		if err := d.decode(input, &in); err != nil {
			return nil, err
		}
		if in.Updates.Severity == nil && in.Updates.Area == nil && in.Updates.Status == nil {
			return nil, domain.NewValidationError("at least one of severity, area or status must be provided")
		}
		return d.park(sessionID, tool, input, "Bulk update awaits approval"), nil

	default:
		return nil, domain.NewValidationError("unknown tool %q", tool)
	}
}

// executeApproved runs the mutating body of a gated tool. Only the gate
// calls this, and only for approved operations.
func (d *Dispatcher) executeApproved(ctx context.Context, tool string, input json.RawMessage) (interface{}, error) {
	switch tool {
	case ToolMergeBugs:
		var in MergeBugsInput
		if err := d.decode(input, &in); err != nil {
			return nil, err
		}
		return d.merges.Merge(ctx, services.MergeInput{
			PrimaryBugID:      in.PrimaryBugID,
			DuplicateBugIDs:   in.DuplicateBugIDs,
			MergedTitle:       in.MergedTitle,
			MergedDescription: in.MergedDescription,
			Reason:            in.Reason,
		})

	case ToolUpdateBugs:
		var in UpdateBugsInput
		if err := d.decode(input, &in); err != nil {
			return nil, err
		}
		return d.updates.BulkUpdate(ctx, in.BugIDs, services.UpdateBugInput{
			Severity: (*database.Severity)(in.Updates.Severity),
			Area:     (*database.Area)(in.Updates.Area),
			Status:   (*database.BugStatus)(in.Updates.Status),
		})

	default:
		return nil, domain.NewValidationError("tool %q is not gated", tool)
	}
}

func (d *Dispatcher) park(sessionID, tool string, input json.RawMessage, message string) *PendingResult {
	op := d.Gate.Propose(sessionID, tool, input)
	return &PendingResult{
		OperationID: op.ID,
		Tool:        op.Tool,
		State:       op.State,
		Message:     message,
	}
}

func (d *Dispatcher) decode(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.NewValidationError("invalid tool input: %v", err)
	}
	if err := d.validate.Struct(dst); err != nil {
		return domain.NewValidationError("invalid tool input: %v", err)
	}
	return nil
}

func (d *Dispatcher) queryBugs(ctx context.Context, in QueryBugsInput) (*QueryBugsResult, error) {
	limit := defaultQueryLimit
	if in.Limit != nil {
		limit = *in.Limit
	}

	filters := services.SimilarityFilters{
		Severity: (*database.Severity)(in.Severity),
		Area:     (*database.Area)(in.Area),
		Status:   (*database.BugStatus)(in.Status),
	}

	if in.Query != nil {
		neighbors, err := d.similarity.SearchByText(ctx, *in.Query, filters, limit)
		if err != nil {
			return nil, err
		}
		entries := make([]QueryBugEntry, len(neighbors))
		for i, n := range neighbors {
			score := n.Score
			entries[i] = QueryBugEntry{
				ID:          n.Bug.ID,
				Title:       n.Bug.Title,
				Description: n.Bug.Description,
				Severity:    n.Bug.Severity,
				Area:        n.Bug.Area,
				Status:      n.Bug.Status,
				Score:       &score,
				Label:       n.Label(),
			}
		}
		return &QueryBugsResult{Bugs: entries, Total: len(entries)}, nil
	}

	bugs, err := d.bugs.List(ctx, services.BugFilters{
		Severity: filters.Severity,
		Area:     filters.Area,
		Status:   filters.Status,
	}, limit, 0)
	if err != nil {
		return nil, err
	}
	entries := make([]QueryBugEntry, len(bugs))
	for i, b := range bugs {
		entries[i] = QueryBugEntry{
			ID:          b.ID,
			Title:       b.Title,
			Description: b.Description,
			Severity:    b.Severity,
			Area:        b.Area,
			Status:      b.Status,
		}
	}
	return &QueryBugsResult{Bugs: entries, Total: len(entries)}, nil
}

func (d *Dispatcher) analyzeTrends(ctx context.Context, in AnalyzeTrendsInput) (*services.TrendsReport, error) {
	timeframe := services.TimeframeAllTime
	if in.Timeframe != nil {
		timeframe = services.Timeframe(*in.Timeframe)
	}
	return d.trends.Analyze(ctx, timeframe, (*database.Area)(in.FocusArea))
}
