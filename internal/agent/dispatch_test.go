package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/bugbase/bugbase/internal/database"
	"github.com/bugbase/bugbase/internal/domain"
	"github.com/bugbase/bugbase/internal/services"
	"github.com/bugbase/bugbase/internal/testhelpers"
)

func newTestDispatcher(t *testing.T, db *gorm.DB, embedder services.EmbeddingProvider, completer services.CompletionProvider) *Dispatcher {
	t.Helper()
	similarity := services.NewSimilarityService(db, embedder)
	bugs := services.NewBugService(db, embedder, nil, similarity, nil)
	merges := services.NewMergeService(db, completer, embedder, nil, "gpt-4.1")
	updates := services.NewUpdateService(db)
	trends := services.NewTrendsService(db)
	return NewDispatcher(bugs, similarity, merges, updates, trends, false)
}

func TestDispatchUnknownTool(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	d := newTestDispatcher(t, db, nil, nil)

	_, err := d.Dispatch(context.Background(), "s1", "dropTables", json.RawMessage(`{}`))
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for unknown tool, got %v", err)
	}
}

func TestDispatchRejectsMalformedInput(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	d := newTestDispatcher(t, db, nil, nil)

	cases := []struct {
		tool  string
		input string
	}{
		{ToolQueryBugs, `{not json`},
		{ToolQueryBugs, `{"severity":"P0"}`},
		{ToolQueryBugs, `{"limit":0}`},
		{ToolGetBugDetails, `{}`},
		{ToolGetBugDetails, `{"bug_ids":[]}`},
		{ToolAnalyzeTrends, `{"timeframe":"fortnight"}`},
		{ToolMergeBugs, `{"primary_bug_id":"p"}`},
		{ToolUpdateBugs, `{"bug_ids":["a"],"updates":{"severity":"HIGH"}}`},
	}
	for _, c := range cases {
		_, err := d.Dispatch(context.Background(), "s1", c.tool, json.RawMessage(c.input))
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s with %s: expected ValidationError, got %v", c.tool, c.input, err)
		}
	}
}

func TestDispatchQueryBugsListPath(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	user := testhelpers.NewUserBuilder().Create(t, db)
	testhelpers.NewBugBuilder(user.ID).WithTitle("a").WithSeverity(database.SeverityS1).Create(t, db)
	testhelpers.NewBugBuilder(user.ID).WithTitle("b").Create(t, db)

	d := newTestDispatcher(t, db, nil, nil)
	out, err := d.Dispatch(context.Background(), "s1", ToolQueryBugs, json.RawMessage(`{"severity":"S1"}`))
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	result, ok := out.(*QueryBugsResult)
	if !ok {
		t.Fatalf("unexpected result type %T", out)
	}
	if result.Total != 1 || result.Bugs[0].Title != "a" {
		t.Errorf("expected only the S1 bug, got %+v", result)
	}
	// No semantic query, so no scores
	if result.Bugs[0].Score != nil || result.Bugs[0].Label != "" {
		t.Error("list results must not carry similarity scores")
	}
}

func TestDispatchQueryBugsSemanticPath(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	user := testhelpers.NewUserBuilder().Create(t, db)
	testhelpers.NewBugBuilder(user.ID).
		WithTitle("Login broken").
		WithEmbedding(testhelpers.UnitVector(0)).
		Create(t, db)

	embedder := testhelpers.NewFakeEmbedder().Pin("login issues", testhelpers.UnitVector(0))
	d := newTestDispatcher(t, db, embedder, nil)

	out, err := d.Dispatch(context.Background(), "s1", ToolQueryBugs, json.RawMessage(`{"query":"login issues"}`))
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	result := out.(*QueryBugsResult)
	if result.Total != 1 {
		t.Fatalf("expected 1 hit, got %d", result.Total)
	}
	if result.Bugs[0].Score == nil || *result.Bugs[0].Score < 0.999 {
		t.Errorf("semantic results must carry a score, got %v", result.Bugs[0].Score)
	}
	if result.Bugs[0].Label != "Likely duplicate" {
		t.Errorf("expected Likely duplicate, got %q", result.Bugs[0].Label)
	}
}

func TestDispatchAnalyzeTrends(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	user := testhelpers.NewUserBuilder().Create(t, db)
	testhelpers.NewBugBuilder(user.ID).WithArea(database.AreaBackend).Create(t, db)

	d := newTestDispatcher(t, db, nil, nil)
	out, err := d.Dispatch(context.Background(), "s1", ToolAnalyzeTrends, json.RawMessage(`{"focus_area":"BACKEND"}`))
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	report := out.(*services.TrendsReport)
	if report.TotalBugs != 1 || report.FocusArea != "BACKEND" {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestDispatchEmptyInputDefaults(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	d := newTestDispatcher(t, db, nil, nil)

	// queryBugs and analyzeTrends accept empty input
	if _, err := d.Dispatch(context.Background(), "s1", ToolQueryBugs, nil); err != nil {
		t.Errorf("queryBugs with no input should use defaults, got %v", err)
	}
	if _, err := d.Dispatch(context.Background(), "s1", ToolAnalyzeTrends, nil); err != nil {
		t.Errorf("analyzeTrends with no input should use defaults, got %v", err)
	}
}

func TestDispatchGetBugDetails(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	user := testhelpers.NewUserBuilder().Create(t, db)
	bug := testhelpers.NewBugBuilder(user.ID).WithTitle("Detail me").Create(t, db)

	d := newTestDispatcher(t, db, nil, nil)
	input, _ := json.Marshal(map[string]interface{}{"bug_ids": []string{bug.ID}})
	out, err := d.Dispatch(context.Background(), "s1", ToolGetBugDetails, input)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	details := out.([]services.BugDetail)
	if len(details) != 1 || details[0].Title != "Detail me" {
		t.Errorf("unexpected details: %+v", details)
	}
}

func TestDispatchMergePreviewIsUngated(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	user := testhelpers.NewUserBuilder().Create(t, db)
	primary := testhelpers.NewBugBuilder(user.ID).Create(t, db)
	dup := testhelpers.NewBugBuilder(user.ID).Create(t, db)

	completer := &testhelpers.FakeCompleter{
		Response: `{"merged_title":"T","merged_description":"D"}`,
	}
	d := newTestDispatcher(t, db, nil, completer)

	input, _ := json.Marshal(map[string]interface{}{
		"primary_bug_id":    primary.ID,
		"duplicate_bug_ids": []string{dup.ID},
	})
	out, err := d.Dispatch(context.Background(), "s1", ToolGenerateMergePreview, input)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if _, ok := out.(*services.MergePreview); !ok {
		t.Fatalf("preview must run immediately, got %T", out)
	}
	if len(d.Gate.List()) != 0 {
		t.Error("preview must not create a pending operation")
	}
}

func TestDispatchGatedToolsPark(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	user := testhelpers.NewUserBuilder().Create(t, db)
	primary := testhelpers.NewBugBuilder(user.ID).Create(t, db)
	dup := testhelpers.NewBugBuilder(user.ID).Create(t, db)

	d := newTestDispatcher(t, db, nil, nil)
	input, _ := json.Marshal(map[string]interface{}{
		"primary_bug_id":     primary.ID,
		"duplicate_bug_ids":  []string{dup.ID},
		"merged_title":       "T",
		"merged_description": "D",
	})
	out, err := d.Dispatch(context.Background(), "s1", ToolMergeBugs, input)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	pending, ok := out.(*PendingResult)
	if !ok {
		t.Fatalf("gated tool must return a PendingResult, got %T", out)
	}
	if pending.State != StateAwaitingApproval {
		t.Errorf("expected AWAITING_APPROVAL, got %s", pending.State)
	}

	// Nothing executed
	var bugCount int64
	db.Model(&database.Bug{}).Count(&bugCount)
	if bugCount != 2 {
		t.Error("merge must not run before approval")
	}

	op, err := d.Gate.Get(pending.OperationID)
	if err != nil {
		t.Fatalf("operation not registered: %v", err)
	}
	if op.Tool != ToolMergeBugs {
		t.Errorf("unexpected tool on operation: %s", op.Tool)
	}
}

func TestDispatchUpdateBugsRequiresAField(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	d := newTestDispatcher(t, db, nil, nil)

	_, err := d.Dispatch(context.Background(), "s1", ToolUpdateBugs,
		json.RawMessage(`{"bug_ids":["a"],"updates":{}}`))
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for empty updates, got %v", err)
	}
	if len(d.Gate.List()) != 0 {
		t.Error("invalid input must not be parked")
	}
}

func TestDescriptorsCoverToolSurface(t *testing.T) {
	descriptors := Descriptors()
	if len(descriptors) != 6 {
		t.Fatalf("expected 6 tools, got %d", len(descriptors))
	}

	byName := map[string]Descriptor{}
	for _, desc := range descriptors {
		byName[desc.Name] = desc
	}
	for _, name := range []string{ToolQueryBugs, ToolAnalyzeTrends, ToolGetBugDetails, ToolGenerateMergePreview, ToolMergeBugs, ToolUpdateBugs} {
		if _, ok := byName[name]; !ok {
			t.Errorf("missing descriptor for %s", name)
		}
	}
	if !byName[ToolMergeBugs].NeedsApproval || !byName[ToolUpdateBugs].NeedsApproval {
		t.Error("mergeBugs and updateBugs must require approval")
	}
	if byName[ToolQueryBugs].NeedsApproval || byName[ToolGenerateMergePreview].NeedsApproval {
		t.Error("read-only tools must not require approval")
	}

	if !NeedsApproval(ToolMergeBugs) || NeedsApproval(ToolQueryBugs) {
		t.Error("NeedsApproval disagrees with the descriptors")
	}
}
