package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/bugbase/bugbase/internal/database"
	"github.com/bugbase/bugbase/internal/domain"
	"github.com/bugbase/bugbase/internal/testhelpers"
)

func TestValidateMergeSetOrdering(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	svc := NewMergeService(db, &testhelpers.FakeCompleter{}, nil, nil, "gpt-4.1")

	// Primary listed among duplicates wins over every other problem:
	// the set below is also non-unique, oversized and full of missing ids.
	ids := make([]string, 0, 12)
	ids = append(ids, "primary", "primary")
	for i := 0; i < 10; i++ {
		ids = append(ids, fmt.Sprintf("missing-%d", i))
	}
	_, err := svc.GeneratePreview(context.Background(), "primary", ids)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "primary bug cannot be") {
		t.Errorf("primary-in-duplicates must be reported first, got %q", err.Error())
	}

	// With the primary removed, uniqueness is checked next
	_, err = svc.GeneratePreview(context.Background(), "primary", []string{"dup", "dup"})
	if !errors.As(err, &ve) || !strings.Contains(err.Error(), "unique") {
		t.Errorf("expected uniqueness violation, got %v", err)
	}

	// Then cardinality
	_, err = svc.GeneratePreview(context.Background(), "primary", nil)
	if !errors.As(err, &ve) || !strings.Contains(err.Error(), "between 1 and 10") {
		t.Errorf("expected cardinality violation for empty set, got %v", err)
	}

	many := make([]string, 11)
	for i := range many {
		many[i] = fmt.Sprintf("dup-%d", i)
	}
	_, err = svc.GeneratePreview(context.Background(), "primary", many)
	if !errors.As(err, &ve) || !strings.Contains(err.Error(), "between 1 and 10") {
		t.Errorf("expected cardinality violation for oversized set, got %v", err)
	}
}

func TestValidateMergeSetExistence(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	user := testhelpers.NewUserBuilder().Create(t, db)
	existing := testhelpers.NewBugBuilder(user.ID).Create(t, db)
	svc := NewMergeService(db, &testhelpers.FakeCompleter{}, nil, nil, "gpt-4.1")

	// Missing primary is reported before missing duplicates
	_, err := svc.GeneratePreview(context.Background(), "no-primary", []string{existing.ID})
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for missing primary, got %v", err)
	}
	if len(nf.MissingIDs) != 1 || nf.MissingIDs[0] != "no-primary" {
		t.Errorf("expected the primary id reported, got %v", nf.MissingIDs)
	}

	// Every missing duplicate id is reported at once
	primary := testhelpers.NewBugBuilder(user.ID).Create(t, db)
	_, err = svc.GeneratePreview(context.Background(), primary.ID, []string{existing.ID, "ghost-1", "ghost-2"})
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for missing duplicates, got %v", err)
	}
	if len(nf.MissingIDs) != 2 {
		t.Fatalf("expected both missing ids reported, got %v", nf.MissingIDs)
	}
	if nf.MissingIDs[0] != "ghost-1" || nf.MissingIDs[1] != "ghost-2" {
		t.Errorf("unexpected missing ids: %v", nf.MissingIDs)
	}
}

func TestGeneratePreviewDoesNotMutate(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	user := testhelpers.NewUserBuilder().Create(t, db)
	primary := testhelpers.NewBugBuilder(user.ID).WithTitle("Primary").Create(t, db)
	dup := testhelpers.NewBugBuilder(user.ID).WithTitle("Dup").Create(t, db)
	testhelpers.NewCommentBuilder(dup.ID, user.ID).Create(t, db)
	testhelpers.NewCommentBuilder(dup.ID, user.ID).Create(t, db)

	completer := &testhelpers.FakeCompleter{
		Response: `{"merged_title":"Combined","merged_description":"Everything in one place"}`,
	}
	svc := NewMergeService(db, completer, nil, nil, "gpt-4.1")

	preview, err := svc.GeneratePreview(context.Background(), primary.ID, []string{dup.ID})
	if err != nil {
		t.Fatalf("GeneratePreview failed: %v", err)
	}
	if preview.MergedTitle != "Combined" {
		t.Errorf("unexpected merged title %q", preview.MergedTitle)
	}
	if preview.CommentCount != 2 {
		t.Errorf("expected 2 comments counted, got %d", preview.CommentCount)
	}
	if preview.PrimaryBug.ID != primary.ID || len(preview.DuplicateBugs) != 1 {
		t.Error("preview snapshots mismatch")
	}

	// Nothing changed in the database
	var bugCount int64
	db.Model(&database.Bug{}).Count(&bugCount)
	if bugCount != 2 {
		t.Errorf("preview must not delete bugs, have %d", bugCount)
	}
	var reloaded database.Bug
	db.First(&reloaded, "id = ?", primary.ID)
	if reloaded.Title != "Primary" {
		t.Error("preview must not rewrite the primary")
	}
	var mergeCount int64
	db.Model(&database.BugMerge{}).Count(&mergeCount)
	if mergeCount != 0 {
		t.Error("preview must not write audit rows")
	}
}

func TestGeneratePreviewTruncatesPromptNotSnapshot(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	user := testhelpers.NewUserBuilder().Create(t, db)

	long := strings.Repeat("x", 1500)
	primary := testhelpers.NewBugBuilder(user.ID).WithDescription(long).Create(t, db)
	dup := testhelpers.NewBugBuilder(user.ID).WithTitle("Dup").Create(t, db)

	completer := &testhelpers.FakeCompleter{
		Response: `{"merged_title":"T","merged_description":"D"}`,
	}
	svc := NewMergeService(db, completer, nil, nil, "gpt-4.1")

	preview, err := svc.GeneratePreview(context.Background(), primary.ID, []string{dup.ID})
	if err != nil {
		t.Fatalf("GeneratePreview failed: %v", err)
	}
	if strings.Contains(completer.LastUser, long) {
		t.Error("prompt should carry the truncated description")
	}
	if !strings.Contains(completer.LastUser, strings.Repeat("x", 1000)+"...") {
		t.Error("expected ellipsis-marked truncation in the prompt")
	}
	if preview.PrimaryBug.Description != long {
		t.Error("snapshot descriptions must stay untruncated")
	}
}

func TestGeneratePreviewRejectsBadSynthesis(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	user := testhelpers.NewUserBuilder().Create(t, db)
	primary := testhelpers.NewBugBuilder(user.ID).Create(t, db)
	dup := testhelpers.NewBugBuilder(user.ID).Create(t, db)

	cases := []string{
		`not json`,
		`{"merged_title":"","merged_description":"D"}`,
		`{"merged_title":"T","merged_description":""}`,
	}
	for _, response := range cases {
		completer := &testhelpers.FakeCompleter{Response: response}
		svc := NewMergeService(db, completer, nil, nil, "gpt-4.1")

		_, err := svc.GeneratePreview(context.Background(), primary.ID, []string{dup.ID})
		var pe *domain.ProviderError
		if !errors.As(err, &pe) {
			t.Errorf("response %q: expected ProviderError, got %v", response, err)
		}
	}
}

func TestMergeConsolidates(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	user := testhelpers.NewUserBuilder().Create(t, db)
	primary := testhelpers.NewBugBuilder(user.ID).WithTitle("Primary").Create(t, db)
	dup1 := testhelpers.NewBugBuilder(user.ID).WithTitle("Dup 1").Create(t, db)
	dup2 := testhelpers.NewBugBuilder(user.ID).WithTitle("Dup 2").Create(t, db)
	testhelpers.NewCommentBuilder(dup1.ID, user.ID).WithContent("from dup1").Create(t, db)
	testhelpers.NewCommentBuilder(dup2.ID, user.ID).WithContent("from dup2").Create(t, db)
	keep := testhelpers.NewCommentBuilder(primary.ID, user.ID).WithContent("already here").Create(t, db)

	notifier := &testhelpers.RecordingNotifier{}
	embedder := testhelpers.NewFakeEmbedder()
	svc := NewMergeService(db, &testhelpers.FakeCompleter{}, embedder, notifier, "gpt-4.1")

	result, err := svc.Merge(context.Background(), MergeInput{
		PrimaryBugID:      primary.ID,
		DuplicateBugIDs:   []string{dup1.ID, dup2.ID},
		MergedTitle:       "Merged title",
		MergedDescription: "Merged description",
		Reason:            "same root cause",
		MergedBy:          "triager",
	})
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if result.DuplicatesRemoved != 2 || result.CommentsTransferred != 2 {
		t.Errorf("unexpected result: %+v", result)
	}

	var merged database.Bug
	if err := db.First(&merged, "id = ?", primary.ID).Error; err != nil {
		t.Fatalf("primary bug disappeared: %v", err)
	}
	if merged.Title != "Merged title" || merged.Description != "Merged description" {
		t.Error("primary must carry the approved merged content")
	}

	var remaining int64
	db.Model(&database.Bug{}).Count(&remaining)
	if remaining != 1 {
		t.Errorf("duplicates must be deleted, %d bugs remain", remaining)
	}

	var comments []database.Comment
	db.Where("bug_id = ?", primary.ID).Find(&comments)
	if len(comments) != 3 {
		t.Errorf("expected 3 comments on the primary, got %d", len(comments))
	}
	foundKept := false
	for _, c := range comments {
		if c.ID == keep.ID {
			foundKept = true
		}
	}
	if !foundKept {
		t.Error("the primary's own comment must survive")
	}

	var audits []database.BugMerge
	db.Order("duplicate_bug_id").Find(&audits)
	if len(audits) != 2 {
		t.Fatalf("expected one audit row per duplicate, got %d", len(audits))
	}
	for _, a := range audits {
		if a.PrimaryBugID != primary.ID || a.Reason != "same root cause" || a.MergedBy != "triager" {
			t.Errorf("unexpected audit row: %+v", a)
		}
	}

	if len(notifier.Merges) != 1 || notifier.Merges[0].DuplicatesRemoved != 2 {
		t.Error("expected one merge notification")
	}
	if embedder.CallCount() != 1 {
		t.Error("expected the primary's embedding to be refreshed")
	}
}

func TestMergeRollsBackAtomically(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	user := testhelpers.NewUserBuilder().Create(t, db)
	primary := testhelpers.NewBugBuilder(user.ID).WithTitle("Primary").Create(t, db)
	dup := testhelpers.NewBugBuilder(user.ID).WithTitle("Dup").Create(t, db)
	testhelpers.NewCommentBuilder(dup.ID, user.ID).Create(t, db)

	svc := NewMergeService(db, &testhelpers.FakeCompleter{}, nil, nil, "gpt-4.1")
	svc.beforeDelete = func(tx *gorm.DB) error {
		return errors.New("simulated failure mid-transaction")
	}

	_, err := svc.Merge(context.Background(), MergeInput{
		PrimaryBugID:      primary.ID,
		DuplicateBugIDs:   []string{dup.ID},
		MergedTitle:       "Merged",
		MergedDescription: "Merged",
	})
	var mf *domain.MergeFailedError
	if !errors.As(err, &mf) {
		t.Fatalf("expected MergeFailedError, got %v", err)
	}

	// Everything must be exactly as before
	var reloaded database.Bug
	if err := db.First(&reloaded, "id = ?", primary.ID).Error; err != nil {
		t.Fatalf("primary missing after rollback: %v", err)
	}
	if reloaded.Title != "Primary" {
		t.Error("primary title must be unchanged after rollback")
	}
	var dupCount int64
	db.Model(&database.Bug{}).Where("id = ?", dup.ID).Count(&dupCount)
	if dupCount != 1 {
		t.Error("duplicate must survive a failed merge")
	}
	var commentCount int64
	db.Model(&database.Comment{}).Where("bug_id = ?", dup.ID).Count(&commentCount)
	if commentCount != 1 {
		t.Error("comments must stay on the duplicate after rollback")
	}
	var auditCount int64
	db.Model(&database.BugMerge{}).Count(&auditCount)
	if auditCount != 0 {
		t.Error("no audit rows after a failed merge")
	}
}

func TestMergeRequiresMergedContent(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	svc := NewMergeService(db, nil, nil, nil, "gpt-4.1")

	cases := []MergeInput{
		{PrimaryBugID: "p", DuplicateBugIDs: []string{"d"}, MergedTitle: "", MergedDescription: "x"},
		{PrimaryBugID: "p", DuplicateBugIDs: []string{"d"}, MergedTitle: "x", MergedDescription: "   "},
	}
	for _, input := range cases {
		_, err := svc.Merge(context.Background(), input)
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("expected ValidationError for %+v, got %v", input, err)
		}
	}
}

func TestMergeWithoutProviderConfigured(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	svc := NewMergeService(db, nil, nil, nil, "gpt-4.1")

	_, err := svc.GeneratePreview(context.Background(), "p", []string{"d"})
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		t.Errorf("expected ProviderError without a completer, got %v", err)
	}
}
