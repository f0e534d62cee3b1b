package services

import (
	"context"
	"testing"

	"github.com/bugbase/bugbase/internal/testhelpers"
)

func TestGetDetailsMixedResolution(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	user := testhelpers.NewUserBuilder().WithName("Riley").Create(t, db)
	bug := testhelpers.NewBugBuilder(user.ID).WithTitle("Real bug").Create(t, db)

	svc := NewBugService(db, nil, nil, NewSimilarityService(db, nil), nil)
	details, err := svc.GetDetails(context.Background(), []string{bug.ID, "ghost"}, false, false)
	if err != nil {
		t.Fatalf("GetDetails failed: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("expected one entry per requested id, got %d", len(details))
	}
	if details[0].Title != "Real bug" || details[0].CreatedBy != "Riley" {
		t.Errorf("unexpected resolved entry: %+v", details[0])
	}
	if details[1].Error == "" || details[1].ID != "" {
		t.Errorf("missing bug must yield an error-only entry, got %+v", details[1])
	}
}

func TestGetDetailsIncludesCommentsAndSimilar(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	user := testhelpers.NewUserBuilder().WithName("Riley").Create(t, db)
	bug := testhelpers.NewBugBuilder(user.ID).
		WithEmbedding(testhelpers.UnitVector(0)).
		Create(t, db)
	neighbor := testhelpers.NewBugBuilder(user.ID).
		WithTitle("Neighbor").
		WithEmbedding(testhelpers.UnitVector(0)).
		Create(t, db)
	testhelpers.NewCommentBuilder(bug.ID, user.ID).WithContent("seen this too").Create(t, db)

	svc := NewBugService(db, nil, nil, NewSimilarityService(db, nil), nil)
	details, err := svc.GetDetails(context.Background(), []string{bug.ID}, true, true)
	if err != nil {
		t.Fatalf("GetDetails failed: %v", err)
	}
	if len(details) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(details))
	}

	entry := details[0]
	if len(entry.Comments) != 1 || entry.Comments[0].Content != "seen this too" || entry.Comments[0].User != "Riley" {
		t.Errorf("unexpected comments: %+v", entry.Comments)
	}
	if len(entry.SimilarBugs) != 1 || entry.SimilarBugs[0].ID != neighbor.ID {
		t.Errorf("unexpected neighbors: %+v", entry.SimilarBugs)
	}
	if entry.SimilarBugs[0].Label != "Likely duplicate" {
		t.Errorf("identical vectors should label as likely duplicate, got %q", entry.SimilarBugs[0].Label)
	}
}

func TestGetDetailsOmitsOptionalSections(t *testing.T) {
	db := testhelpers.OpenTestDB(t)
	user := testhelpers.NewUserBuilder().Create(t, db)
	bug := testhelpers.NewBugBuilder(user.ID).Create(t, db)
	testhelpers.NewCommentBuilder(bug.ID, user.ID).Create(t, db)

	svc := NewBugService(db, nil, nil, NewSimilarityService(db, nil), nil)
	details, err := svc.GetDetails(context.Background(), []string{bug.ID}, false, false)
	if err != nil {
		t.Fatalf("GetDetails failed: %v", err)
	}
	if details[0].Comments != nil {
		t.Error("comments must be omitted unless requested")
	}
	if details[0].SimilarBugs != nil {
		t.Error("neighbors must be omitted unless requested")
	}
}
