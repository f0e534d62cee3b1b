package testhelpers

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/bugbase/bugbase/internal/database"
)

// UserBuilder builds User rows for testing
type UserBuilder struct {
	user database.User
}

// NewUserBuilder creates a user builder with defaults
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		user: database.User{
			Email: "reporter@example.com",
			Name:  "Test Reporter",
		},
	}
}

// WithID sets the user ID
func (b *UserBuilder) WithID(id string) *UserBuilder {
	b.user.ID = id
	return b
}

// WithEmail sets the email
func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.user.Email = email
	return b
}

// WithName sets the name
func (b *UserBuilder) WithName(name string) *UserBuilder {
	b.user.Name = name
	return b
}

// Build returns the constructed user
func (b *UserBuilder) Build() database.User {
	return b.user
}

// Create persists the user and fails the test on error
func (b *UserBuilder) Create(t *testing.T, db *gorm.DB) database.User {
	t.Helper()
	user := b.user
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// BugBuilder builds Bug rows for testing
type BugBuilder struct {
	bug database.Bug
}

// NewBugBuilder creates a bug builder with defaults
func NewBugBuilder(createdByID string) *BugBuilder {
	return &BugBuilder{
		bug: database.Bug{
			Title:       "Test bug",
			Description: "Something went wrong",
			Status:      database.BugStatusOpen,
			CreatedByID: createdByID,
		},
	}
}

// WithID sets the bug ID
func (b *BugBuilder) WithID(id string) *BugBuilder {
	b.bug.ID = id
	return b
}

// WithTitle sets the title
func (b *BugBuilder) WithTitle(title string) *BugBuilder {
	b.bug.Title = title
	return b
}

// WithDescription sets the description
func (b *BugBuilder) WithDescription(description string) *BugBuilder {
	b.bug.Description = description
	return b
}

// WithSeverity sets the severity
func (b *BugBuilder) WithSeverity(severity database.Severity) *BugBuilder {
	b.bug.Severity = &severity
	return b
}

// WithArea sets the area
func (b *BugBuilder) WithArea(area database.Area) *BugBuilder {
	b.bug.Area = &area
	return b
}

// WithStatus sets the status
func (b *BugBuilder) WithStatus(status database.BugStatus) *BugBuilder {
	b.bug.Status = status
	return b
}

// WithEmbedding sets the embedding vector
func (b *BugBuilder) WithEmbedding(vec database.Vector) *BugBuilder {
	b.bug.Embedding = &vec
	return b
}

// WithCreatedAt sets the creation time
func (b *BugBuilder) WithCreatedAt(at time.Time) *BugBuilder {
	b.bug.CreatedAt = at
	return b
}

// Build returns the constructed bug
func (b *BugBuilder) Build() database.Bug {
	return b.bug
}

// Create persists the bug and fails the test on error
func (b *BugBuilder) Create(t *testing.T, db *gorm.DB) database.Bug {
	t.Helper()
	bug := b.bug
	if err := db.Create(&bug).Error; err != nil {
		t.Fatalf("failed to create test bug: %v", err)
	}
	return bug
}

// CommentBuilder builds Comment rows for testing
type CommentBuilder struct {
	comment database.Comment
}

// NewCommentBuilder creates a comment builder with defaults
func NewCommentBuilder(bugID, userID string) *CommentBuilder {
	return &CommentBuilder{
		comment: database.Comment{
			Content: "Test comment",
			BugID:   bugID,
			UserID:  userID,
		},
	}
}

// WithContent sets the content
func (b *CommentBuilder) WithContent(content string) *CommentBuilder {
	b.comment.Content = content
	return b
}

// Build returns the constructed comment
func (b *CommentBuilder) Build() database.Comment {
	return b.comment
}

// Create persists the comment and fails the test on error
func (b *CommentBuilder) Create(t *testing.T, db *gorm.DB) database.Comment {
	t.Helper()
	comment := b.comment
	if err := db.Create(&comment).Error; err != nil {
		t.Fatalf("failed to create test comment: %v", err)
	}
	return comment
}
