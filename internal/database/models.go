package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Severity represents how bad a bug is, S0 (critical) through S3 (cosmetic)
type Severity string

const (
	SeverityS0 Severity = "S0"
	SeverityS1 Severity = "S1"
	SeverityS2 Severity = "S2"
	SeverityS3 Severity = "S3"
)

// Area represents the part of the system a bug belongs to
type Area string

const (
	AreaFrontend Area = "FRONTEND"
	AreaBackend  Area = "BACKEND"
	AreaInfra    Area = "INFRA"
	AreaData     Area = "DATA"
)

// BugStatus represents the lifecycle state of a bug
type BugStatus string

const (
	BugStatusOpen       BugStatus = "OPEN"
	BugStatusInProgress BugStatus = "IN_PROGRESS"
	BugStatusResolved   BugStatus = "RESOLVED"
	BugStatusClosed     BugStatus = "CLOSED"
)

// ValidSeverities returns all allowed severity values
func ValidSeverities() []Severity {
	return []Severity{SeverityS0, SeverityS1, SeverityS2, SeverityS3}
}

// ValidAreas returns all allowed area values
func ValidAreas() []Area {
	return []Area{AreaFrontend, AreaBackend, AreaInfra, AreaData}
}

// ValidBugStatuses returns all allowed status values
func ValidBugStatuses() []BugStatus {
	return []BugStatus{BugStatusOpen, BugStatusInProgress, BugStatusResolved, BugStatusClosed}
}

// ValidSeverity reports whether s is an allowed severity value
func ValidSeverity(s Severity) bool {
	for _, v := range ValidSeverities() {
		if s == v {
			return true
		}
	}
	return false
}

// ValidArea reports whether a is an allowed area value
func ValidArea(a Area) bool {
	for _, v := range ValidAreas() {
		if a == v {
			return true
		}
	}
	return false
}

// ValidBugStatus reports whether s is an allowed status value
func ValidBugStatus(s BugStatus) bool {
	for _, v := range ValidBugStatuses() {
		if s == v {
			return true
		}
	}
	return false
}

// User represents a registered reporter
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUID when none was provided
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Bug represents a filed bug report.
//
// Severity and Area are the human-confirmed classification. SuggestedSeverity
// and SuggestedArea are AI-proposed and independent of the confirmed fields;
// confirming a classification never overwrites the suggestion.
//
// Embedding is derived from Title + Description at the time of last
// computation. It is nullable: a bug whose embedding failed to compute is
// still a valid bug, it just cannot be found by similarity search.
type Bug struct {
	ID                string     `gorm:"primaryKey;size:36" json:"id"`
	Title             string     `gorm:"size:256;not null" json:"title"`
	Description       string     `gorm:"type:text;not null" json:"description"`
	Severity          *Severity  `gorm:"type:varchar(2)" json:"severity"`
	Area              *Area      `gorm:"type:varchar(16)" json:"area"`
	SuggestedSeverity *Severity  `gorm:"type:varchar(2)" json:"suggested_severity"`
	SuggestedArea     *Area      `gorm:"type:varchar(16)" json:"suggested_area"`
	Status            BugStatus  `gorm:"type:varchar(16);not null;default:'OPEN'" json:"status"`
	Embedding         *Vector    `json:"-"` // Never serialized in API responses
	CreatedByID       string     `gorm:"size:36;not null;index" json:"created_by_id"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// Relationships
	CreatedBy *User     `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	Comments  []Comment `gorm:"foreignKey:BugID" json:"comments,omitempty"`
}

// BeforeCreate assigns a UUID and default status when none was provided
func (b *Bug) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = BugStatusOpen
	}
	return nil
}

// Comment belongs to exactly one bug. Comments are reassigned to another bug
// only by the merge executor and are never deleted on their own.
type Comment struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	BugID     string    `gorm:"size:36;not null;index" json:"bug_id"`
	UserID    string    `gorm:"size:36;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	// Relationships
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// BeforeCreate assigns a UUID when none was provided
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// MessageRole represents who authored a chat message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)

// ChatSession groups the messages of one triage-assistant conversation
type ChatSession struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Title     *string   `gorm:"size:255" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when none was provided
func (s *ChatSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// ChatMessage is one message in a chat session
type ChatMessage struct {
	ID          string      `gorm:"primaryKey;size:36" json:"id"`
	Role        MessageRole `gorm:"type:varchar(16);not null" json:"role"`
	Content     string      `gorm:"type:text;not null" json:"content"`
	SessionID   string      `gorm:"size:36;not null;index" json:"session_id"`
	CreatedByID *string     `gorm:"size:36" json:"created_by_id"`
	IsComplete  bool        `gorm:"default:true" json:"is_complete"`
	CreatedAt   time.Time   `json:"created_at"`
}

// BeforeCreate assigns a UUID when none was provided
func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// BugMerge records one duplicate consumed by a merge operation.
// This provides an audit trail: the duplicate row itself is deleted, so these
// rows are the only remaining record of where comments came from.
type BugMerge struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	PrimaryBugID   string    `gorm:"size:36;not null;index" json:"primary_bug_id"`
	DuplicateBugID string    `gorm:"size:36;not null" json:"duplicate_bug_id"` // Deleted after the merge
	Reason         string    `gorm:"type:text" json:"reason"`
	MergedBy       string    `gorm:"type:varchar(50);not null" json:"merged_by"` // 'agent' or a user id
	CommentsMoved  int64     `json:"comments_moved"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName overrides for explicit table naming
func (User) TableName() string {
	return "users"
}

func (Bug) TableName() string {
	return "bugs"
}

func (Comment) TableName() string {
	return "comments"
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

func (BugMerge) TableName() string {
	return "bug_merges"
}
