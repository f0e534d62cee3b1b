package services

import (
	"context"

	"github.com/bugbase/bugbase/internal/database"
	"github.com/bugbase/bugbase/internal/llm"
)

// EmbeddingProvider generates fixed-length embedding vectors for text
type EmbeddingProvider interface {
	Generate(ctx context.Context, text string) (database.Vector, error)
}

// BugClassifier proposes a severity and area for a new bug report
type BugClassifier interface {
	Classify(ctx context.Context, title, description string) (*llm.Classification, error)
}

// CompletionProvider runs a JSON-mode chat completion and returns the raw
// response content
type CompletionProvider interface {
	CompleteJSON(ctx context.Context, model, systemPrompt, userPrompt string, temperature float32) (string, error)
}

// Notifier receives best-effort notifications about noteworthy events.
// Implementations must not block and must never fail the calling operation.
type Notifier interface {
	BugCreated(bug *database.Bug)
	MergeCompleted(primaryBugID, mergedTitle string, duplicatesRemoved int, commentsTransferred int64)
}
