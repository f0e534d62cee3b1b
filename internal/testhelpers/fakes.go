package testhelpers

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"github.com/bugbase/bugbase/internal/database"
	"github.com/bugbase/bugbase/internal/llm"
)

// FakeEmbedder is a deterministic EmbeddingProvider. Texts can be pinned to
// explicit vectors; anything else gets a stable vector derived from the text
// so equal texts always embed identically.
type FakeEmbedder struct {
	mu      sync.Mutex
	Vectors map[string]database.Vector
	Err     error
	Calls   []string
}

// NewFakeEmbedder creates an embedder with no pinned vectors
func NewFakeEmbedder() *FakeEmbedder {
	return &FakeEmbedder{Vectors: map[string]database.Vector{}}
}

// Pin fixes the vector returned for a given text
func (f *FakeEmbedder) Pin(text string, vec database.Vector) *FakeEmbedder {
	f.Vectors[text] = vec
	return f
}

// Generate returns the pinned or derived vector for text
func (f *FakeEmbedder) Generate(ctx context.Context, text string) (database.Vector, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, text)
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	if vec, ok := f.Vectors[text]; ok {
		return vec, nil
	}
	return DeriveVector(text), nil
}

// CallCount returns how many times Generate was invoked
func (f *FakeEmbedder) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// DeriveVector produces a stable unit-norm vector from text
func DeriveVector(text string) database.Vector {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make(database.Vector, database.EmbeddingDim)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float32(int64(seed>>33)) / float32(1<<30)
		vec[i] = v
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// UnitVector builds an EmbeddingDim-length vector pointing along one axis.
// Useful for constructing neighbors with exact cosine distances.
func UnitVector(axis int) database.Vector {
	vec := make(database.Vector, database.EmbeddingDim)
	vec[axis] = 1
	return vec
}

// BlendVectors returns the normalized weighted sum of two vectors
func BlendVectors(a, b database.Vector, wa, wb float64) database.Vector {
	vec := make(database.Vector, len(a))
	var norm float64
	for i := range vec {
		v := wa*float64(a[i]) + wb*float64(b[i])
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// FakeClassifier is a canned BugClassifier
type FakeClassifier struct {
	Result *llm.Classification
	Err    error
	Calls  int
}

// Classify returns the canned classification
func (f *FakeClassifier) Classify(ctx context.Context, title, description string) (*llm.Classification, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Result != nil {
		return f.Result, nil
	}
	return &llm.Classification{
		Severity:  database.SeverityS2,
		Area:      database.AreaBackend,
		Reasoning: "canned classification",
	}, nil
}

// FakeCompleter is a canned CompletionProvider that records its prompts
type FakeCompleter struct {
	Response   string
	Err        error
	LastSystem string
	LastUser   string
	Calls      int
}

// CompleteJSON returns the canned response
func (f *FakeCompleter) CompleteJSON(ctx context.Context, model, systemPrompt, userPrompt string, temperature float32) (string, error) {
	f.Calls++
	f.LastSystem = systemPrompt
	f.LastUser = userPrompt
	if f.Err != nil {
		return "", f.Err
	}
	return f.Response, nil
}

// MergeNotification records one MergeCompleted call
type MergeNotification struct {
	PrimaryBugID        string
	MergedTitle         string
	DuplicatesRemoved   int
	CommentsTransferred int64
}

// RecordingNotifier captures notifications for assertions
type RecordingNotifier struct {
	mu      sync.Mutex
	Created []string
	Merges  []MergeNotification
}

// BugCreated records the bug id
func (n *RecordingNotifier) BugCreated(bug *database.Bug) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if bug != nil {
		n.Created = append(n.Created, bug.ID)
	}
}

// MergeCompleted records the merge outcome
func (n *RecordingNotifier) MergeCompleted(primaryBugID, mergedTitle string, duplicatesRemoved int, commentsTransferred int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Merges = append(n.Merges, MergeNotification{
		PrimaryBugID:        primaryBugID,
		MergedTitle:         mergedTitle,
		DuplicatesRemoved:   duplicatesRemoved,
		CommentsTransferred: commentsTransferred,
	})
}
