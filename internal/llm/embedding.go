package llm

import (
	"context"
	"fmt"

	"github.com/bugbase/bugbase/internal/database"
	"github.com/bugbase/bugbase/internal/domain"
)

// EmbeddingService generates embedding vectors for bug text
type EmbeddingService struct {
	client *Client
}

// NewEmbeddingService creates a new embedding service
func NewEmbeddingService(client *Client) *EmbeddingService {
	return &EmbeddingService{client: client}
}

// FormatBugText concatenates title and description into the canonical text
// that gets embedded. The blank-line separator is part of the contract:
// re-embedding the same bug must produce input identical to the original
// computation, or stored vectors stop being comparable.
func FormatBugText(title, description string) string {
	return fmt.Sprintf("%s\n\n%s", title, description)
}

// Generate computes a fixed-length embedding for the given text
func (s *EmbeddingService) Generate(ctx context.Context, text string) (database.Vector, error) {
	raw, err := s.client.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(raw) != database.EmbeddingDim {
		return nil, domain.NewProviderError("embedding request",
			fmt.Errorf("expected %d dimensions, got %d", database.EmbeddingDim, len(raw)))
	}
	return database.Vector(raw), nil
}
