package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bugbase/bugbase/internal/database"
	"github.com/bugbase/bugbase/internal/domain"
)

// Classification is the AI-proposed triage for a new bug
type Classification struct {
	Severity  database.Severity `json:"severity"`
	Area      database.Area     `json:"area"`
	Reasoning string            `json:"reasoning"`
}

// Classifier proposes a severity and area for new bug reports
type Classifier struct {
	client *Client
	model  string
}

// NewClassifier creates a new classifier
func NewClassifier(client *Client, model string) *Classifier {
	return &Classifier{client: client, model: model}
}

// classifierPrompt builds the triage prompt for one bug
func classifierPrompt(title, description string) string {
	return fmt.Sprintf(`You are a bug triage assistant. Classify this bug report.

Title: %s
Description: %s

Output JSON with:
- severity: S0 (critical - system down, data loss), S1 (high - major feature broken), S2 (medium - minor feature issue), or S3 (low - cosmetic, enhancement)
- area: FRONTEND (UI/UX issues), BACKEND (API/server issues), INFRA (deployment, scaling, performance), or DATA (database, data integrity)
- reasoning: one sentence explanation for your classification

Respond ONLY with valid JSON.`, title, description)
}

// Classify proposes a severity and area for the given bug text.
// Malformed or out-of-enum output is treated as a provider failure.
func (c *Classifier) Classify(ctx context.Context, title, description string) (*Classification, error) {
	content, err := c.client.CompleteJSON(ctx, c.model, "", classifierPrompt(title, description), 0.3)
	if err != nil {
		return nil, err
	}

	var result Classification
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, domain.NewProviderError("classification", fmt.Errorf("invalid JSON in response: %w", err))
	}

	if !database.ValidSeverity(result.Severity) {
		return nil, domain.NewProviderError("classification", fmt.Errorf("invalid severity %q in response", result.Severity))
	}
	if !database.ValidArea(result.Area) {
		return nil, domain.NewProviderError("classification", fmt.Errorf("invalid area %q in response", result.Area))
	}

	return &result, nil
}
