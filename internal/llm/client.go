// Package llm wraps the OpenAI API behind a process-wide rate budget with
// retries. All embedding and text-generation traffic goes through one Client.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bugbase/bugbase/internal/domain"
	"github.com/bugbase/bugbase/internal/ratelimit"
)

const (
	// DefaultRequestsPerSecond is the outbound rate ceiling shared by all calls
	DefaultRequestsPerSecond = 5
	// DefaultBurst is the token bucket burst capacity
	DefaultBurst = 5
	// MaxRetries is the number of attempts before a call fails permanently
	MaxRetries = 3
)

// ClientConfig configures the shared OpenAI client
type ClientConfig struct {
	APIKey         string
	BaseURL        string // Override for tests and API-compatible gateways
	ChatModel      string
	EmbeddingModel string
	RequestsPerSec float64
	Burst          int
}

// Client is the shared OpenAI wrapper. Every call first acquires the rate
// limiter, then retries up to MaxRetries times with exponential backoff on
// 429/5xx responses. After exhausting retries the call fails permanently for
// that invocation; no circuit breaker state is kept.
type Client struct {
	api            *openai.Client
	limiter        *ratelimit.Limiter
	chatModel      string
	embeddingModel string

	// sleep is replaceable in tests to avoid real backoff delays
	sleep func(time.Duration)
}

// NewClient creates the shared OpenAI client
func NewClient(cfg ClientConfig) *Client {
	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = cfg.BaseURL
	}

	rate := cfg.RequestsPerSec
	if rate <= 0 {
		rate = DefaultRequestsPerSecond
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = "gpt-4.1-mini"
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = string(openai.SmallEmbedding3)
	}

	return &Client{
		api:            openai.NewClientWithConfig(apiConfig),
		limiter:        ratelimit.New(rate, burst),
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		sleep:          time.Sleep,
	}
}

// isRetryable reports whether the error is a rate limit or server-side
// failure worth retrying
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	return false
}

// withRetry runs fn up to MaxRetries times with exponential backoff
// (1s, 2s, 4s) on retryable failures
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.NewProviderError(op, err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || attempt == MaxRetries-1 {
			break
		}

		backoff := time.Duration(1<<attempt) * time.Second
		log.Printf("%s failed (attempt %d/%d), retrying in %s: %v", op, attempt+1, MaxRetries, backoff, lastErr)
		c.sleep(backoff)
	}
	return domain.NewProviderError(op, lastErr)
}

// CreateEmbedding generates an embedding vector for the given text
func (c *Client) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	var embedding []float32
	err := c.withRetry(ctx, "embedding request", func() error {
		resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(c.embeddingModel),
			Input: []string{text},
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return errors.New("embedding response contained no data")
		}
		embedding = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, err
	}
	return embedding, nil
}

// CompleteJSON runs a chat completion in JSON-object mode and returns the raw
// response content. Callers are responsible for parsing and validating it.
func (c *Client) CompleteJSON(ctx context.Context, model, systemPrompt, userPrompt string, temperature float32) (string, error) {
	if model == "" {
		model = c.chatModel
	}

	messages := []openai.ChatCompletionMessage{}
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})

	var content string
	err := c.withRetry(ctx, "completion request", func() error {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       model,
			Messages:    messages,
			Temperature: temperature,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("completion response contained no choices")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	if content == "" {
		return "", domain.NewProviderError("completion request", fmt.Errorf("empty response content"))
	}
	return content, nil
}
