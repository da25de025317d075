// Package ai provides the remote text and embedding services behind the
// query engine. Both run through the retry executor; a modest client-side
// rate limit keeps retry bursts from amplifying upstream pressure.
package ai

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/relivre/popcorn/plugin/ai/retry"
)

// Config holds the AI provider configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	EmbeddingModel string
	ChatModel      string
	RetryPolicy    retry.Policy
	RequestsPerSec float64
	Timeout        time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "https://api.openai.com/v1",
		EmbeddingModel: "text-embedding-3-small",
		ChatModel:      "gpt-4o-mini",
		RetryPolicy:    retry.DefaultPolicy(),
		RequestsPerSec: 10,
		Timeout:        30 * time.Second,
	}
}

// TextService is the remote text/embedding service contract consumed by
// the query engine. Satisfied by Provider in production and by stubs in
// tests.
type TextService interface {
	// Complete performs a single-turn chat completion.
	Complete(ctx context.Context, prompt string) (string, error)
	// Embedding generates an embedding vector for the given text.
	Embedding(ctx context.Context, text string) ([]float32, error)
	// EmbeddingModel returns the model identifier used for embeddings,
	// which participates in cache keys.
	EmbeddingModel() string
}

// Provider implements TextService against an OpenAI-compatible API.
type Provider struct {
	client  *openai.Client
	config  *Config
	limiter *rate.Limiter
}

// NewProvider creates a new AI provider.
func NewProvider(cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.APIKey == "" {
		return nil, errors.New("AI provider requires an API key")
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultConfig().EmbeddingModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultConfig().ChatModel
	}
	if cfg.RetryPolicy.MaxAttempts == 0 {
		cfg.RetryPolicy = retry.DefaultPolicy()
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = DefaultConfig().RequestsPerSec
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client:  openai.NewClientWithConfig(clientConfig),
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), int(cfg.RequestsPerSec)),
	}, nil
}

// Complete performs a single-turn chat completion with temperature 0.
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	var result string
	err := p.config.RetryPolicy.Do(ctx, func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}

		req := openai.ChatCompletionRequest{
			Model: p.config.ChatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: 0,
		}

		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("empty chat response")
		}
		result = resp.Choices[0].Message.Content
		return nil
	}, retry.Transient)

	if err != nil {
		return "", errors.Wrap(err, "chat completion failed")
	}
	return result, nil
}

// Embedding generates an embedding vector for the given text.
func (p *Provider) Embedding(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	err := p.config.RetryPolicy.Do(ctx, func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}

		req := openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(p.config.EmbeddingModel),
		}

		resp, err := p.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return errors.New("empty embedding response")
		}
		result = resp.Data[0].Embedding
		return nil
	}, retry.Transient)

	if err != nil {
		return nil, errors.Wrap(err, "embedding failed")
	}
	return result, nil
}

// EmbeddingModel returns the configured embedding model identifier.
func (p *Provider) EmbeddingModel() string {
	return p.config.EmbeddingModel
}

// Validate checks API connectivity with a throwaway embedding request.
func (p *Provider) Validate(ctx context.Context) error {
	if _, err := p.Embedding(ctx, "test"); err != nil {
		return errors.Wrap(err, "provider validation failed")
	}

	slog.Info("AI provider validated",
		"embedding_model", p.config.EmbeddingModel,
		"chat_model", p.config.ChatModel)
	return nil
}

var _ TextService = (*Provider)(nil)
