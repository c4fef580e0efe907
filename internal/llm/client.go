package llm

import (
	"context"
	"fmt"
	"iter"

	"github.com/ishaan812/gitsage/internal/constants"
)

// Client defines the interface for text generation.
type Client interface {
	// Complete returns a single-shot completion for prompt.
	Complete(ctx context.Context, prompt string) (string, error)
	// Stream yields incremental text deltas. The sequence is single-pass;
	// the consumer may stop early and the underlying connection is released.
	Stream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// EmbeddingClient generates vector embeddings for text
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Provider represents an AI provider type.
type Provider = constants.Provider

const (
	ProviderGemini = constants.ProviderGemini
	ProviderOllama = constants.ProviderOllama
)

// Config holds configuration for creating provider clients.
type Config struct {
	Provider       Provider
	Model          string
	EmbeddingModel string
	BaseURL        string
	APIKey         string
	Dimensions     int
}

func (c Config) withDefaults() Config {
	defaults := constants.DefaultModels[c.Provider]
	if c.Model == "" {
		c.Model = defaults.LLMModel
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = defaults.EmbeddingModel
	}
	if c.BaseURL == "" {
		c.BaseURL = defaults.BaseURL
	}
	if c.Dimensions <= 0 {
		c.Dimensions = constants.EmbeddingDimensions
	}
	return c
}

// NewClient creates a generation client from config.
func NewClient(cfg Config) (Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Model == "" {
		return nil, fmt.Errorf("no model specified for provider %q; run 'gitsage configure'", cfg.Provider)
	}
	switch cfg.Provider {
	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Gemini API key is required")
		}
		return NewGeminiClient(cfg.APIKey, cfg.Model), nil
	case ProviderOllama:
		return NewOllamaClient(cfg.BaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// NewEmbedder creates an embedding client from config.
func NewEmbedder(cfg Config) (EmbeddingClient, error) {
	cfg = cfg.withDefaults()
	switch cfg.Provider {
	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Gemini API key is required for embeddings")
		}
		return NewGeminiEmbedder(cfg.APIKey, cfg.EmbeddingModel, cfg.Dimensions), nil
	case ProviderOllama:
		return NewOllamaEmbedder(cfg.BaseURL, cfg.EmbeddingModel, cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}
