package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// ── Gemini SDK connection ──────────────────────────────────────────────────

// geminiConn lazily builds the SDK client on first use. Safe for concurrent use.
type geminiConn struct {
	mu     sync.Mutex
	client *genai.Client
	apiKey string
}

func (c *geminiConn) ensureClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  c.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c.client = client
	return client, nil
}

// classifyGeminiError maps SDK errors onto ProviderError so 429s are
// recognised as ErrRateLimited.
func classifyGeminiError(op string, err error) error {
	pe := &ProviderError{Provider: ProviderGemini, Op: op, Err: err}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		pe.StatusCode = apiErr.Code
	}
	return pe
}

// ── Gemini LLM Client ──────────────────────────────────────────────────────

// GeminiClient implements Client using Google's official Gemini Go SDK.
type GeminiClient struct {
	conn  *geminiConn
	model string
}

func NewGeminiClient(apiKey, model string) *GeminiClient {
	return &GeminiClient{
		conn:  &geminiConn{apiKey: apiKey},
		model: model,
	}
}

func (c *GeminiClient) generateConfig() *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if strings.Contains(c.model, "pro") {
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingLevel: "HIGH",
		}
	}
	return config
}

func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	client, err := c.conn.ensureClient(ctx)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	result, err := client.Models.GenerateContent(ctx, c.model, contents, c.generateConfig())
	if err != nil {
		return "", classifyGeminiError("generate", err)
	}

	return result.Text(), nil
}

func (c *GeminiClient) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		client, err := c.conn.ensureClient(ctx)
		if err != nil {
			yield("", err)
			return
		}

		contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
		for resp, err := range client.Models.GenerateContentStream(ctx, c.model, contents, c.generateConfig()) {
			if err != nil {
				yield("", classifyGeminiError("stream", err))
				return
			}
			if !yield(resp.Text(), nil) {
				return
			}
		}
	}
}

// ── Gemini Embedder ────────────────────────────────────────────────────────

// GeminiEmbedder uses the Gemini embedContent endpoint.
type GeminiEmbedder struct {
	conn       *geminiConn
	model      string
	dimensions int
}

func NewGeminiEmbedder(apiKey, model string, dimensions int) *GeminiEmbedder {
	return &GeminiEmbedder{
		conn:       &geminiConn{apiKey: apiKey},
		model:      model,
		dimensions: dimensions,
	}
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	client, err := e.conn.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	dims := int32(e.dimensions)
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	result, err := client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, classifyGeminiError("embed", err)
	}
	if result == nil || len(result.Embeddings) == 0 || result.Embeddings[0] == nil {
		return nil, ErrSoftFailure
	}

	return result.Embeddings[0].Values, nil
}

func (e *GeminiEmbedder) Dimensions() int {
	return e.dimensions
}
