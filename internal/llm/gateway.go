package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/rs/zerolog/log"
)

// Gateway is the single entry point the pipeline uses for AI calls. It
// applies one RetryPolicy to generation, streaming and embedding.
type Gateway struct {
	client   Client
	embedder EmbeddingClient
	policy   RetryPolicy
}

// GatewayOption is a functional option for configuring a Gateway.
type GatewayOption func(*Gateway)

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) GatewayOption {
	return func(g *Gateway) { g.policy = p }
}

// NewGateway wraps a generation client and an embedder.
func NewGateway(client Client, embedder EmbeddingClient, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		client:   client,
		embedder: embedder,
		policy:   DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dimensions returns the embedder's vector width.
func (g *Gateway) Dimensions() int {
	return g.embedder.Dimensions()
}

// GenerateText returns a single completion. Blank responses count as soft
// failures against the retry budget.
func (g *Gateway) GenerateText(ctx context.Context, prompt string) (string, error) {
	return retry(ctx, g.policy, "generate", func(ctx context.Context) (string, error) {
		text, err := g.client.Complete(ctx, prompt)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			return "", ErrSoftFailure
		}
		return text, nil
	})
}

// Summarize is the best-effort path: any failure, including an exhausted
// retry budget, degrades to the empty string.
func (g *Gateway) Summarize(ctx context.Context, prompt string) string {
	text, err := g.GenerateText(ctx, prompt)
	if err != nil {
		if !errors.Is(ctx.Err(), context.Canceled) {
			log.Warn().Err(err).Msg("Summary generation failed, using empty summary")
		}
		return ""
	}
	return strings.TrimSpace(text)
}

// Embed returns the embedding vector for text. Unlike Summarize it never
// degrades silently: exhaustion or a bad vector is returned as an error.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("embed: empty input text")
	}
	return retry(ctx, g.policy, "embed", func(ctx context.Context) ([]float32, error) {
		vec, err := g.embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		if len(vec) == 0 {
			return nil, ErrSoftFailure
		}
		if d := g.embedder.Dimensions(); d > 0 && len(vec) != d {
			return nil, fmt.Errorf("%w: expected %d dimensions, got %d", ErrSoftFailure, d, len(vec))
		}
		return vec, nil
	})
}

// StreamText yields text deltas as they arrive. A failure before the first
// delta is retried under the policy; after that an error ends the sequence.
// Stopping the range early releases the provider stream.
func (g *Gateway) StreamText(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for attempt := 1; ; attempt++ {
			started := false
			var streamErr error
			for delta, err := range g.client.Stream(ctx, prompt) {
				if err != nil {
					streamErr = err
					break
				}
				if delta == "" {
					continue
				}
				started = true
				if !yield(delta, nil) {
					return
				}
			}
			if streamErr == nil && !started {
				streamErr = ErrSoftFailure
			}
			if streamErr == nil {
				return
			}
			if started || !g.policy.retryable(streamErr) {
				yield("", streamErr)
				return
			}
			if attempt >= g.policy.attempts() {
				yield("", fmt.Errorf("stream: giving up after %d attempts: %w", attempt, streamErr))
				return
			}
			delay := g.policy.Backoff(attempt)
			log.Debug().Err(streamErr).Int("attempt", attempt).Dur("backoff", delay).Msg("Retrying stream open")
			if err := g.policy.sleep(ctx, delay); err != nil {
				yield("", err)
				return
			}
		}
	}
}
