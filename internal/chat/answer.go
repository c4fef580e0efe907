package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/ishaan812/gitsage/internal/db"
	"github.com/ishaan812/gitsage/internal/prompts"
)

const (
	// SimilarityThreshold is the minimum cosine similarity, exclusive.
	SimilarityThreshold = 0.5
	// MaxReferences is how many files retrieval returns at most.
	MaxReferences = 10
)

// ErrAlreadyConsumed is yielded when an answer's deltas are ranged twice.
var ErrAlreadyConsumed = errors.New("answer stream already consumed")

// UnknownAnswer is what the model is instructed to reply when the context
// does not cover the question.
const UnknownAnswer = prompts.UnknownAnswer

// AI is the part of the gateway the answerer needs.
type AI interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	StreamText(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// Retriever runs similarity search over indexed files.
type Retriever interface {
	FindSimilarFiles(ctx context.Context, projectID string, embedding []float32, threshold float64, limit int) ([]db.ScoredFile, error)
}

// Answerer answers questions about a project from its indexed files.
type Answerer struct {
	ai      AI
	store   Retriever
	budget  int
	counter TokenCounter
}

// Option is a functional option for configuring an Answerer.
type Option func(*Answerer)

// WithTokenBudget bounds the context block; zero or less disables the bound.
func WithTokenBudget(n int) Option {
	return func(a *Answerer) { a.budget = n }
}

func WithTokenCounter(c TokenCounter) Option {
	return func(a *Answerer) { a.counter = c }
}

func NewAnswerer(ai AI, store Retriever, opts ...Option) *Answerer {
	a := &Answerer{ai: ai, store: store, budget: DefaultTokenBudget}
	for _, opt := range opts {
		opt(a)
	}
	if a.counter == nil {
		a.counter = NewTokenCounter()
	}
	return a
}

// Answer is one question-answer exchange. References are resolved before
// any text is generated.
type Answer struct {
	Question   string
	References []db.ScoredFile

	stream   iter.Seq2[string, error]
	consumed atomic.Bool
}

// Deltas yields the answer text as it is generated. It may be ranged once;
// stopping early releases the provider stream.
func (a *Answer) Deltas() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if a.consumed.Swap(true) {
			yield("", ErrAlreadyConsumed)
			return
		}
		for delta, err := range a.stream {
			if !yield(delta, err) || err != nil {
				return
			}
		}
	}
}

// Collect drains Deltas into a string. On error the text received so far is
// returned with it.
func (a *Answer) Collect() (string, error) {
	var sb strings.Builder
	for delta, err := range a.Deltas() {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(delta)
	}
	return sb.String(), nil
}

// ReferencePaths lists the referenced file paths in rank order.
func (a *Answer) ReferencePaths() []string {
	paths := make([]string, len(a.References))
	for i, r := range a.References {
		paths[i] = r.Path
	}
	return paths
}

// SavedReferences snapshots the referenced files for storage with the answer.
func (a *Answer) SavedReferences() []db.FileReference {
	refs := make([]db.FileReference, len(a.References))
	for i, r := range a.References {
		refs[i] = db.FileReference{Path: r.Path, SourceCode: r.Content, Summary: r.Summary, Similarity: r.Similarity}
	}
	return refs
}

// Ask embeds the question, retrieves the most similar files of the project
// and starts streaming a grounded answer. Embedding and retrieval errors are
// returned; errors during generation end the delta sequence.
func (an *Answerer) Ask(ctx context.Context, projectID, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question is empty")
	}

	embedding, err := an.ai.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	files, err := an.store.FindSimilarFiles(ctx, projectID, embedding, SimilarityThreshold, MaxReferences)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	block, included := BuildContext(files, an.budget, an.counter)
	log.Debug().
		Str("project", projectID).
		Int("retrieved", len(files)).
		Int("in_context", len(included)).
		Msg("Built answer context")

	prompt := prompts.BuildAnswerPrompt(block, question)
	return &Answer{
		Question:   question,
		References: files,
		stream:     an.ai.StreamText(ctx, prompt),
	}, nil
}
