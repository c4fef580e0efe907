package indexer

import (
	"context"
	"strings"
	"time"

	"github.com/ishaan812/gitsage/internal/loader"
	"github.com/ishaan812/gitsage/internal/prompts"
)

const (
	// MaxSourceChars is how much of a file goes into its summary prompt.
	MaxSourceChars = 10000
	// MaxDiffChars bounds the diff sent for a commit summary.
	MaxDiffChars = 60000

	truncatedMarker = "\n... (truncated)"
	summaryTimeout  = 120 * time.Second
)

// TextSummarizer is the best-effort generation path of the AI gateway.
type TextSummarizer interface {
	Summarize(ctx context.Context, prompt string) string
}

// Summarizer builds file and commit prompts and returns the model's summary.
// Failures come back as the empty string.
type Summarizer struct {
	ai TextSummarizer
}

func NewSummarizer(ai TextSummarizer) *Summarizer {
	return &Summarizer{ai: ai}
}

// SummarizeFile returns a summary of at most ~100 words for doc.
func (s *Summarizer) SummarizeFile(ctx context.Context, doc loader.Document) string {
	content, _ := Truncate(doc.Content, MaxSourceChars)
	prompt := prompts.BuildFileSummaryPrompt(doc.Path, doc.Language, content)

	ctx, cancel := context.WithTimeout(ctx, summaryTimeout)
	defer cancel()
	return s.ai.Summarize(ctx, prompt)
}

// SummarizeCommit summarizes a unified diff. An empty diff yields an empty
// summary without calling the model.
func (s *Summarizer) SummarizeCommit(ctx context.Context, diff string) string {
	if strings.TrimSpace(diff) == "" {
		return ""
	}
	if d, cut := Truncate(diff, MaxDiffChars); cut {
		diff = d + truncatedMarker
	}

	ctx, cancel := context.WithTimeout(ctx, summaryTimeout)
	defer cancel()
	return s.ai.Summarize(ctx, prompts.BuildCommitSummaryPrompt(diff))
}

// Truncate returns the first n characters of s and whether anything was cut.
func Truncate(s string, n int) (string, bool) {
	if len(s) <= n {
		return s, false
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}
