package indexer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ishaan812/gitsage/internal/loader"
)

type recordingAI struct {
	prompts []string
	reply   string
}

func (r *recordingAI) Summarize(ctx context.Context, prompt string) string {
	r.prompts = append(r.prompts, prompt)
	return r.reply
}

func TestSummarizeFileCapsSource(t *testing.T) {
	ai := &recordingAI{reply: "Routes requests."}
	s := NewSummarizer(ai)

	content := strings.Repeat("a", MaxSourceChars) + "TAIL"
	got := s.SummarizeFile(context.Background(), loader.Document{Path: "src/router.go", Content: content, Language: "Go"})

	assert.Equal(t, "Routes requests.", got)
	assert.Len(t, ai.prompts, 1)
	assert.Contains(t, ai.prompts[0], "src/router.go")
	assert.NotContains(t, ai.prompts[0], "TAIL")
}

func TestSummarizeCommitSkipsEmptyDiff(t *testing.T) {
	ai := &recordingAI{reply: "x"}
	s := NewSummarizer(ai)

	assert.Equal(t, "", s.SummarizeCommit(context.Background(), "  \n"))
	assert.Empty(t, ai.prompts)
}

func TestSummarizeCommitTruncatesLargeDiff(t *testing.T) {
	ai := &recordingAI{reply: "- Big change"}
	s := NewSummarizer(ai)

	diff := "diff --git a/x b/x\n" + strings.Repeat("+", MaxDiffChars) + "LOST"
	assert.Equal(t, "- Big change", s.SummarizeCommit(context.Background(), diff))
	assert.NotContains(t, ai.prompts[0], "LOST")
	assert.True(t, strings.HasSuffix(ai.prompts[0], truncatedMarker))
}

func TestTruncateIsRuneSafe(t *testing.T) {
	s, cut := Truncate("héllo", 2)
	assert.True(t, cut)
	assert.Equal(t, "hé", s)

	s, cut = Truncate("abc", 5)
	assert.False(t, cut)
	assert.Equal(t, "abc", s)
}
