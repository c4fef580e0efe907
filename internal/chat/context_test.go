package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ishaan812/gitsage/internal/db"
)

// wordCounter counts whitespace-separated words as tokens.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func TestBuildContextFormatsEntries(t *testing.T) {
	block, included := BuildContext([]db.ScoredFile{
		{Path: "a.go", Content: "package a", Summary: "Declares a."},
		{Path: "b.go", Content: "package b", Summary: "Declares b."},
	}, 0, wordCounter{})

	assert.Equal(t,
		"source: a.go\ncode content: package a\n summary of file: Declares a.\n\n"+
			"source: b.go\ncode content: package b\n summary of file: Declares b.\n\n",
		block)
	assert.Len(t, included, 2)
}

func TestBuildContextTruncatesLongSource(t *testing.T) {
	long := strings.Repeat("x", MaxContextSourceChars+500)
	block, _ := BuildContext([]db.ScoredFile{{Path: "big.go", Content: long}}, 0, wordCounter{})
	assert.Contains(t, block, "... (truncated)")
	assert.NotContains(t, block, strings.Repeat("x", MaxContextSourceChars+1))
}

func TestBuildContextHonoursTokenBudget(t *testing.T) {
	files := []db.ScoredFile{
		{Path: "first.go", Content: strings.Repeat("w ", 20), Summary: "s"},
		{Path: "huge.go", Content: strings.Repeat("w ", 200), Summary: "s"},
		{Path: "small.go", Content: "w", Summary: "s"},
	}
	block, included := BuildContext(files, 50, wordCounter{})

	assert.Contains(t, block, "first.go")
	assert.NotContains(t, block, "huge.go")
	assert.Contains(t, block, "small.go")
	if assert.Len(t, included, 2) {
		assert.Equal(t, "first.go", included[0].Path)
		assert.Equal(t, "small.go", included[1].Path)
	}
}

func TestBuildContextEmpty(t *testing.T) {
	block, included := BuildContext(nil, DefaultTokenBudget, nil)
	assert.Empty(t, block)
	assert.Empty(t, included)
}

func TestTokenCounterCountsSomething(t *testing.T) {
	c := NewTokenCounter()
	assert.Positive(t, c.Count("func main() { fmt.Println(\"hello\") }"))
	assert.Zero(t, c.Count(""))
}
