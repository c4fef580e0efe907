package chat

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"

	"github.com/ishaan812/gitsage/internal/db"
	"github.com/ishaan812/gitsage/internal/indexer"
)

const (
	// MaxContextSourceChars caps each file's source inside the context block.
	MaxContextSourceChars = 10000
	// DefaultTokenBudget bounds the whole context block.
	DefaultTokenBudget = 24000
)

// TokenCounter measures text in model tokens.
type TokenCounter interface {
	Count(text string) int
}

type tiktokenCounter struct {
	codec tokenizer.Codec
}

func (t tiktokenCounter) Count(text string) int {
	ids, _, err := t.codec.Encode(text)
	if err != nil {
		return approxCounter{}.Count(text)
	}
	return len(ids)
}

// approxCounter assumes roughly four bytes per token.
type approxCounter struct{}

func (approxCounter) Count(text string) int {
	return (len(text) + 3) / 4
}

// NewTokenCounter returns a cl100k counter, or a byte-length estimate when
// the encoding cannot be loaded.
func NewTokenCounter() TokenCounter {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		log.Warn().Err(err).Msg("cl100k tokenizer unavailable, estimating tokens from length")
		return approxCounter{}
	}
	return tiktokenCounter{codec: codec}
}

func formatEntry(f db.ScoredFile) string {
	source, cut := indexer.Truncate(f.Content, MaxContextSourceChars)
	if cut {
		source += "\n... (truncated)"
	}
	return fmt.Sprintf("source: %s\ncode content: %s\n summary of file: %s\n\n", f.Path, source, f.Summary)
}

// BuildContext concatenates files in rank order into a context block that
// fits budget tokens. Files that do not fit are left out; included lists
// the ones that made it in.
func BuildContext(files []db.ScoredFile, budget int, counter TokenCounter) (block string, included []db.ScoredFile) {
	if counter == nil {
		counter = approxCounter{}
	}
	var sb strings.Builder
	used := 0
	for _, f := range files {
		entry := formatEntry(f)
		n := counter.Count(entry)
		if budget > 0 && used+n > budget {
			log.Debug().Str("path", f.Path).Int("tokens", n).Int("used", used).Msg("Context budget reached, leaving file out")
			continue
		}
		used += n
		sb.WriteString(entry)
		included = append(included, f)
	}
	return sb.String(), included
}
