package chat

import (
	"context"
	"errors"
	"iter"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishaan812/gitsage/internal/constants"
	"github.com/ishaan812/gitsage/internal/db"
)

// fakeAI embeds every question onto the first axis and answers from the
// context block it is given.
type fakeAI struct {
	mu        sync.Mutex
	prompts   []string
	embedErr  error
	deltas    []string
	streamErr error
	closed    int
}

func (f *fakeAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	v := make([]float32, constants.EmbeddingDimensions)
	v[0] = 1
	return v, nil
}

func (f *fakeAI) StreamText(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		f.mu.Lock()
		f.prompts = append(f.prompts, prompt)
		f.mu.Unlock()
		defer func() {
			f.mu.Lock()
			f.closed++
			f.mu.Unlock()
		}()

		deltas := f.deltas
		if strings.Contains(prompt, "START CONTEXT BLOCK\n\nEND CONTEXT BLOCK") {
			deltas = []string{UnknownAnswer}
		}
		for _, d := range deltas {
			if !yield(d, nil) {
				return
			}
		}
		if f.streamErr != nil {
			yield("", f.streamErr)
		}
	}
}

func (f *fakeAI) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

// vectorAt returns a unit vector whose cosine similarity to the first axis
// is sim.
func vectorAt(sim float64) []float32 {
	v := make([]float32, constants.EmbeddingDimensions)
	v[0] = float32(sim)
	v[1] = float32(math.Sqrt(1 - sim*sim))
	return v
}

func newStore(t *testing.T) (*db.DuckDBStore, string) {
	t.Helper()
	store, err := db.OpenDuckDB("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	p := &db.Project{Name: "widgets", RepoURL: "acme/widgets"}
	require.NoError(t, store.CreateProject(context.Background(), p))
	return store, p.ID
}

func addFile(t *testing.T, store db.Store, projectID, path string, sim float64) {
	t.Helper()
	require.NoError(t, store.UpsertSourceFile(context.Background(), db.SourceFile{
		ProjectID: projectID,
		Path:      path,
		Content:   "// " + path,
		Summary:   "summary of " + path,
		Embedding: vectorAt(sim),
	}))
}

func TestAskWithNothingIndexedReturnsUnknownAnswer(t *testing.T) {
	store, projectID := newStore(t)
	ai := &fakeAI{deltas: []string{"should not be used"}}

	ans, err := NewAnswerer(ai, store).Ask(context.Background(), projectID, "What does the router do?")
	require.NoError(t, err)
	assert.Empty(t, ans.References)

	text, err := ans.Collect()
	require.NoError(t, err)
	assert.Equal(t, UnknownAnswer, text)
}

func TestAskReferencesRankedBySimilarity(t *testing.T) {
	store, projectID := newStore(t)
	addFile(t, store, projectID, "src/low.ts", 0.6)
	addFile(t, store, projectID, "src/high.ts", 0.95)
	addFile(t, store, projectID, "src/mid.ts", 0.8)
	addFile(t, store, projectID, "src/unrelated.ts", 0.2)
	ai := &fakeAI{deltas: []string{"The router ", "lives in src/high.ts."}}

	ans, err := NewAnswerer(ai, store).Ask(context.Background(), projectID, "  Where is the router?  ")
	require.NoError(t, err)
	assert.Equal(t, "Where is the router?", ans.Question)
	assert.Equal(t, []string{"src/high.ts", "src/mid.ts", "src/low.ts"}, ans.ReferencePaths())

	saved := ans.SavedReferences()
	require.Len(t, saved, 3)
	assert.Equal(t, "src/high.ts", saved[0].Path)
	assert.Equal(t, "// src/high.ts", saved[0].SourceCode)
	assert.Equal(t, "summary of src/high.ts", saved[0].Summary)
	assert.Greater(t, saved[0].Similarity, saved[1].Similarity)

	text, err := ans.Collect()
	require.NoError(t, err)
	assert.Equal(t, "The router lives in src/high.ts.", text)

	prompt := ai.lastPrompt()
	assert.Contains(t, prompt, "source: src/high.ts\ncode content: // src/high.ts\n summary of file: summary of src/high.ts")
	assert.Less(t, strings.Index(prompt, "src/high.ts"), strings.Index(prompt, "src/mid.ts"))
	assert.NotContains(t, prompt, "src/unrelated.ts")
	assert.Contains(t, prompt, "START QUESTION\nWhere is the router?\nEND QUESTION")
}

func TestAskCapsReferencesAtTen(t *testing.T) {
	store, projectID := newStore(t)
	for i := range 12 {
		addFile(t, store, projectID, "src/f"+string(rune('a'+i))+".go", 0.6+float64(i)*0.02)
	}
	ai := &fakeAI{deltas: []string{"ok"}}

	ans, err := NewAnswerer(ai, store).Ask(context.Background(), projectID, "anything")
	require.NoError(t, err)
	require.Len(t, ans.References, MaxReferences)
	assert.Equal(t, "src/fl.go", ans.References[0].Path)
}

func TestAskEmbedFailureIsReturned(t *testing.T) {
	store, projectID := newStore(t)
	ai := &fakeAI{embedErr: errors.New("embed: giving up after 3 attempts")}

	_, err := NewAnswerer(ai, store).Ask(context.Background(), projectID, "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed question")
	assert.Empty(t, ai.prompts)
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	store, projectID := newStore(t)
	_, err := NewAnswerer(&fakeAI{}, store).Ask(context.Background(), projectID, "   ")
	require.Error(t, err)
}

func TestDeltasAreSinglePass(t *testing.T) {
	store, projectID := newStore(t)
	addFile(t, store, projectID, "main.go", 0.9)
	ai := &fakeAI{deltas: []string{"a", "b"}}

	ans, err := NewAnswerer(ai, store).Ask(context.Background(), projectID, "q")
	require.NoError(t, err)
	_, err = ans.Collect()
	require.NoError(t, err)

	_, err = ans.Collect()
	assert.ErrorIs(t, err, ErrAlreadyConsumed)
}

func TestDeltasEarlyStopClosesStream(t *testing.T) {
	store, projectID := newStore(t)
	addFile(t, store, projectID, "main.go", 0.9)
	ai := &fakeAI{deltas: []string{"a", "b", "c"}}

	ans, err := NewAnswerer(ai, store).Ask(context.Background(), projectID, "q")
	require.NoError(t, err)
	for delta, err := range ans.Deltas() {
		require.NoError(t, err)
		assert.Equal(t, "a", delta)
		break
	}
	assert.Equal(t, 1, ai.closed)
}

func TestCollectReturnsPartialTextOnStreamError(t *testing.T) {
	store, projectID := newStore(t)
	addFile(t, store, projectID, "main.go", 0.9)
	ai := &fakeAI{deltas: []string{"partial "}, streamErr: errors.New("connection reset")}

	ans, err := NewAnswerer(ai, store).Ask(context.Background(), projectID, "q")
	require.NoError(t, err)
	text, err := ans.Collect()
	require.Error(t, err)
	assert.Equal(t, "partial ", text)
}
