package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ishaan812/gitsage/internal/db"
	"github.com/ishaan812/gitsage/internal/loader"
)

// DefaultConcurrency bounds per-file summarize+embed tasks.
const DefaultConcurrency = 5

// AI is the part of the gateway the indexer needs.
type AI interface {
	TextSummarizer
	Embed(ctx context.Context, text string) ([]float32, error)
}

// FileStore persists indexed files.
type FileStore interface {
	UpsertSourceFile(ctx context.Context, f db.SourceFile) error
}

// FileError records why one file was not indexed.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// IndexResult summarises one indexing run.
type IndexResult struct {
	ProjectID string
	Loaded    int
	Indexed   int
	// Unsummarized lists files whose summary came back empty. They are not
	// written, since there is nothing to embed.
	Unsummarized []string
	Failed       []FileError
	Duration     time.Duration
}

// Indexer turns a repository into one summarized, embedded record per file.
type Indexer struct {
	loader      loader.Loader
	summarizer  *Summarizer
	ai          AI
	store       FileStore
	concurrency int
	onProgress  func(done, total int)
}

// Option is a functional option for configuring an Indexer.
type Option func(*Indexer)

func WithConcurrency(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.concurrency = n
		}
	}
}

// WithProgress is called after each file finishes, from worker goroutines.
func WithProgress(fn func(done, total int)) Option {
	return func(ix *Indexer) { ix.onProgress = fn }
}

func New(l loader.Loader, ai AI, store FileStore, opts ...Option) *Indexer {
	ix := &Indexer{
		loader:      l,
		summarizer:  NewSummarizer(ai),
		ai:          ai,
		store:       store,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// IndexProject loads every file of repoURL, summarizes and embeds each one
// independently, and upserts the results keyed by (projectID, path). Files
// that disappeared upstream are left in place.
func (ix *Indexer) IndexProject(ctx context.Context, projectID, repoURL, token string) (*IndexResult, error) {
	start := time.Now()
	docs, err := ix.loader.Load(ctx, repoURL, token)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", repoURL, err)
	}

	result := &IndexResult{ProjectID: projectID, Loaded: len(docs)}
	var (
		mu   sync.Mutex
		done int
	)
	record := func(fn func()) {
		mu.Lock()
		fn()
		done++
		n := done
		mu.Unlock()
		if ix.onProgress != nil {
			ix.onProgress(n, len(docs))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)
	for _, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			indexed, err := ix.indexFile(gctx, projectID, doc)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			record(func() {
				switch {
				case err != nil:
					log.Warn().Err(err).Str("project", projectID).Str("path", doc.Path).Msg("Failed to index file")
					result.Failed = append(result.Failed, FileError{Path: doc.Path, Err: err})
				case !indexed:
					result.Unsummarized = append(result.Unsummarized, doc.Path)
				default:
					result.Indexed++
				}
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	result.Duration = time.Since(start)
	log.Info().
		Str("project", projectID).
		Int("loaded", result.Loaded).
		Int("indexed", result.Indexed).
		Int("unsummarized", len(result.Unsummarized)).
		Int("failed", len(result.Failed)).
		Dur("took", result.Duration).
		Msg("Indexed project")
	return result, nil
}

func (ix *Indexer) indexFile(ctx context.Context, projectID string, doc loader.Document) (bool, error) {
	summary := ix.summarizer.SummarizeFile(ctx, doc)
	if summary == "" {
		return false, nil
	}

	embedding, err := ix.ai.Embed(ctx, summary)
	if err != nil {
		return false, fmt.Errorf("embedding failed: %w", err)
	}

	err = ix.store.UpsertSourceFile(ctx, db.SourceFile{
		ProjectID: projectID,
		Path:      doc.Path,
		Content:   doc.Content,
		Summary:   summary,
		Embedding: embedding,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
