package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ishaan812/gitsage/internal/db"
	"github.com/ishaan812/gitsage/internal/github"
)

// ErrMissingRepository is returned when a project has no linked repository.
var ErrMissingRepository = errors.New("project has no linked repository")

// DefaultConcurrency bounds per-commit diff+summarize tasks.
const DefaultConcurrency = 5

// CommitFetcher lists recent commits and fetches their diffs. FetchDiff
// returns "" on failure.
type CommitFetcher interface {
	ListRecentCommits(ctx context.Context, repoURL string, limit int) ([]github.CommitMeta, error)
	FetchDiff(ctx context.Context, repoURL, hash string) string
}

// DiffSummarizer turns a diff into a summary, "" on failure.
type DiffSummarizer interface {
	SummarizeCommit(ctx context.Context, diff string) string
}

// CommitStore is the part of the store the tracker reads and writes.
type CommitStore interface {
	GetRepositoryURL(ctx context.Context, projectID string) (string, error)
	ListCommitHashes(ctx context.Context, projectID string) (map[string]struct{}, error)
	InsertCommits(ctx context.Context, projectID string, commits []db.Commit) ([]db.Commit, error)
}

// PollResult describes one poll.
type PollResult struct {
	ProjectID string
	Fetched   int
	// Inserted are the commits this poll wrote, in fetch order.
	Inserted []db.Commit
	// Unsummarized counts inserted commits whose summary is empty.
	Unsummarized int
	Duration     time.Duration
}

// Tracker detects commits not yet stored for a project and records them
// with a summary of their diff. Each hash is summarized at most once.
type Tracker struct {
	fetcher     CommitFetcher
	summarizer  DiffSummarizer
	store       CommitStore
	limit       int
	concurrency int
	group       singleflight.Group
}

// Option is a functional option for configuring a Tracker.
type Option func(*Tracker)

func WithConcurrency(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.concurrency = n
		}
	}
}

// WithLimit sets how many recent commits each poll considers.
func WithLimit(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.limit = n
		}
	}
}

func New(fetcher CommitFetcher, summarizer DiffSummarizer, store CommitStore, opts ...Option) *Tracker {
	t := &Tracker{
		fetcher:     fetcher,
		summarizer:  summarizer,
		store:       store,
		limit:       github.DefaultCommitLimit,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// PollCommits records the project's recent commits that are not stored yet.
// Calls for the same project that overlap share a single poll, which runs to
// completion even if the caller that started it gives up. Only that caller
// sees the inserted commits; the others get the counts with Inserted empty.
func (t *Tracker) PollCommits(ctx context.Context, projectID string) (*PollResult, error) {
	leader := false
	ch := t.group.DoChan(projectID, func() (any, error) {
		leader = true
		return t.poll(context.WithoutCancel(ctx), projectID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		result := res.Val.(*PollResult)
		if leader {
			return result, nil
		}
		log.Debug().Str("project", projectID).Msg("Joined in-flight poll")
		joined := *result
		joined.Inserted = nil
		joined.Unsummarized = 0
		return &joined, nil
	}
}

func (t *Tracker) poll(ctx context.Context, projectID string) (*PollResult, error) {
	start := time.Now()

	repoURL, err := t.store.GetRepositoryURL(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if repoURL == "" {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrMissingRepository)
	}

	recent, err := t.fetcher.ListRecentCommits(ctx, repoURL, t.limit)
	if err != nil {
		return nil, err
	}
	seen, err := t.store.ListCommitHashes(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var pending []github.CommitMeta
	for _, c := range recent {
		if _, ok := seen[c.Hash]; !ok {
			pending = append(pending, c)
		}
	}

	result := &PollResult{ProjectID: projectID, Fetched: len(recent)}
	if len(pending) == 0 {
		result.Duration = time.Since(start)
		log.Debug().Str("project", projectID).Int("fetched", len(recent)).Msg("No new commits")
		return result, nil
	}

	// Each task writes only its own slot.
	commits := make([]db.Commit, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for i, meta := range pending {
		g.Go(func() error {
			diff := t.fetcher.FetchDiff(gctx, repoURL, meta.Hash)
			summary := t.summarizer.SummarizeCommit(gctx, diff)
			if summary == "" {
				log.Warn().Str("project", projectID).Str("commit", meta.Hash).Msg("Commit stored without summary")
			}
			commits[i] = db.Commit{
				ProjectID:    projectID,
				Hash:         meta.Hash,
				Message:      meta.Message,
				AuthorName:   meta.AuthorName,
				AuthorAvatar: meta.AuthorAvatar,
				Date:         meta.Date,
				Summary:      summary,
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	inserted, err := t.store.InsertCommits(ctx, projectID, commits)
	if err != nil {
		return nil, fmt.Errorf("failed to store commits: %w", err)
	}

	result.Inserted = inserted
	for _, c := range inserted {
		if c.Summary == "" {
			result.Unsummarized++
		}
	}
	result.Duration = time.Since(start)
	log.Info().
		Str("project", projectID).
		Int("fetched", result.Fetched).
		Int("inserted", len(inserted)).
		Int("unsummarized", result.Unsummarized).
		Dur("took", result.Duration).
		Msg("Polled commits")
	return result, nil
}
