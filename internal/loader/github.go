package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ishaan812/gitsage/internal/github"
)

// GitHubLoader reads the default branch through the REST API: one recursive
// tree listing, then one blob request per file.
type GitHubLoader struct {
	client      *github.Client
	filter      *Filter
	concurrency int
}

func NewGitHubLoader(client *github.Client, filter *Filter, concurrency int) *GitHubLoader {
	if filter == nil {
		filter = NewFilter()
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &GitHubLoader{client: client, filter: filter, concurrency: concurrency}
}

func (l *GitHubLoader) Load(ctx context.Context, repoURL, token string) ([]Document, error) {
	repo, err := github.ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	client := l.client.WithToken(token)

	branch, err := client.DefaultBranch(ctx, repo)
	if err != nil {
		return nil, err
	}
	entries, truncated, err := client.Tree(ctx, repo, branch)
	if err != nil {
		return nil, err
	}
	if truncated {
		log.Warn().Str("repo", repo.String()).Msg("Tree listing truncated by GitHub, some files will be missing")
	}

	var (
		mu   sync.Mutex
		docs []Document
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for _, entry := range entries {
		if entry.Type != "blob" || l.filter.Skip(entry.Path, entry.Size) {
			continue
		}
		g.Go(func() error {
			body, err := client.Blob(gctx, repo, entry.SHA)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn().Err(&FetchError{Path: entry.Path, Err: err}).Msg("Skipping file")
				return nil
			}
			if !IsText(body) {
				log.Warn().Str("path", entry.Path).Msg("Skipping binary file")
				return nil
			}
			mu.Lock()
			docs = append(docs, Document{Path: entry.Path, Content: string(body), Language: Language(entry.Path)})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading %s cancelled: %w", repo, err)
	}

	sortDocuments(docs)
	log.Debug().Str("repo", repo.String()).Int("files", len(docs)).Msg("Loaded repository")
	return docs, nil
}
