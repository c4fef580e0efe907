package git

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/rs/zerolog/log"

	"github.com/ishaan812/gitsage/internal/github"
)

// logWindow is how many commits are read from HEAD before sorting by author
// date, mirroring the single page requested from the REST API.
const logWindow = 100

var errStop = errors.New("stop")

// CommitSource lists commits and diffs straight from git instead of the
// GitHub REST API. Remote clones are kept in memory per repository and
// fetched again on every listing; local checkouts are read in place.
type CommitSource struct {
	token string

	mu    sync.Mutex
	repos map[string]*Repository
}

func NewCommitSource(token string) *CommitSource {
	return &CommitSource{token: token, repos: make(map[string]*Repository)}
}

func (s *CommitSource) open(ctx context.Context, repoURL string) (*Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.repos[repoURL]; ok {
		if err := r.Fetch(ctx, s.token); err != nil {
			return nil, err
		}
		return r, nil
	}
	var r *Repository
	var err error
	if isLocalPath(repoURL) {
		r, err = OpenRepo(repoURL)
	} else {
		r, err = Clone(ctx, repoURL, s.token, 0)
	}
	if err != nil {
		return nil, err
	}
	s.repos[repoURL] = r
	return r, nil
}

// ListRecentCommits returns up to limit commits reachable from HEAD, newest
// first by author date.
func (s *CommitSource) ListRecentCommits(ctx context.Context, repoURL string, limit int) ([]github.CommitMeta, error) {
	if limit <= 0 {
		limit = github.DefaultCommitLimit
	}
	r, err := s.open(ctx, repoURL)
	if err != nil {
		return nil, err
	}

	c, err := r.headCommit()
	if err != nil {
		return nil, err
	}
	iter, err := r.repo.Log(&git.LogOptions{From: c.Hash, Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("failed to create log iterator: %w", err)
	}

	var commits []github.CommitMeta
	err = iter.ForEach(func(c *object.Commit) error {
		if len(commits) >= logWindow {
			return errStop
		}
		commits = append(commits, github.CommitMeta{
			Hash:       c.Hash.String(),
			Message:    c.Message,
			AuthorName: c.Author.Name,
			Date:       c.Author.When.UTC(),
		})
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, fmt.Errorf("failed to iterate commits: %w", err)
	}

	sort.SliceStable(commits, func(i, j int) bool {
		return commits[i].Date.After(commits[j].Date)
	})
	if len(commits) > limit {
		commits = commits[:limit]
	}
	return commits, nil
}

// FetchDiff renders the unified diff between a commit and its first parent.
// Failures are logged and yield an empty string.
func (s *CommitSource) FetchDiff(ctx context.Context, repoURL, hash string) string {
	s.mu.Lock()
	r, ok := s.repos[repoURL]
	s.mu.Unlock()
	if !ok {
		var err error
		if r, err = s.open(ctx, repoURL); err != nil {
			log.Warn().Err(err).Str("commit", hash).Msg("Failed to open repository for diff")
			return ""
		}
	}

	diff, err := r.Diff(ctx, hash)
	if err != nil {
		log.Warn().Err(err).Str("repo", repoURL).Str("commit", hash).Msg("Failed to compute diff")
		return ""
	}
	return diff
}

// Diff returns the patch introduced by hash relative to its first parent.
// Root commits diff against the empty tree.
func (r *Repository) Diff(ctx context.Context, hash string) (string, error) {
	c, err := r.repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return "", fmt.Errorf("failed to load commit %s: %w", hash, err)
	}

	var parentTree *object.Tree
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return "", fmt.Errorf("failed to load parent of %s: %w", hash, err)
		}
		if parentTree, err = parent.Tree(); err != nil {
			return "", fmt.Errorf("failed to load parent tree of %s: %w", hash, err)
		}
	}

	commitTree, err := c.Tree()
	if err != nil {
		return "", fmt.Errorf("failed to load tree of %s: %w", hash, err)
	}

	changes, err := object.DiffTreeWithOptions(ctx, parentTree, commitTree, nil)
	if err != nil {
		return "", fmt.Errorf("failed to diff %s: %w", hash, err)
	}
	patch, err := changes.PatchContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to build patch for %s: %w", hash, err)
	}

	var sb strings.Builder
	if err := patch.Encode(&sb); err != nil {
		return "", fmt.Errorf("failed to encode patch for %s: %w", hash, err)
	}
	return sb.String(), nil
}
