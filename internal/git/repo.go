package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Repository wraps a go-git repository, either cloned into memory or opened
// from disk.
type Repository struct {
	repo  *git.Repository
	url   string
	local bool
}

// CloneURL turns the accepted repository address forms into something
// go-git can clone. Bare "owner/name" is assumed to live on github.com.
func CloneURL(repoURL string) string {
	u := strings.TrimSpace(repoURL)
	if strings.Contains(u, "://") || strings.HasPrefix(u, "git@") {
		return u
	}
	return "https://github.com/" + strings.Trim(u, "/") + ".git"
}

func isLocalPath(repoURL string) bool {
	if strings.Contains(repoURL, "://") || strings.HasPrefix(repoURL, "git@") {
		return false
	}
	info, err := os.Stat(repoURL)
	return err == nil && info.IsDir()
}

func auth(token string) transport.AuthMethod {
	if token == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: "x-access-token", Password: token}
}

// Clone fetches repoURL into memory. depth <= 0 clones full history.
func Clone(ctx context.Context, repoURL, token string, depth int) (*Repository, error) {
	opts := &git.CloneOptions{
		URL:          CloneURL(repoURL),
		Auth:         auth(token),
		SingleBranch: true,
		Tags:         git.NoTags,
	}
	if depth > 0 {
		opts.Depth = depth
	}

	repo, err := git.CloneContext(ctx, memory.NewStorage(), nil, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", repoURL, err)
	}
	return &Repository{repo: repo, url: repoURL}, nil
}

// OpenRepo opens a repository already on disk.
func OpenRepo(path string) (*Repository, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	repo, err := git.PlainOpen(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository at %s: %w", absPath, err)
	}
	return &Repository{repo: repo, url: absPath, local: true}, nil
}

// Fetch pulls new objects from the remote and moves the checked-out branch
// to the fetched tip. An up-to-date remote is not an error.
func (r *Repository) Fetch(ctx context.Context, token string) error {
	if r.local {
		return nil
	}
	err := r.repo.FetchContext(ctx, &git.FetchOptions{Auth: auth(token), Tags: git.NoTags})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to fetch %s: %w", r.url, err)
	}
	return r.fastForward()
}

// fastForward points the local HEAD branch at refs/remotes/origin/<branch>.
// The clone is read-only, so the local branch never diverges.
func (r *Repository) fastForward() error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return nil
	}
	remote, err := r.repo.Reference(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, head.Name().Short()), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve remote branch: %w", err)
	}
	if remote.Hash() == head.Hash() {
		return nil
	}
	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(head.Name(), remote.Hash())); err != nil {
		return fmt.Errorf("failed to advance %s: %w", head.Name().Short(), err)
	}
	return nil
}

func (r *Repository) headCommit() (*object.Commit, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	c, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to read HEAD commit: %w", err)
	}
	return c, nil
}

// HeadHash returns the commit hash HEAD points at.
func (r *Repository) HeadHash() (string, error) {
	c, err := r.headCommit()
	if err != nil {
		return "", err
	}
	return c.Hash.String(), nil
}

// File is one blob reachable from HEAD.
type File struct {
	Path    string
	Size    int64
	Content []byte
	Binary  bool
}

// Files calls fn for every file in HEAD's tree. skip is consulted with the
// path before the blob is read.
func (r *Repository) Files(skip func(path string, size int64) bool, fn func(File) error) error {
	c, err := r.headCommit()
	if err != nil {
		return err
	}
	tree, err := c.Tree()
	if err != nil {
		return fmt.Errorf("failed to read tree: %w", err)
	}

	return tree.Files().ForEach(func(f *object.File) error {
		if skip != nil && skip(f.Name, f.Size) {
			return nil
		}
		binary, err := f.IsBinary()
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", f.Name, err)
		}
		file := File{Path: f.Name, Size: f.Size, Binary: binary}
		if !binary {
			content, err := f.Contents()
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", f.Name, err)
			}
			file.Content = []byte(content)
		}
		return fn(file)
	})
}
