package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo creates an on-disk repository with one commit per step.
func initRepo(t *testing.T, steps []map[string]string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	var hashes []string
	for i, files := range steps {
		for name, content := range files {
			full := filepath.Join(dir, name)
			require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
			require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
			_, err := wt.Add(name)
			require.NoError(t, err)
		}
		sig := &object.Signature{Name: "Dev", Email: "dev@example.com", When: base.Add(time.Duration(i) * time.Hour)}
		h, err := wt.Commit("step", &git.CommitOptions{Author: sig, Committer: sig})
		require.NoError(t, err)
		hashes = append(hashes, h.String())
	}
	return dir, hashes
}

func TestCloneURL(t *testing.T) {
	assert.Equal(t, "https://github.com/acme/widgets.git", CloneURL("acme/widgets"))
	assert.Equal(t, "https://github.com/acme/widgets", CloneURL("https://github.com/acme/widgets"))
	assert.Equal(t, "git@github.com:acme/widgets.git", CloneURL("git@github.com:acme/widgets.git"))
}

func TestFilesSkipsAndReadsContent(t *testing.T) {
	dir, _ := initRepo(t, []map[string]string{{
		"main.go":               "package main\n",
		"node_modules/dep/x.js": "module.exports = 1\n",
		"assets/logo.png":       "\x89PNG\x00\x00binary",
	}})

	r, err := OpenRepo(dir)
	require.NoError(t, err)

	got := map[string]File{}
	err = r.Files(func(path string, size int64) bool {
		return filepath.Dir(path) == "node_modules/dep"
	}, func(f File) error {
		got[f.Path] = f
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "package main\n", string(got["main.go"].Content))
	assert.True(t, got["assets/logo.png"].Binary)
	assert.Nil(t, got["assets/logo.png"].Content)
}

func TestCommitSourceListsLocalCheckout(t *testing.T) {
	dir, hashes := initRepo(t, []map[string]string{
		{"a.txt": "one\n"},
		{"a.txt": "one\ntwo\n"},
		{"b.txt": "hello\n"},
	})

	src := NewCommitSource("")
	commits, err := src.ListRecentCommits(context.Background(), dir, 2)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, hashes[2], commits[0].Hash)
	assert.Equal(t, hashes[1], commits[1].Hash)
	assert.Equal(t, "Dev", commits[0].AuthorName)
}

func TestCommitSourceFetchDiff(t *testing.T) {
	dir, hashes := initRepo(t, []map[string]string{
		{"a.txt": "one\n"},
		{"a.txt": "one\ntwo\n"},
	})

	src := NewCommitSource("")
	ctx := context.Background()

	diff := src.FetchDiff(ctx, dir, hashes[1])
	assert.Contains(t, diff, "diff --git a/a.txt b/a.txt")
	assert.Contains(t, diff, "+two")

	root := src.FetchDiff(ctx, dir, hashes[0])
	assert.Contains(t, root, "+one")

	assert.Equal(t, "", src.FetchDiff(ctx, dir, "0000000000000000000000000000000000000000"))
}

func TestCommitSourceSeesUpstreamCommitsAfterClone(t *testing.T) {
	dir, hashes := initRepo(t, []map[string]string{
		{"a.txt": "one\n"},
		{"a.txt": "one\ntwo\n"},
	})
	url := "file://" + dir

	src := NewCommitSource("")
	ctx := context.Background()

	commits, err := src.ListRecentCommits(ctx, url, 5)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, hashes[1], commits[0].Hash)

	upstream, err := git.PlainOpen(dir)
	require.NoError(t, err)
	wt, err := upstream.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("fresh\n"), 0o644))
	_, err = wt.Add("b.txt")
	require.NoError(t, err)
	sig := &object.Signature{Name: "Dev", Email: "dev@example.com", When: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)}
	next, err := wt.Commit("later", &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)

	commits, err = src.ListRecentCommits(ctx, url, 5)
	require.NoError(t, err)
	require.Len(t, commits, 3)
	assert.Equal(t, next.String(), commits[0].Hash)

	diff := src.FetchDiff(ctx, url, next.String())
	assert.Contains(t, diff, "+fresh")
}
