package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitFixture(n int) []map[string]any {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]map[string]any, 0, n)
	// Served in a scrambled order so the client has to sort.
	for i := 0; i < n; i++ {
		idx := (i * 7) % n
		out = append(out, map[string]any{
			"sha": fmt.Sprintf("sha%02d", idx),
			"commit": map[string]any{
				"message": fmt.Sprintf("commit %d", idx),
				"author": map[string]any{
					"name": "Dev",
					"date": base.Add(time.Duration(idx) * time.Hour).Format(time.RFC3339),
				},
			},
			"author": map[string]any{"avatar_url": "https://avatars.example/dev.png"},
		})
	}
	return out
}

func TestListRecentCommitsReturnsNewestFifteen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/widgets/commits", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(commitFixture(20))
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	commits, err := c.ListRecentCommits(context.Background(), "https://github.com/acme/widgets", DefaultCommitLimit)
	require.NoError(t, err)
	require.Len(t, commits, 15)

	assert.Equal(t, "sha19", commits[0].Hash)
	assert.Equal(t, "sha05", commits[14].Hash)
	for i := 1; i < len(commits); i++ {
		assert.False(t, commits[i].Date.After(commits[i-1].Date), "commits must be newest first")
	}
	assert.Equal(t, "Dev", commits[0].AuthorName)
	assert.Equal(t, "https://avatars.example/dev.png", commits[0].AuthorAvatar)
	assert.Equal(t, "commit 19", commits[0].Message)
}

func TestListRecentCommitsWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, `[{"sha":"abc","commit":{"message":"init","author":{"name":"A","date":"2024-01-01T00:00:00Z"}},"author":null}]`)
	}))
	defer srv.Close()

	commits, err := NewClient("", WithBaseURL(srv.URL)).ListRecentCommits(context.Background(), "acme/widgets", 0)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Empty(t, commits[0].AuthorAvatar)
}

func TestListRecentCommitsInvalidURL(t *testing.T) {
	_, err := NewClient("").ListRecentCommits(context.Background(), "not-a-repo", 15)
	assert.ErrorIs(t, err, ErrInvalidRepository)
}

func TestListRecentCommitsSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient("", WithBaseURL(srv.URL)).ListRecentCommits(context.Background(), "acme/widgets", 15)
	require.Error(t, err)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
}

func TestFetchDiff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widgets/commits/abc123" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "application/vnd.github.v3.diff", r.Header.Get("Accept"))
		fmt.Fprint(w, "diff --git a/x b/x\n+hello\n")
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))
	assert.Equal(t, "diff --git a/x b/x\n+hello\n", c.FetchDiff(context.Background(), "acme/widgets", "abc123"))
	assert.Equal(t, "", c.FetchDiff(context.Background(), "acme/widgets", "missing"), "failures degrade to an empty diff")
	assert.Equal(t, "", c.FetchDiff(context.Background(), "bogus", "abc123"))
}

func TestTreeAndBlob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/acme/widgets":
			fmt.Fprint(w, `{"default_branch":"trunk"}`)
		case "/repos/acme/widgets/git/trees/trunk":
			assert.Equal(t, "1", r.URL.Query().Get("recursive"))
			fmt.Fprint(w, `{"tree":[{"path":"src","type":"tree","sha":"t1"},{"path":"src/a.go","type":"blob","sha":"b1","size":12}],"truncated":false}`)
		case "/repos/acme/widgets/git/blobs/b1":
			fmt.Fprint(w, "package main")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))
	repo := Repo{Owner: "acme", Name: "widgets"}
	ctx := context.Background()

	branch, err := c.DefaultBranch(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, "trunk", branch)

	entries, truncated, err := c.Tree(ctx, repo, branch)
	require.NoError(t, err)
	assert.False(t, truncated)
	require.Len(t, entries, 2)
	assert.Equal(t, "src/a.go", entries[1].Path)

	body, err := c.Blob(ctx, repo, "b1")
	require.NoError(t, err)
	assert.Equal(t, "package main", string(body))
}

func TestWithTokenCopies(t *testing.T) {
	base := NewClient("a")
	assert.Same(t, base, base.WithToken(""))
	other := base.WithToken("b")
	assert.Equal(t, "b", other.token)
	assert.Equal(t, "a", base.token)
}
