package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const (
	defaultBaseURL = "https://api.github.com"
	// DefaultCommitLimit is how many recent commits a poll considers.
	DefaultCommitLimit = 15
	// commitPageSize is the single page requested before sorting by date.
	commitPageSize = 100
)

// FetchError is a failed request against the GitHub API.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("github request %s failed (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("github request %s failed: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// CommitMeta is the metadata of one upstream commit.
type CommitMeta struct {
	Hash         string
	Message      string
	AuthorName   string
	AuthorAvatar string
	Date         time.Time
}

// TreeEntry is one blob or tree in a recursive git tree listing.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
}

// Client talks to the GitHub REST API. A zero token makes unauthenticated
// calls, which work for public repositories at lower rate limits.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root (GHES, tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a copy of the client using token, or the receiver when
// token is empty.
func (c *Client) WithToken(token string) *Client {
	if token == "" {
		return c
	}
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) get(ctx context.Context, path string, accept string) ([]byte, error) {
	u := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: u, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: u, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.get(ctx, path, "application/vnd.github+json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse github response for %s: %w", path, err)
	}
	return nil
}

type apiCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Author *struct {
		AvatarURL string `json:"avatar_url"`
	} `json:"author"`
}

// ListRecentCommits returns up to limit commits, newest first by author date.
func (c *Client) ListRecentCommits(ctx context.Context, repoURL string, limit int) ([]CommitMeta, error) {
	repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultCommitLimit
	}

	var raw []apiCommit
	path := fmt.Sprintf("/repos/%s/%s/commits?per_page=%d", url.PathEscape(repo.Owner), url.PathEscape(repo.Name), max(limit, commitPageSize))
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, fmt.Errorf("failed to list commits for %s: %w", repo, err)
	}

	commits := make([]CommitMeta, 0, len(raw))
	for _, rc := range raw {
		cm := CommitMeta{
			Hash:       rc.SHA,
			Message:    rc.Commit.Message,
			AuthorName: rc.Commit.Author.Name,
		}
		if t, err := time.Parse(time.RFC3339, rc.Commit.Author.Date); err == nil {
			cm.Date = t
		}
		if rc.Author != nil {
			cm.AuthorAvatar = rc.Author.AvatarURL
		}
		commits = append(commits, cm)
	}

	sort.SliceStable(commits, func(i, j int) bool {
		return commits[i].Date.After(commits[j].Date)
	})
	if len(commits) > limit {
		commits = commits[:limit]
	}
	return commits, nil
}

// FetchDiff returns the unified diff of a commit. Failures are logged and
// yield an empty string so one bad commit does not stop the others.
func (c *Client) FetchDiff(ctx context.Context, repoURL, hash string) string {
	repo, err := ParseRepoURL(repoURL)
	if err != nil {
		log.Warn().Err(err).Str("commit", hash).Msg("Cannot fetch diff")
		return ""
	}

	path := fmt.Sprintf("/repos/%s/%s/commits/%s", url.PathEscape(repo.Owner), url.PathEscape(repo.Name), url.PathEscape(hash))
	body, err := c.get(ctx, path, "application/vnd.github.v3.diff")
	if err != nil {
		log.Warn().Err(err).Str("repo", repo.String()).Str("commit", hash).Msg("Failed to fetch diff")
		return ""
	}
	if len(body) == 0 {
		log.Warn().Str("repo", repo.String()).Str("commit", hash).Msg("Empty diff received")
	}
	return string(body)
}

// DefaultBranch returns the repository's default branch name.
func (c *Client) DefaultBranch(ctx context.Context, repo Repo) (string, error) {
	var info struct {
		DefaultBranch string `json:"default_branch"`
	}
	path := fmt.Sprintf("/repos/%s/%s", url.PathEscape(repo.Owner), url.PathEscape(repo.Name))
	if err := c.getJSON(ctx, path, &info); err != nil {
		return "", fmt.Errorf("failed to look up %s: %w", repo, err)
	}
	if info.DefaultBranch == "" {
		return "main", nil
	}
	return info.DefaultBranch, nil
}

// Tree returns every entry under ref, recursively. truncated reports that
// GitHub cut the listing short.
func (c *Client) Tree(ctx context.Context, repo Repo, ref string) (entries []TreeEntry, truncated bool, err error) {
	var resp struct {
		Tree      []TreeEntry `json:"tree"`
		Truncated bool        `json:"truncated"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1", url.PathEscape(repo.Owner), url.PathEscape(repo.Name), url.PathEscape(ref))
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, false, fmt.Errorf("failed to list tree for %s@%s: %w", repo, ref, err)
	}
	return resp.Tree, resp.Truncated, nil
}

// Blob returns the raw bytes of a blob.
func (c *Client) Blob(ctx context.Context, repo Repo, sha string) ([]byte, error) {
	path := fmt.Sprintf("/repos/%s/%s/git/blobs/%s", url.PathEscape(repo.Owner), url.PathEscape(repo.Name), url.PathEscape(sha))
	return c.get(ctx, path, "application/vnd.github.raw+json")
}

// RateLimitRemaining reports the core API budget left for the current token.
func (c *Client) RateLimitRemaining(ctx context.Context) (int, error) {
	var resp struct {
		Resources struct {
			Core struct {
				Remaining int `json:"remaining"`
			} `json:"core"`
		} `json:"resources"`
	}
	if err := c.getJSON(ctx, "/rate_limit", &resp); err != nil {
		return 0, err
	}
	return resp.Resources.Core.Remaining, nil
}
