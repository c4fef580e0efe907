package loader

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
)

// DefaultConcurrency bounds simultaneous file fetches.
const DefaultConcurrency = 5

// Document is one loaded source file.
type Document struct {
	Path     string
	Content  string
	Language string
}

// Loader fetches the files of a repository.
type Loader interface {
	Load(ctx context.Context, repoURL, token string) ([]Document, error)
}

// FetchError is a failure to fetch a single file. It is logged and the file
// skipped; it never aborts a load.
type FetchError struct {
	Path string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.Path, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func sortDocuments(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
}

// Router sends local directory paths to Local and everything else to Remote.
type Router struct {
	Remote Loader
	Local  Loader
}

func (r Router) Load(ctx context.Context, repoURL, token string) ([]Document, error) {
	if r.Local != nil && isDir(repoURL) {
		return r.Local.Load(ctx, repoURL, token)
	}
	return r.Remote.Load(ctx, repoURL, token)
}

func isDir(p string) bool {
	if strings.Contains(p, "://") || strings.HasPrefix(p, "git@") {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
