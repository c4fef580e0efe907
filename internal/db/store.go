package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when a project or record does not exist.
var ErrNotFound = errors.New("not found")

// Project is a repository registered for indexing and polling.
type Project struct {
	ID        string
	Name      string
	RepoURL   string
	Token     string
	CreatedAt time.Time
}

// SourceFile is one indexed file. A file is only written together with its
// embedding, so every stored row is queryable.
type SourceFile struct {
	ProjectID string
	Path      string
	Content   string
	Summary   string
	Embedding []float32
}

// ScoredFile is a similarity search hit.
type ScoredFile struct {
	Path       string
	Content    string
	Summary    string
	Similarity float64
}

// Commit is a processed upstream commit. Summary is empty when
// summarization failed; it is never omitted.
type Commit struct {
	ProjectID    string
	Hash         string
	Message      string
	AuthorName   string
	AuthorAvatar string
	Date         time.Time
	Summary      string
	CreatedAt    time.Time
}

// FileReference is a snapshot of a file an answer drew on, as it was when
// the answer was saved.
type FileReference struct {
	Path       string  `json:"path"`
	SourceCode string  `json:"source_code"`
	Summary    string  `json:"summary"`
	Similarity float64 `json:"similarity"`
}

// SavedAnswer is a question and its answer kept for later reading.
type SavedAnswer struct {
	ID         string
	ProjectID  string
	Question   string
	Answer     string
	References []FileReference
	CreatedAt  time.Time
}

// Store is the durable state shared by the indexer, the commit tracker and
// the answerer. Every operation is scoped by project ID.
type Store interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	// GetRepositoryURL returns "" when the project exists without a repository.
	GetRepositoryURL(ctx context.Context, projectID string) (string, error)

	// UpsertSourceFile overwrites any record with the same (project, path).
	UpsertSourceFile(ctx context.Context, f SourceFile) error
	// FindSimilarFiles returns files whose cosine similarity to embedding is
	// strictly greater than threshold, most similar first.
	FindSimilarFiles(ctx context.Context, projectID string, embedding []float32, threshold float64, limit int) ([]ScoredFile, error)
	CountSourceFiles(ctx context.Context, projectID string) (int, error)

	ListCommitHashes(ctx context.Context, projectID string) (map[string]struct{}, error)
	// InsertCommits writes commits, silently skipping hashes already stored
	// for the project, and returns the ones actually inserted.
	InsertCommits(ctx context.Context, projectID string, commits []Commit) ([]Commit, error)
	// ListCommits returns stored commits newest first. limit <= 0 means all.
	ListCommits(ctx context.Context, projectID string, limit int) ([]Commit, error)

	SaveAnswer(ctx context.Context, a *SavedAnswer) error
	ListAnswers(ctx context.Context, projectID string) ([]SavedAnswer, error)

	Close() error
}

func validateSourceFile(f SourceFile) error {
	if f.ProjectID == "" || f.Path == "" {
		return errors.New("source file needs a project and a path")
	}
	if len(f.Embedding) == 0 {
		return fmt.Errorf("source file %s has no embedding", f.Path)
	}
	return nil
}

// vectorLiteral renders v as "[a,b,c]", the text form DuckDB and pgvector
// both accept.
func vectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.Grow(len(v) * 10)
	sb.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
