package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// sqlCore implements the project, commit and answer operations shared by
// the database/sql backends. Both DuckDB and SQLite accept the same SQL here.
type sqlCore struct {
	db *sql.DB
}

func (s *sqlCore) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, repo_url, token, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.RepoURL, p.Token, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (s *sqlCore) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, repo_url, token, created_at FROM projects WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.RepoURL, &p.Token, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

func (s *sqlCore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, repo_url, token, created_at FROM projects ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.RepoURL, &p.Token, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *sqlCore) GetRepositoryURL(ctx context.Context, projectID string) (string, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	return p.RepoURL, nil
}

func (s *sqlCore) CountSourceFiles(ctx context.Context, projectID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM source_files WHERE project_id = ?`, projectID).Scan(&n)
	return n, err
}

func (s *sqlCore) ListCommitHashes(ctx context.Context, projectID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT hash FROM commits WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list commit hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]struct{})
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes[h] = struct{}{}
	}
	return hashes, rows.Err()
}

func (s *sqlCore) InsertCommits(ctx context.Context, projectID string, commits []Commit) ([]Commit, error) {
	if len(commits) == 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var inserted []Commit
	for _, c := range commits {
		c.ProjectID = projectID
		c.Date = c.Date.UTC()
		c.CreatedAt = now
		res, err := tx.ExecContext(ctx, `
			INSERT INTO commits (project_id, hash, message, author_name, author_avatar, committed_at, summary, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, c.ProjectID, c.Hash, c.Message, c.AuthorName, c.AuthorAvatar, c.Date, c.Summary, c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert commit %s: %w", c.Hash, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted = append(inserted, c)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}
	return inserted, nil
}

func (s *sqlCore) ListCommits(ctx context.Context, projectID string, limit int) ([]Commit, error) {
	query := `
		SELECT project_id, hash, message, author_name, author_avatar, committed_at, summary, created_at
		FROM commits WHERE project_id = ?
		ORDER BY committed_at DESC
	`
	args := []any{projectID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}
	defer rows.Close()

	var commits []Commit
	for rows.Next() {
		var c Commit
		if err := rows.Scan(&c.ProjectID, &c.Hash, &c.Message, &c.AuthorName, &c.AuthorAvatar, &c.Date, &c.Summary, &c.CreatedAt); err != nil {
			return nil, err
		}
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

func (s *sqlCore) SaveAnswer(ctx context.Context, a *SavedAnswer) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	refs, err := json.Marshal(a.References)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO saved_answers (id, project_id, question, answer, file_references, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.ProjectID, a.Question, a.Answer, string(refs), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}
	return nil
}

func (s *sqlCore) ListAnswers(ctx context.Context, projectID string) ([]SavedAnswer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, question, answer, file_references, created_at
		FROM saved_answers WHERE project_id = ?
		ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	defer rows.Close()

	var answers []SavedAnswer
	for rows.Next() {
		var a SavedAnswer
		var refs string
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.Question, &a.Answer, &refs, &a.CreatedAt); err != nil {
			return nil, err
		}
		if refs != "" {
			if err := json.Unmarshal([]byte(refs), &a.References); err != nil {
				return nil, fmt.Errorf("corrupt references for answer %s: %w", a.ID, err)
			}
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func (s *sqlCore) Close() error {
	return s.db.Close()
}
