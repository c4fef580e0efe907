package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
)

const duckdbSchema = `
CREATE TABLE IF NOT EXISTS projects (
    id VARCHAR PRIMARY KEY,
    name VARCHAR NOT NULL,
    repo_url VARCHAR NOT NULL DEFAULT '',
    token VARCHAR NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS source_files (
    project_id VARCHAR NOT NULL,
    path VARCHAR NOT NULL,
    content VARCHAR NOT NULL,
    summary VARCHAR NOT NULL,
    embedding FLOAT[] NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS commits (
    project_id VARCHAR NOT NULL,
    hash VARCHAR NOT NULL,
    message VARCHAR NOT NULL,
    author_name VARCHAR NOT NULL DEFAULT '',
    author_avatar VARCHAR NOT NULL DEFAULT '',
    committed_at TIMESTAMP NOT NULL,
    summary VARCHAR NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (project_id, hash)
);

CREATE TABLE IF NOT EXISTS saved_answers (
    id VARCHAR PRIMARY KEY,
    project_id VARCHAR NOT NULL,
    question VARCHAR NOT NULL,
    answer VARCHAR NOT NULL,
    file_references VARCHAR NOT NULL DEFAULT '[]',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_source_files_path ON source_files(project_id, path);
CREATE INDEX IF NOT EXISTS idx_commits_date ON commits(project_id, committed_at);
CREATE INDEX IF NOT EXISTS idx_saved_answers_project ON saved_answers(project_id);
`

// DuckDBStore keeps everything in a single DuckDB file and ranks with
// list_cosine_similarity. An empty path opens an in-memory database.
type DuckDBStore struct {
	sqlCore
	// upsertMu serializes source file replacement within the process.
	upsertMu sync.Mutex
}

func OpenDuckDB(path string) (*DuckDBStore, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping DuckDB: %w", err)
	}
	if _, err := db.Exec(duckdbSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &DuckDBStore{sqlCore: sqlCore{db: db}}, nil
}

// UpsertSourceFile replaces the (project, path) row. DuckDB cannot update a
// list column in place, so the old row is deleted and a new one inserted in
// the same transaction. source_files carries no unique key because DuckDB
// checks it against rows deleted earlier in the transaction; (project, path)
// stays unique because every write goes through here under upsertMu.
func (s *DuckDBStore) UpsertSourceFile(ctx context.Context, f SourceFile) error {
	if err := validateSourceFile(f); err != nil {
		return err
	}
	s.upsertMu.Lock()
	defer s.upsertMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin upsert of %s: %w", f.Path, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM source_files WHERE project_id = ? AND path = ?
	`, f.ProjectID, f.Path); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", f.Path, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO source_files (project_id, path, content, summary, embedding, updated_at)
		VALUES (?, ?, ?, ?, CAST(? AS FLOAT[]), now())
	`, f.ProjectID, f.Path, f.Content, f.Summary, vectorLiteral(f.Embedding)); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", f.Path, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert of %s: %w", f.Path, err)
	}
	return nil
}

func (s *DuckDBStore) FindSimilarFiles(ctx context.Context, projectID string, embedding []float32, threshold float64, limit int) ([]ScoredFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH scored AS (
			SELECT path, content, summary,
				list_cosine_similarity(embedding, CAST(? AS FLOAT[])) AS similarity
			FROM source_files
			WHERE project_id = ? AND len(embedding) = ?
		)
		SELECT path, content, summary, similarity FROM scored
		WHERE similarity > ?
		ORDER BY similarity DESC, path
		LIMIT ?
	`, vectorLiteral(embedding), projectID, len(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	defer rows.Close()

	var files []ScoredFile
	for rows.Next() {
		var f ScoredFile
		if err := rows.Scan(&f.Path, &f.Content, &f.Summary, &f.Similarity); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
