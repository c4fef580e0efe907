package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS projects (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    repo_url   TEXT NOT NULL DEFAULT '',
    token      TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS source_files (
    project_id TEXT NOT NULL,
    path       TEXT NOT NULL,
    content    TEXT NOT NULL,
    summary    TEXT NOT NULL,
    embedding  BLOB NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (project_id, path)
);

CREATE TABLE IF NOT EXISTS commits (
    project_id    TEXT NOT NULL,
    hash          TEXT NOT NULL,
    message       TEXT NOT NULL,
    author_name   TEXT NOT NULL DEFAULT '',
    author_avatar TEXT NOT NULL DEFAULT '',
    committed_at  DATETIME NOT NULL,
    summary       TEXT NOT NULL DEFAULT '',
    created_at    DATETIME NOT NULL,
    PRIMARY KEY (project_id, hash)
);

CREATE TABLE IF NOT EXISTS saved_answers (
    id              TEXT PRIMARY KEY,
    project_id      TEXT NOT NULL,
    question        TEXT NOT NULL,
    answer          TEXT NOT NULL,
    file_references TEXT NOT NULL DEFAULT '[]',
    created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_commits_date ON commits(project_id, committed_at);
CREATE INDEX IF NOT EXISTS idx_saved_answers_project ON saved_answers(project_id);
`

// SQLiteStore stores embeddings as sqlite-vec float32 blobs and ranks with
// vec_distance_cosine. An empty path opens an in-memory database.
type SQLiteStore struct {
	sqlCore
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	sqlite_vec.Auto()

	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_foreign_keys=ON&_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == "" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	var version string
	if err := db.QueryRow("SELECT vec_version()").Scan(&version); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{sqlCore{db: db}}, nil
}

func (s *SQLiteStore) UpsertSourceFile(ctx context.Context, f SourceFile) error {
	if err := validateSourceFile(f); err != nil {
		return err
	}
	blob, err := sqlite_vec.SerializeFloat32(f.Embedding)
	if err != nil {
		return fmt.Errorf("serialize embedding for %s: %w", f.Path, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO source_files (project_id, path, content, summary, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (project_id, path) DO UPDATE SET
			content = excluded.content,
			summary = excluded.summary,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at
	`, f.ProjectID, f.Path, f.Content, f.Summary, blob)
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", f.Path, err)
	}
	return nil
}

func (s *SQLiteStore) FindSimilarFiles(ctx context.Context, projectID string, embedding []float32, threshold float64, limit int) ([]ScoredFile, error) {
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, content, summary, similarity FROM (
			SELECT path, content, summary,
				1.0 - vec_distance_cosine(embedding, ?) AS similarity
			FROM source_files
			WHERE project_id = ? AND length(embedding) = ?
		)
		WHERE similarity > ?
		ORDER BY similarity DESC, path
		LIMIT ?
	`, blob, projectID, len(blob), threshold, limit)
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
