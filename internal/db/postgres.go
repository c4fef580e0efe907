package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/ishaan812/gitsage/internal/constants"
)

type projectModel struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	RepoURL   string `gorm:"not null;default:''"`
	Token     string `gorm:"not null;default:''"`
	CreatedAt time.Time
}

func (projectModel) TableName() string { return "projects" }

type sourceFileModel struct {
	ProjectID string          `gorm:"primaryKey"`
	Path      string          `gorm:"primaryKey"`
	Content   string          `gorm:"not null"`
	Summary   string          `gorm:"not null"`
	Embedding pgvector.Vector `gorm:"type:vector(768);not null"`
	UpdatedAt time.Time
}

func (sourceFileModel) TableName() string { return "source_files" }

type commitModel struct {
	ProjectID    string    `gorm:"primaryKey"`
	Hash         string    `gorm:"primaryKey"`
	Message      string    `gorm:"not null"`
	AuthorName   string    `gorm:"not null;default:''"`
	AuthorAvatar string    `gorm:"not null;default:''"`
	CommittedAt  time.Time `gorm:"not null;index:idx_commits_date"`
	Summary      string    `gorm:"not null;default:''"`
	CreatedAt    time.Time
}

func (commitModel) TableName() string { return "commits" }

// ReferenceList stores saved answer references as JSON.
type ReferenceList []FileReference

func (l ReferenceList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]FileReference(l))
	return string(b), err
}

func (l *ReferenceList) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into ReferenceList", value)
	}
	return json.Unmarshal(raw, (*[]FileReference)(l))
}

type savedAnswerModel struct {
	ID             string     `gorm:"primaryKey"`
	ProjectID      string     `gorm:"not null;index"`
	Question       string     `gorm:"not null"`
	Answer         string     `gorm:"not null"`
	FileReferences ReferenceList `gorm:"type:jsonb;not null;default:'[]'"`
	CreatedAt      time.Time
}

func (savedAnswerModel) TableName() string { return "saved_answers" }

func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "001_pgvector",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error
			},
			Rollback: func(tx *gorm.DB) error { return nil },
		},
		{
			ID: "002_core_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&projectModel{}, &sourceFileModel{}, &commitModel{}, &savedAnswerModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("saved_answers", "commits", "source_files", "projects")
			},
		},
		{
			ID: "003_source_files_hnsw",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_source_files_embedding
					ON source_files USING hnsw (embedding vector_cosine_ops)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_source_files_embedding").Error
			},
		},
	}
}

// PostgresStore uses pgvector's cosine distance operator for retrieval.
// Embeddings must be constants.EmbeddingDimensions wide.
type PostgresStore struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres backend needs a DSN (set DATABASE_URL)")
	}
	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres DSN: %w", err)
	}
	sqlDB := stdlib.OpenDB(*connConfig)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations())
	if err := m.Migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m := projectModel{ID: p.ID, Name: p.Name, RepoURL: p.RepoURL, Token: p.Token, CreatedAt: p.CreatedAt}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (*Project, error) {
	var m projectModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &Project{ID: m.ID, Name: m.Name, RepoURL: m.RepoURL, Token: m.Token, CreatedAt: m.CreatedAt}, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]Project, error) {
	var models []projectModel
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	projects := make([]Project, len(models))
	for i, m := range models {
		projects[i] = Project{ID: m.ID, Name: m.Name, RepoURL: m.RepoURL, Token: m.Token, CreatedAt: m.CreatedAt}
	}
	return projects, nil
}

func (s *PostgresStore) GetRepositoryURL(ctx context.Context, projectID string) (string, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	return p.RepoURL, nil
}

func (s *PostgresStore) UpsertSourceFile(ctx context.Context, f SourceFile) error {
	if err := validateSourceFile(f); err != nil {
		return err
	}
	if len(f.Embedding) != constants.EmbeddingDimensions {
		return fmt.Errorf("postgres store needs %d-dimension embeddings, got %d", constants.EmbeddingDimensions, len(f.Embedding))
	}
	m := sourceFileModel{
		ProjectID: f.ProjectID,
		Path:      f.Path,
		Content:   f.Content,
		Summary:   f.Summary,
		Embedding: pgvector.NewVector(f.Embedding),
		UpdatedAt: time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "summary", "embedding", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", f.Path, err)
	}
	return nil
}

func (s *PostgresStore) FindSimilarFiles(ctx context.Context, projectID string, embedding []float32, threshold float64, limit int) ([]ScoredFile, error) {
	var files []ScoredFile
	query := pgvector.NewVector(embedding)
	err := s.db.WithContext(ctx).Raw(`
		SELECT path, content, summary, 1 - (embedding <=> ?) AS similarity
		FROM source_files
		WHERE project_id = ? AND 1 - (embedding <=> ?) > ?
		ORDER BY similarity DESC, path
		LIMIT ?
	`, query, projectID, query, threshold, limit).Scan(&files).Error
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	return files, nil
}

func (s *PostgresStore) CountSourceFiles(ctx context.Context, projectID string) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&sourceFileModel{}).Where("project_id = ?", projectID).Count(&n).Error
	return int(n), err
}

func (s *PostgresStore) ListCommitHashes(ctx context.Context, projectID string) (map[string]struct{}, error) {
	var hashes []string
	if err := s.db.WithContext(ctx).Model(&commitModel{}).Where("project_id = ?", projectID).Pluck("hash", &hashes).Error; err != nil {
		return nil, fmt.Errorf("failed to list commit hashes: %w", err)
	}
	set := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	return set, nil
}

func (s *PostgresStore) InsertCommits(ctx context.Context, projectID string, commits []Commit) ([]Commit, error) {
	if len(commits) == 0 {
		return nil, nil
	}
	var inserted []Commit
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, c := range commits {
			c.ProjectID = projectID
			c.Date = c.Date.UTC()
			c.CreatedAt = now
			m := commitModel{
				ProjectID:    c.ProjectID,
				Hash:         c.Hash,
				Message:      c.Message,
				AuthorName:   c.AuthorName,
				AuthorAvatar: c.AuthorAvatar,
				CommittedAt:  c.Date,
				Summary:      c.Summary,
				CreatedAt:    c.CreatedAt,
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
			if res.Error != nil {
				return fmt.Errorf("failed to insert commit %s: %w", c.Hash, res.Error)
			}
			if res.RowsAffected > 0 {
				inserted = append(inserted, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

func (s *PostgresStore) ListCommits(ctx context.Context, projectID string, limit int) ([]Commit, error) {
	var models []commitModel
	q := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("committed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}
	commits := make([]Commit, len(models))
	for i, m := range models {
		commits[i] = Commit{
			ProjectID:    m.ProjectID,
			Hash:         m.Hash,
			Message:      m.Message,
			AuthorName:   m.AuthorName,
			AuthorAvatar: m.AuthorAvatar,
			Date:         m.CommittedAt,
			Summary:      m.Summary,
			CreatedAt:    m.CreatedAt,
		}
	}
	return commits, nil
}

func (s *PostgresStore) SaveAnswer(ctx context.Context, a *SavedAnswer) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	m := savedAnswerModel{
		ID:             a.ID,
		ProjectID:      a.ProjectID,
		Question:       a.Question,
		Answer:         a.Answer,
		FileReferences: ReferenceList(a.References),
		CreatedAt:      a.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAnswers(ctx context.Context, projectID string) ([]SavedAnswer, error) {
	var models []savedAnswerModel
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	answers := make([]SavedAnswer, len(models))
	for i, m := range models {
		answers[i] = SavedAnswer{
			ID:         m.ID,
			ProjectID:  m.ProjectID,
			Question:   m.Question,
			Answer:     m.Answer,
			References: []FileReference(m.FileReferences),
			CreatedAt:  m.CreatedAt,
		}
	}
	return answers, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
