package db

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/ishaan812/gitsage/internal/constants"
)

type StoreSuite struct {
	suite.Suite
	open  func() (Store, error)
	store Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	st, err := s.open()
	s.Require().NoError(err)
	s.store = st
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

// vec builds a unit-axis combination a*e0 + b*e1 of the standard width.
func vec(a, b float32) []float32 {
	v := make([]float32, constants.EmbeddingDimensions)
	v[0], v[1] = a, b
	return v
}

func (s *StoreSuite) newProject(repo string) *Project {
	p := &Project{Name: "widgets", RepoURL: repo}
	s.Require().NoError(s.store.CreateProject(s.ctx, p))
	s.Require().NotEmpty(p.ID)
	return p
}

func (s *StoreSuite) TestProjects() {
	p := s.newProject("https://github.com/acme/widgets")

	got, err := s.store.GetProject(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("widgets", got.Name)

	url, err := s.store.GetRepositoryURL(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("https://github.com/acme/widgets", url)

	empty := s.newProject("")
	url, err = s.store.GetRepositoryURL(s.ctx, empty.ID)
	s.Require().NoError(err)
	s.Equal("", url)

	_, err = s.store.GetProject(s.ctx, "missing")
	s.ErrorIs(err, ErrNotFound)

	all, err := s.store.ListProjects(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *StoreSuite) TestSimilaritySearchIsThresholdedAndOrdered() {
	p := s.newProject("acme/widgets")
	files := map[string][]float32{
		"exact.go":  vec(1, 0),
		"close.go":  vec(1, 0.5),
		"edge.go":   vec(1, 1),
		"far.go":    vec(0, 1),
		"behind.go": vec(-1, 0),
	}
	for path, emb := range files {
		s.Require().NoError(s.store.UpsertSourceFile(s.ctx, SourceFile{
			ProjectID: p.ID, Path: path, Content: "src " + path, Summary: "sum " + path, Embedding: emb,
		}))
	}

	hits, err := s.store.FindSimilarFiles(s.ctx, p.ID, vec(1, 0), 0.5, 10)
	s.Require().NoError(err)
	s.Require().Len(hits, 3)
	s.Equal([]string{"exact.go", "close.go", "edge.go"}, []string{hits[0].Path, hits[1].Path, hits[2].Path})
	for i, h := range hits {
		s.Greater(h.Similarity, 0.5)
		if i > 0 {
			s.LessOrEqual(h.Similarity, hits[i-1].Similarity)
		}
	}
	s.Equal("src exact.go", hits[0].Content)
	s.Equal("sum exact.go", hits[0].Summary)

	limited, err := s.store.FindSimilarFiles(s.ctx, p.ID, vec(1, 0), 0.5, 2)
	s.Require().NoError(err)
	s.Len(limited, 2)
}

func (s *StoreSuite) TestSimilaritySearchIsScopedByProject() {
	a := s.newProject("acme/a")
	b := s.newProject("acme/b")
	s.Require().NoError(s.store.UpsertSourceFile(s.ctx, SourceFile{ProjectID: a.ID, Path: "a.go", Content: "a", Summary: "a", Embedding: vec(1, 0)}))

	hits, err := s.store.FindSimilarFiles(s.ctx, b.ID, vec(1, 0), 0.5, 10)
	s.Require().NoError(err)
	s.Empty(hits)
}

func (s *StoreSuite) TestUpsertOverwritesByPath() {
	p := s.newProject("acme/widgets")
	s.Require().NoError(s.store.UpsertSourceFile(s.ctx, SourceFile{ProjectID: p.ID, Path: "a.go", Content: "v1", Summary: "old", Embedding: vec(0, 1)}))
	s.Require().NoError(s.store.UpsertSourceFile(s.ctx, SourceFile{ProjectID: p.ID, Path: "a.go", Content: "v2", Summary: "new", Embedding: vec(1, 0)}))

	n, err := s.store.CountSourceFiles(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(1, n)

	hits, err := s.store.FindSimilarFiles(s.ctx, p.ID, vec(1, 0), 0.5, 10)
	s.Require().NoError(err)
	s.Require().Len(hits, 1)
	s.Equal("v2", hits[0].Content)
	s.Equal("new", hits[0].Summary)
}

func (s *StoreSuite) TestRepeatedUpsertsKeepOneRow() {
	p := s.newProject("acme/widgets")
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.store.UpsertSourceFile(s.ctx, SourceFile{ProjectID: p.ID, Path: "a.go", Content: "v", Summary: "s", Embedding: vec(1, 0)})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		s.NoError(err)
	}

	n, err := s.store.CountSourceFiles(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *StoreSuite) TestUpsertRejectsMissingEmbedding() {
	p := s.newProject("acme/widgets")
	err := s.store.UpsertSourceFile(s.ctx, SourceFile{ProjectID: p.ID, Path: "a.go", Summary: "x"})
	s.Error(err)

	n, err := s.store.CountSourceFiles(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *StoreSuite) TestInsertCommitsIgnoresDuplicates() {
	p := s.newProject("acme/widgets")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := []Commit{
		{Hash: "a", Message: "first", AuthorName: "Dev", Date: base, Summary: "did a"},
		{Hash: "b", Message: "second", AuthorName: "Dev", Date: base.Add(time.Hour), Summary: ""},
	}

	inserted, err := s.store.InsertCommits(s.ctx, p.ID, batch)
	s.Require().NoError(err)
	s.Len(inserted, 2)

	again, err := s.store.InsertCommits(s.ctx, p.ID, append(batch, Commit{Hash: "c", Message: "third", Date: base.Add(2 * time.Hour)}))
	s.Require().NoError(err)
	s.Require().Len(again, 1)
	s.Equal("c", again[0].Hash)

	hashes, err := s.store.ListCommitHashes(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Len(hashes, 3)
	s.Contains(hashes, "b")

	commits, err := s.store.ListCommits(s.ctx, p.ID, 0)
	s.Require().NoError(err)
	s.Require().Len(commits, 3)
	s.Equal([]string{"c", "b", "a"}, []string{commits[0].Hash, commits[1].Hash, commits[2].Hash})
	s.Equal("", commits[1].Summary)
	s.Equal("did a", commits[2].Summary)
	s.True(commits[2].Date.Equal(base))

	latest, err := s.store.ListCommits(s.ctx, p.ID, 1)
	s.Require().NoError(err)
	s.Len(latest, 1)
}

func (s *StoreSuite) TestCommitHashesAreScopedByProject() {
	a := s.newProject("acme/a")
	b := s.newProject("acme/b")
	c := []Commit{{Hash: "shared", Message: "m", Date: time.Now()}}

	_, err := s.store.InsertCommits(s.ctx, a.ID, c)
	s.Require().NoError(err)
	inserted, err := s.store.InsertCommits(s.ctx, b.ID, c)
	s.Require().NoError(err)
	s.Len(inserted, 1)
}

func (s *StoreSuite) TestSavedAnswers() {
	p := s.newProject("acme/widgets")
	refs := []FileReference{
		{Path: "router.go", SourceCode: "package router", Summary: "Routes requests.", Similarity: 0.91},
		{Path: "main.go", SourceCode: "package main", Summary: "Starts the server.", Similarity: 0.42},
	}
	a := &SavedAnswer{ProjectID: p.ID, Question: "where is routing?", Answer: "In router.go", References: refs}
	s.Require().NoError(s.store.SaveAnswer(s.ctx, a))
	s.NotEmpty(a.ID)

	answers, err := s.store.ListAnswers(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(answers, 1)
	s.Equal("In router.go", answers[0].Answer)
	s.Equal(refs, answers[0].References)
}

func (s *StoreSuite) TestSavedAnswerWithoutReferences() {
	p := s.newProject("acme/widgets")
	s.Require().NoError(s.store.SaveAnswer(s.ctx, &SavedAnswer{ProjectID: p.ID, Question: "q", Answer: "a"}))

	answers, err := s.store.ListAnswers(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(answers, 1)
	s.Empty(answers[0].References)
}

func TestDuckDBStore(t *testing.T) {
	suite.Run(t, &StoreSuite{open: func() (Store, error) { return OpenDuckDB("") }})
}

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &StoreSuite{open: func() (Store, error) { return OpenSQLite("") }})
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("GITSAGE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GITSAGE_TEST_POSTGRES_DSN not set")
	}
	suite.Run(t, &StoreSuite{open: func() (Store, error) {
		st, err := OpenPostgres(dsn)
		if err != nil {
			return nil, err
		}
		st.db.Exec("TRUNCATE saved_answers, commits, source_files, projects")
		return st, nil
	}})
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[1,0.5,-0.25]", vectorLiteral([]float32{1, 0.5, -0.25}))
}
