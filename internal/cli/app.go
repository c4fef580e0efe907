package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ishaan812/gitsage/internal/chat"
	"github.com/ishaan812/gitsage/internal/config"
	"github.com/ishaan812/gitsage/internal/db"
	"github.com/ishaan812/gitsage/internal/git"
	"github.com/ishaan812/gitsage/internal/github"
	"github.com/ishaan812/gitsage/internal/indexer"
	"github.com/ishaan812/gitsage/internal/llm"
	"github.com/ishaan812/gitsage/internal/loader"
	"github.com/ishaan812/gitsage/internal/tracker"
)

const (
	sourceGitHub = "github"
	sourceGit    = "git"
)

// app holds everything a command needs, built from config and flags.
type app struct {
	cfg     *config.Config
	store   db.Store
	gateway *llm.Gateway
	github  *github.Client
	filter  *loader.Filter

	// trackers holds one Tracker per project ID for the life of the process.
	trackersMu sync.Mutex
	trackers   map[string]*tracker.Tracker
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\n\nRun 'gitsage configure' to set up your configuration", err)
	}
	if dbBackend != "" {
		cfg.DBBackend = dbBackend
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

// newApp opens the store and, when withAI is set, the AI gateway.
func newApp(withAI bool) (*app, error) {
	if sourceFlag != sourceGitHub && sourceFlag != sourceGit {
		return nil, fmt.Errorf("unknown --source %q (use github or git)", sourceFlag)
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if cfg.DBBackend != config.BackendPostgres {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	log.Debug().Str("backend", cfg.DBBackend).Str("path", cfg.DBPath).Msg("Opening database")
	store, err := db.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &app{
		cfg:    cfg,
		store:  store,
		github: github.NewClient(cfg.GitHubToken),
		filter: loader.NewFilter(cfg.ExcludePatterns...),
	}
	if withAI {
		if a.gateway, err = newGateway(cfg); err != nil {
			store.Close()
			return nil, err
		}
	}
	return a, nil
}

func newGateway(cfg *config.Config) (*llm.Gateway, error) {
	p := cfg.Provider()
	if !cfg.HasProvider(p) {
		return nil, fmt.Errorf("%s API key not configured. Run 'gitsage configure' or set GEMINI_API_KEY", p)
	}
	llmCfg := llm.Config{
		Provider:       p,
		Model:          cfg.LLMModel(),
		EmbeddingModel: cfg.EmbedModel(),
		APIKey:         cfg.GeminiAPIKey,
	}
	if p == llm.ProviderOllama {
		llmCfg.BaseURL = cfg.OllamaBaseURL
	}
	log.Debug().Str("provider", string(p)).Str("model", llmCfg.Model).Str("embed_model", llmCfg.EmbeddingModel).Msg("Initializing AI gateway")

	client, err := llm.NewClient(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	embedder, err := llm.NewEmbedder(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	policy := llm.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.RetryAttempts
	policy.BaseDelay = cfg.RetryBaseDelay()
	return llm.NewGateway(client, embedder, llm.WithRetryPolicy(policy)), nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close database")
	}
}

// token picks the project's own token over the configured one.
func (a *app) token(p *db.Project) string {
	if p.Token != "" {
		return p.Token
	}
	return a.cfg.GitHubToken
}

func (a *app) newIndexer(opts ...indexer.Option) *indexer.Indexer {
	var remote loader.Loader = loader.NewGitHubLoader(a.github, a.filter, a.cfg.LoaderConcurrency)
	if sourceFlag == sourceGit {
		remote = loader.NewGitLoader(a.filter)
	}
	router := loader.Router{Remote: remote, Local: loader.NewLocalLoader(a.filter)}
	opts = append([]indexer.Option{indexer.WithConcurrency(a.cfg.WorkerConcurrency)}, opts...)
	return indexer.New(router, a.gateway, a.store, opts...)
}

func (a *app) trackerFor(p *db.Project) *tracker.Tracker {
	a.trackersMu.Lock()
	defer a.trackersMu.Unlock()
	if t, ok := a.trackers[p.ID]; ok {
		return t
	}

	var fetcher tracker.CommitFetcher = a.github.WithToken(p.Token)
	if sourceFlag == sourceGit || isLocalRepo(p.RepoURL) {
		fetcher = git.NewCommitSource(a.token(p))
	}
	t := tracker.New(fetcher, indexer.NewSummarizer(a.gateway), a.store,
		tracker.WithConcurrency(a.cfg.WorkerConcurrency))
	if a.trackers == nil {
		a.trackers = make(map[string]*tracker.Tracker)
	}
	a.trackers[p.ID] = t
	return t
}

func (a *app) newAnswerer() *chat.Answerer {
	return chat.NewAnswerer(a.gateway, a.store, chat.WithTokenBudget(a.cfg.ContextTokenBudget))
}

func isLocalRepo(repoURL string) bool {
	info, err := os.Stat(repoURL)
	return err == nil && info.IsDir()
}

// resolveProject finds a project by ID, then by name.
func resolveProject(ctx context.Context, store db.Store, ref string) (*db.Project, error) {
	p, err := store.GetProject(ctx, ref)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	projects, err := store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	var match *db.Project
	for i := range projects {
		if projects[i].Name != ref {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("more than one project is named %q; use its ID", ref)
		}
		match = &projects[i]
	}
	if match == nil {
		return nil, fmt.Errorf("project %q: %w", ref, db.ErrNotFound)
	}
	return match, nil
}
