package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/ishaan812/gitsage/internal/constants"
)

// Database backends
const (
	BackendDuckDB   = "duckdb"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	DefaultProvider string `json:"default_provider"`
	DefaultModel    string `json:"default_model,omitempty"`
	EmbeddingModel  string `json:"embedding_model,omitempty"`

	// API Keys
	GeminiAPIKey string `json:"gemini_api_key,omitempty"`
	GitHubToken  string `json:"github_token,omitempty"`

	// Ollama config
	OllamaBaseURL    string `json:"ollama_base_url,omitempty"`
	OllamaModel      string `json:"ollama_model,omitempty"`
	OllamaEmbedModel string `json:"ollama_embed_model,omitempty"`

	// Storage
	DBBackend   string `json:"db_backend"`
	DBPath      string `json:"db_path,omitempty"`
	PostgresDSN string `json:"postgres_dsn,omitempty"`

	// Pipeline tuning
	LoaderConcurrency  int      `json:"loader_concurrency"`
	WorkerConcurrency  int      `json:"worker_concurrency"`
	RetryAttempts      int      `json:"retry_attempts"`
	RetryBaseDelayMS   int      `json:"retry_base_delay_ms"`
	ContextTokenBudget int      `json:"context_token_budget"`
	ExcludePatterns    []string `json:"exclude_patterns,omitempty"`
}

var configPath string

func init() {
	configPath = filepath.Join(GetGitsageDir(), "config.json")
}

func GetConfigPath() string {
	return configPath
}

// SetConfigPath overrides the config file location (--config flag, tests).
func SetConfigPath(path string) {
	configPath = path
}

// GetGitsageDir returns the base gitsage directory path
func GetGitsageDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".gitsage"
	}
	return filepath.Join(homeDir, ".gitsage")
}

// Default returns a config populated with built-in defaults.
func Default() *Config {
	return &Config{
		DefaultProvider:    string(constants.ProviderGemini),
		OllamaBaseURL:      constants.DefaultModels[constants.ProviderOllama].BaseURL,
		DBBackend:          BackendDuckDB,
		DBPath:             filepath.Join(GetGitsageDir(), "gitsage.db"),
		LoaderConcurrency:  5,
		WorkerConcurrency:  5,
		RetryAttempts:      3,
		RetryBaseDelayMS:   1000,
		ContextTokenBudget: 24000,
	}
}

// Load reads the config file, falling back to defaults when it does not
// exist, then applies environment overrides.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.fillZeroes()
	return cfg, nil
}

func (c *Config) Save() error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnv lets the environment win over the file for secrets and storage.
func (c *Config) applyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.GeminiAPIKey = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.GitHubToken = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.OllamaBaseURL = v
	}
	if v := os.Getenv("GITSAGE_DB_BACKEND"); v != "" {
		c.DBBackend = v
	}
	if v := os.Getenv("GITSAGE_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.PostgresDSN = v
	}
	if v := os.Getenv("GITSAGE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.WorkerConcurrency = n
		}
	}
}

// fillZeroes restores defaults for numeric fields a hand-edited file zeroed out.
func (c *Config) fillZeroes() {
	d := Default()
	if c.DefaultProvider == "" {
		c.DefaultProvider = d.DefaultProvider
	}
	if c.DBBackend == "" {
		c.DBBackend = d.DBBackend
	}
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
	if c.LoaderConcurrency <= 0 {
		c.LoaderConcurrency = d.LoaderConcurrency
	}
	if c.WorkerConcurrency <= 0 {
		c.WorkerConcurrency = d.WorkerConcurrency
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = d.RetryAttempts
	}
	if c.RetryBaseDelayMS <= 0 {
		c.RetryBaseDelayMS = d.RetryBaseDelayMS
	}
	if c.ContextTokenBudget <= 0 {
		c.ContextTokenBudget = d.ContextTokenBudget
	}
}

// RetryBaseDelay returns the configured backoff base as a duration.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

// Provider returns the configured provider, defaulting to Gemini.
func (c *Config) Provider() constants.Provider {
	if p, ok := constants.ParseProvider(c.DefaultProvider); ok {
		return p
	}
	return constants.ProviderGemini
}

// LLMModel returns the generation model for the configured provider.
func (c *Config) LLMModel() string {
	p := c.Provider()
	if p == constants.ProviderOllama && c.OllamaModel != "" {
		return c.OllamaModel
	}
	if c.DefaultModel != "" {
		return c.DefaultModel
	}
	return constants.DefaultModels[p].LLMModel
}

// EmbedModel returns the embedding model for the configured provider.
func (c *Config) EmbedModel() string {
	p := c.Provider()
	if p == constants.ProviderOllama && c.OllamaEmbedModel != "" {
		return c.OllamaEmbedModel
	}
	if p == constants.ProviderGemini && c.EmbeddingModel != "" {
		return c.EmbeddingModel
	}
	return constants.DefaultModels[p].EmbeddingModel
}

// HasProvider reports whether credentials for the provider are present.
func (c *Config) HasProvider(p constants.Provider) bool {
	switch p {
	case constants.ProviderOllama:
		return true
	case constants.ProviderGemini:
		return c.GeminiAPIKey != ""
	default:
		return false
	}
}
