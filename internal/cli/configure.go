package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ishaan812/gitsage/internal/config"
	"github.com/ishaan812/gitsage/internal/constants"
)

var configureShow bool

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure gitsage settings",
	Long: `Configure the AI provider, API keys, GitHub token and database.

Settings are stored in ~/.gitsage/config.json. Environment variables
(GEMINI_API_KEY, GITHUB_TOKEN, OLLAMA_HOST, GITSAGE_DB_BACKEND, GITSAGE_DB_PATH,
DATABASE_URL) take precedence over the file.

Examples:
  gitsage configure
  gitsage configure --show`,
	Args: cobra.NoArgs,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
	configureCmd.Flags().BoolVar(&configureShow, "show", false, "Print the current settings and exit")
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if configureShow {
		printSettings(cfg)
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("configure needs an interactive terminal; edit %s instead", config.GetConfigPath())
	}

	fmt.Println()
	titleColor.Println("gitsage Configuration")
	fmt.Println()

	if err := configureProvider(cfg); err != nil {
		return handlePromptErr(err)
	}
	if err := configureGitHub(cfg); err != nil {
		return handlePromptErr(err)
	}
	if err := configureDatabase(cfg); err != nil {
		return handlePromptErr(err)
	}

	if err := cfg.Save(); err != nil {
		return err
	}
	fmt.Println()
	successColor.Printf("Configuration saved to %s\n", config.GetConfigPath())
	printSettings(cfg)
	return nil
}

func handlePromptErr(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		dimColor.Println("Configuration canceled. Nothing was saved.")
		return nil
	}
	return err
}

func selectIndex(label string, items []string, current string) (int, error) {
	cursor := 0
	for i, it := range items {
		if strings.HasPrefix(it, current) && current != "" {
			cursor = i
		}
	}
	sel := promptui.Select{Label: label, Items: items, CursorPos: cursor, Size: len(items)}
	i, _, err := sel.Run()
	return i, err
}

func promptSecret(label, current string) (string, error) {
	if current != "" {
		label += " (leave empty to keep current)"
	}
	p := promptui.Prompt{Label: label, Mask: '*'}
	v, err := p.Run()
	if err != nil {
		return "", err
	}
	if v = strings.TrimSpace(v); v == "" {
		return current, nil
	}
	return v, nil
}

// promptConfirm asks a y/N question; anything but yes is a no.
func promptConfirm(label string) bool {
	p := promptui.Prompt{Label: label, IsConfirm: true}
	_, err := p.Run()
	return err == nil
}

func promptText(label, def string) (string, error) {
	p := promptui.Prompt{Label: label, Default: def, AllowEdit: true}
	v, err := p.Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v), nil
}

func configureProvider(cfg *config.Config) error {
	items := make([]string, len(constants.AllProviders))
	for i, info := range constants.AllProviders {
		items[i] = fmt.Sprintf("%s - %s", info.Name, info.Description)
	}
	i, err := selectIndex("AI provider", items, cfg.DefaultProvider)
	if err != nil {
		return err
	}
	p := constants.AllProviders[i].Name
	cfg.DefaultProvider = string(p)

	if p == constants.ProviderGemini {
		key, err := promptSecret("Gemini API key", cfg.GeminiAPIKey)
		if err != nil {
			return err
		}
		if key == "" {
			return fmt.Errorf("a Gemini API key is required for the gemini provider")
		}
		cfg.GeminiAPIKey = key
	}
	if p == constants.ProviderOllama {
		url, err := promptText("Ollama base URL", cfg.OllamaBaseURL)
		if err != nil {
			return err
		}
		cfg.OllamaBaseURL = url
	}

	models := constants.GetLLMModels(p)
	if len(models) == 0 {
		return nil
	}
	modelItems := make([]string, len(models))
	for i, m := range models {
		modelItems[i] = fmt.Sprintf("%s - %s", m.Model, m.Description)
	}
	j, err := selectIndex("Model", modelItems, cfg.LLMModel())
	if err != nil {
		return err
	}
	if p == constants.ProviderOllama {
		cfg.OllamaModel = models[j].Model
	} else {
		cfg.DefaultModel = models[j].Model
	}
	return nil
}

func configureGitHub(cfg *config.Config) error {
	token, err := promptSecret("GitHub token (optional, for private repositories and higher rate limits)", cfg.GitHubToken)
	if err != nil {
		return err
	}
	cfg.GitHubToken = token
	return nil
}

func configureDatabase(cfg *config.Config) error {
	backends := []string{
		config.BackendDuckDB + " - embedded, single file (default)",
		config.BackendSQLite + " - embedded, sqlite-vec for similarity",
		config.BackendPostgres + " - server, pgvector for similarity",
	}
	i, err := selectIndex("Database", backends, cfg.DBBackend)
	if err != nil {
		return err
	}

	switch i {
	case 0, 1:
		cfg.DBBackend = config.BackendDuckDB
		ext := ".db"
		if i == 1 {
			cfg.DBBackend = config.BackendSQLite
			ext = ".sqlite"
		}
		def := cfg.DBPath
		if def == "" || !strings.HasSuffix(def, ext) {
			def = filepath.Join(config.GetGitsageDir(), "gitsage"+ext)
		}
		path, err := promptText("Database file", def)
		if err != nil {
			return err
		}
		cfg.DBPath = path
	case 2:
		cfg.DBBackend = config.BackendPostgres
		dsn, err := promptText("Postgres DSN", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		if dsn == "" {
			return fmt.Errorf("a DSN is required for the postgres backend")
		}
		cfg.PostgresDSN = dsn
	}
	return nil
}

func printSettings(cfg *config.Config) {
	fmt.Println()
	titleColor.Println("Current Settings:")
	dimColor.Println(strings.Repeat("─", 40))
	infoColor.Printf("  Provider:        %s\n", cfg.Provider())
	dimColor.Printf("  Model:           %s\n", cfg.LLMModel())
	dimColor.Printf("  Embedding model: %s\n", cfg.EmbedModel())
	infoColor.Printf("  Gemini API key:  %s\n", maskSecret(cfg.GeminiAPIKey))
	infoColor.Printf("  GitHub token:    %s\n", maskSecret(cfg.GitHubToken))
	infoColor.Printf("  Database:        %s\n", cfg.DBBackend)
	if cfg.DBBackend == config.BackendPostgres {
		dimColor.Printf("  DSN:             %s\n", maskDSN(cfg.PostgresDSN))
	} else {
		dimColor.Printf("  Path:            %s\n", cfg.DBPath)
	}
	dimColor.Printf("  Workers:         %d (loader %d)\n", cfg.WorkerConcurrency, cfg.LoaderConcurrency)
	dimColor.Printf("  Retries:         %d, base delay %s\n", cfg.RetryAttempts, cfg.RetryBaseDelay())
	if len(cfg.ExcludePatterns) > 0 {
		dimColor.Printf("  Extra excludes:  %s\n", strings.Join(cfg.ExcludePatterns, ", "))
	}
	fmt.Println()
}

func maskSecret(s string) string {
	switch {
	case s == "":
		return "(not set)"
	case len(s) <= 8:
		return "********"
	default:
		return s[:4] + strings.Repeat("*", 8)
	}
}

// maskDSN hides the password in a postgres URL.
func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if i := strings.IndexByte(creds, ':'); i >= 0 {
		return dsn[:scheme+3] + creds[:i] + ":****" + dsn[at:]
	}
	return dsn
}
