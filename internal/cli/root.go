package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ishaan812/gitsage/internal/config"
)

var (
	configFile string
	dbPath     string
	dbBackend  string
	sourceFlag string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "gitsage",
	Short: "gitsage - Ask questions about a codebase and follow its commits",
	Long: `gitsage indexes a repository's source files into short summaries with
embeddings, keeps a summarized log of its recent commits, and answers
natural-language questions grounded in the most relevant files.

Use 'gitsage project create' to register a repository, 'gitsage poll' to pick
up new commits and 'gitsage ask' to query it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		if configFile != "" {
			config.SetConfigPath(configFile)
		}
		return nil
	},
}

// Execute runs the root command. Interrupts cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (default ~/.gitsage/config.json)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dbBackend, "backend", "", "Database backend: duckdb, sqlite or postgres (overrides config)")
	rootCmd.PersistentFlags().StringVar(&sourceFlag, "source", sourceGitHub, "Where to read repositories from: github (REST API) or git (clone)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

func setupLogging() {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().
		Timestamp().
		Logger()
}

func IsVerbose() bool {
	return verbose
}
