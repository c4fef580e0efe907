package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ishaan812/gitsage/internal/db"
)

var (
	pollWatch    bool
	pollInterval time.Duration
)

var pollCmd = &cobra.Command{
	Use:   "poll <project>",
	Short: "Record and summarize commits not seen before",
	Long: `Fetch the project's most recent commits, summarize the diff of every
commit not already stored and add them to the commit log.

Polling is idempotent: commits already stored are never summarized again.

Examples:
  gitsage poll widgets
  gitsage poll widgets --watch --interval 10m`,
	Args: cobra.ExactArgs(1),
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().BoolVar(&pollWatch, "watch", false, "Keep polling until interrupted")
	pollCmd.Flags().DurationVar(&pollInterval, "interval", 5*time.Minute, "Time between polls with --watch")
}

func runPoll(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if pollWatch && pollInterval < time.Second {
		return fmt.Errorf("invalid --interval %s (must be at least 1s)", pollInterval)
	}

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := resolveProject(ctx, a.store, args[0])
	if err != nil {
		return err
	}
	if !pollWatch {
		return pollProject(ctx, a, p)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	dimColor.Printf("Polling %s every %s. Press Ctrl+C to stop.\n", p.Name, pollInterval)
	for {
		if err := pollProject(ctx, a, p); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Str("project", p.ID).Msg("Poll failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func pollProject(ctx context.Context, a *app, p *db.Project) error {
	if IsVerbose() && sourceFlag == sourceGitHub && !isLocalRepo(p.RepoURL) {
		if remaining, err := a.github.WithToken(p.Token).RateLimitRemaining(ctx); err == nil {
			log.Debug().Int("remaining", remaining).Msg("GitHub API budget")
		}
	}

	st := startStatus(fmt.Sprintf("Checking %s for new commits...", p.Name))
	res, err := a.trackerFor(p).PollCommits(ctx, p.ID)
	st.Stop()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("failed to poll %s: %w", p.Name, err)
	}

	if len(res.Inserted) == 0 {
		dimColor.Printf("No new commits (%d checked)\n", res.Fetched)
		return nil
	}
	successColor.Printf("Recorded %d new commits", len(res.Inserted))
	dimColor.Printf(" (%d checked)\n", res.Fetched)
	for _, c := range res.Inserted {
		accentColor.Printf("  %s ", shortHash(c.Hash))
		infoColor.Println(firstLine(c.Message))
	}
	if res.Unsummarized > 0 {
		warnColor.Printf("  %d commits have no summary (diff unavailable or summarization failed)\n", res.Unsummarized)
	}
	return nil
}
