package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ishaan812/gitsage/internal/db"
	"github.com/ishaan812/gitsage/internal/indexer"
)

var indexCmd = &cobra.Command{
	Use:   "index <project>",
	Short: "Summarize and embed every source file of a project",
	Long: `Load every source file of the project's repository, summarize each one
and store the summary with its embedding for question answering.

Files are overwritten on re-index; files deleted upstream are kept.

Examples:
  gitsage index widgets
  gitsage --source git index widgets`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := resolveProject(ctx, a.store, args[0])
	if err != nil {
		return err
	}
	return indexProject(ctx, a, p)
}

func indexProject(ctx context.Context, a *app, p *db.Project) error {
	st := startStatus(fmt.Sprintf("Loading %s...", p.RepoURL))
	ix := a.newIndexer(indexer.WithProgress(func(done, total int) {
		st.Update(fmt.Sprintf("Indexing files %d/%d", done, total))
	}))
	res, err := ix.IndexProject(ctx, p.ID, p.RepoURL, a.token(p))
	st.Stop()
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", p.Name, err)
	}

	successColor.Printf("Indexed %d of %d files", res.Indexed, res.Loaded)
	dimColor.Printf(" in %s\n", res.Duration.Round(100*time.Millisecond))
	if n := len(res.Unsummarized); n > 0 {
		warnColor.Printf("  %d files got no summary and were not stored\n", n)
		for _, path := range res.Unsummarized {
			dimColor.Printf("    %s\n", path)
		}
	}
	if n := len(res.Failed); n > 0 {
		warnColor.Printf("  %d files failed\n", n)
		for _, fe := range res.Failed {
			dimColor.Printf("    %s: %v\n", fe.Path, fe.Err)
		}
	}
	return nil
}
