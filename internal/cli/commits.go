package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	commitsLimit   int
	commitsSummary bool
)

var commitsCmd = &cobra.Command{
	Use:   "commits <project>",
	Short: "Show the summarized commit log",
	Long: `List the commits recorded for a project, newest first, with the summary
generated from each commit's diff.

Examples:
  gitsage commits widgets
  gitsage commits widgets --limit 50 --summary=false`,
	Args: cobra.ExactArgs(1),
	RunE: runCommits,
}

func init() {
	rootCmd.AddCommand(commitsCmd)
	commitsCmd.Flags().IntVarP(&commitsLimit, "limit", "n", 20, "Maximum commits to show (0 for all)")
	commitsCmd.Flags().BoolVar(&commitsSummary, "summary", true, "Show commit summaries")
}

func runCommits(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := resolveProject(ctx, a.store, args[0])
	if err != nil {
		return err
	}
	commits, err := a.store.ListCommits(ctx, p.ID, commitsLimit)
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		fmt.Printf("No commits recorded. Run 'gitsage poll %s' first.\n", p.Name)
		return nil
	}

	width := terminalWidth()
	for _, c := range commits {
		fmt.Println()
		accentColor.Printf("%s ", shortHash(c.Hash))
		infoColor.Println(firstLine(c.Message))
		dimColor.Printf("        %s, %s\n", c.AuthorName, c.Date.Local().Format(time.DateTime))
		if !commitsSummary {
			continue
		}
		if c.Summary == "" {
			dimColor.Println("        (no summary)")
			continue
		}
		if stdoutIsTerminal() {
			fmt.Print(renderMarkdown(c.Summary))
		} else {
			fmt.Println(wrapIndent(c.Summary, "        ", width))
		}
	}
	fmt.Println()
	return nil
}
