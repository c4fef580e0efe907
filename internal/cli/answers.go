package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var answersCmd = &cobra.Command{
	Use:   "answers <project>",
	Short: "List saved answers",
	Long: `List the questions and answers saved with 'gitsage ask --save', newest first.

Examples:
  gitsage answers widgets`,
	Args: cobra.ExactArgs(1),
	RunE: runAnswers,
}

func init() {
	rootCmd.AddCommand(answersCmd)
}

func runAnswers(cmd *cobra.Command, args []string) error {
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
	answers, err := a.store.ListAnswers(ctx, p.ID)
	if err != nil {
		return err
	}
	if len(answers) == 0 {
		fmt.Println("No saved answers. Use 'gitsage ask --save' to keep one.")
		return nil
	}

	tty := stdoutIsTerminal()
	for _, ans := range answers {
		fmt.Println()
		titleColor.Printf("Q: %s\n", ans.Question)
		dimColor.Println(ans.CreatedAt.Local().Format(time.DateTime))
		if tty {
			fmt.Print(renderMarkdown(ans.Answer))
		} else {
			fmt.Println(ans.Answer)
		}
		if len(ans.References) > 0 {
			refs := make([]referenceLine, len(ans.References))
			paths := make([]string, len(ans.References))
			for i, r := range ans.References {
				refs[i] = referenceLine{Path: r.Path, Similarity: r.Similarity}
				paths[i] = r.Path
			}
			if tty {
				fmt.Println(renderReferences(refs))
			} else {
				fmt.Printf("References: %s\n", strings.Join(paths, ", "))
			}
		}
	}
	fmt.Println()
	return nil
}
