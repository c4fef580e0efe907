package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ishaan812/gitsage/internal/db"
)

var (
	askSave bool
	askRaw  bool
)

var askCmd = &cobra.Command{
	Use:   "ask <project> <question>",
	Short: "Ask a question about a project's code",
	Long: `Answer a natural-language question from the project's indexed files.

The question is embedded, the most similar files are retrieved and the answer
is generated from their source and summaries only. The files used are listed
after the answer.

Examples:
  gitsage ask widgets "Where are HTTP routes registered?"
  gitsage ask widgets "How is the config loaded?" --save
  gitsage ask widgets "What does cmd/server do?" --raw > answer.md`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askSave, "save", false, "Save the question and answer to the project")
	askCmd.Flags().BoolVar(&askRaw, "raw", false, "Stream plain markdown instead of rendering it")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args[1:], " ")

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := resolveProject(ctx, a.store, args[0])
	if err != nil {
		return err
	}

	st := startStatus("Searching the codebase...")
	ans, err := a.newAnswerer().Ask(ctx, p.ID, question)
	st.Stop()
	if err != nil {
		return fmt.Errorf("failed to process question: %w", err)
	}

	tty := stdoutIsTerminal() && !askRaw
	var text string
	if tty {
		st = startStatus("Thinking...")
		text, err = ans.Collect()
		st.Stop()
		fmt.Println()
		if text != "" {
			fmt.Print(renderMarkdown(text))
		}
	} else {
		var sb strings.Builder
		for delta, derr := range ans.Deltas() {
			if derr != nil {
				err = derr
				break
			}
			sb.WriteString(delta)
			fmt.Print(delta)
		}
		text = sb.String()
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("answer interrupted: %w", err)
	}

	refs := make([]referenceLine, len(ans.References))
	for i, r := range ans.References {
		refs[i] = referenceLine{Path: r.Path, Similarity: r.Similarity}
	}
	if tty {
		if box := renderReferences(refs); box != "" {
			fmt.Println(box)
		}
	} else if len(refs) > 0 {
		fmt.Printf("\nReferences: %s\n", strings.Join(ans.ReferencePaths(), ", "))
	}

	if askSave {
		saved := &db.SavedAnswer{
			ProjectID:  p.ID,
			Question:   ans.Question,
			Answer:     text,
			References: ans.SavedReferences(),
		}
		if err := a.store.SaveAnswer(ctx, saved); err != nil {
			return fmt.Errorf("failed to save answer: %w", err)
		}
		successColor.Println("Answer saved.")
	}
	return nil
}
