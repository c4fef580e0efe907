package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ishaan812/gitsage/internal/db"
	"github.com/ishaan812/gitsage/internal/github"
)

var (
	projectToken   string
	projectNoIndex bool
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long: `A project is a repository registered with gitsage. Its files are indexed
for question answering and its commits are polled into a summarized log.`,
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name> <repo-url>",
	Short: "Register a repository and index it",
	Long: `Register a repository as a project. Unless --no-index is given, the
repository is indexed and its recent commits are polled right away.

The repository may be a GitHub URL, an owner/name pair, any git remote
(with --source git) or a local directory.

Examples:
  gitsage project create widgets https://github.com/acme/widgets
  gitsage project create widgets acme/widgets --token ghp_xxx
  gitsage project create api ~/src/api --no-index
  gitsage --source git project create infra https://gitlab.com/acme/infra.git`,
	Args: cobra.ExactArgs(2),
	RunE: runProjectCreate,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE:  runProjectList,
}

var projectShowCmd = &cobra.Command{
	Use:   "show <project>",
	Short: "Show a project and what has been indexed for it",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectShow,
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectShowCmd)

	projectCreateCmd.Flags().StringVar(&projectToken, "token", "", "Access token for a private repository (overrides config)")
	projectCreateCmd.Flags().BoolVar(&projectNoIndex, "no-index", false, "Register only; skip indexing and commit polling")
}

// validateRepoURL rejects repository references the selected source cannot read.
func validateRepoURL(repoURL string) error {
	if strings.TrimSpace(repoURL) == "" {
		return fmt.Errorf("repository URL is empty")
	}
	if isLocalRepo(repoURL) || sourceFlag == sourceGit {
		return nil
	}
	_, err := github.ParseRepoURL(repoURL)
	return err
}

func runProjectCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name, repoURL := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
	if name == "" {
		return fmt.Errorf("project name is empty")
	}
	if err := validateRepoURL(repoURL); err != nil {
		return err
	}

	a, err := newApp(!projectNoIndex)
	if err != nil {
		return err
	}
	defer a.Close()

	p := &db.Project{Name: name, RepoURL: repoURL, Token: projectToken}
	if err := a.store.CreateProject(ctx, p); err != nil {
		return err
	}
	successColor.Printf("Created project %s ", p.Name)
	dimColor.Printf("(%s)\n", p.ID)

	if projectNoIndex {
		dimColor.Printf("Run 'gitsage index %s' when you are ready to index it.\n", p.Name)
		return nil
	}

	if err := indexProject(ctx, a, p); err != nil {
		return err
	}
	return pollProject(ctx, a, p)
}

func runProjectList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	projects, err := a.store.ListProjects(ctx)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Println("No projects yet. Run 'gitsage project create <name> <repo-url>' to add one.")
		return nil
	}

	fmt.Println()
	titleColor.Printf("  Projects\n\n")
	for _, p := range projects {
		infoColor.Printf("  %-24s", p.Name)
		fmt.Printf(" %s\n", p.RepoURL)
		dimColor.Printf("  %-24s created %s\n", p.ID, p.CreatedAt.Local().Format(time.DateOnly))
	}
	fmt.Println()
	return nil
}

func runProjectShow(cmd *cobra.Command, args []string) error {
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
	return showProject(ctx, a.store, p)
}

func showProject(ctx context.Context, store db.Store, p *db.Project) error {
	files, err := store.CountSourceFiles(ctx, p.ID)
	if err != nil {
		return err
	}
	commits, err := store.ListCommits(ctx, p.ID, 1)
	if err != nil {
		return err
	}
	answers, err := store.ListAnswers(ctx, p.ID)
	if err != nil {
		return err
	}

	fmt.Println()
	titleColor.Printf("  %s\n\n", p.Name)
	dimColor.Print("  ID:          ")
	infoColor.Println(p.ID)
	dimColor.Print("  Repository:  ")
	infoColor.Println(p.RepoURL)
	dimColor.Print("  Token:       ")
	if p.Token != "" {
		infoColor.Println("(project token set)")
	} else {
		dimColor.Println("(uses configured token)")
	}
	dimColor.Print("  Created:     ")
	infoColor.Println(p.CreatedAt.Local().Format(time.RFC1123))
	dimColor.Print("  Indexed:     ")
	infoColor.Printf("%d files\n", files)
	dimColor.Print("  Last commit: ")
	if len(commits) > 0 {
		c := commits[0]
		infoColor.Printf("%s %s\n", shortHash(c.Hash), firstLine(c.Message))
	} else {
		dimColor.Println("(none polled)")
	}
	dimColor.Print("  Answers:     ")
	infoColor.Printf("%d\n", len(answers))
	fmt.Println()
	return nil
}
