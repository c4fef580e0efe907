package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/ishaan812/gitsage/internal/config"
)

const cronMarkerPrefix = "# gitsage-cron:"

var (
	cronEvery     int
	cronLogPath   string
	cronDryRun    bool
	cronYes       bool
	cronRemoveAll bool
	cronRemoveYes bool
)

var cronCmd = &cobra.Command{
	Use:   "cron <project>",
	Short: "Poll a project for new commits on a schedule",
	Long: `Install a cron job that runs 'gitsage poll <project>' every N minutes.

Examples:
  gitsage cron widgets
  gitsage cron widgets --every 15
  gitsage cron widgets --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runCronSetup,
}

var cronRemoveCmd = &cobra.Command{
	Use:   "remove [project]",
	Short: "Remove a gitsage cron job",
	Long: `Remove one or all gitsage cron jobs.

Examples:
  gitsage cron remove widgets
  gitsage cron remove --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCronRemove,
}

func init() {
	rootCmd.AddCommand(cronCmd)
	cronCmd.AddCommand(cronRemoveCmd)

	cronCmd.Flags().IntVar(&cronEvery, "every", 30, "Minutes between polls (1-59)")
	cronCmd.Flags().StringVar(&cronLogPath, "log", "", "Optional log file path for cron output")
	cronCmd.Flags().BoolVar(&cronDryRun, "dry-run", false, "Print the cron entry without installing it")
	cronCmd.Flags().BoolVarP(&cronYes, "yes", "y", false, "Skip confirmation prompt and install immediately")

	cronRemoveCmd.Flags().BoolVar(&cronRemoveAll, "all", false, "Remove all gitsage-managed cron jobs")
	cronRemoveCmd.Flags().BoolVarP(&cronRemoveYes, "yes", "y", false, "Skip confirmation prompt and remove immediately")
}

func runCronSetup(cmd *cobra.Command, args []string) error {
	if cronEvery < 1 || cronEvery > 59 {
		return fmt.Errorf("invalid --every %d (must be 1-59)", cronEvery)
	}

	ctx := cmd.Context()
	a, err := newApp(false)
	if err != nil {
		return err
	}
	p, err := resolveProject(ctx, a.store, args[0])
	a.Close()
	if err != nil {
		return err
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}
	if resolved, resolveErr := filepath.EvalSymlinks(execPath); resolveErr == nil {
		execPath = resolved
	}

	logPath := cronLogPath
	if strings.TrimSpace(logPath) == "" {
		logDir := filepath.Join(config.GetGitsageDir(), "logs")
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		logPath = filepath.Join(logDir, fmt.Sprintf("poll-%s.log", sanitizeToken(p.Name)))
	}
	logPath, err = filepath.Abs(logPath)
	if err != nil {
		return fmt.Errorf("resolve log path: %w", err)
	}

	cronEntry := buildCronEntry(execPath, p.ID, cronEvery, globalFlagArgs(), logPath)
	marker := cronMarker(p.ID)

	if cronDryRun {
		fmt.Println(cronEntry)
		return nil
	}

	if !cronYes {
		infoColor.Printf("gitsage will poll %s every %d minutes on this computer.\n", p.Name, cronEvery)
		dimColor.Printf("Repo: %s\n", p.RepoURL)
		dimColor.Println("To remove later, run:")
		dimColor.Printf("  gitsage cron remove %s\n", shellQuote(p.Name))
		fmt.Println()
		if !promptConfirm("Proceed") {
			dimColor.Println("Canceled. No cron job was installed.")
			return nil
		}
	}

	lines, err := readCrontab()
	if err != nil {
		return err
	}
	kept, _ := removeCronLines(lines, marker)
	if err := writeCrontab(append(kept, cronEntry)); err != nil {
		return err
	}

	successColor.Println("Cron job installed.")
	dimColor.Printf("Schedule: every %d minutes\n", cronEvery)
	dimColor.Printf("Project: %s (%s)\n", p.Name, p.ID)
	dimColor.Printf("Log: %s\n", logPath)
	return nil
}

func runCronRemove(cmd *cobra.Command, args []string) error {
	if cronRemoveAll && len(args) > 0 {
		return fmt.Errorf("cannot use [project] with --all")
	}
	if !cronRemoveAll && len(args) == 0 {
		return fmt.Errorf("name a project or pass --all")
	}

	marker := cronMarkerPrefix
	label := "all gitsage cron jobs"
	if !cronRemoveAll {
		ctx := cmd.Context()
		a, err := newApp(false)
		if err != nil {
			return err
		}
		p, err := resolveProject(ctx, a.store, args[0])
		a.Close()
		if err != nil {
			return err
		}
		marker = cronMarker(p.ID)
		label = fmt.Sprintf("the cron job for %s", p.Name)
	}

	lines, err := readCrontab()
	if err != nil {
		return err
	}
	kept, removed := removeCronLines(lines, marker)
	if removed == 0 {
		dimColor.Println("No matching gitsage cron job found.")
		return nil
	}

	if !cronRemoveYes {
		if !promptConfirm(fmt.Sprintf("Remove %s (%d entries)", label, removed)) {
			dimColor.Println("Canceled. No cron jobs were removed.")
			return nil
		}
	}

	if err := writeCrontab(kept); err != nil {
		return err
	}
	successColor.Printf("Removed %d gitsage cron job(s).\n", removed)
	return nil
}

// globalFlagArgs carries the flags that select config and storage into the
// scheduled command.
func globalFlagArgs() []string {
	var out []string
	if configFile != "" {
		if abs, err := filepath.Abs(configFile); err == nil {
			out = append(out, "--config", abs)
		}
	}
	if dbBackend != "" {
		out = append(out, "--backend", dbBackend)
	}
	if dbPath != "" {
		if abs, err := filepath.Abs(dbPath); err == nil {
			out = append(out, "--db", abs)
		}
	}
	if sourceFlag != sourceGitHub {
		out = append(out, "--source", sourceFlag)
	}
	return out
}

func buildCronEntry(execPath, projectID string, every int, flags []string, logPath string) string {
	parts := []string{shellQuote(execPath)}
	for _, f := range flags {
		parts = append(parts, shellQuote(f))
	}
	parts = append(parts, "poll", shellQuote(projectID))
	command := strings.Join(parts, " ")
	return fmt.Sprintf("*/%d * * * * %s >> %s 2>&1 %s", every, command, shellQuote(logPath), cronMarker(projectID))
}

func cronMarker(projectID string) string {
	return cronMarkerPrefix + sanitizeToken(projectID)
}

// removeCronLines drops blank lines and lines carrying marker.
func removeCronLines(lines []string, marker string) (kept []string, removed int) {
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.Contains(line, marker) {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	return kept, removed
}

// readCrontab returns the current user's crontab lines, none if unset.
func readCrontab() ([]string, error) {
	out, err := exec.Command("crontab", "-l").Output()
	if err == nil {
		return strings.Split(string(out), "\n"), nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return nil, fmt.Errorf("failed to run crontab -l: %w", err)
	}
	stderr := strings.TrimSpace(string(exitErr.Stderr))
	if strings.Contains(strings.ToLower(stderr), "no crontab") {
		return nil, nil
	}
	return nil, fmt.Errorf("failed to read crontab: %s", stderr)
}

func writeCrontab(lines []string) error {
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	cmd := exec.Command("crontab", "-")
	cmd.Stdin = strings.NewReader(content)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to install crontab: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\"'\"'") + "'"
}

func sanitizeToken(s string) string {
	if strings.TrimSpace(s) == "" {
		return "default"
	}
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._-")
	if out == "" {
		return "default"
	}
	return out
}
