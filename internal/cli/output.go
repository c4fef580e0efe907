package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	titleColor   = color.New(color.FgHiCyan, color.Bold)
	successColor = color.New(color.FgHiGreen)
	warnColor    = color.New(color.FgYellow)
	dimColor     = color.New(color.FgHiBlack)
	infoColor    = color.New(color.FgHiWhite)
	accentColor  = color.New(color.FgHiMagenta)
)

var (
	referencesStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	referenceTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("86"))

	scoreStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// status is a spinner on stderr. It is inert when stderr is not a terminal
// or verbose logging is on.
type status struct {
	s *spinner.Spinner
}

func startStatus(text string) *status {
	if !term.IsTerminal(int(os.Stderr.Fd())) || verbose {
		return &status{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + text
	s.Start()
	return &status{s: s}
}

func (st *status) Update(text string) {
	if st.s == nil {
		return
	}
	st.s.Lock()
	st.s.Suffix = " " + text
	st.s.Unlock()
}

func (st *status) Stop() {
	if st.s != nil {
		st.s.Stop()
	}
}

// renderMarkdown renders md for the terminal, falling back to the raw text.
func renderMarkdown(md string) string {
	width := min(terminalWidth(), 120)
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// referenceLine is one file reference for display.
type referenceLine struct {
	Path       string
	Similarity float64
}

func renderReferences(refs []referenceLine) string {
	if len(refs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(referenceTitleStyle.Render(fmt.Sprintf("Files referenced (%d)", len(refs))))
	for _, r := range refs {
		sb.WriteString("\n")
		if r.Similarity > 0 {
			sb.WriteString(fmt.Sprintf("%s %s", r.Path, scoreStyle.Render(fmt.Sprintf("%.2f", r.Similarity))))
		} else {
			sb.WriteString(r.Path)
		}
	}
	return referencesStyle.Render(sb.String())
}

func shortHash(h string) string {
	if len(h) > 7 {
		return h[:7]
	}
	return h
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// wrapIndent word-wraps text to width, prefixing every line with indent.
func wrapIndent(text, indent string, width int) string {
	limit := max(width-len(indent), 20)
	var out []string
	for _, para := range strings.Split(strings.TrimSpace(text), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len(line)+1+len(w) > limit {
				out = append(out, indent+line)
				line = w
				continue
			}
			line += " " + w
		}
		out = append(out, indent+line)
	}
	return strings.Join(out, "\n")
}
