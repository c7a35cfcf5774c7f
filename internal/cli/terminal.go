package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/bastiangx/wordmend/pkg/restore"
	"github.com/bastiangx/wordmend/pkg/trie"
	"github.com/charmbracelet/lipgloss"
	"github.com/cheynewallace/tabby"
	"golang.org/x/term"
)

// IsInteractive reports whether f is a terminal, in which case the prompt
// and help text are shown.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// styles used for CLI output
type styles struct {
	title    lipgloss.Style
	restored lipgloss.Style
	word     lipgloss.Style
	dim      lipgloss.Style
}

func newStyles(color bool) styles {
	s := styles{
		title:    lipgloss.NewStyle(),
		restored: lipgloss.NewStyle(),
		word:     lipgloss.NewStyle(),
		dim:      lipgloss.NewStyle(),
	}
	if !color {
		return s
	}
	s.title = s.title.Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	s.restored = s.restored.Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#286983", Dark: "#9ccfd8"})
	s.word = s.word.Foreground(lipgloss.Color("75"))
	s.dim = s.dim.Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#9893a5", Dark: "#6e6a86"})
	return s
}

// highlight styles every <word> substitution of a restored text.
func (s styles) highlight(text string) string {
	var b strings.Builder
	for {
		open := strings.IndexByte(text, '<')
		if open < 0 {
			break
		}
		end := strings.IndexByte(text[open:], '>')
		if end < 0 {
			break
		}
		end += open
		b.WriteString(text[:open])
		b.WriteString(s.restored.Render(text[open : end+1]))
		text = text[end+1:]
	}
	b.WriteString(text)
	return b.String()
}

func newTable(w io.Writer) *tabby.Tabby {
	return tabby.NewCustom(tabwriter.NewWriter(w, 0, 0, 2, ' ', 0))
}

// printMatches lists pattern matches with their frequency.
func printMatches(w io.Writer, matches []trie.Candidate) {
	table := newTable(w)
	table.AddHeader("Rank", "Word", "Frequency")
	for i, m := range matches {
		table.AddLine(i+1, m.Word, formatWithCommas(m.Frequency))
	}
	table.Print()
}

// printFuzzy lists the near matches of every unknown word.
func printFuzzy(w io.Writer, suggestions []restore.Suggestion) {
	table := newTable(w)
	table.AddHeader("Token", "Rank", "Suggestion", "Distance", "Frequency")
	for _, s := range suggestions {
		for i, m := range s.Matches {
			tok := s.Token
			if i > 0 {
				tok = ""
			}
			table.AddLine(tok, i+1, m.Word, m.Distance, formatWithCommas(m.Frequency))
		}
	}
	table.Print()
}

// printReview lists the context decisions of a restore.
func printReview(w io.Writer, rows []restore.ReviewRow) {
	table := newTable(w)
	table.AddHeader("Original", "Choice", "Confidence", "Left", "Right", "Applied")
	for _, r := range rows {
		applied := "no"
		if r.Accepted {
			applied = "yes"
		}
		table.AddLine(r.Original, r.Choice, fmt.Sprintf("%.4f", r.Confidence), r.Left, r.Right, applied)
	}
	table.Print()
}

// printBatch lists the per file results of a folder restore and the totals.
func printBatch(w io.Writer, summary *restore.BatchSummary) {
	table := newTable(w)
	table.AddHeader("File", "Masked", "Restored", "Match rate", "Unmatched")
	for _, f := range summary.Files {
		if f.Err != nil {
			table.AddLine(f.Name, "-", "-", "-", "error: "+f.Err.Error())
			continue
		}
		table.AddLine(f.Name, f.Masked, f.Restored, fmt.Sprintf("%.1f%%", f.MatchRate()), strings.Join(f.Unmatched, " "))
	}
	table.AddLine("total", summary.Masked, summary.Restored, fmt.Sprintf("%.1f%%", summary.MatchRate()), summary.Unmatched)
	table.Print()
	if summary.Failed > 0 {
		fmt.Fprintf(w, "%d file(s) failed\n", summary.Failed)
	}
}

// formatWithCommas formats an integer with comma separators
func formatWithCommas(n int) string {
	if n < 1000 && n > -1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	sign := ""
	if n < 0 {
		sign, str = "-", str[1:]
	}
	var b strings.Builder
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(char)
	}
	return sign + b.String()
}
