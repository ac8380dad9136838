package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vulnverified/watchtower/internal/engine"
	"github.com/vulnverified/watchtower/internal/inventory"
)

// WriteStageTable renders one row of counts per stage report.
func WriteStageTable(w io.Writer, reports []*engine.StageReport, noColor bool) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "\nNo stages ran.")
		return
	}
	headers := []string{"Stage", "Programs", "Targets", "Inserted", "Updated", "Unchanged", "Discarded", "Warnings", "Errors", "Duration"}
	var rows [][]string
	for _, r := range reports {
		rows = append(rows, []string{
			r.Stage,
			strconv.Itoa(r.Programs),
			strconv.Itoa(r.Targets),
			strconv.Itoa(r.Inserted),
			strconv.Itoa(r.Updated),
			strconv.Itoa(r.Unchanged),
			strconv.Itoa(r.Discarded),
			strconv.Itoa(len(r.Warnings)),
			strconv.Itoa(len(r.Errors)),
			fmt.Sprintf("%.1fs", r.Duration.Seconds()),
		})
	}
	fmt.Fprintln(w)
	renderTable(w, headers, rows, noColor)
}

// WriteURLMatches renders URL scan matches.
func WriteURLMatches(w io.Writer, matches []engine.URLMatch, noColor bool) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "\nNo URLs matched the parameter wordlist.")
		return
	}
	var rows [][]string
	for _, m := range matches {
		rows = append(rows, []string{truncate(m.URL, 80), m.Scope, strings.Join(m.Parameters, ", ")})
	}
	fmt.Fprintln(w)
	renderTable(w, []string{"URL", "Scope", "Parameters"}, rows, noColor)
}

// WriteFindings renders vulnerability scan findings.
func WriteFindings(w io.Writer, findings []engine.VulnFinding, noColor bool) {
	if len(findings) == 0 {
		fmt.Fprintln(w, "\nNo results found by nuclei.")
		return
	}
	var rows [][]string
	for _, f := range findings {
		rows = append(rows, []string{f.Severity, f.TemplateID, f.Host, truncate(f.MatchedAt, 60)})
	}
	fmt.Fprintln(w)
	renderTable(w, []string{"Severity", "Template", "Host", "Matched At"}, rows, noColor)
}

// ProgramRow pairs a program with its inventory counts.
type ProgramRow struct {
	Program inventory.Program `json:"program"`
	Counts  inventory.Counts  `json:"counts"`
}

// WritePrograms renders tracked programs with per-table counts.
func WritePrograms(w io.Writer, programs []ProgramRow, noColor bool) {
	if len(programs) == 0 {
		fmt.Fprintln(w, "No programs tracked. Run `watchtower sync` first.")
		return
	}
	var rows [][]string
	for _, p := range programs {
		rows = append(rows, []string{
			p.Program.Name,
			truncate(strings.Join(p.Program.Scopes, ", "), 40),
			strconv.Itoa(p.Counts.Subdomains),
			strconv.Itoa(p.Counts.Live),
			strconv.Itoa(p.Counts.HTTP),
			strconv.Itoa(p.Counts.Ports),
			strconv.Itoa(p.Counts.URLs),
		})
	}
	renderTable(w, []string{"Program", "Scopes", "Subdomains", "Live", "HTTP", "Ports", "URLs"}, rows, noColor)
}

func renderTable(w io.Writer, headers []string, rows [][]string, noColor bool) {
	if noColor {
		writeSimpleTable(w, headers, rows)
		return
	}

	t := table.New().
		Headers(headers...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
			}
			return lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
		})
	for _, row := range rows {
		t.Row(row...)
	}
	fmt.Fprintln(w, t.Render())
}

func writeSimpleTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				fmt.Fprint(w, " | ")
			}
			fmt.Fprintf(w, "%-*s", widths[i], cell)
		}
		fmt.Fprintln(w)
	}

	writeRow(headers)
	for i, width := range widths {
		if i > 0 {
			fmt.Fprint(w, "-+-")
		}
		fmt.Fprint(w, strings.Repeat("-", width))
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		writeRow(row)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
