package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vulnverified/watchtower/internal/engine"
)

// Version is set via ldflags at build time.
var Version = "dev"

var boldStyle = lipgloss.NewStyle().Bold(true)

func paint(s lipgloss.Style, text string, noColor bool) string {
	if noColor {
		return text
	}
	return s.Render(text)
}

// WriteHeader prints the watchtower banner.
func WriteHeader(w io.Writer, noColor bool) {
	fmt.Fprintf(w, "%s\n\n", paint(boldStyle, "watchtower "+Version, noColor))
}

// WriteRunSummary prints the stage table followed by takeover candidates,
// warnings and errors of every stage.
func WriteRunSummary(w io.Writer, result *engine.RunResult, noColor bool) {
	reports := result.Stages
	if result.Sync != nil {
		reports = append([]*engine.StageReport{result.Sync}, reports...)
	}
	fmt.Fprintf(w, "%s %s\n", paint(boldStyle, "Run:", noColor), result.RunID)
	WriteStageTable(w, reports, noColor)
	for _, r := range reports {
		writeReportNotes(w, r, noColor)
	}
}

// WriteStageSummary prints a single stage report.
func WriteStageSummary(w io.Writer, report *engine.StageReport, noColor bool) {
	WriteStageTable(w, []*engine.StageReport{report}, noColor)
	writeReportNotes(w, report, noColor)
}

func writeReportNotes(w io.Writer, r *engine.StageReport, noColor bool) {
	bang := paint(warnStyle, "!", noColor)
	if len(r.Dangling) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s %d potential dangling CNAMEs (possible subdomain takeover)\n", bang, len(r.Dangling))
		for _, dc := range r.Dangling {
			fmt.Fprintf(w, "  %s -> %s (%s, %s)\n", dc.Host, dc.CNAME, dc.Status, dc.Program)
		}
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s %s: %d warnings\n", bang, r.Stage, len(r.Warnings))
		for _, msg := range r.Warnings {
			fmt.Fprintf(w, "  %s\n", msg)
		}
	}
	if len(r.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s %s: %d errors\n", bang, r.Stage, len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s: %s\n", e.Scope, e.Message)
		}
	}
}

// WriteURLSummary prints a URL scan report.
func WriteURLSummary(w io.Writer, res *engine.URLScanResult, noColor bool) {
	label := func(s string) string { return paint(boldStyle, s, noColor) }

	fmt.Fprintf(w, "%s %s\n", label("Program:"), res.Program)
	if len(res.Scopes) == 0 {
		fmt.Fprintln(w, "No scopes defined for this program.")
		return
	}
	fmt.Fprintf(w, "%s %s\n", label("Scopes:"), strings.Join(res.Scopes, ", "))
	fmt.Fprintf(w, "%s %s (%d entries)\n", label("Parameter wordlist:"), res.ParametersSource, res.ParametersLoaded)
	fmt.Fprintf(w, "%s %d total, %d unique\n", label("URLs:"), res.TotalURLs, res.UniqueURLs)
	fmt.Fprintf(w, "%s %d\n", label("Matches:"), res.MatchCount)

	WriteURLMatches(w, res.Matches, noColor)

	if res.Persisted != nil {
		fmt.Fprintf(w, "\n%s %d inserted, %d updated\n", label("Saved:"), res.Persisted.Inserted, res.Persisted.Updated)
	}
	if len(res.Errors) > 0 {
		fmt.Fprintln(w)
		for _, e := range res.Errors {
			fmt.Fprintf(w, "%s %s: %s\n", paint(warnStyle, "!", noColor), e.Scope, e.Message)
		}
	}
}
