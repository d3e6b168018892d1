package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/guidelint/pkg/compliance"
	"github.com/Sumatoshi-tech/guidelint/pkg/model"
)

const (
	ruleWidth   = 70
	titleReport = "GUIDELINT COMPLIANCE REPORT"
	titleStream = "GUIDELINT COMPLIANCE REPORT (STREAMING)"
	indent      = "   "
)

// palette holds the text styles; colors are disabled per instance rather
// than through color.NoColor.
type palette struct {
	ok, file, warn, dim *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		ok:   color.New(color.FgGreen),
		file: color.New(color.FgRed, color.Bold),
		warn: color.New(color.FgYellow),
		dim:  color.New(color.Faint),
	}

	for _, c := range []*color.Color{p.ok, p.file, p.warn, p.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return p
}

func writeText(w io.Writer, results []model.FileResult, metrics compliance.RunMetrics, opts Options) error {
	pal := newPalette(opts.Color)

	var b strings.Builder

	writeHeader(&b, titleReport)

	if len(results) == 0 {
		b.WriteString("No files to check.\n")
	}

	for _, r := range results {
		if opts.Quiet && r.Clean() {
			continue
		}

		writeFileBlock(&b, pal, r)
	}

	b.WriteString("\n")
	b.WriteString(summaryTable(results, metrics))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	if err != nil {
		return fmt.Errorf("write text report: %w", err)
	}

	return nil
}

func writeHeader(b *strings.Builder, title string) {
	rule := strings.Repeat("=", ruleWidth)

	fmt.Fprintf(b, "%s\n%s\n%s\n\n", rule, title, rule)
}

func writeFileBlock(b *strings.Builder, pal palette, r model.FileResult) {
	if r.Clean() {
		fmt.Fprintf(b, "%s %s\n", pal.ok.Sprint("[OK]"), r.File)
		fmt.Fprintf(b, "%sNo violations\n\n", indent)

		return
	}

	fmt.Fprintf(b, "%s %s\n", pal.file.Sprint("[FILE]"), r.File)
	fmt.Fprintf(b, "%s%d violation(s) found:\n", indent, len(r.Violations))

	for _, v := range r.Violations {
		fmt.Fprintf(b, "\n%s%s [%s]", indent, pal.warn.Sprint("[WARNING]"), v.Type)

		if v.Line != nil {
			fmt.Fprintf(b, " %s", pal.dim.Sprintf("(line %d)", *v.Line))
		}

		fmt.Fprintf(b, "\n%s%s%s\n", indent, indent, v.Message)
	}

	b.WriteString("\n")
}

func summaryTable(results []model.FileResult, m compliance.RunMetrics) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("Summary")

	withViolations := 0

	for _, r := range results {
		if !r.Clean() {
			withViolations++
		}
	}

	tbl.AppendRows([]table.Row{
		{"Files checked", humanize.Comma(int64(m.TotalFilesCollected))},
		{"From cache", humanize.Comma(int64(m.FilesFromCache))},
		{"Analyzed", humanize.Comma(int64(m.FilesAnalyzed))},
		{"Skipped", humanize.Comma(int64(m.FilesSkipped))},
		{"API calls", humanize.Comma(int64(m.APICallsMade))},
		{"Files with violations", humanize.Comma(int64(withViolations))},
		{"Violations", humanize.Comma(int64(model.CountViolations(results)))},
	})

	if m.InputTokens+m.OutputTokens > 0 {
		tbl.AppendSeparator()
		tbl.AppendRows([]table.Row{
			{"Input tokens", humanize.Comma(int64(m.InputTokens))},
			{"Output tokens", humanize.Comma(int64(m.OutputTokens))},
			{"Cache read tokens", humanize.Comma(int64(m.CacheReadTokens))},
		})
	}

	return tbl.Render()
}
