package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Output formats accepted by the render functions.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ParseFormat normalizes a format name. Empty selects text.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", eris.Errorf("report: unknown format %q (text, json, yaml)", s)
	}
}

var printer = message.NewPrinter(language.English)

// Render writes the summary to w in the given format.
func Render(w io.Writer, s *Summary, format string) error {
	f, err := ParseFormat(format)
	if err != nil {
		return err
	}
	switch f {
	case FormatJSON:
		return encodeJSON(w, s)
	case FormatYAML:
		return encodeYAML(w, s)
	}

	title := "Store info report"
	if s.Scope != "" {
		title += " (store " + s.Scope + ")"
	}
	fmt.Fprintf(w, "%s\n\n", title)

	if err := writeTable(w, []any{"Metric", "Records"}, [][]any{
		{"Total customers", printer.Sprintf("%d", s.Total)},
		{"With external store id", printer.Sprintf("%d", s.WithStoreID)},
		{"With store name", printer.Sprintf("%d", s.WithStoreName)},
		{"With both", printer.Sprintf("%d", s.WithBoth)},
		{"Coverage", printer.Sprintf("%.2f%%", s.Coverage)},
	}); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nSample with store info (%d)\n", len(s.Sample))
	if err := writeTable(w, []any{"Email", "External store id", "Store name"}, viewRows(s.Sample)); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nSample missing store info (%d)\n", len(s.Missing))
	if err := writeTable(w, []any{"Email", "External store id", "Store name"}, viewRows(s.Missing)); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nTop stores (%d)\n", len(s.TopStores))
	rows := make([][]any, 0, len(s.TopStores))
	for i, sc := range s.TopStores {
		rows = append(rows, []any{i + 1, sc.StoreName, orDash(sc.ExternalStoreID), printer.Sprintf("%d", sc.Customers)})
	}
	return writeTable(w, []any{"#", "Store name", "External store id", "Customers"}, rows)
}

// RenderBatch writes the outcome of an update-stores run.
func RenderBatch(w io.Writer, st model.BatchStats, format string) error {
	f, err := ParseFormat(format)
	if err != nil {
		return err
	}
	switch f {
	case FormatJSON:
		return encodeJSON(w, st)
	case FormatYAML:
		return encodeYAML(w, st)
	}
	rows := [][]any{
		{"Processed", printer.Sprintf("%d", st.TotalProcessed)},
		{"Updated", printer.Sprintf("%d", st.Updated)},
		{"Unchanged", printer.Sprintf("%d", st.Unchanged)},
		{"Not found", printer.Sprintf("%d", st.NotFound)},
		{"Errors", printer.Sprintf("%d", st.Errors)},
	}
	return writeTable(w, []any{"Outcome", "Records"}, append(rows, kindRows(st.ErrorsByKind)...))
}

// RenderEnrich writes the outcome of an enrich run.
func RenderEnrich(w io.Writer, st model.EnrichStats, format string) error {
	f, err := ParseFormat(format)
	if err != nil {
		return err
	}
	switch f {
	case FormatJSON:
		return encodeJSON(w, st)
	case FormatYAML:
		return encodeYAML(w, st)
	}
	rows := [][]any{
		{"In range", printer.Sprintf("%d", st.InRange)},
		{"Inserted", printer.Sprintf("%d", st.Inserted)},
		{"Skipped (already stored)", printer.Sprintf("%d", st.Skipped)},
		{"Errors", printer.Sprintf("%d", st.Errors)},
	}
	return writeTable(w, []any{"Outcome", "Records"}, append(rows, kindRows(st.ErrorsByKind)...))
}

// RenderProfile writes the payload profile to w in the given format.
func RenderProfile(w io.Writer, p *Profile, format string) error {
	f, err := ParseFormat(format)
	if err != nil {
		return err
	}
	switch f {
	case FormatJSON:
		return encodeJSON(w, p)
	case FormatYAML:
		return encodeYAML(w, p)
	}

	title := "Customer profile"
	if p.Scope != "" {
		title += " (store " + p.Scope + ")"
	}
	fmt.Fprintf(w, "%s\n\n", title)

	overview := [][]any{
		{"Total customers", printer.Sprintf("%d", p.Total)},
		{"With name", printer.Sprintf("%d (%.1f%%)", p.WithName, p.NameCoverage)},
	}
	for _, s := range p.Sections {
		overview = append(overview, []any{"Distinct " + s.Name, printer.Sprintf("%d", s.Distinct)})
	}
	if err := writeTable(w, []any{"Metric", "Value"}, overview); err != nil {
		return err
	}

	for _, s := range p.Sections {
		fmt.Fprintf(w, "\n%s (%s of %s records)\n", s.Name,
			printer.Sprintf("%d", s.Present), printer.Sprintf("%d", p.Total))
		rows := make([][]any, 0, len(s.Buckets))
		for _, b := range s.Buckets {
			rows = append(rows, []any{b.Value, printer.Sprintf("%d", b.Count), printer.Sprintf("%.1f%%", b.Pct)})
		}
		if err := writeTable(w, []any{"Value", "Customers", "Share"}, rows); err != nil {
			return err
		}
	}
	return nil
}

// RenderComparison writes a two-source comparison to w in the given format.
func RenderComparison(w io.Writer, c *Comparison, format string) error {
	f, err := ParseFormat(format)
	if err != nil {
		return err
	}
	switch f {
	case FormatJSON:
		return encodeJSON(w, c)
	case FormatYAML:
		return encodeYAML(w, c)
	}

	title := "Comparison: " + c.Left + " vs " + c.Right
	if c.Scope != "" {
		title += " (store " + c.Scope + ")"
	}
	fmt.Fprintf(w, "%s\n\n", title)

	if err := writeTable(w, []any{"Metric", "Records"}, [][]any{
		{c.Left, printer.Sprintf("%d", c.LeftTotal)},
		{c.Right, printer.Sprintf("%d", c.RightTotal)},
		{"Emails in both", printer.Sprintf("%d", c.Both)},
		{"Only in " + c.Left, printer.Sprintf("%d", c.OnlyLeft)},
		{"Only in " + c.Right, printer.Sprintf("%d", c.OnlyRight)},
		{"Union", printer.Sprintf("%d", c.Union)},
	}); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAnomalies (%d)\n", len(c.Anomalies))
	if len(c.Anomalies) == 0 {
		fmt.Fprintln(w, "No major anomalies detected.")
	} else {
		rows := make([][]any, 0, len(c.Anomalies))
		for _, a := range c.Anomalies {
			rows = append(rows, []any{a.Severity, a.Metric, a.Detail})
		}
		if err := writeTable(w, []any{"Severity", "Metric", "Detail"}, rows); err != nil {
			return err
		}
	}

	for _, s := range c.Sections {
		fmt.Fprintf(w, "\n%s\n", s.Name)
		rows := make([][]any, 0, len(s.Rows))
		for _, r := range s.Rows {
			rows = append(rows, []any{r.Value, shareCell(r.Left, r.LeftPct), shareCell(r.Right, r.RightPct)})
		}
		if err := writeTable(w, []any{"Value", c.Left, c.Right}, rows); err != nil {
			return err
		}
	}
	return nil
}

func shareCell(n int64, pct float64) string {
	if n == 0 {
		return "-"
	}
	return printer.Sprintf("%d (%.1f%%)", n, pct)
}

func kindRows(byKind map[model.ErrorKind]int) [][]any {
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	rows := make([][]any, 0, len(kinds))
	for _, k := range kinds {
		rows = append(rows, []any{"  " + k, printer.Sprintf("%d", byKind[model.ErrorKind(k)])})
	}
	return rows
}

func viewRows(vs []RecordView) [][]any {
	rows := make([][]any, 0, len(vs))
	for _, v := range vs {
		rows = append(rows, []any{v.Email, orDash(v.ExternalStoreID), orDash(v.StoreName)})
	}
	return rows
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func writeTable(w io.Writer, header []any, rows [][]any) error {
	table := tablewriter.NewTable(w)
	table.Header(header...)
	for _, row := range rows {
		if err := table.Append(row...); err != nil {
			return eris.Wrap(err, "report: table row")
		}
	}
	return eris.Wrap(table.Render(), "report: render table")
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "report: encode json")
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "report: encode yaml")
	}
	return eris.Wrap(enc.Close(), "report: encode yaml")
}
