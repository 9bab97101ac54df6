// package formatter renders library rows for display and exports them to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/nfcbox/internal/models"
	"github.com/desertthunder/nfcbox/internal/shared"
)

const (
	kib = 1024
	mib = 1024 * 1024

	// Placeholder shown for songs without a timestamp.
	NoDate = "—"

	// DefaultDateLayout is day.month.year, 24-hour clock.
	DefaultDateLayout = "02.01.2006, 15:04"
)

// Format is an export format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatCSV, FormatMarkdown, FormatText:
		return f, nil
	case "markdown":
		return FormatMarkdown, nil
	case "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, s)
	}
}

// FormatSize renders a byte count: below 1 MiB in KB with one decimal, otherwise MB with two.
func FormatSize(size int64) string {
	if size < mib {
		return fmt.Sprintf("%.1f KB", float64(size)/kib)
	}
	return fmt.Sprintf("%.2f MB", float64(size)/mib)
}

// FormatTimestamp renders unix seconds with layout in loc. Zero or negative renders [NoDate].
func FormatTimestamp(ts int64, layout string, loc *time.Location) string {
	if ts <= 0 {
		return NoDate
	}
	if layout == "" {
		layout = DefaultDateLayout
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(ts, 0).In(loc).Format(layout)
}

// TagDisplay renders the tag column, "-" for unmapped songs.
func TagDisplay(row models.DisplayRow) string {
	if !row.Mapped {
		return "-"
	}
	return row.TagID
}

// ExportToCSV converts rows to CSV with columns: Name, Size, Bytes, Date, Timestamp, Tag
func ExportToCSV(rows []models.DisplayRow) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Name", "Size", "Bytes", "Date", "Timestamp", "Tag"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.Name,
			row.SizeDisplay,
			strconv.FormatInt(row.Size, 10),
			row.DateDisplay,
			strconv.FormatInt(row.Timestamp, 10),
			row.TagID,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts rows to a Markdown table under title
func ExportToMarkdown(rows []models.DisplayRow, title string) ([]byte, error) {
	var buf bytes.Buffer

	if title != "" {
		buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	}

	mapped := 0
	for _, row := range rows {
		if row.Mapped {
			mapped++
		}
	}
	buf.WriteString(fmt.Sprintf("**Files**: %d\n", len(rows)))
	buf.WriteString(fmt.Sprintf("**Mapped**: %d\n\n", mapped))

	buf.WriteString("| Name | Size | Date | Tag |\n")
	buf.WriteString("|---|---|---|---|\n")
	for _, row := range rows {
		name := strings.ReplaceAll(row.Name, "|", `\|`)
		buf.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", name, row.SizeDisplay, row.DateDisplay, TagDisplay(row)))
	}

	return buf.Bytes(), nil
}

// ExportToText converts rows to plain text, one numbered line per file
func ExportToText(rows []models.DisplayRow) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Files: %d\n\n", len(rows)))
	for i, row := range rows {
		line := fmt.Sprintf("%d. %s (%s, %s)", i+1, row.Name, row.SizeDisplay, row.DateDisplay)
		if row.Mapped {
			line += " [" + row.TagID + "]"
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// ExportToTable renders rows as aligned columns for a terminal.
func ExportToTable(rows []models.DisplayRow) ([]byte, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "NAME\tSIZE\tDATE\tTAG")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.Name, row.SizeDisplay, row.DateDisplay, TagDisplay(row))
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to render table: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts rows to indented JSON. A nil slice renders as [].
func ExportToJSON(rows []models.DisplayRow) ([]byte, error) {
	if rows == nil {
		rows = []models.DisplayRow{}
	}
	return shared.MarshalJSON(rows, true)
}

// Export renders rows in format.
func Export(rows []models.DisplayRow, format Format) ([]byte, error) {
	switch format {
	case FormatTable, "":
		return ExportToTable(rows)
	case FormatJSON:
		return ExportToJSON(rows)
	case FormatCSV:
		return ExportToCSV(rows)
	case FormatMarkdown:
		return ExportToMarkdown(rows, "Jukebox Library")
	case FormatText:
		return ExportToText(rows)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, format)
	}
}

// WriteExport renders rows in format and writes them to path.
//
// Defaults to library.{format} as the filename.
func WriteExport(rows []models.DisplayRow, format Format, path string) (string, error) {
	if path == "" {
		ext := string(format)
		if format == FormatTable {
			ext = "txt"
		}
		path = "library." + ext
	}

	data, err := Export(rows, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}
