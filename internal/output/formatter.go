// Package output renders command results for terminals and scripts.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/klytics/licensekit/internal/formats/table"
)

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	labelColor   = color.New(color.Faint)
	okColor      = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errColor     = color.New(color.FgRed, color.Bold)
)

// Writer prints human-readable output.
type Writer struct {
	dest io.Writer
}

// NewWriter returns a Writer for stdout.
func NewWriter() *Writer { return &Writer{dest: os.Stdout} }

// NewWriterTo returns a Writer for dest.
func NewWriterTo(dest io.Writer) *Writer { return &Writer{dest: dest} }

// Heading prints a bold section title.
func (w *Writer) Heading(s string) {
	headingColor.Fprintln(w.dest, s)
}

// Field prints an aligned "label: value" line.
func (w *Writer) Field(label string, value any) {
	fmt.Fprintf(w.dest, "  %s %v\n", labelColor.Sprintf("%-18s", label+":"), value)
}

// OK prints a success line.
func (w *Writer) OK(format string, args ...any) {
	fmt.Fprintf(w.dest, "%s %s\n", okColor.Sprint("✓"), fmt.Sprintf(format, args...))
}

// Warn prints a warning line.
func (w *Writer) Warn(format string, args ...any) {
	fmt.Fprintf(w.dest, "%s %s\n", warnColor.Sprint("!"), fmt.Sprintf(format, args...))
}

// Line writes a line of text.
func (w *Writer) Line(s string) {
	fmt.Fprintln(w.dest, s)
}

// Table prints t as aligned columns. limit caps the rows shown; 0 shows all.
func (w *Writer) Table(t *table.Table, limit int) {
	fmt.Fprint(w.dest, FormatTable(t, limit))
}

// FormatTable renders t as aligned columns.
func FormatTable(t *table.Table, limit int) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns, "\t"))
	rows := t.Rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	tw.Flush()
	if len(rows) < t.Len() {
		fmt.Fprintf(&b, "... %d more rows\n", t.Len()-len(rows))
	}
	return b.String()
}

// WriteError writes an error message to stderr.
func WriteError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s "+format+"\n", append([]any{errColor.Sprint("Error:")}, args...)...)
}
