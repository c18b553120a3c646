// Package output formats CLI output: status lines, search hits and
// document listings, styled with lipgloss when writing to a terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/zeno-search/zeno/internal/store"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out    io.Writer
	styles Styles
}

// New creates a Writer that styles output only when out is a terminal and
// NO_COLOR is unset.
func New(out io.Writer) *Writer {
	return &Writer{out: out, styles: GetStyles(!UseColor(out))}
}

// NewPlain creates a Writer that never styles output.
func NewPlain(out io.Writer) *Writer {
	return &Writer{out: out, styles: NoColorStyles()}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", w.styles.Success.Render(msg))
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", w.styles.Warning.Render(msg))
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", w.styles.Error.Render(msg))
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Header prints a bold heading.
func (w *Writer) Header(msg string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(msg))
}

// KeyValue prints an aligned label and value.
func (w *Writer) KeyValue(label string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %s %v\n", w.styles.Label.Render(fmt.Sprintf("%-12s", label+":")), value)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Hits prints ranked search results.
func (w *Writer) Hits(query string, hits []store.Hit) {
	if len(hits) == 0 {
		w.Status("", w.styles.Dim.Render(fmt.Sprintf("No results for %q", query)))
		return
	}
	for i, h := range hits {
		_, _ = fmt.Fprintf(w.out, "%2d. %s %s\n", i+1,
			w.styles.Header.Render(h.Title),
			w.styles.Score.Render(fmt.Sprintf("(%.3f)", h.Score)))
		_, _ = fmt.Fprintf(w.out, "    %s\n", w.styles.Link.Render(h.URL))
		_, _ = fmt.Fprintf(w.out, "    %s\n", w.styles.Dim.Render(string(h.ID)))
	}
}

// Records prints registry records, one per line.
func (w *Writer) Records(recs []store.Record) {
	if len(recs) == 0 {
		w.Status("", w.styles.Dim.Render("No documents indexed"))
		return
	}
	for _, r := range recs {
		_, _ = fmt.Fprintf(w.out, "%s  %-4s  %s  %s\n",
			w.styles.Dim.Render(string(r.ID)),
			r.Type,
			truncate(r.Title, 50),
			w.styles.Link.Render(r.URL))
	}
}

// JSON prints v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
