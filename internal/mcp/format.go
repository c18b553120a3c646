package mcp

import (
	"fmt"
	"strings"

	"github.com/zeno-search/zeno/internal/store"
)

// FormatSearchResults renders hits as markdown for clients that only read
// text content.
func FormatSearchResults(query string, hits []store.Hit) string {
	if len(hits) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d result", len(hits))
	if len(hits) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, h := range hits {
		fmt.Fprintf(&sb, "%d. [%s](%s) (score %.3f)\n", i+1, h.Title, h.URL, h.Score)
	}
	return sb.String()
}

// clampLimit maps a requested limit onto [0, max]; a negative request uses
// the default.
func clampLimit(limit, defaultVal, max int) int {
	if limit < 0 {
		return defaultVal
	}
	return min(limit, max)
}
