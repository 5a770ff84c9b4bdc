package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	keyStyle     = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printList writes one item per line, or a hint when there are none.
func printList(w io.Writer, items []string, empty string) {
	if len(items) == 0 {
		_, _ = fmt.Fprintln(w, subtleStyle.Render(empty))
		return
	}
	for _, item := range items {
		_, _ = fmt.Fprintln(w, item)
	}
}

// kv is one row of a two-column listing.
type kv struct {
	key   string
	value string
}

// printKV writes aligned "key: value" rows.
func printKV(w io.Writer, rows []kv) {
	width := 0
	for _, r := range rows {
		if len(r.key) > width {
			width = len(r.key)
		}
	}
	for _, r := range rows {
		pad := strings.Repeat(" ", width-len(r.key))
		_, _ = fmt.Fprintf(w, "%s:%s %s\n", keyStyle.Render(r.key), pad, r.value)
	}
}
