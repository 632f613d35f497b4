package output

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders views as a markdown table.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) Format(view *View) (string, error) {
	if view == nil {
		return "", nil
	}

	var sb strings.Builder
	if view.Title != "" {
		sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(view.Title)))
	}

	writeMarkdownRow(&sb, view.Header)
	sb.WriteString("|")
	for _, cell := range view.Header {
		sb.WriteString(strings.Repeat("-", len(cell)+2))
		sb.WriteString("|")
	}
	sb.WriteString("\n")
	for _, row := range view.Rows {
		writeMarkdownRow(&sb, row)
	}

	if view.Footer != "" {
		sb.WriteString(fmt.Sprintf("\n**Total**: %s\n", escapeMarkdownCell(view.Footer)))
	}
	return sb.String(), nil
}

func writeMarkdownRow(sb *strings.Builder, cells []string) {
	sb.WriteString("|")
	for _, cell := range cells {
		sb.WriteString(" ")
		sb.WriteString(escapeMarkdownCell(cell))
		sb.WriteString(" |")
	}
	sb.WriteString("\n")
}

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "|", "\\|")
}
