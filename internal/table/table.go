// Package table renders spreadsheet ranges as compact pipe tables for prompts.
package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Grid is a rectangular block of cell values read from the document.
// Row 0 is the header row. Cells hold string, number, bool or nil.
type Grid [][]any

const separatorCell = "---"

// Serialize renders the grid as a pipe table. Identical grids always produce
// byte-identical output. Delimiters inside cell values are not escaped.
func Serialize(g Grid) string {
	if len(g) == 0 {
		return ""
	}

	width := len(g[0])
	var b strings.Builder

	writeLine(&b, cellStrings(g[0], width))

	sep := make([]string, width)
	for i := range sep {
		sep[i] = separatorCell
	}
	writeLine(&b, sep)

	for _, row := range g[1:] {
		writeLine(&b, cellStrings(row, width))
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Prompt frames the serialized grid ahead of the user's question. An empty
// grid leaves the question untouched.
func Prompt(g Grid, question string) string {
	text := Serialize(g)
	if text == "" {
		return question
	}
	return fmt.Sprintf("Current table content:\n%s\n\nUser question: %s", text, question)
}

func writeLine(b *strings.Builder, cells []string) {
	b.WriteString("| ")
	b.WriteString(strings.Join(cells, " | "))
	b.WriteString(" |\n")
}

func cellStrings(row []any, width int) []string {
	out := make([]string, width)
	for i := 0; i < width && i < len(row); i++ {
		out[i] = FormatCell(row[i])
	}
	return out
}

// FormatCell returns the locale-independent string form of a cell value.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", x)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Parse splits a serialized table back into its header and data rows.
// Cell text is trimmed, so only values without delimiters or surrounding
// spaces survive exactly.
func Parse(text string) (header []string, rows [][]string) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	lines := strings.Split(text, "\n")
	header = splitLine(lines[0])
	// lines[1] is the separator
	for _, line := range lines[min(2, len(lines)):] {
		rows = append(rows, splitLine(line))
	}
	return header, rows
}

func splitLine(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
