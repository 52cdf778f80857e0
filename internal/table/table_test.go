package table

import (
	"strings"
	"testing"
)

func TestSerialize_Empty(t *testing.T) {
	if got := Serialize(nil); got != "" {
		t.Errorf("Serialize(nil) = %q, want empty", got)
	}
	if got := Serialize(Grid{}); got != "" {
		t.Errorf("Serialize(Grid{}) = %q, want empty", got)
	}
}

func TestSerialize_Layout(t *testing.T) {
	g := Grid{
		{"Name", "Amount", "Paid"},
		{"rent", 1200.5, true},
		{"food", 300, nil},
	}

	want := "| Name | Amount | Paid |\n" +
		"| --- | --- | --- |\n" +
		"| rent | 1200.5 | true |\n" +
		"| food | 300 |  |"

	if got := Serialize(g); got != want {
		t.Errorf("Serialize() =\n%s\nwant\n%s", got, want)
	}
}

func TestSerialize_Deterministic(t *testing.T) {
	g := Grid{
		{"a", "b"},
		{0.1 + 0.2, 1e21},
		{-3.25, int64(7)},
	}
	first := Serialize(g)
	for i := 0; i < 10; i++ {
		if got := Serialize(g); got != first {
			t.Fatalf("run %d differs:\n%s\nvs\n%s", i, got, first)
		}
	}
	if strings.Contains(first, "e+") {
		t.Errorf("expected plain decimal notation, got %q", first)
	}
}

func TestSerialize_ShortRowsArePadded(t *testing.T) {
	g := Grid{
		{"a", "b", "c"},
		{"x"},
	}
	lines := strings.Split(Serialize(g), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for _, l := range lines {
		if n := strings.Count(l, "|"); n != 4 {
			t.Errorf("line %q has %d delimiters, want 4", l, n)
		}
	}
}

func TestParse_StructuralRoundTrip(t *testing.T) {
	grids := []Grid{
		{{"only"}},
		{{"h1", "h2"}, {"a", 1}, {"b", 2}, {"c", false}},
		{{"x", "y", "z"}, {nil, nil, nil}},
	}

	for _, g := range grids {
		header, rows := Parse(Serialize(g))
		if len(header) != len(g[0]) {
			t.Errorf("header width = %d, want %d", len(header), len(g[0]))
		}
		if len(rows) != len(g)-1 {
			t.Errorf("row count = %d, want %d", len(rows), len(g)-1)
		}
		for i, h := range header {
			if h != FormatCell(g[0][i]) {
				t.Errorf("header[%d] = %q, want %q", i, h, FormatCell(g[0][i]))
			}
		}
	}
}

func TestParse_DelimiterInCellIsLossy(t *testing.T) {
	g := Grid{{"a"}, {"x|y"}}
	_, rows := Parse(Serialize(g))
	if len(rows) != 1 {
		t.Fatalf("row count = %d, want 1", len(rows))
	}
	// A pipe inside a value is read back as an extra column.
	if len(rows[0]) != 2 {
		t.Errorf("expected the embedded delimiter to split the cell, got %v", rows[0])
	}
}

func TestPrompt(t *testing.T) {
	if got := Prompt(nil, "sum column B"); got != "sum column B" {
		t.Errorf("Prompt with empty grid = %q", got)
	}

	got := Prompt(Grid{{"B"}, {1}}, "sum column B")
	if !strings.HasPrefix(got, "Current table content:\n| B |") {
		t.Errorf("unexpected prefix: %q", got)
	}
	if !strings.HasSuffix(got, "User question: sum column B") {
		t.Errorf("unexpected suffix: %q", got)
	}
}
