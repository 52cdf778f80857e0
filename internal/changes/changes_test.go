package changes

import (
	"testing"

	"github.com/rahul/gridpilot/internal/table"
)

func TestDiff_NoChange(t *testing.T) {
	s := table.Serialize(table.Grid{{"a"}, {1}})
	if got := Diff(s, s); !got.Empty() {
		t.Errorf("expected empty summary, got %+v", got.Lines)
	}
}

func TestDiff_ChangedRow(t *testing.T) {
	before := table.Serialize(table.Grid{{"item", "qty"}, {"pen", 1}, {"ink", 2}})
	after := table.Serialize(table.Grid{{"item", "qty"}, {"pen", 5}, {"ink", 2}})

	got := Diff(before, after)
	if len(got.Lines) != 2 {
		t.Fatalf("expected 2 changed lines, got %+v", got.Lines)
	}
	if got.Lines[0].Type != LineRemoved || got.Lines[0].Text != "| pen | 1 |" || got.Lines[0].OldLine != 3 {
		t.Errorf("removed line = %+v", got.Lines[0])
	}
	if got.Lines[1].Type != LineAdded || got.Lines[1].Text != "| pen | 5 |" || got.Lines[1].NewLine != 3 {
		t.Errorf("added line = %+v", got.Lines[1])
	}
	if want := "- | pen | 1 |\n+ | pen | 5 |"; got.String() != want {
		t.Errorf("String() = %q, want %q", got.String(), want)
	}
}

func TestDiff_FromEmpty(t *testing.T) {
	after := table.Serialize(table.Grid{{"a"}, {"x"}})
	got := Diff("", after)
	if len(got.Lines) != 3 {
		t.Fatalf("expected 3 added lines, got %+v", got.Lines)
	}
	for _, l := range got.Lines {
		if l.Type != LineAdded {
			t.Errorf("line = %+v", l)
		}
	}
}
