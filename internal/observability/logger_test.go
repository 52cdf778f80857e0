package observability

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogger_WritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)

	l.LogPolicyCheck("chat", "m1_0", "deny", "Snippet matches restricted pattern: fetch\\(")
	l.LogExecution("chat", "m1_0", "error", "boom")

	sc := bufio.NewScanner(&buf)
	var events []Event
	for sc.Scan() {
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line is not JSON: %q: %v", sc.Text(), err)
		}
		events = append(events, e)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventTypePolicyCheck || events[0].TaskID != "m1_0" {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestLogger_LLMEventsGoToFile(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(dir)
	l.out = &bytes.Buffer{}

	l.LogLLM("chat", "", "prompt", "response", nil)
	l.LogExecution("chat", "k", "success", "")

	data, err := os.ReadFile(filepath.Join(dir, "llm.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Errorf("expected only the llm event on disk, got %d lines", len(lines))
	}
}

func TestLogger_Rotate(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(dir)
	l.out = &bytes.Buffer{}
	l.maxSize = 10

	l.LogLLM("chat", "", "p", "first", nil)
	l.LogLLM("chat", "", "p", "second", nil)

	if _, err := os.Stat(filepath.Join(dir, "llm.jsonl.old")); err != nil {
		t.Errorf("expected rotated file: %v", err)
	}
}
