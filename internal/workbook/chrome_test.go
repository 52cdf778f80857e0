package workbook

import (
	"testing"

	"github.com/chromedp/cdproto/target"
)

func TestPickTarget(t *testing.T) {
	targets := []*target.Info{
		{TargetID: "bg", Type: "service_worker", URL: "https://excel.example/sw.js"},
		{TargetID: "tab", Type: "page", URL: "https://excel.example/book.xlsx"},
		{TargetID: "addin", Type: "iframe", URL: "https://addin.example/taskpane.html?host=excel"},
		{TargetID: "other", Type: "page", URL: "https://news.example"},
	}

	tests := []struct {
		name  string
		match string
		want  target.ID
		found bool
	}{
		{"iframe preferred", "taskpane", "addin", true},
		{"iframe before page on shared match", "excel", "addin", true},
		{"page match", "news", "other", true},
		{"no match uses first page", "", "tab", true},
		{"nothing matches", "missing", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickTarget(targets, tt.match)
			if ok != tt.found {
				t.Fatalf("pickTarget(%q) found = %v, want %v", tt.match, ok, tt.found)
			}
			if ok && got.TargetID != tt.want {
				t.Errorf("pickTarget(%q) = %s, want %s", tt.match, got.TargetID, tt.want)
			}
		})
	}
}
