package tools

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/rahul/gridpilot/internal/extract"
)

// Tool defines the interface for all agent capabilities.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema for the tool's inputs
	Execute(ctx context.Context, input string) (string, error)
}

// Registry manages the set of available tools.
type Registry struct {
	Tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{
		Tools: make(map[string]Tool),
	}
}

// NewExcelRegistry returns a registry holding every spreadsheet hint tool.
func NewExcelRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewReadRangeTool())
	r.Register(NewWriteRangeTool())
	r.Register(NewFormulaTool())
	r.Register(NewChartTool())
	return r
}

func (r *Registry) Register(t Tool) {
	r.Tools[t.Name()] = t
}

func (r *Registry) Get(name string) Tool {
	return r.Tools[name]
}

// List returns the tools ordered by name.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.Tools))
	for _, t := range r.Tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Hint is what a spreadsheet tool returns: an operation for the client to run,
// never a side effect on the server.
type Hint struct {
	extract.Operation
	Target string `json:"target,omitempty"`
}

func (h Hint) String() string {
	b, _ := json.Marshal(h)
	return string(b)
}

// ParseHint reads a tool result back into an operation. Results that are not
// hints, or carry no code, report ok=false.
func ParseHint(result string) (extract.Operation, bool) {
	var h Hint
	if err := json.Unmarshal([]byte(result), &h); err != nil {
		return extract.Operation{}, false
	}
	if h.Kind == "" || !h.HasSnippet() {
		return extract.Operation{}, false
	}
	return h.Operation, true
}
