// Package extract pulls runnable spreadsheet automation snippets out of an
// agent's free-text reply.
//
// Fenced code blocks are searched first. Only when no fenced block yields an
// invocation is the whole reply scanned for bare invocations, so a snippet that
// is both fenced and quoted in prose is extracted once.
//
// The brace scanner understands strings and comments but not regular
// expression literals. A quote inside a regex literal such as /'/ opens a
// string, so a block containing one may yield no operation.
package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// EntryPoint is the host automation API's transaction entry point.
	EntryPoint = "Excel.run"

	// KindGeneric is the operation kind assigned to extracted snippets.
	KindGeneric = "excel_operation"

	// BareDescription is used for invocations found outside a fenced block.
	BareDescription = "Run spreadsheet automation"

	maxDescription = 100
	ellipsis       = "..."
)

// Operation is one runnable unit attached to an agent message.
type Operation struct {
	Kind        string `json:"operation_type"`
	Description string `json:"description"`
	Snippet     string `json:"js_code,omitempty"`
}

// HasSnippet reports whether the operation carries executable code.
func (o Operation) HasSnippet() bool {
	return strings.TrimSpace(o.Snippet) != ""
}

// Result is the narrative left for display plus the operations found.
type Result struct {
	CleanText  string
	Operations []Operation
}

// Extractor turns a raw reply into display text and operations.
type Extractor interface {
	Extract(reply string) Result
}

var (
	fencePattern = regexp.MustCompile("(?s)```(?:javascript|js|typescript|ts)?[ \t]*\\r?\\n?(.*?)```")
	// Head of the invocation; the body is matched by scanBody.
	headPattern = regexp.MustCompile(`Excel\.run\s*\(\s*async\s*\(\s*context\s*\)\s*=>\s*\{`)
	tailPattern = regexp.MustCompile(`^\s*\)(?:\s*;)?`)
	spaceRun    = regexp.MustCompile(`\s+`)
)

// PatternExtractor is the pattern-matching Extractor.
type PatternExtractor struct{}

// New returns the default Extractor.
func New() *PatternExtractor {
	return &PatternExtractor{}
}

// Extract implements Extractor.
func (PatternExtractor) Extract(reply string) Result {
	if res, ok := extractFenced(reply); ok {
		return res
	}
	if res, ok := extractBare(reply); ok {
		return res
	}
	return Result{CleanText: strings.TrimSpace(reply)}
}

func extractFenced(reply string) (Result, bool) {
	var (
		ops  []Operation
		b    strings.Builder
		last int
	)

	for _, loc := range fencePattern.FindAllStringSubmatchIndex(reply, -1) {
		content := reply[loc[2]:loc[3]]
		inv, ok := findInvocation(content, 0)
		if !ok {
			continue
		}
		ops = append(ops, Operation{
			Kind:        KindGeneric,
			Description: describe(content),
			Snippet:     normalize(inv.body),
		})
		b.WriteString(reply[last:loc[0]])
		last = loc[1]
	}

	if len(ops) == 0 {
		return Result{}, false
	}
	b.WriteString(reply[last:])
	return Result{CleanText: strings.TrimSpace(b.String()), Operations: ops}, true
}

func extractBare(reply string) (Result, bool) {
	var (
		ops  []Operation
		b    strings.Builder
		last int
	)

	for from := 0; from < len(reply); {
		inv, ok := findInvocation(reply, from)
		if !ok {
			break
		}
		ops = append(ops, Operation{
			Kind:        KindGeneric,
			Description: BareDescription,
			Snippet:     normalize(inv.body),
		})
		b.WriteString(reply[last:inv.start])
		last = inv.end
		from = inv.end
	}

	if len(ops) == 0 {
		return Result{}, false
	}
	b.WriteString(reply[last:])
	return Result{CleanText: strings.TrimSpace(b.String()), Operations: ops}, true
}

type invocation struct {
	start, end int
	body       string
}

// findInvocation returns the first well-formed invocation at or after from.
// Heads whose body never closes are skipped.
func findInvocation(s string, from int) (invocation, bool) {
	for from < len(s) {
		loc := headPattern.FindStringIndex(s[from:])
		if loc == nil {
			return invocation{}, false
		}
		start := from + loc[0]
		open := from + loc[1] // just past '{'

		closeAt, ok := scanBody(s, open)
		if !ok {
			from = open
			continue
		}
		tail := tailPattern.FindStringIndex(s[closeAt+1:])
		if tail == nil {
			from = open
			continue
		}
		return invocation{
			start: start,
			end:   closeAt + 1 + tail[1],
			body:  s[open:closeAt],
		}, true
	}
	return invocation{}, false
}

// scanBody finds the '}' matching an already-consumed '{' at s[open-1],
// ignoring braces inside string literals and comments.
func scanBody(s string, open int) (int, bool) {
	depth := 1
	for i := open; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\'', '`':
			j := skipString(s, i+1, c)
			if j < 0 {
				return 0, false
			}
			i = j
		case '/':
			if i+1 < len(s) && s[i+1] == '/' {
				nl := strings.IndexByte(s[i:], '\n')
				if nl < 0 {
					return 0, false
				}
				i += nl
			} else if i+1 < len(s) && s[i+1] == '*' {
				end := strings.Index(s[i+2:], "*/")
				if end < 0 {
					return 0, false
				}
				i += end + 3
			}
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func skipString(s string, i int, quote byte) int {
	for ; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i
		}
	}
	return -1
}

func normalize(body string) string {
	return EntryPoint + "(async (context) => {" + body + "});"
}

func describe(block string) string {
	d := strings.TrimSpace(spaceRun.ReplaceAllString(block, " "))
	if utf8.RuneCountInString(d) <= maxDescription {
		return d
	}
	r := []rune(d)
	return string(r[:maxDescription]) + ellipsis
}

// Unwrap returns the body of a snippet that is a single entry-point
// invocation. Surrounding whitespace and comments, a leading await and a
// trailing semicolon are allowed. Anything else is reported with ok=false.
func Unwrap(snippet string) (body string, ok bool) {
	i := skipTrivia(snippet, 0)
	if rest := snippet[i:]; strings.HasPrefix(rest, "await") && len(rest) > 5 && isSpace(rest[5]) {
		i = skipTrivia(snippet, i+5)
	}
	inv, found := findInvocation(snippet, i)
	if !found || inv.start != i {
		return "", false
	}
	end := skipTrivia(snippet, inv.end)
	for end < len(snippet) && snippet[end] == ';' {
		end = skipTrivia(snippet, end+1)
	}
	if end != len(snippet) {
		return "", false
	}
	return inv.body, true
}

// Normalize rewrites a single-invocation snippet into the canonical form
// Extract produces.
func Normalize(snippet string) (string, bool) {
	body, ok := Unwrap(snippet)
	if !ok {
		return snippet, false
	}
	return normalize(body), true
}

// skipTrivia advances past whitespace and comments starting at i.
func skipTrivia(s string, i int) int {
	for i < len(s) {
		switch {
		case isSpace(s[i]):
			i++
		case strings.HasPrefix(s[i:], "//"):
			nl := strings.IndexByte(s[i:], '\n')
			if nl < 0 {
				return len(s)
			}
			i += nl + 1
		case strings.HasPrefix(s[i:], "/*"):
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return i
			}
			i += end + 4
		default:
			return i
		}
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
