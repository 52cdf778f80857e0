package governance

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// ErrPolicyDenied is reported for every snippet the policy rejects.
var ErrPolicyDenied = errors.New("security check failed: snippet contains disallowed operations")

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// Allowed reports whether the snippet may run.
func (r Result) Allowed() bool {
	return r.Effect == EffectAllow
}

// Err returns ErrPolicyDenied for a deny result and nil otherwise.
func (r Result) Err() error {
	if r.Allowed() {
		return nil
	}
	return ErrPolicyDenied
}

// ApprovedSnippet is code that passed the policy. Only SnippetPolicy.Evaluate
// produces a non-zero value.
type ApprovedSnippet struct {
	code string
}

// Code returns the approved source.
func (a ApprovedSnippet) Code() string {
	return a.code
}

// IsZero reports whether the value was not produced by an allow decision.
func (a ApprovedSnippet) IsZero() bool {
	return a.code == ""
}

// PolicyEngine evaluates snippets against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, snippet string) (Result, ApprovedSnippet)
}

// Default pattern sets. A snippet must touch the workbook API and must not
// reach the page, the network or dynamic evaluation.
var (
	DefaultAllowPatterns = []string{
		`Excel\.run`,
		`context\.workbook`,
		`getRange`,
		`charts\.add`,
		`getItem`,
		`load`,
		`sync`,
	}
	DefaultDenyPatterns = []string{
		`document\.`,
		`window\.`,
		`fetch\(`,
		`XMLHttpRequest`,
		`eval\(`,
		`Function\(`,
	}
)

// SnippetPolicy is an allow/deny regex implementation of PolicyEngine.
type SnippetPolicy struct {
	AllowedRegex []*regexp.Regexp
	DeniedRegex  []*regexp.Regexp
}

// NewSnippetPolicy returns a policy loaded with the default pattern sets.
func NewSnippetPolicy() *SnippetPolicy {
	p := &SnippetPolicy{
		AllowedRegex: make([]*regexp.Regexp, 0, len(DefaultAllowPatterns)),
		DeniedRegex:  make([]*regexp.Regexp, 0, len(DefaultDenyPatterns)),
	}
	for _, s := range DefaultAllowPatterns {
		p.AllowedRegex = append(p.AllowedRegex, regexp.MustCompile(s))
	}
	for _, s := range DefaultDenyPatterns {
		p.DeniedRegex = append(p.DeniedRegex, regexp.MustCompile(s))
	}
	return p
}

func (e *SnippetPolicy) Allow(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.AllowedRegex = append(e.AllowedRegex, re)
	return nil
}

func (e *SnippetPolicy) Deny(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

// Evaluate classifies the snippet. Any deny match rejects it, regardless of
// allow matches.
func (e *SnippetPolicy) Evaluate(ctx context.Context, snippet string) (Result, ApprovedSnippet) {
	if strings.TrimSpace(snippet) == "" {
		return Result{Effect: EffectDeny, Reason: "Snippet is empty"}, ApprovedSnippet{}
	}

	for _, re := range e.DeniedRegex {
		if re.MatchString(snippet) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Snippet matches restricted pattern: %s", re.String()),
			}, ApprovedSnippet{}
		}
	}

	for _, re := range e.AllowedRegex {
		if re.MatchString(snippet) {
			return Result{
				Effect: EffectAllow,
				Reason: fmt.Sprintf("Snippet matches allowed pattern: %s", re.String()),
			}, ApprovedSnippet{code: snippet}
		}
	}

	return Result{
		Effect: EffectDeny,
		Reason: "Snippet does not reference the workbook API",
	}, ApprovedSnippet{}
}
