package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/tmc/langchaingo/llms"
)

func assistant(replies ...string) *FormulaAssistant {
	m := &scriptedModel{}
	for _, r := range replies {
		m.responses = append(m.responses, text(r))
	}
	return NewFormulaAssistant(m, nil)
}

func TestFormula_Generate(t *testing.T) {
	got, err := assistant("  =SUM(A1:A10)\n").Generate(context.Background(), "sum the first ten rows")
	if err != nil || got != "=SUM(A1:A10)" {
		t.Errorf("Generate() = %q, %v", got, err)
	}
}

func TestFormula_GenerateRefusal(t *testing.T) {
	_, err := assistant("Error: Could not generate formula.").Generate(context.Background(), "make coffee")
	if !errors.Is(err, ErrRefused) {
		t.Errorf("error = %v", err)
	}
}

func TestFormula_Optimize(t *testing.T) {
	reply := "Optimized Formula: =SUMIFS(B:B,A:A,\"x\")\nExplanation: One pass instead of an array."
	got, err := assistant(reply).Optimize(context.Background(), `=SUM(IF(A:A="x",B:B))`)
	if err != nil {
		t.Fatal(err)
	}
	if got.SuggestedFormula != `=SUMIFS(B:B,A:A,"x")` || got.Explanation != "One pass instead of an array." {
		t.Errorf("Optimize() = %+v", got)
	}
	if got.OriginalFormula != `=SUM(IF(A:A="x",B:B))` {
		t.Errorf("original = %q", got.OriginalFormula)
	}
}

func TestFormula_Diagnose(t *testing.T) {
	reply := "Error Type: #DIV/0!\nExplanation: B1 is zero.\nSuggested Fix: =IFERROR(A1/B1,0)"
	got, err := assistant(reply).Diagnose(context.Background(), "=A1/B1")
	if err != nil {
		t.Fatal(err)
	}
	want := Diagnosis{ErrorType: "#DIV/0!", Explanation: "B1 is zero.", SuggestedFix: "=IFERROR(A1/B1,0)"}
	if *got != want {
		t.Errorf("Diagnose() = %+v", got)
	}
}

func TestFormula_Unparseable(t *testing.T) {
	a := assistant("It looks fine to me.", "Error Type: none")
	if _, err := a.Optimize(context.Background(), "=A1"); !errors.Is(err, ErrUnparseable) {
		t.Errorf("Optimize error = %v", err)
	}
	if _, err := a.Diagnose(context.Background(), "=A1"); !errors.Is(err, ErrUnparseable) {
		t.Errorf("Diagnose error = %v", err)
	}
}

func TestFormula_ExplainSendsFormula(t *testing.T) {
	m := &scriptedModel{responses: []*llms.ContentResponse{text("Adds A1 and A2.")}}
	got, err := NewFormulaAssistant(m, nil).Explain(context.Background(), "=A1+A2")
	if err != nil || got != "Adds A1 and A2." {
		t.Fatalf("Explain() = %q, %v", got, err)
	}
	user := m.calls[0][1].Parts[0].(llms.TextContent)
	if user.Text != "Explain the Excel formula: =A1+A2" {
		t.Errorf("user prompt = %q", user.Text)
	}
}
