package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/gridpilot/internal/observability"
)

var (
	// ErrRefused is returned when the model declines to produce a formula.
	ErrRefused = errors.New("model could not produce a formula")
	// ErrUnparseable is returned when the model ignores the answer format.
	ErrUnparseable = errors.New("model returned an unparseable answer")
)

const (
	generatePrompt = "You are an AI assistant that generates Excel formulas from natural language descriptions. Provide only the formula, without any additional text or explanation. If you cannot generate a formula, respond with 'Error: Could not generate formula.'"
	explainPrompt  = "You are an AI assistant that explains Excel formulas in a clear and concise manner. Provide only the explanation, without any additional text or introduction."
	optimizePrompt = "You are an AI assistant that optimizes Excel formulas. Provide the optimized formula and a brief explanation of the optimization. Format your response as: Optimized Formula: [formula]\nExplanation: [explanation]."
	diagnosePrompt = "You are an AI assistant that diagnoses errors in Excel formulas and suggests fixes. Provide the error type, explanation, and suggested fix. Format your response as: Error Type: [type]\nExplanation: [explanation]\nSuggested Fix: [fix]."
)

type Optimization struct {
	OriginalFormula  string `json:"original_formula"`
	SuggestedFormula string `json:"suggested_formula"`
	Explanation      string `json:"explanation"`
}

type Diagnosis struct {
	ErrorType    string `json:"error_type"`
	Explanation  string `json:"explanation"`
	SuggestedFix string `json:"suggested_fix"`
}

// FormulaAssistant answers single-shot formula questions.
type FormulaAssistant struct {
	Model  llms.Model
	Logger *observability.Logger
}

func NewFormulaAssistant(model llms.Model, logger *observability.Logger) *FormulaAssistant {
	if logger == nil {
		logger = observability.Nop()
	}
	return &FormulaAssistant{Model: model, Logger: logger}
}

func (f *FormulaAssistant) ask(ctx context.Context, task, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}
	resp, err := f.Model.GenerateContent(ctx, messages, llms.WithTemperature(0.1))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Content)
	f.Logger.LogLLM("", task, user, content, nil)
	return content, nil
}

// Generate turns a description into a formula.
func (f *FormulaAssistant) Generate(ctx context.Context, text string) (string, error) {
	formula, err := f.ask(ctx, "generate_formula", generatePrompt, text)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(strings.ToLower(formula), "error:") {
		return "", fmt.Errorf("%w: %s", ErrRefused, formula)
	}
	return formula, nil
}

func (f *FormulaAssistant) Explain(ctx context.Context, formula string) (string, error) {
	return f.ask(ctx, "explain_formula", explainPrompt, "Explain the Excel formula: "+formula)
}

func (f *FormulaAssistant) Optimize(ctx context.Context, formula string) (*Optimization, error) {
	content, err := f.ask(ctx, "optimize_formula", optimizePrompt, "Optimize the Excel formula: "+formula)
	if err != nil {
		return nil, err
	}
	fields := labeledLines(content, "Optimized Formula:", "Explanation:")
	if fields[0] == "" || fields[1] == "" {
		return nil, fmt.Errorf("%w: optimization", ErrUnparseable)
	}
	return &Optimization{
		OriginalFormula:  formula,
		SuggestedFormula: fields[0],
		Explanation:      fields[1],
	}, nil
}

func (f *FormulaAssistant) Diagnose(ctx context.Context, formula string) (*Diagnosis, error) {
	content, err := f.ask(ctx, "diagnose_error", diagnosePrompt, "Diagnose the error in this Excel formula: "+formula)
	if err != nil {
		return nil, err
	}
	fields := labeledLines(content, "Error Type:", "Explanation:", "Suggested Fix:")
	if fields[0] == "" || fields[1] == "" || fields[2] == "" {
		return nil, fmt.Errorf("%w: diagnosis", ErrUnparseable)
	}
	return &Diagnosis{
		ErrorType:    fields[0],
		Explanation:  fields[1],
		SuggestedFix: fields[2],
	}, nil
}

// labeledLines returns the value after each label, taken from the last line
// that starts with it.
func labeledLines(content string, labels ...string) []string {
	out := make([]string, len(labels))
	for _, line := range strings.Split(content, "\n") {
		for i, label := range labels {
			if strings.HasPrefix(line, label) {
				out[i] = strings.TrimSpace(strings.TrimPrefix(line, label))
				break
			}
		}
	}
	return out
}
