package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rahul/gridpilot/internal/extract"
)

var (
	addressPattern   = regexp.MustCompile(`^\$?[A-Za-z]{1,3}\$?[0-9]{1,7}(:\$?[A-Za-z]{1,3}\$?[0-9]{1,7})?$`)
	chartTypePattern = regexp.MustCompile(`^[A-Za-z]+$`)
)

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func sheetExpr(name string) string {
	if name == "" {
		return "context.workbook.worksheets.getActiveWorksheet()"
	}
	return "context.workbook.worksheets.getItem(" + jsString(name) + ")"
}

func target(sheet, address string) string {
	if sheet == "" {
		return address
	}
	return sheet + "!" + address
}

func wrap(lines ...string) string {
	return extract.EntryPoint + "(async (context) => {\n    " + strings.Join(lines, "\n    ") + "\n});"
}

func checkAddress(address string) error {
	if !addressPattern.MatchString(address) {
		return fmt.Errorf("invalid range address %q", address)
	}
	return nil
}

type ReadRangeTool struct{}

func NewReadRangeTool() *ReadRangeTool {
	return &ReadRangeTool{}
}

func (t *ReadRangeTool) Name() string {
	return "read_range"
}

func (t *ReadRangeTool) Description() string {
	return "Read the values of a cell range. Use when existing data is needed."
}

func (t *ReadRangeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sheet_name": map[string]any{
				"type":        "string",
				"description": "Worksheet name; the active sheet when omitted",
			},
			"range_address": map[string]any{
				"type":        "string",
				"description": "Range such as A1:B10",
			},
		},
		"required": []string{"range_address"},
	}
}

func (t *ReadRangeTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Sheet   string `json:"sheet_name"`
		Address string `json:"range_address"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if err := checkAddress(args.Address); err != nil {
		return "", err
	}

	return Hint{
		Operation: extract.Operation{
			Kind:        "read_range",
			Description: "Read " + target(args.Sheet, args.Address),
			Snippet: wrap(
				"const sheet = "+sheetExpr(args.Sheet)+";",
				"const range = sheet.getRange("+jsString(args.Address)+");",
				`range.load("values");`,
				"await context.sync();",
				"return range.values;",
			),
		},
		Target: target(args.Sheet, args.Address),
	}.String(), nil
}

type WriteRangeTool struct{}

func NewWriteRangeTool() *WriteRangeTool {
	return &WriteRangeTool{}
}

func (t *WriteRangeTool) Name() string {
	return "write_range"
}

func (t *WriteRangeTool) Description() string {
	return "Write a two-dimensional array of values into a cell range."
}

func (t *WriteRangeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sheet_name": map[string]any{
				"type":        "string",
				"description": "Worksheet name; the active sheet when omitted",
			},
			"range_address": map[string]any{
				"type":        "string",
				"description": "Target range; its shape must match values",
			},
			"values": map[string]any{
				"type":        "array",
				"description": "Rows of cell values",
				"items":       map[string]any{"type": "array"},
			},
		},
		"required": []string{"range_address", "values"},
	}
}

func (t *WriteRangeTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Sheet   string          `json:"sheet_name"`
		Address string          `json:"range_address"`
		Values  [][]interface{} `json:"values"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if err := checkAddress(args.Address); err != nil {
		return "", err
	}
	if len(args.Values) == 0 {
		return "", fmt.Errorf("values must not be empty")
	}
	values, err := json.Marshal(args.Values)
	if err != nil {
		return "", err
	}

	return Hint{
		Operation: extract.Operation{
			Kind:        "write_range",
			Description: "Write data to " + target(args.Sheet, args.Address),
			Snippet: wrap(
				"const sheet = "+sheetExpr(args.Sheet)+";",
				"const range = sheet.getRange("+jsString(args.Address)+");",
				"range.values = "+string(values)+";",
				"await context.sync();",
			),
		},
		Target: target(args.Sheet, args.Address),
	}.String(), nil
}

// fallbackFormulas maps request keywords to a formula when the model did not
// write one.
var fallbackFormulas = []struct{ keyword, formula string }{
	{"average", "=AVERAGE(A1:A10)"},
	{"max", "=MAX(A1:A10)"},
	{"min", "=MIN(A1:A10)"},
	{"count", "=COUNT(A1:A10)"},
	{"sum", "=SUM(A1:A10)"},
}

type FormulaTool struct{}

func NewFormulaTool() *FormulaTool {
	return &FormulaTool{}
}

func (t *FormulaTool) Name() string {
	return "generate_formula"
}

func (t *FormulaTool) Description() string {
	return "Place a formula into a cell. Provide the formula itself, or a description of the calculation."
}

func (t *FormulaTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"formula": map[string]any{
				"type":        "string",
				"description": "Formula starting with '='",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "What the formula should calculate",
			},
			"target_cell": map[string]any{
				"type":        "string",
				"description": "Cell receiving the formula, default A1",
			},
			"sheet_name": map[string]any{
				"type":        "string",
				"description": "Worksheet name; the active sheet when omitted",
			},
		},
		"required": []string{"description"},
	}
}

func (t *FormulaTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Formula     string `json:"formula"`
		Description string `json:"description"`
		Cell        string `json:"target_cell"`
		Sheet       string `json:"sheet_name"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if args.Cell == "" {
		args.Cell = "A1"
	}
	if err := checkAddress(args.Cell); err != nil {
		return "", err
	}

	formula := strings.TrimSpace(args.Formula)
	if formula == "" {
		formula = "=SUM(A1:A10)"
		desc := strings.ToLower(args.Description)
		for _, f := range fallbackFormulas {
			if strings.Contains(desc, f.keyword) {
				formula = f.formula
				break
			}
		}
	}
	if !strings.HasPrefix(formula, "=") {
		formula = "=" + formula
	}

	return Hint{
		Operation: extract.Operation{
			Kind:        "set_formula",
			Description: fmt.Sprintf("Set %s to %s", target(args.Sheet, args.Cell), formula),
			Snippet: wrap(
				"const sheet = "+sheetExpr(args.Sheet)+";",
				"const range = sheet.getRange("+jsString(args.Cell)+");",
				"range.formulas = [["+jsString(formula)+"]];",
				"await context.sync();",
			),
		},
		Target: target(args.Sheet, args.Cell),
	}.String(), nil
}

type ChartTool struct{}

func NewChartTool() *ChartTool {
	return &ChartTool{}
}

func (t *ChartTool) Name() string {
	return "create_chart"
}

func (t *ChartTool) Description() string {
	return "Create a chart from a data range. Use for visualization requests."
}

func (t *ChartTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"data_range": map[string]any{
				"type":        "string",
				"description": "Source range such as A1:B10",
			},
			"chart_type": map[string]any{
				"type":        "string",
				"description": "Chart type such as ColumnClustered, Line or Pie",
			},
			"chart_title": map[string]any{
				"type": "string",
			},
			"sheet_name": map[string]any{
				"type":        "string",
				"description": "Worksheet name; the active sheet when omitted",
			},
		},
		"required": []string{"data_range"},
	}
}

func (t *ChartTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Range string `json:"data_range"`
		Type  string `json:"chart_type"`
		Title string `json:"chart_title"`
		Sheet string `json:"sheet_name"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if err := checkAddress(args.Range); err != nil {
		return "", err
	}
	if args.Type == "" || strings.EqualFold(args.Type, "column") {
		args.Type = "ColumnClustered"
	}
	if !chartTypePattern.MatchString(args.Type) {
		return "", fmt.Errorf("invalid chart type %q", args.Type)
	}
	if args.Title == "" {
		args.Title = "Chart"
	}

	return Hint{
		Operation: extract.Operation{
			Kind:        "create_chart",
			Description: fmt.Sprintf("Create a %s chart from %s", args.Type, target(args.Sheet, args.Range)),
			Snippet: wrap(
				"const sheet = "+sheetExpr(args.Sheet)+";",
				"const dataRange = sheet.getRange("+jsString(args.Range)+");",
				"const chart = sheet.charts.add("+jsString(args.Type)+", dataRange);",
				"chart.title.text = "+jsString(args.Title)+";",
				`chart.legend.position = "Right";`,
				"await context.sync();",
			),
		},
		Target: target(args.Sheet, args.Range),
	}.String(), nil
}
