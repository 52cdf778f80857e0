// Package workbook runs approved automation snippets against the live
// spreadsheet and reads snapshots of it.
package workbook

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rahul/gridpilot/internal/extract"
	"github.com/rahul/gridpilot/internal/governance"
	"github.com/rahul/gridpilot/internal/table"
)

// ErrNotApproved is returned for a snippet that did not come from an allow decision.
var ErrNotApproved = errors.New("snippet was not approved by policy")

// ErrNestedTransaction is returned for a snippet that opens its own
// transaction in a shape the engine cannot unwrap.
var ErrNestedTransaction = errors.New("snippet opens a nested transaction")

// trailingSync matches a final sync in a snippet body; the engine issues its own.
var trailingSync = regexp.MustCompile(`\s*await\s+context\.sync\(\s*\)\s*;?\s*$`)

// ExecutionError wraps a failure raised while the snippet ran.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Host evaluates a script inside the document host and decodes its result
// into res. A nil res discards the result.
type Host interface {
	Evaluate(ctx context.Context, script string, res any) error
}

// transactionScript wraps a snippet body in one Excel.run transaction. The body
// sees only context and Excel; the trailing sync is the single commit point.
const transactionScript = `Excel.run(async (context) => {
  await (async (context, Excel) => {
%s
  })(context, Excel);
  await context.sync();
})`

const snapshotScript = `Excel.run(async (context) => {
  const range = context.workbook.worksheets.getActiveWorksheet().getUsedRangeOrNullObject(true);
  range.load("values");
  await context.sync();
  return range.isNullObject ? [] : range.values;
})`

// Engine is the only path from an approved snippet to the document.
type Engine struct {
	Host Host
}

func NewEngine(host Host) *Engine {
	return &Engine{Host: host}
}

// Run executes the snippet inside a fresh transaction. No rollback is
// attempted; an error before the sync point leaves commit semantics to the host.
func (e *Engine) Run(ctx context.Context, snippet governance.ApprovedSnippet) error {
	if snippet.IsZero() {
		return ErrNotApproved
	}
	script, err := Transaction(snippet.Code())
	if err != nil {
		return err
	}
	if err := e.Host.Evaluate(ctx, script, nil); err != nil {
		return &ExecutionError{Err: err}
	}
	return nil
}

// Transaction returns the script issued for code. A normalized Excel.run
// snippet is unwrapped so its body shares the engine's single connection.
// A body's final sync is dropped in favor of the engine's commit point.
func Transaction(code string) (string, error) {
	body, ok := extract.Unwrap(code)
	if !ok {
		if strings.Contains(code, extract.EntryPoint+"(") {
			return "", ErrNestedTransaction
		}
		body = code
	}
	body = trailingSync.ReplaceAllString(body, "")
	return fmt.Sprintf(transactionScript, body), nil
}

// Snapshot reads the used range of the active worksheet.
func (e *Engine) Snapshot(ctx context.Context) (table.Grid, error) {
	var values [][]any
	if err := e.Host.Evaluate(ctx, snapshotScript, &values); err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return table.Grid(values), nil
}
