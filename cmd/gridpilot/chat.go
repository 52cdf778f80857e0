package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rahul/gridpilot/internal/extract"
	"github.com/rahul/gridpilot/internal/governance"
	"github.com/rahul/gridpilot/internal/observability"
	"github.com/rahul/gridpilot/internal/session"
	"github.com/rahul/gridpilot/internal/status"
	"github.com/rahul/gridpilot/internal/table"
	"github.com/rahul/gridpilot/pkg/config"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the agent and run its operations against the open workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		return runChat(cmd.Context(), cfg)
	},
}

const chatHelp = `Commands:
  /run N     run operation N of the latest proposal
  /show N    print the code of operation N
  /status    list the latest operations with their status
  /table     print the current sheet
  /reset     start a new conversation
  /quit      exit
Anything else is sent to the agent.`

// lineReader abstracts the raw-mode terminal and plain stdin.
type lineReader interface {
	ReadLine() (string, error)
}

type scannerReader struct{ s *bufio.Scanner }

func (r scannerReader) ReadLine() (string, error) {
	if !r.s.Scan() {
		if err := r.s.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.s.Text(), nil
}

func runChat(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, closeLog, err := newFileLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	backend, closeBackend, err := newBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	engine, host := newEngine(cfg)
	defer host.Close()

	sess := session.New(backend, extract.New(), governance.NewSnippetPolicy(), engine, session.Options{
		IncludeTable:  cfg.App.IncludeTable,
		ReportChanges: cfg.App.ReportChanges,
		Logger:        logger,
	})
	defer sess.Close()

	var (
		in  lineReader
		out io.Writer = os.Stdout
	)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return err
		}
		defer term.Restore(fd, oldState)
		t := term.NewTerminal(struct {
			io.Reader
			io.Writer
		}{os.Stdin, os.Stdout}, "> ")
		in, out = t, t
	} else {
		in = scannerReader{bufio.NewScanner(os.Stdin)}
	}

	observability.PrintBanner(out)
	fmt.Fprintln(out, chatHelp)

	r := &repl{sess: sess, engine: engine, out: out}
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := in.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if quit := r.handle(ctx, line); quit {
			return nil
		}
	}
}

type snapshotter interface {
	Snapshot(ctx context.Context) (table.Grid, error)
}

type repl struct {
	sess   *session.Session
	engine snapshotter
	out    io.Writer
	latest session.Message
}

var (
	dim    = color.New(color.Faint)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
)

func (r *repl) handle(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, chatHelp)
	case "/reset":
		r.sess.Close()
		r.latest = session.Message{}
		dim.Fprintln(r.out, "Conversation cleared.")
	case "/status":
		r.printOperations()
	case "/table":
		grid, err := r.engine.Snapshot(ctx)
		if err != nil {
			red.Fprintf(r.out, "Could not read the sheet: %v\n", err)
			break
		}
		fmt.Fprintln(r.out, table.Serialize(grid))
	case "/show":
		if op, _, ok := r.pick(arg); ok {
			fmt.Fprintln(r.out, op.Snippet)
		}
	case "/run":
		op, idx, ok := r.pick(arg)
		if !ok {
			break
		}
		if !op.HasSnippet() {
			dim.Fprintln(r.out, "Nothing to run for this operation.")
			break
		}
		yellow.Fprintf(r.out, "%s running %d...\n", statusIcon(status.Executing), idx+1)
		st, err := r.sess.RunOperation(ctx, r.latest.ID, idx)
		r.printRun(idx, st, err)
	default:
		r.send(ctx, line)
	}
	return false
}

func (r *repl) send(ctx context.Context, text string) {
	dim.Fprintln(r.out, "thinking...")
	msgs, err := r.sess.SendTurn(ctx, text)
	if errors.Is(err, session.ErrBusy) {
		yellow.Fprintln(r.out, "Still waiting for the previous reply.")
		return
	}
	if err != nil {
		red.Fprintln(r.out, err)
		return
	}

	if banner := r.sess.Banner(); banner != "" {
		red.Fprintf(r.out, "! %s\n", banner)
		r.sess.DismissBanner()
	}

	for _, m := range msgs {
		if m.Role != session.RoleAgent {
			continue
		}
		fmt.Fprintln(r.out, m.Text)
		if m.ErrorNote != "" {
			red.Fprintf(r.out, "(%s)\n", m.ErrorNote)
		}
		if len(m.Operations) > 0 {
			r.latest = m
			r.printOperations()
		}
	}
}

func (r *repl) pick(arg string) (extract.Operation, int, bool) {
	if len(r.latest.Operations) == 0 {
		dim.Fprintln(r.out, "No operations proposed yet.")
		return extract.Operation{}, 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 || n > len(r.latest.Operations) {
		red.Fprintf(r.out, "Pick an operation between 1 and %d.\n", len(r.latest.Operations))
		return extract.Operation{}, 0, false
	}
	return r.latest.Operations[n-1], n - 1, true
}

func (r *repl) printOperations() {
	for i, op := range r.latest.Operations {
		st := r.sess.StatusOf(r.latest.ID, i)
		cyan.Fprintf(r.out, "  [%d] ", i+1)
		fmt.Fprintf(r.out, "%s %s\n", statusIcon(st), op.Description)
		if msg := r.sess.ErrorOf(r.latest.ID, i); st == status.Error && msg != "" {
			red.Fprintf(r.out, "      %s\n", msg)
		}
	}
}

func (r *repl) printRun(idx int, st status.Status, err error) {
	switch {
	case errors.Is(err, session.ErrAlreadyRunning):
		yellow.Fprintf(r.out, "Operation %d is already running.\n", idx+1)
	case errors.Is(err, governance.ErrPolicyDenied):
		red.Fprintf(r.out, "%s %d blocked: %v\n", statusIcon(st), idx+1, err)
	case st == status.Error:
		red.Fprintf(r.out, "%s %d failed: %v\n", statusIcon(st), idx+1, err)
	case st == status.Success:
		green.Fprintf(r.out, "%s %d applied.\n", statusIcon(st), idx+1)
		if c, ok := r.sess.ChangesOf(r.latest.ID, idx); ok && !c.Empty() {
			dim.Fprintln(r.out, c.String())
		}
	}
}

func statusIcon(st status.Status) string {
	switch st {
	case status.Executing:
		return "…"
	case status.Success:
		return "✓"
	case status.Error:
		return "✗"
	default:
		return "▶"
	}
}
