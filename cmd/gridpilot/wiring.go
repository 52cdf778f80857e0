package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/rahul/gridpilot/internal/agent"
	"github.com/rahul/gridpilot/internal/client"
	"github.com/rahul/gridpilot/internal/observability"
	"github.com/rahul/gridpilot/internal/store"
	"github.com/rahul/gridpilot/internal/tools"
	"github.com/rahul/gridpilot/internal/workbook"
	"github.com/rahul/gridpilot/pkg/config"
)

func newModel(cfg *config.Config) (llms.Model, error) {
	p := cfg.Provider
	switch p.Name {
	case "openai", "openrouter", "deepseek":
		opts := []openai.Option{
			openai.WithToken(p.APIKey),
			openai.WithModel(p.Model),
		}
		if p.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("provider %q is not supported", p.Name)
	}
}

// agentStack is everything the in-process backend needs.
type agentStack struct {
	brain    *agent.Brain
	formulas *agent.FormulaAssistant
	history  *store.HistoryStore
}

func (a *agentStack) Close() {
	if a.history != nil {
		a.history.Close()
	}
}

func newAgentStack(cfg *config.Config, logger *observability.Logger) (*agentStack, error) {
	model, err := newModel(cfg)
	if err != nil {
		return nil, err
	}
	history, err := store.NewHistoryStore(cfg.Memory.Path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	brain := agent.NewBrain(model, tools.NewExcelRegistry(), history, agent.NewPromptManager(cfg.App.PromptsDir), logger)
	if cfg.Backend.MaxSteps > 0 {
		brain.MaxSteps = cfg.Backend.MaxSteps
	}
	if cfg.Memory.HistoryLimit > 0 {
		brain.HistoryLimit = cfg.Memory.HistoryLimit
	}

	return &agentStack{
		brain:    brain,
		formulas: agent.NewFormulaAssistant(model, logger),
		history:  history,
	}, nil
}

// newBackend returns the HTTP client, or an in-process brain with --local.
func newBackend(cfg *config.Config, logger *observability.Logger) (client.Backend, func(), error) {
	if !useLocal {
		c := client.New(cfg.Backend.URL, cfg.Backend.Token)
		if cfg.Backend.Timeout > 0 {
			c.HTTPClient.Timeout = cfg.Backend.Timeout
		}
		return c, func() {}, nil
	}
	stack, err := newAgentStack(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return stack.brain, stack.Close, nil
}

func newEngine(cfg *config.Config) (*workbook.Engine, *workbook.ChromeHost) {
	host := workbook.NewChromeHost(workbook.ChromeOptions{
		RemoteURL:   cfg.Document.RemoteURL,
		TargetMatch: cfg.Document.TargetMatch,
		WorkbookURL: cfg.Document.WorkbookURL,
		Headless:    cfg.Document.Headless,
		Timeout:     cfg.Document.Timeout,
	})
	return workbook.NewEngine(host), host
}

// newFileLogger keeps structured events out of interactive output.
func newFileLogger(cfg *config.Config) (*observability.Logger, func(), error) {
	if cfg.Logging.Dir == "" {
		return observability.Nop(), func() {}, nil
	}
	if err := os.MkdirAll(cfg.Logging.Dir, 0755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(cfg.Logging.Dir, "events.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	return observability.NewWriterLogger(f), func() { f.Close() }, nil
}
