// Package agent is the conversational backend: a tool-calling loop over a
// langchaingo model whose tools produce spreadsheet operations for the client
// to run, plus one-shot formula helpers.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/gridpilot/internal/client"
	"github.com/rahul/gridpilot/internal/extract"
	"github.com/rahul/gridpilot/internal/observability"
	"github.com/rahul/gridpilot/internal/tools"
)

const (
	defaultMaxSteps     = 8
	defaultHistoryLimit = 10

	tooManySteps = "Thinking too much... I've reached the maximum reasoning steps. Please try a simpler request."
	apology      = "Sorry, an error occurred while processing your request."
)

// ErrEmptyInput rejects blank turns.
var ErrEmptyInput = errors.New("message is required")

// HistoryStore persists the conversation between turns.
type HistoryStore interface {
	AddMessage(ctx context.Context, conversationID, role, content string) error
	GetHistory(ctx context.Context, conversationID string, limit int) ([]llms.MessageContent, error)
}

// Reply is the result of one turn.
type Reply struct {
	Response   string
	Operations []extract.Operation
}

// Brain runs the ReAct loop for one conversation turn.
type Brain struct {
	Model        llms.Model
	Registry     *tools.Registry
	History      HistoryStore
	Prompts      *PromptManager
	Logger       *observability.Logger
	MaxSteps     int
	HistoryLimit int
}

func NewBrain(model llms.Model, registry *tools.Registry, history HistoryStore, prompts *PromptManager, logger *observability.Logger) *Brain {
	if registry == nil {
		registry = tools.NewRegistry()
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Brain{
		Model:        model,
		Registry:     registry,
		History:      history,
		Prompts:      prompts,
		Logger:       logger,
		MaxSteps:     defaultMaxSteps,
		HistoryLimit: defaultHistoryLimit,
	}
}

// Think answers input. Tool calls never touch a workbook; each hint they
// return is collected into Reply.Operations.
func (b *Brain) Think(ctx context.Context, conversationID string, input string) (*Reply, error) {
	if input == "" {
		return nil, ErrEmptyInput
	}

	systemPrompt, err := b.Prompts.GetSystemPrompt()
	if err != nil {
		log.Printf("Warning: Failed to load system prompt: %v", err)
		systemPrompt = DefaultSystemPrompt
	}

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		},
	}

	if b.History != nil {
		history, err := b.History.GetHistory(ctx, conversationID, b.HistoryLimit)
		if err != nil {
			log.Printf("Warning: Failed to load history for %s: %v", conversationID, err)
		}
		messages = append(messages, history...)
	}

	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(input)},
	})

	var llmTools []llms.Tool
	for _, t := range b.Registry.List() {
		llmTools = append(llmTools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	var opts []llms.CallOption
	if len(llmTools) > 0 {
		opts = append(opts, llms.WithTools(llmTools))
	}

	reply := &Reply{}
	for i := 0; i < b.MaxSteps; i++ {
		resp, err := b.Model.GenerateContent(ctx, messages, opts...)
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("model returned no choices")
		}
		choice := resp.Choices[0]
		b.Logger.LogLLM(conversationID, fmt.Sprintf("step_%d", i+1), messages, choice.Content, choice.ToolCalls)

		var assistantParts []llms.ContentPart
		if choice.Content != "" {
			assistantParts = append(assistantParts, llms.TextContent{Text: choice.Content})
		}
		for _, tc := range choice.ToolCalls {
			assistantParts = append(assistantParts, tc)
		}
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeAI,
			Parts: assistantParts,
		})

		// No tool calls: this is the final answer
		if len(choice.ToolCalls) == 0 {
			reply.Response = choice.Content
			break
		}

		for _, tc := range choice.ToolCalls {
			result := b.callTool(ctx, conversationID, i+1, tc)
			if op, ok := tools.ParseHint(result); ok {
				reply.Operations = append(reply.Operations, op)
			}
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: tc.ID,
						Name:       tc.FunctionCall.Name,
						Content:    result,
					},
				},
			})
		}
	}

	if reply.Response == "" {
		reply.Response = tooManySteps
	}

	if b.History != nil {
		if err := b.History.AddMessage(ctx, conversationID, "human", input); err != nil {
			log.Printf("Warning: Failed to save message: %v", err)
		}
		if err := b.History.AddMessage(ctx, conversationID, "ai", reply.Response); err != nil {
			log.Printf("Warning: Failed to save message: %v", err)
		}
	}

	return reply, nil
}

func (b *Brain) callTool(ctx context.Context, conversationID string, step int, tc llms.ToolCall) string {
	if tc.FunctionCall == nil {
		return "Error: empty tool call"
	}
	tool := b.Registry.Get(tc.FunctionCall.Name)
	if tool == nil {
		return fmt.Sprintf("Error: Tool %s not found", tc.FunctionCall.Name)
	}

	b.Logger.LogToolCall(conversationID, fmt.Sprintf("step_%d", step), tool.Name(), tc.FunctionCall.Arguments)
	res, err := tool.Execute(ctx, tc.FunctionCall.Arguments)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return res
}

// Chat adapts Think to the client wire shape. Failures are reported in the
// reply, never as an error, so in-process and remote backends look alike.
func (b *Brain) Chat(ctx context.Context, req client.ChatRequest) (*client.ChatReply, error) {
	reply, err := b.Think(ctx, req.ConversationID, req.Message)
	if err != nil {
		return &client.ChatReply{
			Success:    false,
			Response:   apology,
			Operations: []extract.Operation{},
			Error:      err.Error(),
		}, nil
	}
	ops := reply.Operations
	if ops == nil {
		ops = []extract.Operation{}
	}
	return &client.ChatReply{
		Success:    true,
		Response:   reply.Response,
		Operations: ops,
	}, nil
}

var _ client.Backend = (*Brain)(nil)
