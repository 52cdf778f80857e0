package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeTurn        EventType = "turn"
	EventTypeExtraction  EventType = "extraction"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypeExecution   EventType = "execution"
	EventTypeTransport   EventType = "transport"
	EventTypeToolCall    EventType = "tool_call"
	EventTypeLLM         EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	ChatID    string    `json:"chat_id,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	mu         sync.Mutex
	out        io.Writer
	llmLogPath string
	maxSize    int64
}

// NewLogger writes events to stdout and mirrors LLM events into logDir.
// An empty logDir disables the LLM file.
func NewLogger(logDir string) *Logger {
	l := &Logger{
		out:     os.Stdout,
		maxSize: 10 * 1024 * 1024, // 10MB
	}
	if logDir != "" {
		l.llmLogPath = filepath.Join(logDir, "llm.jsonl")
	}
	return l
}

// NewWriterLogger writes events to w only.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{out: w}
}

// Nop discards every event.
func Nop() *Logger {
	return NewWriterLogger(io.Discard)
}

// Log emits a structured JSON event.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error": "failed to marshal event: %v"}`, err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(data))

	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogTurn(chatID, messageID string, promptChars int, withTable bool) {
	l.Log(Event{
		Type:   EventTypeTurn,
		ChatID: chatID,
		TaskID: messageID,
		Data: map[string]any{
			"prompt_chars": promptChars,
			"with_table":   withTable,
		},
	})
}

func (l *Logger) LogExtraction(chatID, messageID string, operations int, fromHints bool) {
	l.Log(Event{
		Type:   EventTypeExtraction,
		ChatID: chatID,
		TaskID: messageID,
		Data: map[string]any{
			"operations": operations,
			"from_hints": fromHints,
		},
	})
}

func (l *Logger) LogPolicyCheck(chatID, key, effect, reason string) {
	l.Log(Event{
		Type:   EventTypePolicyCheck,
		ChatID: chatID,
		TaskID: key,
		Data: map[string]string{
			"effect": effect,
			"reason": reason,
		},
	})
}

func (l *Logger) LogExecution(chatID, key, status, errMsg string) {
	data := map[string]string{"status": status}
	if errMsg != "" {
		data["error"] = errMsg
	}
	l.Log(Event{
		Type:   EventTypeExecution,
		ChatID: chatID,
		TaskID: key,
		Data:   data,
	})
}

func (l *Logger) LogTransport(chatID string, statusCode int, errMsg string) {
	l.Log(Event{
		Type:   EventTypeTransport,
		ChatID: chatID,
		Data: map[string]any{
			"status_code": statusCode,
			"error":       errMsg,
		},
	})
}

func (l *Logger) LogToolCall(chatID, taskID, tool, args string) {
	l.Log(Event{
		Type:   EventTypeToolCall,
		ChatID: chatID,
		TaskID: taskID,
		Data: map[string]string{
			"tool": tool,
			"args": args,
		},
	})
}

func (l *Logger) LogLLM(chatID, taskID string, prompt any, response string, toolCalls any) {
	l.Log(Event{
		Type:   EventTypeLLM,
		ChatID: chatID,
		TaskID: taskID,
		Data: map[string]any{
			"prompt":     prompt,
			"response":   response,
			"tool_calls": toolCalls,
		},
	})
}
