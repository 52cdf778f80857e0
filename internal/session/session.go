// Package session is the conversation core a UI drives: it sends turns to the
// backend, attaches extracted operations to agent messages and runs those
// operations through the policy and the execution engine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rahul/gridpilot/internal/changes"
	"github.com/rahul/gridpilot/internal/client"
	"github.com/rahul/gridpilot/internal/extract"
	"github.com/rahul/gridpilot/internal/governance"
	"github.com/rahul/gridpilot/internal/observability"
	"github.com/rahul/gridpilot/internal/status"
	"github.com/rahul/gridpilot/internal/table"
	"github.com/rahul/gridpilot/internal/workbook"
)

var (
	// ErrBusy rejects a send while another one is outstanding.
	ErrBusy = errors.New("a request is already in flight")
	// ErrAlreadyRunning rejects a run while the same operation is executing.
	ErrAlreadyRunning = errors.New("operation is already executing")
	// ErrNoSnippet is returned for operations without executable code.
	ErrNoSnippet = errors.New("operation has no executable snippet")
	// ErrUnknownOperation is returned for a key that matches no operation.
	ErrUnknownOperation = errors.New("unknown operation")
)

const (
	apologyTransport = "Sorry, I could not reach the server. Please check your connection or try again later."
	apologyFailed    = "Sorry, something went wrong while handling your request."
	bannerReauth     = "Authentication failed, please sign in again."
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Message is one entry of the append-only conversation.
type Message struct {
	ID         string
	Role       Role
	Text       string
	CreatedAt  time.Time
	Operations []extract.Operation
	ErrorNote  string
}

// Executor runs approved snippets and reads document snapshots.
type Executor interface {
	Run(ctx context.Context, snippet governance.ApprovedSnippet) error
	Snapshot(ctx context.Context) (table.Grid, error)
}

// Options configures optional behavior.
type Options struct {
	// ConversationID defaults to a fresh "conv_<uuid>".
	ConversationID string
	// IncludeTable prefixes each turn with the serialized document snapshot.
	IncludeTable bool
	// ReportChanges diffs the document before and after each run.
	ReportChanges bool
	Logger        *observability.Logger
}

// Session owns one conversation, its operation statuses and the banner.
type Session struct {
	backend   client.Backend
	extractor extract.Extractor
	policy    governance.PolicyEngine
	executor  Executor
	tracker   *status.Tracker
	logger    *observability.Logger
	opts      Options

	mu       sync.Mutex
	messages []Message
	inFlight bool
	banner   string
	changes  map[status.Key]changes.Summary
}

func New(backend client.Backend, extractor extract.Extractor, policy governance.PolicyEngine, executor Executor, opts Options) *Session {
	if opts.ConversationID == "" {
		opts.ConversationID = "conv_" + uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.Nop()
	}
	return &Session{
		backend:   backend,
		extractor: extractor,
		policy:    policy,
		executor:  executor,
		tracker:   status.NewTracker(),
		logger:    logger,
		opts:      opts,
		changes:   make(map[status.Key]changes.Summary),
	}
}

// ConversationID identifies the session to the backend.
func (s *Session) ConversationID() string {
	return s.opts.ConversationID
}

// SendTurn posts text to the backend and returns the messages it appended:
// the user message followed by exactly one agent message. Backend failures
// are reported through the agent message and the banner, not the error,
// which is reserved for ErrBusy and empty input.
func (s *Session) SendTurn(ctx context.Context, text string) ([]Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty message")
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.inFlight = true
	s.banner = ""
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	user := s.append(Message{Role: RoleUser, Text: text})

	prompt := text
	withTable := false
	if s.opts.IncludeTable && s.executor != nil {
		grid, err := s.executor.Snapshot(ctx)
		if err != nil {
			log.Printf("session %s: snapshot skipped: %v", s.opts.ConversationID, err)
		} else if len(grid) > 0 {
			prompt = table.Prompt(grid, text)
			withTable = true
		}
	}
	s.logger.LogTurn(s.opts.ConversationID, user.ID, len(prompt), withTable)

	reply, err := s.backend.Chat(ctx, client.ChatRequest{
		Message:        prompt,
		ConversationID: s.opts.ConversationID,
	})
	if err != nil {
		agent := s.transportFailure(err)
		return []Message{user, agent}, nil
	}

	if !reply.Success {
		body := reply.Response
		if body == "" {
			body = apologyFailed
		}
		note := reply.Error
		if note == "" {
			note = "request failed"
		}
		agent := s.append(Message{Role: RoleAgent, Text: body, ErrorNote: note})
		return []Message{user, agent}, nil
	}

	res := s.extractor.Extract(reply.Response)
	ops := res.Operations
	fromHints := false
	if len(ops) == 0 && len(reply.Operations) > 0 {
		ops = normalizeHints(reply.Operations)
		fromHints = true
	}
	agent := s.append(Message{Role: RoleAgent, Text: res.CleanText, Operations: ops})
	s.logger.LogExtraction(s.opts.ConversationID, agent.ID, len(ops), fromHints)

	return []Message{user, agent}, nil
}

// normalizeHints rewrites backend hints that wrap a single invocation into
// the canonical form extraction produces. Other hints are kept as sent.
func normalizeHints(hints []extract.Operation) []extract.Operation {
	out := make([]extract.Operation, len(hints))
	for i, op := range hints {
		if code, ok := extract.Normalize(op.Snippet); ok {
			op.Snippet = code
		}
		out[i] = op
	}
	return out
}

func (s *Session) transportFailure(err error) Message {
	statusCode := 0
	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) {
		statusCode = httpErr.StatusCode
	}

	banner := fmt.Sprintf("Failed to send message: %v", err)
	if errors.Is(err, client.ErrUnauthorized) {
		statusCode = 401
		banner = bannerReauth
	}
	s.logger.LogTransport(s.opts.ConversationID, statusCode, err.Error())

	s.mu.Lock()
	s.banner = banner
	s.mu.Unlock()

	return s.append(Message{Role: RoleAgent, Text: apologyTransport, ErrorNote: err.Error()})
}

func (s *Session) append(m Message) Message {
	m.ID = uuid.NewString()
	m.CreatedAt = time.Now()

	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
	return m
}

// RunOperation vets and executes one operation. The returned status is the
// key's status after the call. Policy and execution failures are recorded on
// the key and also returned.
func (s *Session) RunOperation(ctx context.Context, messageID string, index int) (status.Status, error) {
	key := status.Key{MessageID: messageID, Index: index}

	op, err := s.operation(key)
	if err != nil {
		return s.tracker.StatusOf(key), err
	}
	if !op.HasSnippet() {
		log.Printf("session %s: %s has no executable code, skipping", s.opts.ConversationID, key)
		return s.tracker.StatusOf(key), ErrNoSnippet
	}
	if !s.tracker.MarkExecuting(key) {
		return status.Executing, ErrAlreadyRunning
	}

	decision, approved := s.policy.Evaluate(ctx, op.Snippet)
	s.logger.LogPolicyCheck(s.opts.ConversationID, key.String(), string(decision.Effect), decision.Reason)
	if !decision.Allowed() {
		return s.fail(key, decision.Err())
	}

	var before string
	if s.opts.ReportChanges {
		before = s.serializedSnapshot(ctx)
	}

	if err := s.executor.Run(ctx, approved); err != nil {
		return s.fail(key, err)
	}

	if s.opts.ReportChanges {
		summary := changes.Diff(before, s.serializedSnapshot(ctx))
		s.mu.Lock()
		s.changes[key] = summary
		s.mu.Unlock()
	}

	s.tracker.MarkSuccess(key)
	s.logger.LogExecution(s.opts.ConversationID, key.String(), string(status.Success), "")
	return status.Success, nil
}

func (s *Session) fail(key status.Key, err error) (status.Status, error) {
	s.tracker.MarkError(key, err.Error())
	s.logger.LogExecution(s.opts.ConversationID, key.String(), string(status.Error), err.Error())
	return status.Error, err
}

func (s *Session) serializedSnapshot(ctx context.Context) string {
	grid, err := s.executor.Snapshot(ctx)
	if err != nil {
		log.Printf("session %s: snapshot for change summary failed: %v", s.opts.ConversationID, err)
		return ""
	}
	return table.Serialize(grid)
}

func (s *Session) operation(key status.Key) (extract.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID != key.MessageID {
			continue
		}
		if key.Index < 0 || key.Index >= len(m.Operations) {
			break
		}
		return m.Operations[key.Index], nil
	}
	return extract.Operation{}, fmt.Errorf("%w: %s", ErrUnknownOperation, key)
}

// StatusOf returns the operation's status, pending if it never ran.
func (s *Session) StatusOf(messageID string, index int) status.Status {
	return s.tracker.StatusOf(status.Key{MessageID: messageID, Index: index})
}

// ErrorOf returns the failure message of the operation's last run.
func (s *Session) ErrorOf(messageID string, index int) string {
	return s.tracker.ErrorOf(status.Key{MessageID: messageID, Index: index})
}

// ChangesOf returns the change summary of the operation's last successful run.
func (s *Session) ChangesOf(messageID string, index int) (changes.Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.changes[status.Key{MessageID: messageID, Index: index}]
	return c, ok
}

// Messages returns a copy of the conversation.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Message looks up one message by id.
func (s *Session) Message(id string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// InFlight reports whether a send is outstanding.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Banner returns the current error banner, empty when dismissed.
func (s *Session) Banner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banner
}

func (s *Session) DismissBanner() {
	s.mu.Lock()
	s.banner = ""
	s.mu.Unlock()
}

// Close drops the conversation and every operation status.
func (s *Session) Close() {
	s.mu.Lock()
	s.messages = nil
	s.banner = ""
	s.changes = make(map[status.Key]changes.Summary)
	s.mu.Unlock()
	s.tracker.Reset()
}

var _ Executor = (*workbook.Engine)(nil)
