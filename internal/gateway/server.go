package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rahul/gridpilot/internal/agent"
	"github.com/rahul/gridpilot/internal/client"
	"github.com/rahul/gridpilot/internal/observability"
)

// Formulas answers the single-shot formula endpoints.
type Formulas interface {
	Generate(ctx context.Context, text string) (string, error)
	Explain(ctx context.Context, formula string) (string, error)
	Optimize(ctx context.Context, formula string) (*agent.Optimization, error)
	Diagnose(ctx context.Context, formula string) (*agent.Diagnosis, error)
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type formulaRequest struct {
	Text    string `json:"text,omitempty"`
	Formula string `json:"formula,omitempty"`
}

// Server exposes the conversational backend over HTTP.
type Server struct {
	backend  client.Backend
	formulas Formulas
	logger   *observability.Logger
	srv      *http.Server
}

func NewServer(addr string, backend client.Backend, formulas Formulas, logger *observability.Logger) *Server {
	if logger == nil {
		logger = observability.Nop()
	}
	s := &Server{backend: backend, formulas: formulas, logger: logger}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.Healthz)
	mux.HandleFunc("POST /agent/chat", s.Chat)
	mux.HandleFunc("POST /api/generate-formula", s.GenerateFormula)
	mux.HandleFunc("POST /api/explain-formula", s.ExplainFormula)
	mux.HandleFunc("POST /api/optimize-formula", s.OptimizeFormula)
	mux.HandleFunc("POST /api/diagnose-error", s.DiagnoseError)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP backend listening on %s", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.Stop()
	}
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// A helper function to write standard JSON responses.
func (s *Server) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func (s *Server) httpError(w http.ResponseWriter, message string, code int) {
	s.respondJson(w, code, ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	s.respondJson(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Chat answers one conversation turn. Backend failures travel in the reply
// body with success=false.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req client.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.httpError(w, "message is required", http.StatusBadRequest)
		return
	}
	s.logger.LogTurn(req.ConversationID, "", len(req.Message), strings.HasPrefix(req.Message, "Current table content:"))

	reply, err := s.backend.Chat(r.Context(), req)
	if err != nil {
		log.Printf("chat %s: %v", req.ConversationID, err)
		s.httpError(w, "Failed to process message", http.StatusInternalServerError)
		return
	}
	s.respondJson(w, http.StatusOK, reply)
}

// decodeFormula reads a formula request and returns the named field.
func (s *Server) decodeFormula(w http.ResponseWriter, r *http.Request, field string) (string, bool) {
	if s.formulas == nil {
		s.httpError(w, "Formula assistant is not configured", http.StatusServiceUnavailable)
		return "", false
	}
	var req formulaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.httpError(w, "Invalid request body", http.StatusBadRequest)
		return "", false
	}
	value := req.Formula
	if field == "text" {
		value = req.Text
	}
	if strings.TrimSpace(value) == "" {
		s.httpError(w, field+" is required", http.StatusBadRequest)
		return "", false
	}
	return value, true
}

func (s *Server) formulaError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agent.ErrRefused), errors.Is(err, agent.ErrUnparseable):
		s.httpError(w, err.Error(), http.StatusInternalServerError)
	default:
		log.Printf("formula assistant: %v", err)
		s.httpError(w, "Model request failed", http.StatusBadGateway)
	}
}

func (s *Server) GenerateFormula(w http.ResponseWriter, r *http.Request) {
	text, ok := s.decodeFormula(w, r, "text")
	if !ok {
		return
	}
	formula, err := s.formulas.Generate(r.Context(), text)
	if err != nil {
		s.formulaError(w, err)
		return
	}
	s.respondJson(w, http.StatusOK, map[string]string{"formula": formula})
}

func (s *Server) ExplainFormula(w http.ResponseWriter, r *http.Request) {
	formula, ok := s.decodeFormula(w, r, "formula")
	if !ok {
		return
	}
	explanation, err := s.formulas.Explain(r.Context(), formula)
	if err != nil {
		s.formulaError(w, err)
		return
	}
	s.respondJson(w, http.StatusOK, map[string]string{"explanation": explanation})
}

func (s *Server) OptimizeFormula(w http.ResponseWriter, r *http.Request) {
	formula, ok := s.decodeFormula(w, r, "formula")
	if !ok {
		return
	}
	res, err := s.formulas.Optimize(r.Context(), formula)
	if err != nil {
		s.formulaError(w, err)
		return
	}
	s.respondJson(w, http.StatusOK, res)
}

func (s *Server) DiagnoseError(w http.ResponseWriter, r *http.Request) {
	formula, ok := s.decodeFormula(w, r, "formula")
	if !ok {
		return
	}
	res, err := s.formulas.Diagnose(r.Context(), formula)
	if err != nil {
		s.formulaError(w, err)
		return
	}
	s.respondJson(w, http.StatusOK, res)
}
