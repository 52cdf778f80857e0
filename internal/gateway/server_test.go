package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rahul/gridpilot/internal/agent"
	"github.com/rahul/gridpilot/internal/client"
	"github.com/rahul/gridpilot/internal/extract"
)

type stubBackend struct {
	got   client.ChatRequest
	reply *client.ChatReply
	err   error
}

func (b *stubBackend) Chat(ctx context.Context, req client.ChatRequest) (*client.ChatReply, error) {
	b.got = req
	return b.reply, b.err
}

type stubFormulas struct {
	err error
}

func (f *stubFormulas) Generate(ctx context.Context, text string) (string, error) {
	return "=SUM(A1:A3)", f.err
}

func (f *stubFormulas) Explain(ctx context.Context, formula string) (string, error) {
	return "Adds things.", f.err
}

func (f *stubFormulas) Optimize(ctx context.Context, formula string) (*agent.Optimization, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &agent.Optimization{OriginalFormula: formula, SuggestedFormula: "=A1", Explanation: "shorter"}, nil
}

func (f *stubFormulas) Diagnose(ctx context.Context, formula string) (*agent.Diagnosis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &agent.Diagnosis{ErrorType: "#REF!", Explanation: "gone", SuggestedFix: "=A1"}, nil
}

func TestServer_ChatRoundTrip(t *testing.T) {
	op := extract.Operation{Kind: "read_range", Description: "Read A1", Snippet: "Excel.run(async (context) => {});"}
	backend := &stubBackend{reply: &client.ChatReply{Success: true, Response: "ok", Operations: []extract.Operation{op}}}
	ts := httptest.NewServer(NewServer("", backend, nil, nil).Routes())
	defer ts.Close()

	c := client.New(ts.URL, "token")
	reply, err := c.Chat(context.Background(), client.ChatRequest{Message: "hi", ConversationID: "conv_1"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !reply.Success || reply.Response != "ok" || len(reply.Operations) != 1 || reply.Operations[0] != op {
		t.Errorf("reply = %+v", reply)
	}
	if backend.got.ConversationID != "conv_1" {
		t.Errorf("backend got %+v", backend.got)
	}
}

func TestServer_Endpoints(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		formulas       *stubFormulas
		backendErr     error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Healthz",
			method:         http.MethodGet,
			path:           "/healthz",
			expectedStatus: http.StatusOK,
			expectedBody:   "healthy",
		},
		{
			name:           "Chat Empty Message",
			method:         http.MethodPost,
			path:           "/agent/chat",
			body:           `{"message":"  "}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "message is required",
		},
		{
			name:           "Chat Bad JSON",
			method:         http.MethodPost,
			path:           "/agent/chat",
			body:           `{`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Chat Backend Failure",
			method:         http.MethodPost,
			path:           "/agent/chat",
			body:           `{"message":"hi"}`,
			backendErr:     errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "Chat Wrong Method",
			method:         http.MethodGet,
			path:           "/agent/chat",
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "Generate Formula",
			method:         http.MethodPost,
			path:           "/api/generate-formula",
			body:           `{"text":"sum A1 to A3"}`,
			formulas:       &stubFormulas{},
			expectedStatus: http.StatusOK,
			expectedBody:   `"formula":"=SUM(A1:A3)"`,
		},
		{
			name:           "Generate Refused",
			method:         http.MethodPost,
			path:           "/api/generate-formula",
			body:           `{"text":"make coffee"}`,
			formulas:       &stubFormulas{err: agent.ErrRefused},
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "Explain Missing Formula",
			method:         http.MethodPost,
			path:           "/api/explain-formula",
			body:           `{}`,
			formulas:       &stubFormulas{},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "formula is required",
		},
		{
			name:           "Optimize",
			method:         http.MethodPost,
			path:           "/api/optimize-formula",
			body:           `{"formula":"=A1+0"}`,
			formulas:       &stubFormulas{},
			expectedStatus: http.StatusOK,
			expectedBody:   `"suggested_formula":"=A1"`,
		},
		{
			name:           "Diagnose Model Down",
			method:         http.MethodPost,
			path:           "/api/diagnose-error",
			body:           `{"formula":"=A1/0"}`,
			formulas:       &stubFormulas{err: errors.New("timeout")},
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:           "Formulas Not Configured",
			method:         http.MethodPost,
			path:           "/api/diagnose-error",
			body:           `{"formula":"=A1/0"}`,
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &stubBackend{reply: &client.ChatReply{Success: true}, err: tt.backendErr}
			var formulas Formulas
			if tt.formulas != nil {
				formulas = tt.formulas
			}
			h := NewServer("", backend, formulas, nil).Routes()

			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tt.expectedStatus)
			}
			if tt.expectedBody != "" && !strings.Contains(rr.Body.String(), tt.expectedBody) {
				t.Errorf("body %q does not contain %q", rr.Body.String(), tt.expectedBody)
			}
			if rr.Code >= 400 && rr.Code != http.StatusMethodNotAllowed {
				var e ErrorResponse
				if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil || e.Code == "" {
					t.Errorf("error body = %q", rr.Body.String())
				}
			}
		})
	}
}
