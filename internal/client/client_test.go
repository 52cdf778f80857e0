package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agent/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if req.Message != "hi" || req.ConversationID != "conv_1" {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"response":"ok","excel_operations":[{"operation_type":"read_range","description":"read","js_code":"Excel.run(async (context) => {});"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "tok")
	reply, err := c.Chat(context.Background(), ChatRequest{Message: "hi", ConversationID: "conv_1"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !reply.Success || reply.Response != "ok" {
		t.Errorf("reply = %+v", reply)
	}
	if len(reply.Operations) != 1 || reply.Operations[0].Kind != "read_range" {
		t.Errorf("operations = %+v", reply.Operations)
	}
}

func TestClient_ChatErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"unauthorized", http.StatusUnauthorized, func(t *testing.T, err error) {
			if !errors.Is(err, ErrUnauthorized) {
				t.Errorf("error = %v, want ErrUnauthorized", err)
			}
		}},
		{"server error", http.StatusBadGateway, func(t *testing.T, err error) {
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadGateway {
				t.Errorf("error = %v, want HTTPError 502", err)
			}
			if errors.Is(err, ErrUnauthorized) {
				t.Error("502 must not look like an auth failure")
			}
		}},
		{"forbidden", http.StatusForbidden, func(t *testing.T, err error) {
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusForbidden {
				t.Errorf("error = %v, want HTTPError 403", err)
			}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer srv.Close()

			_, err := New(srv.URL, "").Chat(context.Background(), ChatRequest{Message: "x"})
			if err == nil {
				t.Fatal("expected error")
			}
			tc.check(t, err)
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url, "").Chat(context.Background(), ChatRequest{Message: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) || errors.Is(err, ErrUnauthorized) {
		t.Errorf("network failure misclassified: %v", err)
	}
}
