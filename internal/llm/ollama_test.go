package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestModelListed(t *testing.T) {
	tests := []struct {
		name   string
		model  string
		listed []string
		want   bool
	}{
		{"exact", "llama3.2:latest", []string{"llama3.2:latest"}, true},
		{"prefix before tag", "llama3.2", []string{"mistral:7b", "llama3.2:latest"}, true},
		{"latest suffix", "qwen2:latest", []string{"qwen2"}, true},
		{"other tag", "llama3.2", []string{"llama3.2:1b"}, true},
		{"different model", "llama3.2", []string{"llama3.1:latest"}, false},
		{"partial name", "llama", []string{"llama3.2:latest"}, false},
		{"empty list", "llama3.2", nil, false},
		{"empty model", "", []string{"llama3.2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ModelListed(tt.model, tt.listed); got != tt.want {
				t.Errorf("ModelListed(%q, %v) = %v, want %v", tt.model, tt.listed, got, tt.want)
			}
		})
	}
}

func newTestOllama(t *testing.T, url, model string) *OllamaProvider {
	t.Helper()
	p, err := NewOllamaProvider(BackendConfig{
		Name:        "local",
		Driver:      DriverOllama,
		Priority:    1,
		URL:         url,
		Model:       model,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	})
	if err != nil {
		t.Fatalf("NewOllamaProvider: %v", err)
	}
	return p
}

func TestOllamaProbe(t *testing.T) {
	tests := []struct {
		name      string
		model     string
		status    int
		body      string
		wantReach bool
		wantReady bool
	}{
		{"model listed", "llama3.2", 200, `{"models":[{"name":"llama3.2:latest","model":"llama3.2:latest"}]}`, true, true},
		{"model missing", "mistral", 200, `{"models":[{"name":"llama3.2:latest"}]}`, true, false},
		{"no models", "llama3.2", 200, `{"models":[]}`, true, false},
		{"server error", "llama3.2", 500, `oops`, false, false},
		{"malformed json", "llama3.2", 200, `{"models":`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/api/tags" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			h := newTestOllama(t, srv.URL, tt.model).Probe(context.Background())
			if h.Reachable != tt.wantReach || h.ModelReady != tt.wantReady {
				t.Errorf("Probe() = reachable %v ready %v, want %v %v (detail %q)",
					h.Reachable, h.ModelReady, tt.wantReach, tt.wantReady, h.Detail)
			}
		})
	}
}

func TestOllamaProbeOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	h := newTestOllama(t, url, "llama3.2").Probe(context.Background())
	if h.Reachable || h.ModelReady {
		t.Errorf("Probe() against closed server = %+v, want not reachable", h)
	}
	if h.Detail == "" {
		t.Error("expected a detail for an offline probe")
	}
}

func TestOllamaChat(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"### English\nhello"},"done":true}`))
	}))
	defer srv.Close()

	p := newTestOllama(t, srv.URL+"/", "llama3.2")
	text, err := p.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "translate"},
		{Role: RoleUser, Content: "olá"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if text != "### English\nhello" {
		t.Errorf("Chat() = %q", text)
	}

	if got.Model != "llama3.2" || got.Stream {
		t.Errorf("request model=%q stream=%v", got.Model, got.Stream)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "olá" {
		t.Errorf("request messages = %+v", got.Messages)
	}
	if got.Options == nil || got.Options.NumPredict != DefaultMaxTokens || got.Options.Temperature != DefaultTemperature {
		t.Errorf("request options = %+v", got.Options)
	}
}

func TestOllamaChatProtocolErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{"non-200", 500, `{"error":"model crashed"}`, 500},
		{"not found", 404, `{"error":"model 'x' not found"}`, 404},
		{"missing message", 200, `{"done":true}`, 0},
		{"missing content", 200, `{"message":{"role":"assistant"},"done":true}`, 0},
		{"error field", 200, `{"error":"something broke"}`, 0},
		{"malformed", 200, `{"message":`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestOllama(t, srv.URL, "llama3.2").Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
			var protoErr *ProtocolError
			if !errors.As(err, &protoErr) {
				t.Fatalf("Chat() error = %v, want *ProtocolError", err)
			}
			if protoErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", protoErr.StatusCode, tt.wantStatus)
			}
			if kind := ClassifyError(err, nil); kind != FailureProtocol {
				t.Errorf("ClassifyError() = %s, want %s", kind, FailureProtocol)
			}
		})
	}
}

func TestOllamaChatEmptyContentIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":""},"done":true}`))
	}))
	defer srv.Close()

	text, err := newTestOllama(t, srv.URL, "llama3.2").Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat() error = %v, want nil", err)
	}
	if text != "" {
		t.Errorf("Chat() = %q, want empty", text)
	}
}

func TestOllamaChatUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestOllama(t, url, "llama3.2").Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if kind := ClassifyError(err, nil); kind != FailureUnreachable {
		t.Errorf("ClassifyError(%v) = %s, want %s", err, kind, FailureUnreachable)
	}
}

func TestNewOllamaProviderRequiresURL(t *testing.T) {
	if _, err := NewOllamaProvider(BackendConfig{Name: "local", Driver: DriverOllama, Model: "llama3.2"}); err == nil {
		t.Error("expected error for empty URL")
	}
}

func TestOllamaZeroTemperatureIsSent(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"ok"},"done":true}`))
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(BackendConfig{Name: "local", Driver: DriverOllama, URL: srv.URL, Model: "llama3.2"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "oi"}}); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	opts, _ := raw["options"].(map[string]any)
	if temp, ok := opts["temperature"]; !ok || temp != float64(0) {
		t.Errorf("options = %v, want temperature 0", raw["options"])
	}
}
