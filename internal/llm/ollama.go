package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	. "github.com/roelfdiedericks/linguaclaw/internal/logging"
	. "github.com/roelfdiedericks/linguaclaw/internal/metrics"
)

const (
	defaultOllamaTimeout = 300 * time.Second // large models can take minutes to load
	maxErrorBody         = 512
)

// OllamaProvider implements the Provider interface for a self-hosted Ollama server.
type OllamaProvider struct {
	name         string
	url          string
	model        string
	priority     int
	temperature  float32
	maxTokens    int
	probeTimeout time.Duration
	client       *http.Client
	metricPrefix string // e.g., "llm/ollama/local/llama3.2"
}

// ollamaTagsResponse is the response from /api/tags
type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// ollamaChatRequest is the request body for Ollama chat API
type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  *ollamaOptions      `json:"options,omitempty"`
}

// ollamaOptions carries sampling options
type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"` // Output token limit
}

// ollamaChatMessage represents a message in Ollama chat format
type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatResponse is the response from Ollama chat API.
// Content is a pointer so a missing field can be told apart from an empty one.
type ollamaChatResponse struct {
	Message *struct {
		Role    string  `json:"role"`
		Content *string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// NewOllamaProvider creates a new Ollama provider from BackendConfig.
func NewOllamaProvider(cfg BackendConfig) (*OllamaProvider, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("ollama URL not configured")
	}
	url := strings.TrimSuffix(strings.TrimSpace(cfg.URL), "/")

	timeout := secondsOr(cfg.TimeoutSeconds, defaultOllamaTimeout)
	p := &OllamaProvider{
		name:         cfg.Name,
		url:          url,
		model:        cfg.Model,
		priority:     cfg.Priority,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		probeTimeout: secondsOr(cfg.ProbeTimeoutSeconds, DefaultProbeTimeout*time.Second),
		client:       &http.Client{Timeout: timeout},
		metricPrefix: fmt.Sprintf("llm/%s/%s/%s", DriverOllama, cfg.Name, cfg.Model),
	}

	L_debug("ollama provider created", "name", p.name, "url", url, "model", p.model, "timeout", timeout)
	return p, nil
}

// Name returns the provider instance name
func (p *OllamaProvider) Name() string { return p.name }

// Type returns the provider type
func (p *OllamaProvider) Type() string { return DriverOllama }

// Model returns the configured model name
func (p *OllamaProvider) Model() string { return p.model }

// Priority returns the dispatch priority
func (p *OllamaProvider) Priority() int { return p.priority }

// URL returns the server base URL
func (p *OllamaProvider) URL() string { return p.url }

// Configured is true when a server URL and model are set. Reachability is
// the prober's job.
func (p *OllamaProvider) Configured() bool {
	return p.url != "" && p.model != ""
}

// Probe lists the server's models via /api/tags and checks that the configured
// model is among them. Every failure yields Reachable=false.
func (p *OllamaProvider) Probe(ctx context.Context) Health {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	h := p.probe(ctx)
	MetricDuration(p.metricPrefix, "probe", time.Since(start))
	switch {
	case h.Ready():
		MetricOutcome(p.metricPrefix, "probe", "ready")
	case h.Reachable:
		MetricOutcome(p.metricPrefix, "probe", string(FailureModelNotLoaded))
	default:
		MetricOutcome(p.metricPrefix, "probe", string(FailureUnreachable))
	}
	return h
}

func (p *OllamaProvider) probe(ctx context.Context) Health {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url+"/api/tags", nil)
	if err != nil {
		return Health{Detail: fmt.Sprintf("create request: %v", err)}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		L_debug("ollama: probe failed", "name", p.name, "url", p.url, "error", err)
		return Health{Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		L_debug("ollama: probe returned error", "name", p.name, "status", resp.StatusCode, "body", string(body))
		return Health{Detail: fmt.Sprintf("tags returned status %d", resp.StatusCode)}
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		L_debug("ollama: probe decode failed", "name", p.name, "error", err)
		return Health{Detail: fmt.Sprintf("decode tags: %v", err)}
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		if name != "" {
			names = append(names, name)
		}
	}

	h := Health{Reachable: true, Models: names}
	if ModelListed(p.model, names) {
		h.ModelReady = true
	} else {
		h.Detail = fmt.Sprintf("model %s is not pulled (have %d models)", p.model, len(names))
		L_debug("ollama: model not loaded", "name", p.name, "model", p.model, "available", names)
	}
	return h
}

// ModelListed reports whether model matches one of the listed names: exactly,
// by the listed name's prefix before the ':' tag, or as "<model>:latest".
func ModelListed(model string, listed []string) bool {
	if model == "" {
		return false
	}
	for _, name := range listed {
		if name == model {
			return true
		}
		if base, _, ok := strings.Cut(name, ":"); ok && base == model {
			return true
		}
		if name+":latest" == model {
			return true
		}
	}
	return false
}

// Chat sends the conversation to /api/chat without streaming.
func (p *OllamaProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	start := time.Now()
	text, err := p.chat(ctx, messages)
	MetricDuration(p.metricPrefix, "request", time.Since(start))
	if err != nil {
		MetricFailWithReason(p.metricPrefix, "request_status", string(ClassifyError(err, nil)))
		return "", err
	}
	MetricSuccess(p.metricPrefix, "request_status")
	return text, nil
}

func (p *OllamaProvider) chat(ctx context.Context, messages []Message) (string, error) {
	startTime := time.Now()

	chatMessages := make([]ollamaChatMessage, 0, len(messages))
	totalChars := 0
	for _, m := range messages {
		chatMessages = append(chatMessages, ollamaChatMessage{Role: string(m.Role), Content: m.Content})
		totalChars += len(m.Content)
	}

	reqBody := ollamaChatRequest{
		Model:    p.model,
		Messages: chatMessages,
		Stream:   false,
		Options: &ollamaOptions{
			Temperature: p.temperature,
			NumPredict:  p.maxTokens,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := p.url + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	L_debug("llm: request started", "provider", p.name, "model", p.model, "messages", len(chatMessages), "chars", totalChars)

	resp, err := p.client.Do(req)
	if err != nil {
		L_error("ollama: request failed", "name", p.name, "error", err)
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		L_error("ollama: request failed", "status", resp.StatusCode, "body", string(body))
		return "", &ProtocolError{Provider: p.name, StatusCode: resp.StatusCode, Detail: truncate(string(body), maxErrorBody)}
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		L_error("ollama: failed to decode response", "error", err)
		return "", &ProtocolError{Provider: p.name, Detail: "decode response", Err: err}
	}
	if result.Error != "" {
		return "", &ProtocolError{Provider: p.name, Detail: truncate(result.Error, maxErrorBody)}
	}
	if result.Message == nil || result.Message.Content == nil {
		return "", &ProtocolError{Provider: p.name, Detail: "missing message.content"}
	}

	responseText := *result.Message.Content
	L_debug("llm: request completed", "provider", p.name, "duration", time.Since(startTime).Round(time.Millisecond), "responseChars", len(responseText))
	return responseText, nil
}
