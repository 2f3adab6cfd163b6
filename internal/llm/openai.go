package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	. "github.com/roelfdiedericks/linguaclaw/internal/logging"
	. "github.com/roelfdiedericks/linguaclaw/internal/metrics"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultGroqBaseURL is Groq's OpenAI-compatible endpoint
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
	DefaultGroqModel   = "openai/gpt-oss-20b"

	defaultOpenAITimeout = 60 * time.Second
)

// OpenAIProvider implements the Provider interface for OpenAI-compatible
// chat completion APIs (Groq by default).
type OpenAIProvider struct {
	name         string
	client       *openai.Client
	model        string
	priority     int
	temperature  float32
	maxTokens    int
	apiKey       string
	baseURL      string
	metricPrefix string // e.g., "llm/openai/groq/openai/gpt-oss-20b"

	// Captures response bodies when trace is enabled
	transport *CapturingTransport
}

// NewOpenAIProvider creates a new OpenAI-compatible provider from BackendConfig.
// An empty API key is allowed: the provider then reports itself unconfigured.
func NewOpenAIProvider(cfg BackendConfig) (*OpenAIProvider, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultGroqBaseURL
	}
	// Ensure the URL ends with /v1 for OpenAI-compatible APIs
	if !strings.HasSuffix(baseURL, "/v1") && !strings.HasSuffix(baseURL, "/v1/") {
		baseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = baseURL

	var transport *CapturingTransport
	var rt http.RoundTripper = http.DefaultTransport
	if cfg.Trace {
		transport = &CapturingTransport{Base: http.DefaultTransport}
		rt = transport
	}
	config.HTTPClient = &http.Client{
		Transport: rt,
		Timeout:   secondsOr(cfg.TimeoutSeconds, defaultOpenAITimeout),
	}

	p := &OpenAIProvider{
		name:         cfg.Name,
		client:       openai.NewClientWithConfig(config),
		model:        cfg.Model,
		priority:     cfg.Priority,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		metricPrefix: fmt.Sprintf("llm/%s/%s/%s", DriverOpenAI, cfg.Name, cfg.Model),
		transport:    transport,
	}

	L_debug("openai provider created", "name", p.name, "baseURL", baseURL, "model", p.model,
		"maxTokens", p.maxTokens, "hasKey", p.apiKey != "", "trace", cfg.Trace)
	return p, nil
}

// Name returns the provider instance name
func (p *OpenAIProvider) Name() string { return p.name }

// Type returns the provider type
func (p *OpenAIProvider) Type() string { return DriverOpenAI }

// Model returns the configured model name
func (p *OpenAIProvider) Model() string { return p.model }

// Priority returns the dispatch priority
func (p *OpenAIProvider) Priority() int { return p.priority }

// BaseURL returns the API base URL
func (p *OpenAIProvider) BaseURL() string { return p.baseURL }

// Configured is true when an API key is set
func (p *OpenAIProvider) Configured() bool {
	return p.apiKey != "" && p.model != ""
}

// Probe reports the hosted backend ready iff it is configured. No network
// call is made: the endpoint is assumed up and failures surface on invoke.
func (p *OpenAIProvider) Probe(ctx context.Context) Health {
	if !p.Configured() {
		return Health{Detail: "no API key"}
	}
	return Health{Reachable: true, ModelReady: true}
}

// Chat sends one non-streaming chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if !p.Configured() {
		return "", ErrUnavailable{Provider: p.name, Reason: "no API key"}
	}

	startTime := time.Now()
	text, err := p.chat(ctx, messages)
	MetricDuration(p.metricPrefix, "request", time.Since(startTime))
	if err != nil {
		MetricFailWithReason(p.metricPrefix, "request_status", string(ClassifyError(err, nil)))
		return "", err
	}
	MetricSuccess(p.metricPrefix, "request_status")
	return text, nil
}

func (p *OpenAIProvider) chat(ctx context.Context, messages []Message) (string, error) {
	startTime := time.Now()

	openaiMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		openaiMessages = append(openaiMessages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    openaiMessages,
		Temperature: p.requestTemperature(),
		MaxTokens:   p.maxTokens,
	}

	L_debug("llm: request started", "provider", p.name, "model", p.model, "messages", len(openaiMessages))

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", p.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		L_error("openai: response has no choices", "provider", p.name, "model", p.model, "id", resp.ID)
		return "", &ProtocolError{Provider: p.name, Detail: p.withCapture("no choices in response")}
	}

	text := resp.Choices[0].Message.Content
	L_debug("llm: request completed", "provider", p.name,
		"duration", time.Since(startTime).Round(time.Millisecond),
		"responseChars", len(text),
		"promptTokens", resp.Usage.PromptTokens,
		"completionTokens", resp.Usage.CompletionTokens,
		"finishReason", resp.Choices[0].FinishReason)
	return text, nil
}

// requestTemperature returns the temperature to send. go-openai omits a zero
// temperature from the request, which lets the server apply its own default,
// so zero is sent as the smallest positive float32 instead.
func (p *OpenAIProvider) requestTemperature() float32 {
	if p.temperature == 0 {
		return math.SmallestNonzeroFloat32
	}
	return p.temperature
}

// wrapError turns HTTP-level API failures into ProtocolError. Transport
// errors are returned wrapped as-is so they classify as unreachable.
func (p *OpenAIProvider) wrapError(err error) error {
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		L_error("openai: request failed (APIError)",
			"provider", p.name,
			"model", p.model,
			"statusCode", apiErr.HTTPStatusCode,
			"code", apiErr.Code,
			"message", apiErr.Message,
			"type", apiErr.Type,
		)
		return &ProtocolError{
			Provider:   p.name,
			StatusCode: apiErr.HTTPStatusCode,
			Detail:     p.withCapture(apiErr.Message),
			Err:        err,
		}
	case errors.As(err, &reqErr):
		L_error("openai: request failed (RequestError)",
			"provider", p.name,
			"model", p.model,
			"statusCode", reqErr.HTTPStatusCode,
			"error", reqErr.Error(),
		)
		return &ProtocolError{
			Provider:   p.name,
			StatusCode: reqErr.HTTPStatusCode,
			Detail:     p.withCapture(reqErr.Error()),
			Err:        err,
		}
	default:
		L_error("openai: request failed", "provider", p.name, "model", p.model, "error", err)
		return fmt.Errorf("%s: %w", p.name, err)
	}
}

// withCapture appends the captured response body excerpt, if tracing
func (p *OpenAIProvider) withCapture(detail string) string {
	if p.transport == nil {
		return detail
	}
	_, body, status, _ := p.transport.LastCapture()
	if len(body) == 0 {
		return detail
	}
	return fmt.Sprintf("%s (status %d, body: %s)", detail, status, truncate(string(body), maxErrorBody))
}
