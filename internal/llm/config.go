package llm

import (
	"fmt"
	"strings"
)

// Drivers
const (
	DriverOpenAI = "openai" // OpenAI-compatible chat completions (Groq)
	DriverOllama = "ollama"
)

// Request defaults shared by both drivers
const (
	DefaultTemperature  float32 = 0.3
	DefaultMaxTokens            = 1024
	DefaultProbeTimeout         = 5 // seconds
)

// BackendConfig describes a single inference backend. It is built once from
// configuration and read-only afterwards.
type BackendConfig struct {
	Name                string  `json:"name" toml:"name" yaml:"name"`
	Driver              string  `json:"driver" toml:"driver" yaml:"driver"`       // "openai" or "ollama"
	Priority            int     `json:"priority" toml:"priority" yaml:"priority"` // Lower is tried first; 0 = primary
	APIKey              string  `json:"apiKey,omitempty" toml:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	BaseURL             string  `json:"baseURL,omitempty" toml:"baseURL,omitempty" yaml:"baseURL,omitempty"` // OpenAI-compatible endpoint
	URL                 string  `json:"url,omitempty" toml:"url,omitempty" yaml:"url,omitempty"`             // Ollama host
	Model               string  `json:"model" toml:"model" yaml:"model"`
	Temperature         float32 `json:"temperature" toml:"temperature" yaml:"temperature"`
	MaxTokens           int     `json:"maxTokens" toml:"maxTokens" yaml:"maxTokens"`
	TimeoutSeconds      int     `json:"timeoutSeconds" toml:"timeoutSeconds" yaml:"timeoutSeconds"`
	ProbeTimeoutSeconds int     `json:"probeTimeoutSeconds,omitempty" toml:"probeTimeoutSeconds,omitempty" yaml:"probeTimeoutSeconds,omitempty"`

	// Trace captures raw response bodies so protocol errors carry an excerpt
	Trace bool `json:"trace,omitempty" toml:"trace,omitempty" yaml:"trace,omitempty"`
}

// Validate checks the fields that cannot be defaulted
func (c BackendConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("backend name is required")
	}
	switch c.Driver {
	case DriverOpenAI, DriverOllama:
	default:
		return fmt.Errorf("backend %s: unknown driver %q", c.Name, c.Driver)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("backend %s: model is required", c.Name)
	}
	if c.TimeoutSeconds < 0 || c.ProbeTimeoutSeconds < 0 {
		return fmt.Errorf("backend %s: timeouts must not be negative", c.Name)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("backend %s: maxTokens must not be negative", c.Name)
	}
	return nil
}
