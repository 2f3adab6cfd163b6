package llm

import (
	"context"
	"time"
)

// Role of a conversation message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message represents a conversation message (provider-agnostic).
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Health is the result of a single probe. It is computed fresh on every call
// and never cached.
type Health struct {
	Reachable  bool
	ModelReady bool
	Detail     string   // Human-readable reason when not ready
	Models     []string // Models advertised by the backend, if it lists them
}

// Ready reports whether the backend may be invoked
func (h Health) Ready() bool {
	return h.Reachable && h.ModelReady
}

// Provider is the interface for a single inference backend.
// Implementations: OpenAIProvider (hosted), OllamaProvider (self-hosted)
type Provider interface {
	// Identity
	Name() string  // Backend instance name from config (e.g., "groq", "ollama")
	Type() string  // Driver (e.g., "openai", "ollama")
	Model() string // Configured model name
	Priority() int // Lower is tried first

	// Configured reports whether the backend has everything it needs to be
	// invoked (credentials, endpoint, model). No network access.
	Configured() bool

	// Probe checks reachability and model readiness. It never returns an
	// error: every failure is folded into Health.
	Probe(ctx context.Context) Health

	// Chat sends the conversation and returns the assistant text.
	// Exactly one request per call, no retries.
	Chat(ctx context.Context, messages []Message) (string, error)
}

func secondsOr(seconds int, def time.Duration) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return def
}
