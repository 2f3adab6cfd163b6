package commands

import (
	"github.com/roelfdiedericks/linguaclaw/internal/llm"
	"github.com/roelfdiedericks/linguaclaw/internal/metrics"
	"github.com/roelfdiedericks/linguaclaw/internal/session"
	"github.com/roelfdiedericks/linguaclaw/internal/tokens"
)

// SessionProvider gives commands access to the running console
type SessionProvider interface {
	// Session returns the current session
	Session() *session.Session

	// ResetSession discards the current session and returns a fresh one
	ResetSession() *session.Session

	// Backends returns the configured backends in dispatch order
	Backends() []llm.Provider

	// MetricsSnapshot returns the recorded dispatch metrics
	MetricsSnapshot() []metrics.Snapshot

	// TokenCounter is used for /stats estimates; nil means chars/4
	TokenCounter() tokens.Counter
}

// CommandResult contains the result of a command execution
type CommandResult struct {
	Text  string // Plain text output
	Error error  // Error if command failed
	Quit  bool   // Caller should end the session loop
}

// BackendStatus is one row of /backends
type BackendStatus struct {
	Name       string
	Driver     string
	Model      string
	Role       string // "primary" or "fallback"
	Configured bool
	Health     llm.Health
}
