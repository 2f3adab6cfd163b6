package llm

import (
	"context"
	"strings"
	"time"

	. "github.com/roelfdiedericks/linguaclaw/internal/logging"
)

// InvocationResult is the outcome of one backend call. Either OK with Text,
// or a classified failure with Kind and the underlying Err.
type InvocationResult struct {
	Backend  string
	Text     string
	OK       bool
	Kind     FailureKind
	Err      error
	Duration time.Duration
}

// Invoke makes exactly one Chat call on p and classifies any failure.
// Provider errors never escape: they are folded into the result.
func Invoke(ctx context.Context, p Provider, conversation []Message, classify Classifier) InvocationResult {
	start := time.Now()
	text, err := p.Chat(ctx, conversation)
	res := InvocationResult{
		Backend:  p.Name(),
		Duration: time.Since(start),
	}

	if err != nil {
		res.Err = err
		res.Kind = ClassifyError(err, classify)
		L_debug("invoke: backend failed", "backend", p.Name(), "kind", res.Kind, "error", err)
		return res
	}

	if strings.TrimSpace(text) == "" {
		L_warn("invoke: backend returned empty content", "backend", p.Name(), "model", p.Model())
	}
	res.OK = true
	res.Text = text
	return res
}
