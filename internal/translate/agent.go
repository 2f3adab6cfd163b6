package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/roelfdiedericks/linguaclaw/internal/llm"
	. "github.com/roelfdiedericks/linguaclaw/internal/logging"
	. "github.com/roelfdiedericks/linguaclaw/internal/metrics"
	"github.com/roelfdiedericks/linguaclaw/internal/session"
)

// ErrEmptyInput is returned by Submit for blank user text
var ErrEmptyInput = errors.New("nothing to translate")

// Dispatcher is the part of llm.Dispatcher the agent needs
type Dispatcher interface {
	Dispatch(ctx context.Context, conversation []llm.Message) (*llm.DispatchResult, error)
}

// Reply is one successful translation turn
type Reply struct {
	Markdown   string
	Backend    string
	FailedOver bool
	Attempts   []llm.Attempt
	Sections   []string // Level-3 headings found in Markdown
	Duration   time.Duration
}

// MissingSections returns the expected language headings the reply lacks
func (r *Reply) MissingSections() []string {
	return MissingSections(r.Sections)
}

// Agent sends user text through the dispatcher with the instruction prompt
// and keeps the session transcript in step.
type Agent struct {
	dispatcher   Dispatcher
	mu           sync.RWMutex
	systemPrompt string
}

// NewAgent creates an agent. An empty prompt selects DefaultSystemPrompt.
func NewAgent(d Dispatcher, systemPrompt string) *Agent {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Agent{dispatcher: d, systemPrompt: systemPrompt}
}

// SystemPrompt returns the prompt prepended to every dispatch
func (a *Agent) SystemPrompt() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.systemPrompt
}

// SetSystemPrompt replaces the prompt for later submissions. An empty
// prompt restores DefaultSystemPrompt.
func (a *Agent) SetSystemPrompt(prompt string) {
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultSystemPrompt
	}
	a.mu.Lock()
	a.systemPrompt = prompt
	a.mu.Unlock()
}

// Submit translates text within sess. The user turn is appended before
// dispatch and stays in the transcript even if every backend fails; the
// assistant turn is appended only on success.
func (a *Agent) Submit(ctx context.Context, sess *session.Session, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	if err := sess.AddUserMessage(text); err != nil {
		return nil, fmt.Errorf("record user turn: %w", err)
	}

	start := time.Now()
	L_debug("translate: submitting", "session", sess.ID, "turns", sess.Transcript.Len(), "chars", len(text))

	res, err := a.dispatcher.Dispatch(ctx, sess.Transcript.AsConversation(a.SystemPrompt()))
	if err != nil {
		MetricOutcome("translate", "submit", "failed")
		L_error("translate: dispatch failed", "session", sess.ID, "error", err)
		return nil, fmt.Errorf("translate: %w", err)
	}

	reply := &Reply{
		Markdown:   res.Text,
		Backend:    res.Backend,
		FailedOver: res.FailedOver,
		Attempts:   res.Attempts,
		Duration:   time.Since(start),
	}

	if strings.TrimSpace(res.Text) == "" {
		// Transcript rejects empty turns; the user turn stays unanswered
		L_warn("translate: empty reply not recorded", "backend", res.Backend)
		MetricOutcome("translate", "submit", "empty")
		return reply, nil
	}

	if err := sess.AddAssistantMessage(res.Text); err != nil {
		return nil, fmt.Errorf("record assistant turn: %w", err)
	}

	reply.Sections = SectionHeadings(res.Text)
	if missing := reply.MissingSections(); len(missing) > 0 {
		L_warn("translate: reply is missing sections", "backend", res.Backend, "missing", missing)
		MetricOutcome("translate", "submit", "incomplete")
	} else {
		MetricOutcome("translate", "submit", "ok")
	}
	L_elapsed(start, "translate: reply ready", "backend", res.Backend, "failedOver", res.FailedOver)
	return reply, nil
}
