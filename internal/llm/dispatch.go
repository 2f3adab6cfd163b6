package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	. "github.com/roelfdiedericks/linguaclaw/internal/logging"
	"github.com/roelfdiedericks/linguaclaw/internal/metrics"
)

const dispatchMetricTopic = "dispatch"

// Attempt records what happened to one backend during a dispatch.
// Invoked=false means the backend was skipped and Kind is the skip reason.
type Attempt struct {
	Backend  string
	Invoked  bool
	Kind     FailureKind // Empty on success
	Detail   string
	Duration time.Duration
}

// DispatchResult is a successful dispatch
type DispatchResult struct {
	Text       string
	Backend    string    // Backend that produced Text
	FailedOver bool      // True if not the first backend in priority order
	Attempts   []Attempt // Every backend considered, including the winner
}

// DispatchError is returned when no backend produced a completion.
type DispatchError struct {
	Attempts []Attempt
	Err      error // Context error if the dispatch was cut short
}

// NoneReady is true when no backend was ever invoked: nothing was configured
// or every fallback failed its probe.
func (e *DispatchError) NoneReady() bool {
	for _, a := range e.Attempts {
		if a.Invoked {
			return false
		}
	}
	return true
}

func (e *DispatchError) Error() string {
	var b strings.Builder
	if e.NoneReady() {
		b.WriteString("no backend configured or ready")
	} else {
		b.WriteString("all configured backends failed")
	}
	for i, a := range e.Attempts {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		verb := "skipped"
		if a.Invoked {
			verb = "failed"
		}
		fmt.Fprintf(&b, "%s %s (%s)", a.Backend, verb, a.Kind)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// DispatcherOptions customizes a Dispatcher. Zero values select defaults.
type DispatcherOptions struct {
	Classifier Classifier       // Defaults to ClassifyMessage
	Metrics    *metrics.Manager // Defaults to the process-wide manager
}

// Dispatcher sends a conversation to the first backend that answers.
// The primary (first by priority) is invoked without a probe; every later
// backend is probed first and invoked only if reachable with its model ready.
// Each backend is attempted at most once per dispatch.
type Dispatcher struct {
	providers []Provider
	classify  Classifier
	metrics   *metrics.Manager
}

// NewDispatcher creates a dispatcher over providers, ordered by ascending
// priority (ties keep the given order).
func NewDispatcher(providers []Provider, opts DispatcherOptions) *Dispatcher {
	ordered := make([]Provider, len(providers))
	copy(ordered, providers)
	SortByPriority(ordered)

	d := &Dispatcher{
		providers: ordered,
		classify:  opts.Classifier,
		metrics:   opts.Metrics,
	}
	if d.classify == nil {
		d.classify = ClassifyMessage
	}
	if d.metrics == nil {
		d.metrics = metrics.GetInstance()
	}

	names := make([]string, len(ordered))
	for i, p := range ordered {
		names[i] = p.Name()
	}
	L_debug("dispatch: dispatcher created", "backends", names)
	return d
}

// Providers returns the backends in dispatch order
func (d *Dispatcher) Providers() []Provider {
	out := make([]Provider, len(d.providers))
	copy(out, d.providers)
	return out
}

// Dispatch runs one fallback pass over the backends and returns the first
// success. On failure the error is a *DispatchError carrying every attempt.
func (d *Dispatcher) Dispatch(ctx context.Context, conversation []Message) (*DispatchResult, error) {
	start := time.Now()
	attempts := make([]Attempt, 0, len(d.providers))

	for i, p := range d.providers {
		if err := ctx.Err(); err != nil {
			L_warn("dispatch: cancelled", "remaining", len(d.providers)-i, "error", err)
			d.metrics.RecordOutcome(dispatchMetricTopic, "result", "cancelled")
			return nil, &DispatchError{Attempts: attempts, Err: err}
		}

		primary := i == 0
		attempt, res, ok := d.try(ctx, p, primary, conversation)
		attempts = append(attempts, attempt)
		if !ok {
			continue
		}

		result := &DispatchResult{
			Text:       res.Text,
			Backend:    p.Name(),
			FailedOver: !primary,
			Attempts:   attempts,
		}
		if result.FailedOver {
			L_info("dispatch: using fallback backend", "backend", p.Name(), "primary", d.providers[0].Name())
			d.metrics.RecordOutcome(dispatchMetricTopic, "result", "fallback")
		} else {
			d.metrics.RecordOutcome(dispatchMetricTopic, "result", "primary")
		}
		d.metrics.RecordDuration(dispatchMetricTopic, "total", time.Since(start))
		return result, nil
	}

	dErr := &DispatchError{Attempts: attempts}
	if err := ctx.Err(); err != nil {
		// Cancelled while the last backend was running
		dErr.Err = err
		L_warn("dispatch: cancelled", "remaining", 0, "error", err)
		d.metrics.RecordOutcome(dispatchMetricTopic, "result", "cancelled")
		return nil, dErr
	}
	if dErr.NoneReady() {
		L_error("dispatch: no backend configured or ready", "attempts", len(attempts))
		d.metrics.RecordOutcome(dispatchMetricTopic, "result", "none_ready")
	} else {
		L_error("dispatch: all backends failed", "attempts", len(attempts))
		d.metrics.RecordOutcome(dispatchMetricTopic, "result", "all_failed")
	}
	d.metrics.RecordDuration(dispatchMetricTopic, "total", time.Since(start))
	return nil, dErr
}

// try handles one backend: skip checks, optional probe, then a single invoke.
func (d *Dispatcher) try(ctx context.Context, p Provider, primary bool, conversation []Message) (Attempt, InvocationResult, bool) {
	name := p.Name()
	attempt := Attempt{Backend: name}

	if !p.Configured() {
		attempt.Kind = FailureNotConfigured
		attempt.Detail = "not configured"
		L_debug("dispatch: backend not configured, skipping", "backend", name)
		d.metrics.RecordFailure(dispatchMetricTopic+"/"+name, "attempt", string(FailureNotConfigured))
		return attempt, InvocationResult{}, false
	}

	if !primary {
		h := p.Probe(ctx)
		if !h.Ready() {
			attempt.Kind = FailureUnreachable
			if h.Reachable {
				attempt.Kind = FailureModelNotLoaded
			}
			attempt.Detail = h.Detail
			L_warn("dispatch: fallback not ready, skipping",
				"backend", name,
				"reachable", h.Reachable,
				"modelReady", h.ModelReady,
				"detail", h.Detail)
			d.metrics.RecordFailure(dispatchMetricTopic+"/"+name, "attempt", string(attempt.Kind))
			return attempt, InvocationResult{}, false
		}
	}

	res := Invoke(ctx, p, conversation, d.classify)
	attempt.Invoked = true
	attempt.Duration = res.Duration
	d.metrics.RecordDuration(dispatchMetricTopic+"/"+name, "invoke", res.Duration)

	if res.OK {
		d.metrics.RecordSuccess(dispatchMetricTopic+"/"+name, "attempt")
		return attempt, res, true
	}

	attempt.Kind = res.Kind
	attempt.Detail = truncate(res.Err.Error(), maxErrorBody)
	d.metrics.RecordFailure(dispatchMetricTopic+"/"+name, "attempt", string(res.Kind))
	L_warn("dispatch: trying next backend",
		"failed", name,
		"reason", res.Kind,
		"error", res.Err)
	return attempt, res, false
}
