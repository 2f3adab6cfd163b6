// Package llm provides the inference backends and the fallback dispatcher.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode/utf8"
)

// FailureKind categorizes backend failures for fallback and user messaging decisions.
type FailureKind string

const (
	FailureRateLimited    FailureKind = "rate_limited"
	FailureUnreachable    FailureKind = "unreachable"
	FailureModelNotLoaded FailureKind = "model_not_loaded" // prober only
	FailureProtocol       FailureKind = "protocol_error"
	FailureUnknown        FailureKind = "unknown"

	// FailureNotConfigured is a skip reason, never produced by an invocation.
	FailureNotConfigured FailureKind = "not_configured"
)

// Classifier maps failure text to a FailureKind. It must be a pure function of its input.
type Classifier func(msg string) FailureKind

// Token sets for ClassifyMessage. These are heuristics over provider error
// text; any failure of the primary triggers fallback regardless of kind, so a
// misclassification only affects reporting.
var (
	rateLimitTokens = []string{"rate", "limit", "429", "quota"}

	unreachableTokens = []string{
		"connection refused",
		"connection reset",
		"no such host",
		"dial tcp",
		"network is unreachable",
		"no route to host",
		"timeout",
		"timed out",
		"deadline exceeded",
		"eof",
	}

	protocolTokens = []string{
		"status",
		"malformed",
		"missing",
		"decode",
		"unmarshal",
		"invalid character",
		"unexpected end of json",
		"no choices",
	}
)

// ClassifyMessage is the default Classifier. Matching is case-insensitive and
// checked in order: rate limit, connection failure, protocol failure.
func ClassifyMessage(msg string) FailureKind {
	if msg == "" {
		return FailureUnknown
	}
	lower := strings.ToLower(msg)

	if containsAny(lower, rateLimitTokens) {
		return FailureRateLimited
	}
	if containsAny(lower, unreachableTokens) {
		return FailureUnreachable
	}
	if containsAny(lower, protocolTokens) {
		return FailureProtocol
	}
	return FailureUnknown
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

// ClassifyError classifies err with the given classifier (ClassifyMessage if nil).
// A *ProtocolError stays a protocol failure unless its text shows a rate limit.
// When the text is inconclusive, context and network errors are unreachable.
func ClassifyError(err error, classify Classifier) FailureKind {
	if err == nil {
		return FailureUnknown
	}
	if classify == nil {
		classify = ClassifyMessage
	}

	kind := classify(err.Error())

	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		if kind == FailureRateLimited {
			return kind
		}
		return FailureProtocol
	}
	if kind != FailureUnknown {
		return kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureUnreachable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureUnreachable
	}
	var unavailable ErrUnavailable
	if errors.As(err, &unavailable) {
		return FailureUnreachable
	}
	return FailureUnknown
}

// ProtocolError is returned when a backend answers with a non-success status
// or a payload without the expected content field.
type ProtocolError struct {
	Provider   string
	StatusCode int    // 0 when the status was fine but the payload was not
	Detail     string // Response body excerpt or description of what was missing
	Err        error  // Underlying client error, if any
}

func (e *ProtocolError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: malformed response: %s", e.Provider, e.Detail)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ErrUnavailable is returned when a provider cannot be used at all
type ErrUnavailable struct {
	Provider string
	Reason   string
}

func (e ErrUnavailable) Error() string {
	if e.Reason != "" {
		return e.Provider + " is unavailable: " + e.Reason
	}
	return e.Provider + " is unavailable"
}

// DescribeFailure returns a short user-facing description of a failure kind.
func DescribeFailure(kind FailureKind) string {
	switch kind {
	case FailureRateLimited:
		return "rate limited or out of quota"
	case FailureUnreachable:
		return "unreachable"
	case FailureModelNotLoaded:
		return "model not available"
	case FailureProtocol:
		return "unexpected response"
	case FailureNotConfigured:
		return "not configured"
	default:
		return "unknown error"
	}
}

// truncate shortens s to at most n bytes for log and error excerpts. The
// cut lands on a rune boundary, and bytes of a rune already split upstream
// (a body read through io.LimitReader) are dropped.
func truncate(s string, n int) string {
	s = strings.TrimSpace(strings.ToValidUTF8(s, ""))
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
