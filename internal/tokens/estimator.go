// Package tokens provides token estimation utilities using tiktoken.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	. "github.com/roelfdiedericks/linguaclaw/internal/logging"
)

// DefaultEncoding is cl100k_base; close enough for the chat models we talk to
const DefaultEncoding = "cl100k_base"

// MessageOverhead approximates the per-message framing tokens (role, separators)
const MessageOverhead = 4

// Counter counts tokens in a string.
type Counter interface {
	Count(text string) int
}

// Estimator provides token estimation using tiktoken.
// The zero value falls back to chars/4.
type Estimator struct {
	encoding *tiktoken.Tiktoken
	mu       sync.Mutex
}

var (
	globalEstimator     *Estimator
	globalEstimatorOnce sync.Once
)

// Get returns the global token estimator, loading the encoding on first use.
func Get() *Estimator {
	globalEstimatorOnce.Do(func() {
		var err error
		globalEstimator, err = New()
		if err != nil {
			L_warn("tokens: failed to load encoding, using char estimate", "error", err)
			globalEstimator = &Estimator{}
		}
	})
	return globalEstimator
}

// Shared returns a Counter backed by Get. The encoding is loaded on the
// first Count, not when Shared is called.
func Shared() Counter {
	return sharedCounter{}
}

type sharedCounter struct{}

func (sharedCounter) Count(text string) int {
	return Get().Count(text)
}

// New creates a new token estimator
func New() (*Estimator, error) {
	enc, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, err
	}
	return &Estimator{encoding: enc}, nil
}

// Count returns the token count for a string.
func (e *Estimator) Count(text string) int {
	if e == nil || e.encoding == nil {
		return (len(text) + 3) / 4
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.encoding.Encode(text, nil, nil))
}

// CountMessages sums Count over contents plus MessageOverhead per message.
func CountMessages(c Counter, contents ...string) int {
	total := 0
	for _, content := range contents {
		total += c.Count(content) + MessageOverhead
	}
	return total
}
