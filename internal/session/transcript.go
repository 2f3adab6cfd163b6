package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/roelfdiedericks/linguaclaw/internal/llm"
)

var (
	// ErrEmptyContent is returned when appending a message with no content
	ErrEmptyContent = errors.New("message content is empty")

	// ErrInvalidRole is returned for roles other than user and assistant
	ErrInvalidRole = errors.New("invalid message role")
)

// Entry is a message plus the time it was appended
type Entry struct {
	llm.Message
	At time.Time
}

// Transcript is the append-only dialogue history of one session.
// Messages are never edited, removed, or reordered.
type Transcript struct {
	entries []Entry
	mu      sync.RWMutex
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{entries: make([]Entry, 0, 16)}
}

// Append adds a message to the end of the transcript. System messages are
// rejected: the instruction prompt is supplied per call by AsConversation.
func (t *Transcript) Append(m llm.Message) error {
	if strings.TrimSpace(m.Content) == "" {
		return ErrEmptyContent
	}
	if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
		return fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{Message: m, At: time.Now()})
	return nil
}

// Len returns the number of messages
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Messages returns a copy of the messages in order
func (t *Transcript) Messages() []llm.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]llm.Message, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Message
	}
	return out
}

// Entries returns a copy of the timestamped entries in order
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Last returns the most recent message, if any
func (t *Transcript) Last() (llm.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.entries) == 0 {
		return llm.Message{}, false
	}
	return t.entries[len(t.entries)-1].Message, true
}

// AsConversation returns [system prompt] + transcript, freshly built on
// every call. An empty prompt yields the transcript alone.
func (t *Transcript) AsConversation(systemPrompt string) []llm.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]llm.Message, 0, len(t.entries)+1)
	if strings.TrimSpace(systemPrompt) != "" {
		out = append(out, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	for _, e := range t.entries {
		out = append(out, e.Message)
	}
	return out
}
