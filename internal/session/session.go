// Package session provides the in-memory conversation session.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/roelfdiedericks/linguaclaw/internal/llm"
	"github.com/roelfdiedericks/linguaclaw/internal/tokens"
)

// Session holds the conversation state for one interactive session.
// It is passed explicitly to every dispatch and discarded when the session ends.
type Session struct {
	ID         string
	StartedAt  time.Time
	Transcript *Transcript
}

// New creates a session with a fresh ID and an empty transcript
func New() *Session {
	return &Session{
		ID:         uuid.NewString(),
		StartedAt:  time.Now(),
		Transcript: NewTranscript(),
	}
}

// AddUserMessage appends a user turn
func (s *Session) AddUserMessage(content string) error {
	return s.Transcript.Append(llm.Message{Role: llm.RoleUser, Content: content})
}

// AddAssistantMessage appends an assistant turn
func (s *Session) AddAssistantMessage(content string) error {
	return s.Transcript.Append(llm.Message{Role: llm.RoleAssistant, Content: content})
}

// Stats summarizes a session
type Stats struct {
	ID                string
	Age               time.Duration
	Messages          int
	UserMessages      int
	AssistantMessages int
	Unanswered        int // User turns after the last assistant reply
	EstimatedTokens   int // Transcript only, excluding the system prompt
}

// Stats counts turns and estimates tokens with c (chars/4 if nil).
func (s *Session) Stats(c tokens.Counter) Stats {
	if c == nil {
		c = &tokens.Estimator{}
	}

	msgs := s.Transcript.Messages()
	st := Stats{
		ID:       s.ID,
		Age:      time.Since(s.StartedAt),
		Messages: len(msgs),
	}

	contents := make([]string, 0, len(msgs))
	for _, m := range msgs {
		contents = append(contents, m.Content)
		switch m.Role {
		case llm.RoleUser:
			st.UserMessages++
			st.Unanswered++
		case llm.RoleAssistant:
			st.AssistantMessages++
			st.Unanswered = 0
		}
	}
	st.EstimatedTokens = tokens.CountMessages(c, contents...)
	return st
}
