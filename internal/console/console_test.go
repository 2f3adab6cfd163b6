package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/roelfdiedericks/linguaclaw/internal/llm"
	"github.com/roelfdiedericks/linguaclaw/internal/metrics"
	"github.com/roelfdiedericks/linguaclaw/internal/session"
	"github.com/roelfdiedericks/linguaclaw/internal/translate"
)

// fakeAgent records submissions and answers from a script
type fakeAgent struct {
	replies []string
	err     error

	submitted []string
	sessions  []*session.Session
}

func (f *fakeAgent) Submit(ctx context.Context, sess *session.Session, text string) (*translate.Reply, error) {
	f.submitted = append(f.submitted, text)
	f.sessions = append(f.sessions, sess)
	_ = sess.AddUserMessage(text)
	if f.err != nil {
		return nil, f.err
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	_ = sess.AddAssistantMessage(reply)
	return &translate.Reply{Markdown: reply, Backend: "groq"}, nil
}

type offlineBackend struct{ name string }

func (b offlineBackend) Name() string                                        { return b.name }
func (b offlineBackend) Type() string                                        { return "openai" }
func (b offlineBackend) Model() string                                       { return "m" }
func (b offlineBackend) Priority() int                                       { return 0 }
func (b offlineBackend) Configured() bool                                    { return false }
func (b offlineBackend) Probe(ctx context.Context) llm.Health                { return llm.Health{} }
func (b offlineBackend) Chat(context.Context, []llm.Message) (string, error) { return "", nil }

func runConsole(t *testing.T, input string, agent Submitter, backends ...llm.Provider) (string, *Console) {
	t.Helper()
	var out bytes.Buffer
	c := New(Options{
		In:       strings.NewReader(input),
		Out:      &out,
		Agent:    agent,
		Backends: backends,
		Metrics:  metrics.NewManager(),
		Theme:    PlainTheme(),
	})
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String(), c
}

func TestConsoleTranslates(t *testing.T) {
	agent := &fakeAgent{replies: []string{"### English\nHello"}}
	out, c := runConsole(t, "  olá  \n\n\n", agent)

	if len(agent.submitted) != 1 || agent.submitted[0] != "olá" {
		t.Errorf("submitted = %q", agent.submitted)
	}
	if !strings.Contains(out, "English\nHello\n\nvia groq") {
		t.Errorf("output missing rendered reply:\n%s", out)
	}
	if strings.Count(out, PromptLabel) != 4 {
		t.Errorf("prompt count = %d, want 4:\n%s", strings.Count(out, PromptLabel), out)
	}
	if c.Session().Transcript.Len() != 2 {
		t.Errorf("transcript len = %d", c.Session().Transcript.Len())
	}
}

func TestConsoleFailureDoesNotEndSession(t *testing.T) {
	agent := &fakeAgent{err: &llm.DispatchError{Attempts: []llm.Attempt{
		{Backend: "groq", Kind: llm.FailureNotConfigured},
		{Backend: "ollama", Kind: llm.FailureUnreachable},
	}}}
	out, _ := runConsole(t, "one\ntwo\n", agent)

	if len(agent.submitted) != 2 {
		t.Errorf("submitted = %q, want both lines", agent.submitted)
	}
	if strings.Count(out, translate.MsgNoneReady) != 2 {
		t.Errorf("output:\n%s", out)
	}
}

func TestConsoleCancelledSubmit(t *testing.T) {
	agent := &fakeAgent{err: &llm.DispatchError{Err: context.Canceled}}
	out, _ := runConsole(t, "one\n", agent)
	if !strings.Contains(out, "Cancelled.") {
		t.Errorf("output:\n%s", out)
	}
}

func TestConsoleQuitStopsReading(t *testing.T) {
	agent := &fakeAgent{replies: []string{"x"}}
	out, _ := runConsole(t, "/quit\nnever sent\n", agent)

	if len(agent.submitted) != 0 {
		t.Errorf("submitted after /quit: %q", agent.submitted)
	}
	if !strings.Contains(out, "Bye.") {
		t.Errorf("output:\n%s", out)
	}
}

func TestConsoleNewSession(t *testing.T) {
	agent := &fakeAgent{replies: []string{"a", "b"}}
	_, c := runConsole(t, "first\n/new\nsecond\n", agent)

	if len(agent.sessions) != 2 || agent.sessions[0] == agent.sessions[1] {
		t.Fatal("second submission did not use a new session")
	}
	if c.Session() != agent.sessions[1] || c.Session().Transcript.Len() != 2 {
		t.Errorf("current session has %d messages", c.Session().Transcript.Len())
	}
}

func TestConsoleHistoryCommand(t *testing.T) {
	agent := &fakeAgent{replies: []string{"### English\nHi"}}
	out, _ := runConsole(t, "oi\n/history\n", agent)
	if !strings.Contains(out, "You:\noi") || !strings.Contains(out, "Translator:\n### English\nHi") {
		t.Errorf("output:\n%s", out)
	}
}

func TestConsoleUnknownCommand(t *testing.T) {
	agent := &fakeAgent{}
	out, _ := runConsole(t, "/translate\n", agent)
	if len(agent.submitted) != 0 || !strings.Contains(out, "Unknown command: /translate") {
		t.Errorf("output:\n%s", out)
	}
}

func TestConsoleBannerWarnsUnconfigured(t *testing.T) {
	out, _ := runConsole(t, "", &fakeAgent{}, offlineBackend{name: "groq"})
	if !strings.Contains(out, "Backend groq (openai) is not configured") {
		t.Errorf("output:\n%s", out)
	}
}

func TestConsoleNotices(t *testing.T) {
	var out bytes.Buffer
	c := New(Options{
		In:      strings.NewReader(""),
		Out:     &out,
		Agent:   &fakeAgent{},
		Theme:   PlainTheme(),
		Notices: []string{"GROQ_API_KEY is not set"},
	})
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "GROQ_API_KEY is not set") {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestConsoleStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agent := &fakeAgent{replies: []string{"x"}}
	c := New(Options{In: strings.NewReader("hello\n"), Out: &bytes.Buffer{}, Agent: agent, Theme: PlainTheme()})
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(agent.submitted) != 0 {
		t.Errorf("submitted after cancel: %q", agent.submitted)
	}
}

func TestConsoleOtherErrors(t *testing.T) {
	out, _ := runConsole(t, "x\n", &fakeAgent{err: errors.New("boom")})
	if !strings.Contains(out, "Translation failed: boom") {
		t.Errorf("output:\n%s", out)
	}
}

// blockingAgent waits for ctx on its first submission and answers the rest
type blockingAgent struct {
	started chan struct{}
	calls   int
}

func (b *blockingAgent) Submit(ctx context.Context, sess *session.Session, text string) (*translate.Reply, error) {
	b.calls++
	_ = sess.AddUserMessage(text)
	if b.calls == 1 {
		close(b.started)
		<-ctx.Done()
		return nil, &llm.DispatchError{Err: ctx.Err()}
	}
	_ = sess.AddAssistantMessage("### English\nagain")
	return &translate.Reply{Markdown: "### English\nagain", Backend: "ollama"}, nil
}

// runAsync starts Run over a pipe and returns the writer and a channel
// that receives Run's result.
func runAsync(ctx context.Context, t *testing.T, c *Console, pw *io.PipeWriter) <-chan error {
	t.Helper()
	t.Cleanup(func() { pw.Close() })
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestConsoleStopsWhenCancelledWhileReading(t *testing.T) {
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	c := New(Options{In: pr, Out: &bytes.Buffer{}, Agent: &fakeAgent{}, Theme: PlainTheme()})

	done := runAsync(ctx, t, c, pw)
	time.Sleep(50 * time.Millisecond)
	cancel()
	waitRun(t, done)
}

func TestConsoleInterruptAtPromptEnds(t *testing.T) {
	pr, pw := io.Pipe()
	interrupts := make(chan os.Signal, 1)
	agent := &fakeAgent{}
	c := New(Options{In: pr, Out: &bytes.Buffer{}, Agent: agent, Theme: PlainTheme(), Interrupts: interrupts})

	done := runAsync(context.Background(), t, c, pw)
	interrupts <- os.Interrupt
	waitRun(t, done)
	if len(agent.submitted) != 0 {
		t.Errorf("submitted = %q", agent.submitted)
	}
}

func TestConsoleInterruptCancelsOnlyTheTranslation(t *testing.T) {
	pr, pw := io.Pipe()
	interrupts := make(chan os.Signal, 1)
	agent := &blockingAgent{started: make(chan struct{})}
	var out bytes.Buffer
	c := New(Options{In: pr, Out: &out, Agent: agent, Theme: PlainTheme(), Interrupts: interrupts})

	done := runAsync(context.Background(), t, c, pw)
	if _, err := io.WriteString(pw, "olá\n"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-agent.started:
	case <-time.After(2 * time.Second):
		t.Fatal("translation never started")
	}
	interrupts <- os.Interrupt

	// The loop keeps going with the same session
	if _, err := io.WriteString(pw, "again\n"); err != nil {
		t.Fatal(err)
	}
	pw.Close()
	waitRun(t, done)

	if agent.calls != 2 {
		t.Errorf("calls = %d, want 2", agent.calls)
	}
	got := out.String()
	if !strings.Contains(got, "Cancelled.") || !strings.Contains(got, "via ollama") {
		t.Errorf("output:\n%s", got)
	}
	if n := c.Session().Transcript.Len(); n != 3 {
		t.Errorf("transcript len = %d, want 3 (cancelled user turn kept)", n)
	}
}
