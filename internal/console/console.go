// Package console implements the interactive translation chat loop.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/roelfdiedericks/linguaclaw/internal/commands"
	"github.com/roelfdiedericks/linguaclaw/internal/llm"
	. "github.com/roelfdiedericks/linguaclaw/internal/logging"
	"github.com/roelfdiedericks/linguaclaw/internal/metrics"
	"github.com/roelfdiedericks/linguaclaw/internal/session"
	"github.com/roelfdiedericks/linguaclaw/internal/tokens"
	"github.com/roelfdiedericks/linguaclaw/internal/translate"
)

// PromptLabel is printed before each line of user input
const PromptLabel = "You:"

// maxLineSize bounds one line of input (long e-mails are pasted as one line)
const maxLineSize = 1 << 20

// Submitter is the part of translate.Agent the console needs
type Submitter interface {
	Submit(ctx context.Context, sess *session.Session, text string) (*translate.Reply, error)
}

// Options configures a Console
type Options struct {
	In       io.Reader
	Out      io.Writer
	Agent    Submitter
	Backends []llm.Provider   // Dispatch order, for /backends and startup notices
	Metrics  *metrics.Manager // Shown by /stats; defaults to the process-wide manager
	Theme    *Theme           // Defaults to DefaultTheme
	Notices  []string         // Extra lines printed under the banner
	Tokens   tokens.Counter   // Used by /stats; nil estimates chars/4

	// Interrupts cancels the translation in flight, or ends Run when
	// received at the prompt. Nil disables both.
	Interrupts <-chan os.Signal
}

// Console reads user lines, runs slash commands, and prints translations.
// It owns one session at a time; /new replaces it.
type Console struct {
	in       *bufio.Scanner
	out      io.Writer
	agent    Submitter
	backends []llm.Provider
	metrics  *metrics.Manager
	theme    *Theme
	notices  []string
	tokens   tokens.Counter
	commands *commands.Manager
	session  *session.Session

	interrupts <-chan os.Signal
}

// New creates a console with a fresh session
func New(opts Options) *Console {
	c := &Console{
		in:       bufio.NewScanner(opts.In),
		out:      opts.Out,
		agent:    opts.Agent,
		backends: opts.Backends,
		metrics:  opts.Metrics,
		theme:    opts.Theme,
		notices:  opts.Notices,
		tokens:   opts.Tokens,
		session:  session.New(),

		interrupts: opts.Interrupts,
	}
	c.in.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	if c.metrics == nil {
		c.metrics = metrics.GetInstance()
	}
	if c.theme == nil {
		c.theme = DefaultTheme()
	}
	c.commands = commands.NewManager(c)
	return c
}

// Session returns the current session
func (c *Console) Session() *session.Session {
	return c.session
}

// ResetSession discards the current session and starts a new one
func (c *Console) ResetSession() *session.Session {
	L_info("console: session reset", "old", c.session.ID, "messages", c.session.Transcript.Len())
	c.session = session.New()
	return c.session
}

// Backends returns the backends in dispatch order
func (c *Console) Backends() []llm.Provider {
	return c.backends
}

// MetricsSnapshot returns the recorded metrics
func (c *Console) MetricsSnapshot() []metrics.Snapshot {
	return c.metrics.Snapshot()
}

// TokenCounter returns the counter used for /stats estimates
func (c *Console) TokenCounter() tokens.Counter {
	return c.tokens
}

// inputLine is one read from the input reader. done is set on EOF or a
// read error, with err holding the latter.
type inputLine struct {
	text string
	err  error
	done bool
}

// readLines feeds scanned lines to the returned channel until EOF or stop
// is closed. A read blocked on an idle terminal outlives Run; it ends with
// the process.
func (c *Console) readLines(stop <-chan struct{}) <-chan inputLine {
	lines := make(chan inputLine)
	go func() {
		defer close(lines)
		for c.in.Scan() {
			select {
			case lines <- inputLine{text: c.in.Text()}:
			case <-stop:
				return
			}
		}
		select {
		case lines <- inputLine{err: c.in.Err(), done: true}:
		case <-stop:
		}
	}()
	return lines
}

// Run processes input until EOF, /quit, an interrupt at the prompt, or ctx
// is cancelled. Translation failures are printed and never end the loop; an
// interrupt during a translation cancels only that translation.
func (c *Console) Run(ctx context.Context) error {
	c.banner()
	L_debug("console: started", "session", c.session.ID)

	stop := make(chan struct{})
	defer close(stop)
	lines := c.readLines(stop)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		c.printf("%s ", c.theme.Apply(c.theme.Prompt, PromptLabel))

		var in inputLine
		select {
		case <-ctx.Done():
			c.printf("\n")
			return nil
		case <-c.interrupts:
			c.printf("\n")
			L_debug("console: interrupted at prompt")
			return nil
		case in = <-lines:
		}

		if in.done {
			c.printf("\n")
			if in.err != nil {
				return fmt.Errorf("read input: %w", in.err)
			}
			return nil
		}

		line := strings.TrimSpace(in.text)
		if line == "" {
			continue
		}

		if commands.IsCommand(line) {
			res := c.commands.Execute(ctx, line)
			if res.Text != "" {
				c.printf("%s\n", strings.TrimRight(res.Text, "\n"))
			}
			if res.Quit {
				return nil
			}
			continue
		}

		c.handleText(ctx, line)
	}
}

type submitResult struct {
	reply *translate.Reply
	err   error
}

func (c *Console) handleText(ctx context.Context, text string) {
	dispatchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan submitResult, 1)
	go func() {
		reply, err := c.agent.Submit(dispatchCtx, c.session, text)
		done <- submitResult{reply: reply, err: err}
	}()

	var res submitResult
	select {
	case res = <-done:
	case <-c.interrupts:
		L_debug("console: interrupt, cancelling translation", "session", c.session.ID)
		cancel()
		res = <-done
	}

	if res.err != nil {
		if errors.Is(res.err, context.Canceled) {
			c.printf("%s\n", c.theme.Apply(c.theme.Warning, "Cancelled."))
			return
		}
		c.printf("%s\n", c.theme.Apply(c.theme.Error, translate.UserMessage(res.err)))
		return
	}

	c.printf("\n%s\n", FormatMarkdown(translate.Render(res.reply), c.theme))
}

func (c *Console) banner() {
	c.printf("%s\n", c.theme.Apply(c.theme.Title, "linguaclaw: Português (Brasil) · Español · English"))
	c.printf("%s\n", c.theme.Apply(c.theme.Help, "Type a message to translate, /help for commands."))

	for _, p := range c.backends {
		if !p.Configured() {
			c.printf("%s\n", c.theme.Apply(c.theme.Warning,
				fmt.Sprintf("Backend %s (%s) is not configured and will be skipped.", p.Name(), p.Type())))
		}
	}
	for _, n := range c.notices {
		c.printf("%s\n", c.theme.Apply(c.theme.Warning, n))
	}
	c.printf("\n")
}

func (c *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}
