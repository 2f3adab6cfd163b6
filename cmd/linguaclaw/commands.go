package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/roelfdiedericks/linguaclaw/internal/commands"
	"github.com/roelfdiedericks/linguaclaw/internal/config"
	"github.com/roelfdiedericks/linguaclaw/internal/console"
	. "github.com/roelfdiedericks/linguaclaw/internal/logging"
	"github.com/roelfdiedericks/linguaclaw/internal/metrics"
	"github.com/roelfdiedericks/linguaclaw/internal/paths"
	"github.com/roelfdiedericks/linguaclaw/internal/session"
	"github.com/roelfdiedericks/linguaclaw/internal/tokens"
	"github.com/roelfdiedericks/linguaclaw/internal/translate"
)

// ChatCmd runs the interactive console
type ChatCmd struct {
	Plain   bool `help:"Disable colors and styling."`
	NoWatch bool `help:"Do not reload the prompt file when it changes." name:"no-watch"`
}

func (c *ChatCmd) Run(g *Globals) error {
	a, err := g.setup()
	if err != nil {
		return err
	}

	// Ctrl-C goes to the console: it cancels a translation in flight or
	// leaves the prompt. SIGTERM ends the chat outright.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	if a.cfg.PromptFile != "" && !c.NoWatch {
		pw, err := translate.WatchPromptFile(a.cfg.PromptFile, a.agent)
		if err != nil {
			L_warn("chat: prompt file will not be reloaded", "file", a.cfg.PromptFile, "error", err)
		} else {
			defer pw.Close()
		}
	}

	theme := console.DefaultTheme()
	if c.Plain {
		theme = console.PlainTheme()
	}

	con := console.New(console.Options{
		In:       os.Stdin,
		Out:      os.Stdout,
		Agent:    a.agent,
		Backends: a.providers,
		Metrics:  metrics.GetInstance(),
		Theme:    theme,
		Notices:  a.notices(),
		Tokens:   tokens.Shared(),

		Interrupts: interrupts,
	})
	return con.Run(ctx)
}

// TranslateCmd translates its arguments once
type TranslateCmd struct {
	Text     []string `arg:"" optional:"" help:"Text to translate; read from stdin when omitted."`
	Markdown bool     `help:"Print the raw Markdown reply instead of terminal formatting." short:"m"`
}

func (t *TranslateCmd) Run(g *Globals) error {
	text := strings.Join(t.Text, " ")
	if strings.TrimSpace(text) == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}

	a, err := g.setup()
	if err != nil {
		return err
	}
	for _, n := range a.notices() {
		L_warn(n)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reply, err := a.agent.Submit(ctx, session.New(), text)
	if err != nil {
		L_debug("translate: failed", "error", err)
		return errors.New(translate.UserMessage(err))
	}

	out := translate.Render(reply)
	if !t.Markdown {
		out = console.FormatMarkdown(out, console.DefaultTheme())
	}
	fmt.Fprint(os.Stdout, out)
	return nil
}

// BackendsCmd probes every backend
type BackendsCmd struct{}

func (b *BackendsCmd) Run(g *Globals) error {
	a, err := g.setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	statuses := commands.ProbeAll(ctx, a.providers)
	fmt.Fprint(os.Stdout, commands.FormatBackends(statuses))

	for _, s := range statuses {
		if s.Health.Ready() {
			return nil
		}
	}
	return errors.New("no backend is ready")
}

// InitConfigCmd writes the effective configuration to a file
type InitConfigCmd struct {
	Path string `arg:"" optional:"" help:"Destination (.toml, .yaml or .json); defaults to ~/.linguaclaw/linguaclaw.toml." type:"path"`
}

func (i *InitConfigCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	dest := i.Path
	if dest == "" {
		if dest, err = paths.DefaultConfigPath(); err != nil {
			return err
		}
	}
	if err := config.Save(cfg, dest); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Fprintf(os.Stdout, "wrote %s\n", dest)
	return nil
}
