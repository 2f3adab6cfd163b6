package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/roelfdiedericks/linguaclaw/internal/config"
	"github.com/roelfdiedericks/linguaclaw/internal/llm"
	. "github.com/roelfdiedericks/linguaclaw/internal/logging"
	"github.com/roelfdiedericks/linguaclaw/internal/metrics"
	"github.com/roelfdiedericks/linguaclaw/internal/paths"
	"github.com/roelfdiedericks/linguaclaw/internal/translate"
)

var version = "0.1.0"

// Globals are flags shared by every command
type Globals struct {
	Config     string `help:"Config file (.toml, .yaml or .json); defaults to ./linguaclaw.<ext> or ~/.linguaclaw/linguaclaw.<ext>." type:"path" short:"c"`
	EnvFile    string `help:"Env file with GROQ_API_KEY and friends; ignored if missing." default:".env" name:"env-file"`
	PromptFile string `help:"Replace the built-in instruction prompt with this file." type:"path" name:"prompt-file"`
	Debug      bool   `help:"Enable debug logging." short:"d"`
}

// CLI is the kong command tree
type CLI struct {
	Globals

	Chat       ChatCmd       `cmd:"" default:"1" help:"Interactive translation chat (default)."`
	Translate  TranslateCmd  `cmd:"" help:"Translate text once and print the reply."`
	Backends   BackendsCmd   `cmd:"" help:"Probe every backend and show its status."`
	InitConfig InitConfigCmd `cmd:"" name:"init-config" help:"Write the effective configuration to a file (API key omitted)."`
	Version    VersionCmd    `cmd:"" help:"Print the version."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("linguaclaw"),
		kong.Description("Translate and proofread text into Portuguese, Spanish and English."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}

// app is the wiring shared by commands that talk to backends
type app struct {
	cfg       *config.Config
	providers []llm.Provider
	agent     *translate.Agent
}

// setup loads configuration, initializes logging and builds the backends.
func (g *Globals) setup() (*app, error) {
	level := LevelWarn
	if g.Debug {
		level = LevelDebug
	}
	Init(&Config{Level: level, TimeFormat: "15:04:05", ShowCaller: g.Debug})

	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	if !g.Debug {
		level = ParseLevel(cfg.LogLevel)
	}
	Init(&Config{Level: level, TimeFormat: "15:04:05", ShowCaller: g.Debug, JSON: cfg.LogJSON})
	L_debug("config: effective", "summary", cfg.String())

	providers, err := llm.NewProviders(cfg.Backends())
	if err != nil {
		return nil, fmt.Errorf("build backends: %w", err)
	}

	d := llm.NewDispatcher(providers, llm.DispatcherOptions{Metrics: metrics.GetInstance()})
	return &app{
		cfg:       cfg,
		providers: d.Providers(),
		agent:     translate.NewAgent(d, cfg.SystemPrompt),
	}, nil
}

// loadConfig loads configuration from --config, or the discovered config
// file when the flag is not given.
func (g *Globals) loadConfig() (*config.Config, error) {
	configPath := g.Config
	if configPath == "" {
		found, err := paths.ConfigPath()
		if err != nil {
			L_warn("config: lookup failed", "error", err)
		}
		configPath = found
	}

	cfg, err := config.Load(config.LoadOptions{
		ConfigPath: configPath,
		EnvFile:    g.EnvFile,
		PromptFile: g.PromptFile,
	})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// notices returns startup hints for missing configuration
func (a *app) notices() []string {
	var out []string
	if a.cfg.Hosted.APIKey == "" {
		out = append(out, fmt.Sprintf("%s is not set: add it to your environment or .env file to use %s; only the local backend will be tried.",
			config.EnvGroqAPIKey, a.cfg.Hosted.Name))
	}
	return out
}

// VersionCmd prints the version
type VersionCmd struct{}

func (v *VersionCmd) Run(g *Globals) error {
	fmt.Fprintf(os.Stdout, "linguaclaw %s\n", version)
	return nil
}
