// Package config loads linguaclaw configuration.
//
// Precedence, lowest to highest: built-in defaults, optional config file
// (.toml, .yaml/.yml or .json), .env file, process environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roelfdiedericks/linguaclaw/internal/llm"
	"github.com/roelfdiedericks/linguaclaw/internal/logging"
	"github.com/roelfdiedericks/linguaclaw/internal/paths"
)

// Environment keys
const (
	EnvGroqAPIKey   = "GROQ_API_KEY"
	EnvGroqModel    = "GROQ_MODEL"
	EnvGroqBaseURL  = "GROQ_BASE_URL"
	EnvOllamaHost   = "OLLAMA_HOST"
	EnvOllamaModel  = "OLLAMA_MODEL"
	EnvSystemPrompt = "TRANSLATOR_SYSTEM_PROMPT"
	EnvPromptFile   = "TRANSLATOR_PROMPT_FILE"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT" // "json" for JSON lines
)

// Defaults
const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "llama3.2"
	DefaultLogLevel    = "info"
)

// Config is the merged linguaclaw configuration
type Config struct {
	SystemPrompt string `json:"systemPrompt,omitempty" toml:"systemPrompt,omitempty" yaml:"systemPrompt,omitempty"` // Empty = built-in translation prompt
	PromptFile   string `json:"promptFile,omitempty" toml:"promptFile,omitempty" yaml:"promptFile,omitempty"`       // Read into SystemPrompt when set
	LogLevel     string `json:"logLevel" toml:"logLevel" yaml:"logLevel"`
	LogJSON      bool   `json:"logJSON,omitempty" toml:"logJSON,omitempty" yaml:"logJSON,omitempty"`

	Hosted llm.BackendConfig `json:"hosted" toml:"hosted" yaml:"hosted"` // Primary (Groq)
	Local  llm.BackendConfig `json:"local" toml:"local" yaml:"local"`    // Fallback (Ollama)
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Hosted: llm.BackendConfig{
			Name:           "groq",
			Driver:         llm.DriverOpenAI,
			Priority:       0,
			BaseURL:        llm.DefaultGroqBaseURL,
			Model:          llm.DefaultGroqModel,
			Temperature:    llm.DefaultTemperature,
			MaxTokens:      llm.DefaultMaxTokens,
			TimeoutSeconds: 60,
		},
		Local: llm.BackendConfig{
			Name:                "ollama",
			Driver:              llm.DriverOllama,
			Priority:            1,
			URL:                 DefaultOllamaHost,
			Model:               DefaultOllamaModel,
			Temperature:         llm.DefaultTemperature,
			MaxTokens:           llm.DefaultMaxTokens,
			TimeoutSeconds:      300,
			ProbeTimeoutSeconds: llm.DefaultProbeTimeout,
		},
	}
}

// LoadOptions controls where Load looks
type LoadOptions struct {
	ConfigPath string // Optional config file; empty = none
	EnvFile    string // .env path; a missing file is ignored
	PromptFile string // Overrides Config.PromptFile when set

	// LookupEnv defaults to os.LookupEnv
	LookupEnv func(key string) (string, bool)
}

// Load builds the configuration from every layer and validates it.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Defaults()

	if opts.ConfigPath != "" {
		configPath, err := paths.ExpandTilde(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		// Decoded onto the defaults so explicit zeros (priority 0,
		// temperature 0) in the file are kept
		if err := decodeFile(configPath, cfg); err != nil {
			return nil, err
		}
		logging.L_debug("config: loaded file", "path", opts.ConfigPath)
	}

	dotenv, err := readDotEnv(opts.EnvFile)
	if err != nil {
		return nil, err
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	envCfg := fromEnv(func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	})
	if err := mergo.Merge(cfg, envCfg, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge environment: %w", err)
	}

	if opts.PromptFile != "" {
		cfg.PromptFile = opts.PromptFile
	}
	if cfg.PromptFile != "" {
		promptPath, err := paths.ExpandTilde(cfg.PromptFile)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(promptPath)
		if err != nil {
			return nil, fmt.Errorf("read prompt file: %w", err)
		}
		cfg.SystemPrompt = strings.TrimSpace(string(data))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.L_debug("config: loaded",
		"hostedModel", cfg.Hosted.Model,
		"hostedKey", cfg.Hosted.APIKey != "",
		"localURL", cfg.Local.URL,
		"localModel", cfg.Local.Model)
	return cfg, nil
}

// readDotEnv reads KEY=VALUE pairs without touching the process environment.
func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.L_trace("config: no env file", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	logging.L_debug("config: loaded env file", "path", path, "keys", len(values))
	return values, nil
}

// fromEnv builds a sparse Config from environment values. Unset keys stay
// zero so they don't override lower layers.
func fromEnv(lookup func(string) (string, bool)) *Config {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := &Config{
		SystemPrompt: get(EnvSystemPrompt),
		PromptFile:   get(EnvPromptFile),
		LogLevel:     get(EnvLogLevel),
		LogJSON:      strings.EqualFold(get(EnvLogFormat), "json"),
	}
	cfg.Hosted.APIKey = get(EnvGroqAPIKey)
	cfg.Hosted.Model = get(EnvGroqModel)
	cfg.Hosted.BaseURL = get(EnvGroqBaseURL)
	cfg.Local.URL = normalizeHost(get(EnvOllamaHost))
	cfg.Local.Model = get(EnvOllamaModel)
	return cfg
}

// normalizeHost accepts OLLAMA_HOST in Ollama's own bare forms ("host:port",
// "0.0.0.0") as well as full URLs.
func normalizeHost(host string) string {
	host = strings.TrimSuffix(host, "/")
	if host == "" || strings.Contains(host, "://") {
		return host
	}
	if !strings.Contains(host, ":") {
		host += ":11434"
	}
	return "http://" + host
}

// ReadFile decodes a config file, choosing the format by extension.
// Fields the file does not mention are left zero.
func ReadFile(path string) (*Config, error) {
	cfg := &Config{}
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeFile decodes path onto cfg. Keys present in the file replace the
// values already in cfg, including zero values; absent keys are untouched.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q (want .toml, .yaml or .json)", ext)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks both backends and the log level
func (c *Config) Validate() error {
	if err := c.Hosted.Validate(); err != nil {
		return fmt.Errorf("hosted: %w", err)
	}
	if err := c.Local.Validate(); err != nil {
		return fmt.Errorf("local: %w", err)
	}
	if c.Hosted.Name == c.Local.Name {
		return fmt.Errorf("backend names must differ (both %q)", c.Hosted.Name)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "trace", "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// Backends returns the backend descriptors in configured order
func (c *Config) Backends() []llm.BackendConfig {
	return []llm.BackendConfig{c.Hosted, c.Local}
}

// String renders a short summary for diagnostics; secrets are masked.
func (c *Config) String() string {
	key := "unset"
	if c.Hosted.APIKey != "" {
		key = "set (" + strconv.Itoa(len(c.Hosted.APIKey)) + " chars)"
	}
	return fmt.Sprintf("hosted=%s model=%s key=%s; local=%s model=%s",
		c.Hosted.BaseURL, c.Hosted.Model, key, c.Local.URL, c.Local.Model)
}
