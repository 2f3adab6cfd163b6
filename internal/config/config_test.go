package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/roelfdiedericks/linguaclaw/internal/llm"
)

// envMap returns a LookupEnv backed by a map
func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults().Validate() = %v", err)
	}
	if cfg.Hosted.Priority >= cfg.Local.Priority {
		t.Error("hosted backend must be tried before local")
	}
	if cfg.Hosted.Model != "openai/gpt-oss-20b" || cfg.Local.Model != "llama3.2" {
		t.Errorf("default models = %s, %s", cfg.Hosted.Model, cfg.Local.Model)
	}
	if cfg.Local.URL != "http://localhost:11434" {
		t.Errorf("default ollama URL = %s", cfg.Local.URL)
	}
	if cfg.Hosted.Temperature != 0.3 || cfg.Hosted.MaxTokens != 1024 {
		t.Errorf("hosted sampling = %v/%d", cfg.Hosted.Temperature, cfg.Hosted.MaxTokens)
	}
}

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := Load(LoadOptions{LookupEnv: envMap(nil)})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Hosted.APIKey != "" {
		t.Error("API key should be empty without environment")
	}
	if cfg.Hosted.BaseURL != llm.DefaultGroqBaseURL {
		t.Errorf("BaseURL = %s", cfg.Hosted.BaseURL)
	}
}

func TestLoadEnvironment(t *testing.T) {
	cfg, err := Load(LoadOptions{LookupEnv: envMap(map[string]string{
		EnvGroqAPIKey:   "gsk-123",
		EnvGroqModel:    "llama-3.3-70b-versatile",
		EnvOllamaHost:   "10.0.0.5:11434",
		EnvOllamaModel:  "qwen2.5",
		EnvSystemPrompt: "just translate",
		EnvLogLevel:     "debug",
		EnvLogFormat:    "JSON",
	})})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Hosted.APIKey != "gsk-123" || cfg.Hosted.Model != "llama-3.3-70b-versatile" {
		t.Errorf("hosted = %+v", cfg.Hosted)
	}
	if cfg.Local.URL != "http://10.0.0.5:11434" || cfg.Local.Model != "qwen2.5" {
		t.Errorf("local = %+v", cfg.Local)
	}
	if cfg.SystemPrompt != "just translate" || cfg.LogLevel != "debug" || !cfg.LogJSON {
		t.Errorf("cfg = %+v", cfg)
	}
	// Untouched fields keep their defaults
	if cfg.Local.TimeoutSeconds != 300 || cfg.Hosted.TimeoutSeconds != 60 {
		t.Errorf("timeouts = %d/%d", cfg.Hosted.TimeoutSeconds, cfg.Local.TimeoutSeconds)
	}
}

func TestLoadDotEnvBelowEnvironment(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "GROQ_API_KEY=from-dotenv\nOLLAMA_MODEL=mistral\n")

	cfg, err := Load(LoadOptions{
		EnvFile:   envFile,
		LookupEnv: envMap(map[string]string{EnvOllamaModel: "phi3"}),
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Hosted.APIKey != "from-dotenv" {
		t.Errorf("APIKey = %q, want value from .env", cfg.Hosted.APIKey)
	}
	if cfg.Local.Model != "phi3" {
		t.Errorf("Local.Model = %q, environment must beat .env", cfg.Local.Model)
	}
}

func TestLoadMissingDotEnvIgnored(t *testing.T) {
	_, err := Load(LoadOptions{
		EnvFile:   filepath.Join(t.TempDir(), "missing.env"),
		LookupEnv: envMap(nil),
	})
	if err != nil {
		t.Fatalf("Load with missing .env: %v", err)
	}
}

func TestLoadConfigFiles(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml", "linguaclaw.toml", `
logLevel = "warn"

[hosted]
model = "file-model"
timeoutSeconds = 30

[local]
url = "http://gpu-box:11434"
`},
		{"yaml", "linguaclaw.yaml", `
logLevel: warn
hosted:
  model: file-model
  timeoutSeconds: 30
local:
  url: http://gpu-box:11434
`},
		{"json", "linguaclaw.json", `{
  "logLevel": "warn",
  "hosted": {"model": "file-model", "timeoutSeconds": 30},
  "local": {"url": "http://gpu-box:11434"}
}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)

			cfg, err := Load(LoadOptions{ConfigPath: path, LookupEnv: envMap(nil)})
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.LogLevel != "warn" || cfg.Hosted.Model != "file-model" || cfg.Hosted.TimeoutSeconds != 30 {
				t.Errorf("file values not applied: %+v", cfg)
			}
			if cfg.Local.URL != "http://gpu-box:11434" {
				t.Errorf("Local.URL = %s", cfg.Local.URL)
			}
			// Defaults survive where the file is silent
			if cfg.Local.Model != DefaultOllamaModel || cfg.Hosted.Driver != llm.DriverOpenAI {
				t.Errorf("defaults lost: %+v", cfg)
			}

			// Environment beats the file
			cfg, err = Load(LoadOptions{ConfigPath: path, LookupEnv: envMap(map[string]string{EnvGroqModel: "env-model"})})
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Hosted.Model != "env-model" {
				t.Errorf("Hosted.Model = %s, want env-model", cfg.Hosted.Model)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		opts LoadOptions
		want string
	}{
		{"unsupported format", LoadOptions{ConfigPath: writeFile(t, dir, "c.ini", "x=1")}, "unsupported config format"},
		{"missing file", LoadOptions{ConfigPath: filepath.Join(dir, "nope.toml")}, "read config"},
		{"bad driver", LoadOptions{ConfigPath: writeFile(t, dir, "d.json", `{"local":{"driver":"anthropic"}}`)}, "unknown driver"},
		{"bad log level", LoadOptions{ConfigPath: writeFile(t, dir, "l.json", `{"logLevel":"loud"}`)}, "unknown log level"},
		{"bad syntax", LoadOptions{ConfigPath: writeFile(t, dir, "s.json", `{"logLevel":`)}, "parse config"},
		{"missing prompt file", LoadOptions{PromptFile: filepath.Join(dir, "prompt.md")}, "read prompt file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.LookupEnv = envMap(nil)
			_, err := Load(tt.opts)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadPromptFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prompt.md", "\nTranslate everything.\n")

	cfg, err := Load(LoadOptions{PromptFile: path, LookupEnv: envMap(map[string]string{EnvSystemPrompt: "inline"})})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SystemPrompt != "Translate everything." {
		t.Errorf("SystemPrompt = %q", cfg.SystemPrompt)
	}
}

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"http://localhost:11434", "http://localhost:11434"},
		{"http://localhost:11434/", "http://localhost:11434"},
		{"https://ollama.example.com", "https://ollama.example.com"},
		{"0.0.0.0", "http://0.0.0.0:11434"},
		{"gpu-box:8080", "http://gpu-box:8080"},
	}
	for _, tt := range tests {
		if got := normalizeHost(tt.in); got != tt.want {
			t.Errorf("normalizeHost(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBackendsOrder(t *testing.T) {
	b := Defaults().Backends()
	if len(b) != 2 || b[0].Name != "groq" || b[1].Name != "ollama" {
		t.Errorf("Backends() = %+v", b)
	}
}

func TestStringMasksKey(t *testing.T) {
	cfg := Defaults()
	cfg.Hosted.APIKey = "gsk-secret"
	if s := cfg.String(); strings.Contains(s, "gsk-secret") {
		t.Errorf("String() leaks key: %s", s)
	}
}

func TestLoadFileKeepsExplicitZeros(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml", "linguaclaw.toml", `
[hosted]
priority = 1

[local]
priority = 0
temperature = 0.0
`},
		{"yaml", "linguaclaw.yaml", `
hosted:
  priority: 1
local:
  priority: 0
  temperature: 0
`},
		{"json", "linguaclaw.json", `{"hosted": {"priority": 1}, "local": {"priority": 0, "temperature": 0}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)

			cfg, err := Load(LoadOptions{ConfigPath: path, LookupEnv: envMap(nil)})
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Hosted.Priority != 1 || cfg.Local.Priority != 0 {
				t.Errorf("priorities = hosted %d, local %d; want 1, 0", cfg.Hosted.Priority, cfg.Local.Priority)
			}
			if cfg.Local.Temperature != 0 {
				t.Errorf("Local.Temperature = %v, want 0", cfg.Local.Temperature)
			}
			if cfg.Hosted.Temperature != llm.DefaultTemperature {
				t.Errorf("Hosted.Temperature = %v, want default", cfg.Hosted.Temperature)
			}

			providers, err := llm.NewProviders(cfg.Backends())
			if err != nil {
				t.Fatalf("NewProviders: %v", err)
			}
			if providers[0].Name() != "ollama" {
				t.Errorf("primary = %s, want ollama", providers[0].Name())
			}
		})
	}
}
