// Package paths provides centralized path resolution for linguaclaw.
// This package has NO internal imports (only stdlib) to avoid import cycles.
// All functions return errors to allow callers to log appropriately.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigBaseName is the config file name without extension
const ConfigBaseName = "linguaclaw"

// ConfigExtensions are tried in order when looking for a config file
var ConfigExtensions = []string{".toml", ".yaml", ".yml", ".json"}

// BaseDir returns the linguaclaw base directory (~/.linguaclaw).
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".linguaclaw"), nil
}

// DataPath returns a path within the base directory (~/.linguaclaw/<subpath>).
func DataPath(subpath string) (string, error) {
	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, subpath), nil
}

// ConfigPath returns the active config file.
// Priority: ./linguaclaw.<ext> (current dir) > ~/.linguaclaw/linguaclaw.<ext>
// Returns ("", nil) if no config exists - this is a valid state, not an error.
func ConfigPath() (string, error) {
	if p := findConfig("."); p != "" {
		absPath, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		return absPath, nil
	}

	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return findConfig(base), nil
}

// findConfig returns the first existing linguaclaw.<ext> in dir
func findConfig(dir string) string {
	for _, ext := range ConfigExtensions {
		p := filepath.Join(dir, ConfigBaseName+ext)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// DefaultConfigPath returns the default location for new configs (~/.linguaclaw/linguaclaw.toml).
func DefaultConfigPath() (string, error) {
	return DataPath(ConfigBaseName + ConfigExtensions[0])
}

// EnsureDir creates a directory if it doesn't exist.
// Uses 0750 permissions (owner: rwx, group: rx, other: none).
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// EnsureParentDir creates the parent directory of a file path if it doesn't exist.
func EnsureParentDir(filePath string) error {
	return EnsureDir(filepath.Dir(filePath))
}

// ExpandTilde expands a path that starts with ~ to the user's home directory.
// Returns the path unchanged if it doesn't start with ~.
func ExpandTilde(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	if len(path) == 1 {
		return home, nil
	}
	return filepath.Join(home, path[1:]), nil
}
