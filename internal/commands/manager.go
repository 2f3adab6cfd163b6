// Package commands provides the slash commands of the interactive console.
package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Command represents a slash command
type Command struct {
	Name        string   // e.g., "/stats"
	Description string   // e.g., "Show session statistics"
	Aliases     []string // e.g., ["/exit"]
	Handler     CommandHandler
}

// CommandHandler is the function signature for command handlers
type CommandHandler func(ctx context.Context, args *CommandArgs) *CommandResult

// CommandArgs contains the arguments passed to a command handler
type CommandArgs struct {
	Provider SessionProvider
	Manager  *Manager
	RawArgs  string // Everything after the command name
}

// Manager is a command registry bound to one console
type Manager struct {
	mu       sync.RWMutex
	commands map[string]*Command // keyed by name (lowercase)
	provider SessionProvider
}

// NewManager creates a manager with the built-in commands registered
func NewManager(provider SessionProvider) *Manager {
	m := &Manager{
		commands: make(map[string]*Command),
		provider: provider,
	}
	registerBuiltins(m)
	return m
}

// Register adds a command to the manager
func (m *Manager) Register(cmd *Command) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.commands[strings.ToLower(cmd.Name)] = cmd
	for _, alias := range cmd.Aliases {
		m.commands[strings.ToLower(alias)] = cmd
	}
}

// Get returns a command by name (or alias)
func (m *Manager) Get(name string) *Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commands[strings.ToLower(name)]
}

// List returns all unique commands (no aliases), sorted by name
func (m *Manager) List() []*Command {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Aliases point to the same command
	seen := make(map[*Command]bool)
	var list []*Command
	for _, cmd := range m.commands {
		if !seen[cmd] {
			seen[cmd] = true
			list = append(list, cmd)
		}
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

// Execute runs a command line such as "/history"
func (m *Manager) Execute(ctx context.Context, cmdStr string) *CommandResult {
	cmdStr = strings.TrimSpace(cmdStr)
	parts := strings.SplitN(cmdStr, " ", 2)
	name := strings.ToLower(parts[0])
	rawArgs := ""
	if len(parts) > 1 {
		rawArgs = strings.TrimSpace(parts[1])
	}

	cmd := m.Get(name)
	if cmd == nil {
		return &CommandResult{
			Text: fmt.Sprintf("Unknown command: %s\nType /help for available commands.", name),
		}
	}

	return cmd.Handler(ctx, &CommandArgs{
		Provider: m.provider,
		Manager:  m,
		RawArgs:  rawArgs,
	})
}

// IsCommand checks if text is a command
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}
