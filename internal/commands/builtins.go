package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/roelfdiedericks/linguaclaw/internal/llm"
	"github.com/roelfdiedericks/linguaclaw/internal/metrics"
)

// registerBuiltins registers all built-in commands
func registerBuiltins(m *Manager) {
	m.Register(&Command{
		Name:        "/help",
		Description: "Show this help",
		Handler:     handleHelp,
	})

	m.Register(&Command{
		Name:        "/quit",
		Description: "End the session",
		Aliases:     []string{"/exit"},
		Handler:     handleQuit,
	})

	m.Register(&Command{
		Name:        "/new",
		Description: "Start a fresh session (discards the transcript)",
		Aliases:     []string{"/reset"},
		Handler:     handleNew,
	})

	m.Register(&Command{
		Name:        "/backends",
		Description: "Probe every backend and show its status",
		Handler:     handleBackends,
	})

	m.Register(&Command{
		Name:        "/history",
		Description: "Replay the session transcript",
		Handler:     handleHistory,
	})

	m.Register(&Command{
		Name:        "/stats",
		Description: "Show session and backend statistics",
		Handler:     handleStats,
	})
}

func handleHelp(ctx context.Context, args *CommandArgs) *CommandResult {
	var text strings.Builder
	text.WriteString("Available commands:\n")
	for _, cmd := range args.Manager.List() {
		name := cmd.Name
		if len(cmd.Aliases) > 0 {
			name += " (" + strings.Join(cmd.Aliases, ", ") + ")"
		}
		text.WriteString(fmt.Sprintf("  %s - %s\n", name, cmd.Description))
	}
	text.WriteString("Anything else is sent for translation.\n")
	return &CommandResult{Text: text.String()}
}

func handleQuit(ctx context.Context, args *CommandArgs) *CommandResult {
	return &CommandResult{Text: "Bye.", Quit: true}
}

func handleNew(ctx context.Context, args *CommandArgs) *CommandResult {
	dropped := args.Provider.Session().Transcript.Len()
	args.Provider.ResetSession()
	return &CommandResult{
		Text: fmt.Sprintf("Started a new session (%d messages discarded).", dropped),
	}
}

func handleBackends(ctx context.Context, args *CommandArgs) *CommandResult {
	statuses := ProbeAll(ctx, args.Provider.Backends())
	if len(statuses) == 0 {
		return &CommandResult{Text: "No backends configured."}
	}
	return &CommandResult{Text: FormatBackends(statuses)}
}

func handleHistory(ctx context.Context, args *CommandArgs) *CommandResult {
	entries := args.Provider.Session().Transcript.Entries()
	if len(entries) == 0 {
		return &CommandResult{Text: "No messages yet."}
	}

	var text strings.Builder
	for _, e := range entries {
		who := "You"
		if e.Role == llm.RoleAssistant {
			who = "Translator"
		}
		text.WriteString(fmt.Sprintf("[%s] %s:\n%s\n\n", e.At.Format("15:04:05"), who, strings.TrimSpace(e.Content)))
	}
	return &CommandResult{Text: strings.TrimRight(text.String(), "\n") + "\n"}
}

func handleStats(ctx context.Context, args *CommandArgs) *CommandResult {
	st := args.Provider.Session().Stats(args.Provider.TokenCounter())

	var text strings.Builder
	text.WriteString("Session\n")
	text.WriteString(fmt.Sprintf("  ID: %s\n", st.ID))
	text.WriteString(fmt.Sprintf("  Age: %s\n", st.Age.Round(time.Second)))
	text.WriteString(fmt.Sprintf("  Messages: %d (%d user, %d assistant)\n", st.Messages, st.UserMessages, st.AssistantMessages))
	if st.Unanswered > 0 {
		text.WriteString(fmt.Sprintf("  Unanswered: %d\n", st.Unanswered))
	}
	text.WriteString(fmt.Sprintf("  Estimated tokens: %d\n", st.EstimatedTokens))

	snaps := args.Provider.MetricsSnapshot()
	if len(snaps) > 0 {
		text.WriteString("\nBackends\n")
		for _, s := range snaps {
			text.WriteString("  ")
			text.WriteString(FormatSnapshot(s))
			text.WriteString("\n")
		}
	}
	return &CommandResult{Text: text.String()}
}

// ProbeAll probes each backend in order. The first backend is the primary.
func ProbeAll(ctx context.Context, providers []llm.Provider) []BackendStatus {
	out := make([]BackendStatus, 0, len(providers))
	for i, p := range providers {
		role := "fallback"
		if i == 0 {
			role = "primary"
		}
		st := BackendStatus{
			Name:       p.Name(),
			Driver:     p.Type(),
			Model:      p.Model(),
			Role:       role,
			Configured: p.Configured(),
		}
		if st.Configured {
			st.Health = p.Probe(ctx)
		} else {
			st.Health = llm.Health{Detail: "not configured"}
		}
		out = append(out, st)
	}
	return out
}

// FormatBackends renders probe results as an aligned table
func FormatBackends(statuses []BackendStatus) string {
	header := []string{"BACKEND", "ROLE", "DRIVER", "MODEL", "REACHABLE", "MODEL READY", "DETAIL"}
	rows := [][]string{header}
	for _, s := range statuses {
		rows = append(rows, []string{
			s.Name,
			s.Role,
			s.Driver,
			s.Model,
			yesNo(s.Health.Reachable),
			yesNo(s.Health.ModelReady),
			s.Health.Detail,
		})
	}
	return formatTable(rows)
}

// formatTable pads columns by display width
func formatTable(rows [][]string) string {
	var widths []int
	for _, row := range rows {
		for col, cell := range row {
			w := runewidth.StringWidth(cell)
			if col >= len(widths) {
				widths = append(widths, w)
			} else if w > widths[col] {
				widths[col] = w
			}
		}
	}

	var b strings.Builder
	for _, row := range rows {
		for col, cell := range row {
			if col == len(row)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(runewidth.FillRight(cell, widths[col]))
			b.WriteString("  ")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// FormatSnapshot renders one metric as a single line
func FormatSnapshot(s metrics.Snapshot) string {
	switch d := s.Data.(type) {
	case metrics.TimingSnapshot:
		return fmt.Sprintf("%s: %d calls, avg %.0fms, p95 %.0fms, max %.0fms", s.Path, d.Count, d.AvgMs, d.P95Ms, d.MaxMs)
	case metrics.SuccessFailSnapshot:
		line := fmt.Sprintf("%s: %d ok, %d failed (%.0f%% success)", s.Path, d.Success, d.Failures, d.SuccessRate)
		if len(d.FailureReasons) > 0 {
			line += " " + formatCounts(d.FailureReasons)
		}
		return line
	case metrics.OutcomeSnapshot:
		return fmt.Sprintf("%s: %s", s.Path, formatCounts(d.Outcomes))
	default:
		return fmt.Sprintf("%s: %v", s.Path, s.Data)
	}
}

func formatCounts(counts map[string]int64) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return "[" + strings.Join(parts, " ") + "]"
}
