package translate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roelfdiedericks/linguaclaw/internal/llm"
)

// Render returns the reply Markdown followed by a backend indicator line.
func Render(r *Reply) string {
	var b strings.Builder
	body := strings.TrimSpace(r.Markdown)
	if body == "" {
		body = "_(the backend returned an empty reply)_"
	}
	b.WriteString(body)
	b.WriteString("\n\n")
	if r.FailedOver {
		fmt.Fprintf(&b, "_via %s (fallback)_", r.Backend)
	} else {
		fmt.Fprintf(&b, "_via %s_", r.Backend)
	}
	b.WriteString("\n")
	return b.String()
}

// Messages shown when a submission cannot be answered
const (
	MsgNoneReady = "No translation backend is configured or ready."
	MsgAllFailed = "All configured translation backends failed."
)

// UserMessage turns a Submit error into text suitable for the transcript view.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrEmptyInput) {
		return "Type something to translate."
	}

	var dErr *llm.DispatchError
	if !errors.As(err, &dErr) {
		return "Translation failed: " + err.Error()
	}

	var b strings.Builder
	if dErr.NoneReady() {
		b.WriteString(MsgNoneReady)
	} else {
		b.WriteString(MsgAllFailed)
	}
	for _, a := range dErr.Attempts {
		verb := "skipped"
		if a.Invoked {
			verb = "failed"
		}
		fmt.Fprintf(&b, "\n  - %s %s: %s", a.Backend, verb, llm.DescribeFailure(a.Kind))
	}
	if dErr.Err != nil {
		fmt.Fprintf(&b, "\n  (stopped: %v)", dErr.Err)
	}
	return b.String()
}
