package translate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	. "github.com/roelfdiedericks/linguaclaw/internal/logging"
	"github.com/roelfdiedericks/linguaclaw/internal/paths"
)

// PromptWatcher reloads an agent's instruction prompt when the prompt file
// changes on disk. Submissions already in flight keep the prompt they
// started with.
type PromptWatcher struct {
	path    string
	agent   *Agent
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WatchPromptFile starts watching path and applies every change to agent.
// The parent directory is watched so editors that save by rename are seen.
func WatchPromptFile(path string, agent *Agent) (*PromptWatcher, error) {
	expanded, err := paths.ExpandTilde(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return nil, fmt.Errorf("resolve prompt file: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	pw := &PromptWatcher{
		path:    abs,
		agent:   agent,
		watcher: watcher,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	L_debug("promptwatch: watching", "file", abs)
	go pw.watchLoop()
	return pw, nil
}

// Close stops the watcher and waits for the event loop to exit
func (pw *PromptWatcher) Close() error {
	select {
	case <-pw.stopCh:
		return nil
	default:
	}
	close(pw.stopCh)
	err := pw.watcher.Close()
	<-pw.doneCh
	return err
}

func (pw *PromptWatcher) watchLoop() {
	defer close(pw.doneCh)
	for {
		select {
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != pw.path {
				continue
			}
			// Remove and Rename leave nothing to read; the following Create reloads
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				pw.reload(event.Op)
			}
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			L_warn("promptwatch: fsnotify error", "error", err)
		case <-pw.stopCh:
			return
		}
	}
}

func (pw *PromptWatcher) reload(op fsnotify.Op) {
	data, err := os.ReadFile(pw.path)
	if err != nil {
		L_warn("promptwatch: reload failed, keeping current prompt", "file", pw.path, "error", err)
		return
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		// Half-written file; wait for the next write
		L_debug("promptwatch: prompt file empty, ignoring", "file", pw.path)
		return
	}
	if prompt == pw.agent.SystemPrompt() {
		return
	}
	pw.agent.SetSystemPrompt(prompt)
	L_info("promptwatch: prompt reloaded", "file", pw.path, "op", op.String(), "chars", len(prompt))
}
