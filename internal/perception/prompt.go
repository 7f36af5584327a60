package perception

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"promptcanvas/internal/logging"
)

//go:embed prompts/system_prompt.txt
var defaultSystemPrompt string

// DefaultSystemPrompt returns the built-in system prompt.
func DefaultSystemPrompt() string {
	return defaultSystemPrompt
}

// PromptSource holds the current system prompt. With a path it can watch the
// file and pick up edits; sessions created afterwards use the new text.
type PromptSource struct {
	path   string
	logger *zap.Logger

	mu   sync.RWMutex
	text string

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPromptSource loads the prompt at path, or the built-in prompt when path
// is empty.
func NewPromptSource(path string, logger *zap.Logger) (*PromptSource, error) {
	if logger == nil {
		logger = logging.Get(logging.CategoryPerception).Zap()
	}
	ps := &PromptSource{path: path, logger: logger, text: defaultSystemPrompt}
	if path == "" {
		return ps, nil
	}
	if err := ps.reload(); err != nil {
		return nil, err
	}
	return ps, nil
}

// Text returns the current prompt.
func (ps *PromptSource) Text() string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.text
}

// Path returns the watched file, or "" for the built-in prompt.
func (ps *PromptSource) Path() string {
	return ps.path
}

func (ps *PromptSource) reload() error {
	data, err := os.ReadFile(ps.path)
	if err != nil {
		return fmt.Errorf("failed to read system prompt: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return fmt.Errorf("system prompt %s is empty", ps.path)
	}

	ps.mu.Lock()
	ps.text = text
	ps.mu.Unlock()
	return nil
}

// Watch starts reloading the prompt whenever its file changes. It returns
// once the watch is in place. It is a no-op for the built-in prompt.
func (ps *PromptSource) Watch(ctx context.Context) error {
	if ps.path == "" || ps.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create prompt watcher: %w", err)
	}
	// Editors often replace the file, so watch the directory.
	if err := watcher.Add(filepath.Dir(ps.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", ps.path, err)
	}

	ps.watcher = watcher
	ps.stopCh = make(chan struct{})
	ps.doneCh = make(chan struct{})
	go ps.run(ctx)

	ps.logger.Info("Watching system prompt", zap.String("path", ps.path))
	return nil
}

// Stop ends a watch started by Watch and waits for it to exit.
func (ps *PromptSource) Stop() {
	if ps.watcher == nil {
		return
	}
	select {
	case <-ps.stopCh:
	default:
		close(ps.stopCh)
	}
	<-ps.doneCh
}

func (ps *PromptSource) run(ctx context.Context) {
	defer close(ps.doneCh)
	defer ps.watcher.Close()

	target := filepath.Clean(ps.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ps.stopCh:
			return

		case event, ok := <-ps.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := ps.reload(); err != nil {
				ps.logger.Warn("Keeping previous system prompt", zap.Error(err))
				continue
			}
			ps.logger.Info("System prompt reloaded", zap.String("path", ps.path))

		case err, ok := <-ps.watcher.Errors:
			if !ok {
				return
			}
			ps.logger.Warn("Prompt watcher error", zap.Error(err))
		}
	}
}
