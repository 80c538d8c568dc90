package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long the watcher waits for writes to settle before
// reloading.
const DefaultSettle = 200 * time.Millisecond

// Watcher reloads the device file when it changes on disk.
type Watcher struct {
	path     string
	onChange func(*Config)
	logger   *slog.Logger
	settle   time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher watches path and calls onChange with every successfully
// reloaded configuration. Invalid files are logged and skipped.
func NewWatcher(path string, onChange func(*Config), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	// Watch the directory: editors replace files instead of writing them.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	return &Watcher{
		path:     filepath.Clean(path),
		onChange: onChange,
		logger:   logger,
		settle:   DefaultSettle,
		watcher:  fw,
	}, nil
}

// Run processes file events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.logger.Debug("Config file changed", slog.String("op", event.Op.String()))
				reload = time.After(w.settle)
			}
		case <-reload:
			reload = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Config watcher error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("Failed to reload config",
			slog.String("path", w.path),
			slog.Any("error", err))
		return
	}
	w.logger.Info("Reloaded config", slog.String("path", w.path))
	w.onChange(cfg)
}
