package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a changed snapshot is reloaded.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a Holder whenever the snapshot file is replaced.
type Watcher struct {
	holder   *Holder
	path     string
	debounce time.Duration
	logger   *slog.Logger

	// OnReload, when set, is called after every reload attempt.
	OnReload func(err error)
}

// NewWatcher creates a watcher for the snapshot at path.
func NewWatcher(holder *Holder, path string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{holder: holder, path: path, debounce: DefaultDebounce, logger: logger}
}

// WithDebounce overrides the debounce interval.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Run watches the snapshot's directory until ctx is cancelled. Snapshots are
// published by rename, so the directory is watched rather than the file.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	name := filepath.Base(w.path)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("snapshot watcher error", slog.String("error", err.Error()))
		case <-timer.C:
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	err := w.holder.Reload(ctx, w.path)
	if err != nil {
		w.logger.Warn("snapshot reload failed, keeping previous snapshot",
			slog.String("path", w.path),
			slog.String("error", err.Error()))
	} else {
		snap := w.holder.Current()
		w.logger.Info("snapshot reloaded",
			slog.String("path", w.path),
			slog.Int("chunks", snap.Len()),
			slog.Uint64("generation", w.holder.Generation()))
	}
	if w.OnReload != nil {
		w.OnReload(err)
	}
}
