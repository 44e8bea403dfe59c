package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the tree must stay quiet before a change
// burst is considered settled. Editors save through temp files and
// renames, so reacting to individual events would fire mid-save.
const DefaultDebounce = 500 * time.Millisecond

// Watcher observes a mirror tree recursively and invokes OnSettle once
// after each burst of changes goes quiet.
type Watcher struct {
	root     string
	debounce time.Duration
	logger   *slog.Logger
	onSettle func(context.Context)
}

// WatcherConfig wires a Watcher. Debounce falls back to
// DefaultDebounce when zero.
type WatcherConfig struct {
	Root     string
	Debounce time.Duration
	Logger   *slog.Logger
	OnSettle func(context.Context)
}

func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, errors.New("sync: watcher requires a root")
	}

	if cfg.OnSettle == nil {
		return nil, errors.New("sync: watcher requires a settle callback")
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		root:     cfg.Root,
		debounce: debounce,
		logger:   logger,
		onSettle: cfg.OnSettle,
	}, nil
}

// Run blocks watching the tree until ctx is canceled. Directories
// created while running are picked up so newly added projects and flows
// are covered without a restart.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addRecursive(fsw, w.root); err != nil {
		return err
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}

			if w.skip(event.Name) {
				continue
			}

			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(fsw, event.Name); err != nil {
						w.logger.Warn("watching new directory failed",
							slog.String("path", event.Name),
							slog.String("error", err.Error()),
						)
					}
				}
			}

			w.logger.Debug("file event",
				slog.String("op", event.Op.String()),
				slog.String("path", event.Name),
			)

			timer.Stop()
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}

			w.logger.Warn("file watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			w.onSettle(ctx)
		}
	}
}

// skip filters dotfiles and the atomic-write temp files out of the
// event stream.
func (w *Watcher) skip(name string) bool {
	base := filepath.Base(name)

	return strings.HasPrefix(base, ".")
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// The tree mutates under us; a directory vanishing
			// mid-walk is routine.
			return nil
		}

		if !d.IsDir() {
			return nil
		}

		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}

		return nil
	})
}
