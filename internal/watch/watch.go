// Package watch reports files created or written under a directory tree,
// batched over a debounce window.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 200 * time.Millisecond

// Handler receives the distinct paths changed during one debounce window,
// sorted. It runs on the watcher goroutine.
type Handler func(ctx context.Context, paths []string)

// Options configures a Watcher.
type Options struct {
	// Match selects the files reported. Nil reports every file.
	Match func(path string) bool
	// Logger receives watcher errors. Nil discards.
	Logger *slog.Logger
	// Debounce is the quiet period before a batch is delivered. Zero uses 200ms.
	Debounce time.Duration
}

// Watcher watches a directory and its subdirectories.
type Watcher struct {
	fsw      *fsnotify.Watcher
	match    func(string) bool
	handler  Handler
	logger   *slog.Logger
	root     string
	debounce time.Duration
}

// New watches root recursively. Hidden directories are skipped.
func New(root string, opts Options, handler Handler) (*Watcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("watch %s: nil handler", root)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}
	w := &Watcher{
		fsw:      fsw,
		match:    opts.Match,
		handler:  handler,
		logger:   opts.Logger,
		root:     root,
		debounce: opts.Debounce,
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	if err := w.addRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Run delivers batches until ctx is done, then releases the underlying
// watcher. A batch still pending at shutdown is delivered with a context that
// carries ctx's values but is not cancelled, so the handler can finish it.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time
	flush := func(ctx context.Context) {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if len(pending) == 0 {
			return
		}
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		slices.Sort(paths)
		clear(pending)
		w.handler(ctx, paths)
	}

	for {
		select {
		case <-ctx.Done():
			flush(context.WithoutCancel(ctx))
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				flush(ctx)
				return nil
			}
			if !w.accept(event) {
				continue
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				flush(ctx)
				return nil
			}
			w.logger.Warn("watch error", "root", w.root, "error", err)
		case <-timerC:
			timer, timerC = nil, nil
			flush(ctx)
		}
	}
}

// accept reports whether event names a matching regular file. Directories
// created under the root are added to the watch list.
func (w *Watcher) accept(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return false
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("watch directory", "path", event.Name, "error", err)
			}
		}
		return false
	}
	return w.match == nil || w.match(event.Name)
}
