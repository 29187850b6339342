// Package watch rebuilds extensions when their sources change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the tree must stay quiet before a rebuild.
const DefaultDebounce = 300 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Roots are the directories watched recursively.
	Roots []string
	// Ignore lists directories whose events never trigger a rebuild,
	// typically the build output directories.
	Ignore []string
	// IgnoreSuffixes lists file suffixes, such as built libraries written
	// next to the sources, whose events never trigger a rebuild.
	IgnoreSuffixes []string
	Debounce       time.Duration
	Logger         *zap.Logger
}

// Watcher turns bursts of filesystem events into single rebuild calls.
type Watcher struct {
	fs             *fsnotify.Watcher
	ignore         []string
	ignoreSuffixes []string
	debounce       time.Duration
	logger         *zap.Logger
}

// New creates a watcher over opts.Roots.
func New(opts Options) (*Watcher, error) {
	if len(opts.Roots) == 0 {
		return nil, errors.New("watch requires at least one source directory")
	}

	w := &Watcher{
		ignoreSuffixes: opts.IgnoreSuffixes,
		debounce:       opts.Debounce,
		logger:         opts.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	for _, dir := range opts.Ignore {
		if abs, err := filepath.Abs(dir); err == nil {
			w.ignore = append(w.ignore, abs)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	w.fs = fsw

	for _, root := range opts.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("resolve watch root: %w", err)
		}
		if st, err := os.Stat(abs); err != nil || !st.IsDir() {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch root not found or not a directory: %s", abs)
		}
		w.addDirsRecursive(abs)
	}

	return w, nil
}

// Run blocks until ctx is done, calling rebuild after each quiet period that
// follows a relevant change. Rebuilds never overlap; changes arriving during a
// rebuild queue exactly one more. A rebuild error is logged and watching
// continues.
func (w *Watcher) Run(ctx context.Context, rebuild func(context.Context) error) error {
	defer func() { _ = w.fs.Close() }()

	requests := make(chan struct{}, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.rebuildLoop(ctx, requests, rebuild)
	}()
	defer wg.Wait()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			select {
			case requests <- struct{}{}:
			default:
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) rebuildLoop(ctx context.Context, requests <-chan struct{}, rebuild func(context.Context) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-requests:
			w.logger.Info("Change detected; rebuilding")
			if err := rebuild(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				w.logger.Warn("rebuild failed", zap.Error(err))
			}
		}
	}
}

// handleEvent reports whether ev should schedule a rebuild.
func (w *Watcher) handleEvent(ev fsnotify.Event) bool {
	if w.shouldIgnore(ev.Name) {
		return false
	}
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			w.addDirsRecursive(ev.Name)
		}
	}
	w.logger.Debug("File change detected", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
	return true
}

func (w *Watcher) addDirsRecursive(root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			w.logger.Warn("watch add failed", zap.String("dir", path), zap.Error(err))
		}
		return nil
	})
}

// shouldIgnore skips build output, hidden entries and editor temp files.
func (w *Watcher) shouldIgnore(path string) bool {
	for _, dir := range w.ignore {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	base := filepath.Base(path)
	for _, suffix := range w.ignoreSuffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}

	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "#") {
		return true
	}
	if strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".swx") {
		return true
	}
	return base == "__pycache__"
}
