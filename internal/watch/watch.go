// Package watch re-parses definition files as they change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/uox3/dfn"
)

// DefaultDebounce is how long a file must stay quiet before it is parsed.
const DefaultDebounce = 200 * time.Millisecond

// Handler receives the result of every re-parse.
type Handler func(dfn.FileResult)

// Watcher watches the roots of a workspace. Directories are watched
// recursively, including ones created after Start.
type Watcher struct {
	ws       *dfn.Workspace
	log      zerolog.Logger
	onResult Handler
	debounce time.Duration

	watcher *fsnotify.Watcher
	files   map[string]bool // roots that name a single file
	dirs    map[string]bool

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
	done    chan struct{}
}

// New creates a watcher that reports to onResult.
func New(ws *dfn.Workspace, logger zerolog.Logger, onResult Handler) *Watcher {
	return &Watcher{
		ws:       ws,
		log:      logger.With().Str("component", "watch").Logger(),
		onResult: onResult,
		debounce: DefaultDebounce,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		pending:  make(map[string]*time.Timer),
		ready:    make(chan string, 64),
		done:     make(chan struct{}),
	}
}

// WithDebounce overrides DefaultDebounce.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Start registers every root and begins processing events in the background.
// Watching stops when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.watcher = watcher

	for _, root := range w.ws.Roots() {
		if err := w.addRoot(root); err != nil {
			watcher.Close()
			return err
		}
	}

	w.log.Info().Int("directories", len(w.dirs)).Int("files", len(w.files)).Msg("watching")
	go w.loop(ctx)
	return nil
}

// Done is closed once the watcher has stopped.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) addRoot(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		w.files[abs] = true
		return w.watcher.Add(filepath.Dir(abs))
	}
	return w.addTree(abs)
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || w.dirs[path] {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.dirs[path] = true
		return nil
	})
}

// wanted reports whether events on path should trigger a parse.
func (w *Watcher) wanted(path string) bool {
	if w.files[path] {
		return true
	}
	return w.dirs[filepath.Dir(path)] && w.ws.Matches(path)
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	defer w.stopTimers()
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("watcher error")

		case path := <-w.ready:
			w.parse(path)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		if event.Has(fsnotify.Create) && w.dirs[filepath.Dir(event.Name)] {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := w.addTree(event.Name); err != nil {
					w.log.Warn().Err(err).Str("dir", event.Name).Msg("failed to watch new directory")
				}
				return
			}
		}
		if w.wanted(event.Name) {
			w.schedule(event.Name)
		}

	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		delete(w.dirs, event.Name)
		if w.wanted(event.Name) {
			w.log.Info().Str("file", event.Name).Str("op", event.Op.String()).Msg("file removed")
		}
	}
}

// schedule parses path once it has been quiet for the debounce interval.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case w.ready <- path:
		case <-w.done:
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) parse(path string) {
	res, err := w.ws.ParseFile(path)
	if err != nil {
		// The file may be gone again by the time the timer fires.
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		w.log.Warn().Err(err).Str("file", path).Msg("failed to parse")
		return
	}
	w.log.Debug().Str("file", path).Int("diagnostics", len(res.Diagnostics)).Msg("parsed")
	if w.onResult != nil {
		w.onResult(res)
	}
}
