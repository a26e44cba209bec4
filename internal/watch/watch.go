// Package watch reports changes to case and augmentation documents.
//
// A Watcher observes a fixed set of directories with fsnotify and calls a
// handler with the changed document paths once the directories have been
// quiet for the debounce interval. Editors that save through several
// writes produce one call.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period before changes are reported.
const DefaultDebounce = 300 * time.Millisecond

// Func handles one batch of changed paths, sorted and de-duplicated.
type Func func(ctx context.Context, paths []string) error

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithDebounce sets the quiet period. Values <= 0 keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithFilter sets the predicate that decides which paths are documents.
// Default is IsDocument.
func WithFilter(isDocument func(path string) bool) Option {
	return func(w *Watcher) {
		if isDocument != nil {
			w.isDocument = isDocument
		}
	}
}

// Watcher watches directories for document changes.
type Watcher struct {
	fs         *fsnotify.Watcher
	dirs       []string
	debounce   time.Duration
	isDocument func(string) bool
	logger     *zap.Logger
	closeOnce  sync.Once
	closeErr   error
}

// New starts watching dirs. Directories that do not exist are skipped with
// a warning; a directory created later inside a watched one is picked up.
func New(dirs []string, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:         fsw,
		debounce:   DefaultDebounce,
		isDocument: IsDocument,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, dir := range dirs {
		dir = filepath.Clean(dir)
		if slices.Contains(w.dirs, dir) {
			continue
		}
		if err := w.fs.Add(dir); err != nil {
			w.logger.Warn("directory not watched", zap.String("dir", dir), zap.Error(err))
			continue
		}
		w.dirs = append(w.dirs, dir)
		w.logger.Debug("watching directory", zap.String("dir", dir))
	}
	return w, nil
}

// Dirs returns the directories being watched.
func (w *Watcher) Dirs() []string {
	return slices.Clone(w.dirs)
}

// Run delivers batches of changed documents to fn until ctx is cancelled.
// Handler errors are logged and do not stop the watcher. Run closes the
// Watcher before returning.
func (w *Watcher) Run(ctx context.Context, fn Func) error {
	defer w.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.handle(event) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)
			fire = timer.C

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			slices.Sort(paths)

			w.logger.Debug("documents changed", zap.Strings("paths", paths))
			if err := fn(ctx, paths); err != nil {
				w.logger.Error("change handler failed", zap.Error(err))
			}
		}
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.fs.Close()
	})
	return w.closeErr
}

// handle reports whether event concerns a document. New directories are
// added to the watch list as a side effect.
func (w *Watcher) handle(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fs.Add(event.Name); err != nil {
				w.logger.Warn("directory not watched", zap.String("dir", event.Name), zap.Error(err))
			} else {
				w.logger.Debug("watching directory", zap.String("dir", event.Name))
			}
			return false
		}
	}
	return w.isDocument(event.Name)
}

// IsDocument reports whether path names a YAML document. Hidden files,
// including atomic write temp files, are not documents.
func IsDocument(path string) bool {
	return DocumentFilter(nil)(path)
}

// DocumentFilter returns a predicate accepting non-hidden files that either
// have a .yml, .yaml or one of exts extension, or sit directly in one of
// dirs whatever their extension.
func DocumentFilter(exts []string, dirs ...string) func(path string) bool {
	accepted := []string{".yml", ".yaml"}
	for _, ext := range exts {
		accepted = append(accepted, strings.ToLower(ext))
	}
	anyFile := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		anyFile = append(anyFile, filepath.Clean(dir))
	}

	return func(path string) bool {
		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") {
			return false
		}
		if slices.Contains(anyFile, filepath.Dir(path)) {
			return true
		}
		return slices.Contains(accepted, strings.ToLower(filepath.Ext(base)))
	}
}
