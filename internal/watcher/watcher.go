// Package watcher watches the image cache directory and reports product ids
// whose image arrives after startup, so they can be indexed incrementally.
package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches one directory for newly arrived product images.
type Watcher struct {
	dir         string
	onImage     func(productID string)
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug events.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the event debounce window (tests).
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over dir. onImage is called with the product id
// (image filename without extension) once a new image settles on disk.
func NewWatcher(dir string, onImage func(productID string), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		dir:         dir,
		onImage:     onImage,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = fsw
	w.started = true
	if w.logger != nil {
		w.logger.Debug("image watcher starting", zap.String("dir", w.dir))
	}
	w.mu.Unlock()
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("image watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	id := productIDFromPath(ev.Name)
	if id == "" {
		return
	}
	switch {
	// Create covers both fresh downloads and the cache's rename-into-place.
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		w.scheduleNotify(id)
	}
}

// scheduleNotify debounces per id: a burst of writes for one image results in
// a single onImage call after the file stops changing.
func (w *Watcher) scheduleNotify(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.debounceMap[id]; ok {
		timer.Stop()
	}
	w.debounceMap[id] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, id)
		w.mu.Unlock()
		if w.logger != nil {
			w.logger.Debug("image arrived", zap.String("product_id", id))
		}
		w.onImage(id)
	})
}

// Stop stops the watcher and cancels pending debounce timers.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		close(w.done)
		for id, timer := range w.debounceMap {
			timer.Stop()
			delete(w.debounceMap, id)
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
	})
}

// productIDFromPath maps an image path to its product id. Temp download files
// and non-jpg files are ignored.
func productIDFromPath(path string) string {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return ""
	}
	if !strings.EqualFold(filepath.Ext(base), ".jpg") {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
