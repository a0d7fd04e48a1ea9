package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	apperrors "bootstrap-core/internal/errors"
)

// DefaultDebounce is how long the watcher waits after the last file event before
// reloading.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads a store's slot whenever its file changes and notifies callbacks
// with the new value.
type Watcher[T any] struct {
	store     *Store[T]
	logger    *zap.Logger
	debounce  time.Duration
	current   T
	callbacks []func(T)
	mu        sync.RWMutex
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*watcherOptions)

type watcherOptions struct {
	logger   *zap.Logger
	debounce time.Duration
}

// WithWatchLogger sets the watcher's logger.
func WithWatchLogger(logger *zap.Logger) WatcherOption {
	return func(o *watcherOptions) { o.logger = logger }
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(o *watcherOptions) { o.debounce = d }
}

// NewWatcher creates a watcher for store. Call Start to begin watching.
func NewWatcher[T any](store *Store[T], opts ...WatcherOption) *Watcher[T] {
	o := watcherOptions{debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return &Watcher[T]{
		store:    store,
		logger:   o.logger.With(zap.String("slot", store.Slot().Path())),
		debounce: o.debounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start loads the current value and begins watching the slot's directory, which
// is created when absent.
func (w *Watcher[T]) Start(ctx context.Context) error {
	initial, err := w.store.Load(ctx)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.current = initial
	w.mu.Unlock()

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return w.watchFailure("failed to create file watcher", err)
	}
	if err := ensureDir(w.store.Slot().Dir()); err != nil {
		fsWatcher.Close()
		return w.watchFailure("failed to create config directory", err)
	}
	if err := fsWatcher.Add(w.store.Slot().Dir()); err != nil {
		fsWatcher.Close()
		return w.watchFailure("failed to watch config directory", err)
	}
	w.watcher = fsWatcher

	go w.watchLoop()

	w.logger.Info("Configuration hot reloading enabled", zap.Duration("debounce", w.debounce))
	return nil
}

func (w *Watcher[T]) watchFailure(msg string, cause error) error {
	return apperrors.Internal(apperrors.CodeWatchFailed, msg).
		WithOperation("config.Watch").
		WithResource(w.store.Slot().Path()).
		WithCause(cause).
		Build()
}

// watchLoop monitors for file changes and triggers debounced reloads.
func (w *Watcher[T]) watchLoop() {
	defer close(w.doneCh)
	defer w.watcher.Close()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	target := w.store.Slot().Path()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			w.logger.Debug("Configuration file changed", zap.String("operation", event.Op.String()))

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))

		case <-w.stopCh:
			w.logger.Info("Stopping configuration watcher")
			return
		}
	}
}

// reload loads the slot and notifies callbacks when the value changed. Load errors
// are logged and the previous value is kept.
func (w *Watcher[T]) reload() {
	select {
	case <-w.stopCh:
		return
	default:
	}

	next, err := w.store.Load(context.Background())
	if err != nil {
		apperrors.Log(w.logger, err, "Invalid configuration after reload")
		return
	}

	w.mu.Lock()
	if reflect.DeepEqual(w.current, next) {
		w.mu.Unlock()
		w.logger.Debug("Configuration unchanged after reload")
		return
	}
	w.current = next
	callbacks := make([]func(T), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	for i, cb := range callbacks {
		w.notify(i, cb, next)
	}

	w.logger.Info("Configuration reloaded", zap.Int("callbacks_notified", len(callbacks)))
}

func (w *Watcher[T]) notify(idx int, cb func(T), value T) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Callback panicked",
				zap.Int("callback_index", idx),
				zap.Any("panic", r),
			)
		}
	}()
	cb(value)
}

// OnChange registers a callback invoked with each new value.
func (w *Watcher[T]) OnChange(callback func(T)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, callback)
	w.mu.Unlock()
}

// Current returns the most recently loaded value.
func (w *Watcher[T]) Current() T {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Stop stops watching and waits for the watch loop to exit. It is safe to call
// more than once.
func (w *Watcher[T]) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if w.watcher != nil {
			<-w.doneCh
		}
	})
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
