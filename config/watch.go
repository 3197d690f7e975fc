package config

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Swind/go-tickworker/core"
	"github.com/cenkalti/backoff/v5"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last file event
// before reloading, so editors that write in several steps trigger one reload.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a config file when it changes on disk and hands every
// valid, changed config to a callback. Invalid files are logged and skipped.
type Watcher struct {
	path     string
	log      core.Logger
	debounce time.Duration

	mu  sync.RWMutex
	cur *Config

	timerMu sync.Mutex
	timer   *time.Timer
}

// NewWatcher creates a watcher for path. initial is the config already in
// effect; nil means Default.
func NewWatcher(path string, initial *Config, log core.Logger) *Watcher {
	if initial == nil {
		initial = Default()
	}
	if log == nil {
		log = core.NewNoOpLogger()
	}
	return &Watcher{
		path:     path,
		log:      log,
		debounce: DefaultDebounce,
		cur:      initial,
	}
}

// SetDebounce overrides DefaultDebounce. Call before Run.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Current returns the last committed config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cur
}

// Reload parses the file now and, if it differs from Current, commits it
// and calls onChange. It reports whether a new config was committed.
func (w *Watcher) Reload(onChange func(*Config)) (bool, error) {
	cfg, err := Load(w.path)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	unchanged := w.cur != nil && *w.cur == *cfg
	if !unchanged {
		w.cur = cfg
	}
	w.mu.Unlock()

	if unchanged {
		w.log.Debug("config unchanged; skipping", core.F("path", w.path))
		return false, nil
	}
	if onChange != nil {
		onChange(cfg)
	}
	w.log.Info("config reloaded", core.F("path", w.path))
	return true, nil
}

// Run watches the directory holding the file until ctx is done. A broken
// fsnotify watcher is recreated with exponential backoff.
func (w *Watcher) Run(ctx context.Context, onChange func(*Config)) error {
	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)
	defer w.stopTimer()

	for {
		fw, err := backoff.Retry(ctx, func() (*fsnotify.Watcher, error) {
			fw, err := fsnotify.NewWatcher()
			if err != nil {
				return nil, err
			}
			if err := fw.Add(dir); err != nil {
				_ = fw.Close()
				return nil, err
			}
			return fw, nil
		},
			backoff.WithBackOff(newRestartBackOff()),
			backoff.WithMaxElapsedTime(0),
			backoff.WithNotify(func(err error, wait time.Duration) {
				w.log.Warn("config watch init failed", core.F("dir", dir), core.F("error", err), core.F("retry_in", wait))
			}),
		)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		w.log.Debug("config watcher started", core.F("dir", dir), core.F("file", file))
		if done := w.watch(ctx, fw, file, onChange); done {
			return nil
		}
		w.log.Warn("config watcher broke; restarting", core.F("dir", dir))
	}
}

// watch runs until ctx is done (true) or the watcher breaks (false).
func (w *Watcher) watch(ctx context.Context, fw *fsnotify.Watcher, file string, onChange func(*Config)) bool {
	defer fw.Close()
	for {
		select {
		case <-ctx.Done():
			return true
		case ev, ok := <-fw.Events:
			if !ok {
				return false
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule(onChange)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return false
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.schedule(onChange)
				continue
			}
			w.log.Warn("config watch error", core.F("error", err))
		}
	}
}

func (w *Watcher) schedule(onChange func(*Config)) {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if _, err := w.Reload(onChange); err != nil {
			w.log.Warn("config reload failed", core.F("path", w.path), core.F("error", err))
		}
	})
}

func (w *Watcher) stopTimer() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func newRestartBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}
