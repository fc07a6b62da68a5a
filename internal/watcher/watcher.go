// Package watcher watches the agent's configuration file and invokes a
// callback when it changes. The callback is expected to trigger a
// reconfigure; the watcher never blocks on the callback's outcome.
package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pulsekit/pulse/core"
)

// debounceWindow coalesces the burst of events editors and atomic renames
// produce for a single logical save.
const debounceWindow = 250 * time.Millisecond

// Watcher watches a single file for writes, creates, and renames
type Watcher struct {
	path     string
	onChange func()
	logger   core.Logger

	fsw  *fsnotify.Watcher
	done chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// New creates a watcher for path. onChange fires at most once per debounce
// window, from the watcher's own goroutine.
func New(path string, onChange func(), logger core.Logger) (*Watcher, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, core.NewAgentError("watcher.New", "config", err)
	}

	return &Watcher{
		path:     abs,
		onChange: onChange,
		logger:   logger,
	}, nil
}

// Start begins watching. The parent directory is watched rather than the
// file itself so atomic-rename saves (vim, k8s ConfigMap updates) are seen.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return core.ErrAlreadyStarted
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return core.NewAgentError("watcher.Start", "config", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return core.NewAgentError("watcher.Start", "config", err)
	}

	w.fsw = fsw
	w.done = make(chan struct{})
	w.started = true
	w.wg.Add(1)

	go w.loop()

	w.logger.Info("Config watcher started", map[string]interface{}{
		"path": w.path,
	})
	return nil
}

// Stop halts watching and waits for the event loop to exit. Idempotent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	close(w.done)
	fsw := w.fsw
	w.mu.Unlock()

	_ = fsw.Close()
	w.wg.Wait()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var lastFire time.Time

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if time.Since(lastFire) < debounceWindow {
				continue
			}
			lastFire = time.Now()

			w.logger.Info("Config file changed", map[string]interface{}{
				"path": w.path,
				"op":   event.Op.String(),
			})
			w.onChange()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("Config watcher error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op.Has(fsnotify.Write) ||
		event.Op.Has(fsnotify.Create) ||
		event.Op.Has(fsnotify.Rename)
}
