package guard

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/msageha/foresight/internal/events"
)

// RuleWatcher hot-reloads the rule file into the engine's table when it
// changes on disk. The parent directory is watched, not the file itself, so
// atomic tmp-then-rename replacement is still observed.
type RuleWatcher struct {
	engine   *Engine
	path     string
	bus      *events.Bus
	logger   *log.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func NewRuleWatcher(engine *Engine, path string, bus *events.Bus, logger *log.Logger) *RuleWatcher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &RuleWatcher{
		engine:   engine,
		path:     filepath.Clean(path),
		bus:      bus,
		logger:   logger,
		debounce: 200 * time.Millisecond,
	}
}

// Start begins watching. The initial load is the caller's responsibility; a
// missing file at start is fine, the first write will load it.
func (w *RuleWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create rule watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.watcher = watcher

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop stops the watcher and waits for the loop to exit.
func (w *RuleWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.wg.Wait()
}

func (w *RuleWatcher) loop(ctx context.Context) {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Debounce: editors and atomic writers fire bursts of events.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("rule watcher error: %v", err)
		}
	}
}

func (w *RuleWatcher) reload() {
	if err := w.engine.Rules().LoadFile(w.path); err != nil {
		// Keep the previous rule set on a bad reload.
		w.logger.Printf("rule reload failed, keeping previous rules: %v", err)
		return
	}
	w.engine.InvalidateCache()
	w.logger.Printf("rules reloaded from %s (%d rules)", w.path, len(w.engine.Rules().Rules()))
	if w.bus != nil {
		w.bus.Publish(events.EventRulesReloaded, map[string]interface{}{
			"path":  w.path,
			"rules": len(w.engine.Rules().Rules()),
		})
	}
}
