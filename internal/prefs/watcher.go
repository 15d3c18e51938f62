// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prefs

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jeranaias/qubi-tui/internal/logging"
)

// Watcher reloads preferences when another process changes the database
// file and reports the new values.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	base     string
	debounce time.Duration
	onChange func(Preferences)
	logger   *zap.Logger

	mu   sync.Mutex
	last Preferences

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher watches the directory holding dbPath. onChange is called from
// the watcher goroutine with each distinct set of preferences.
func NewWatcher(store *Store, dbPath string, debounce time.Duration, onChange func(Preferences), logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create prefs watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(dbPath)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(dbPath), err)
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		store:    store,
		watcher:  fw,
		base:     filepath.Base(dbPath),
		debounce: debounce,
		onChange: onChange,
		logger:   logging.OrNop(logger),
		last:     store.Load(ctx),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Close stops watching and waits for the goroutine to exit.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	return err
}

// Sync records p as the current state so that the caller's own writes are
// not reported back.
func (w *Watcher) Sync(p Preferences) {
	w.mu.Lock()
	w.last = p
	w.mu.Unlock()
}

func (w *Watcher) run() {
	defer close(w.done)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// prefs.db, prefs.db-wal and prefs.db-shm all signal a change.
			if !strings.HasPrefix(filepath.Base(event.Name), w.base) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("prefs watcher error", zap.Error(err))

		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	p := w.store.Load(w.ctx)

	w.mu.Lock()
	changed := p != w.last
	w.last = p
	w.mu.Unlock()

	if changed && w.onChange != nil {
		w.logger.Debug("preferences changed externally",
			zap.String("theme", string(p.Theme)),
			zap.Bool("auto_load", p.AutoLoad))
		w.onChange(p)
	}
}
