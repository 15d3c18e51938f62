// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/qubi-tui/internal/lifecycle"
	"github.com/jeranaias/qubi-tui/internal/prefs"
	"github.com/jeranaias/qubi-tui/internal/ui/chat"
	"github.com/jeranaias/qubi-tui/internal/ui/styles"
)

// disposeTimeout bounds the model unload on exit.
const disposeTimeout = 10 * time.Second

// =============================================================================
// MESSAGE PUMP
// =============================================================================

// pump queues messages for a tea.Program. Program.Send blocks until the
// event loop reads, so publishers post here and one goroutine delivers.
type pump struct {
	ctx context.Context
	ch  chan tea.Msg
}

func startPump(ctx context.Context, send func(tea.Msg)) *pump {
	p := &pump{ctx: ctx, ch: make(chan tea.Msg, 64)}
	go func() {
		for {
			select {
			case msg := <-p.ch:
				send(msg)
			case <-ctx.Done():
				return
			}
		}
	}()
	return p
}

// post enqueues msg, or drops it once the pump is stopped.
func (p *pump) post(msg tea.Msg) {
	select {
	case p.ch <- msg:
	case <-p.ctx.Done():
	}
}

// bindCoordinator forwards every coordinator signal as a chat message. The
// returned function removes all subscriptions.
func bindCoordinator(c *lifecycle.Coordinator, post func(tea.Msg)) func() {
	stops := []func(){
		c.Loaded().Subscribe(func(v bool) { post(chat.LoadedMsg{Loaded: v}) }),
		c.Progress().Subscribe(func(s string) { post(chat.ProgressMsg{Text: s}) }),
		c.Fraction().Subscribe(func(f float64) { post(chat.FractionMsg{Fraction: f}) }),
		c.State().Subscribe(func(s lifecycle.LoadingState) { post(chat.StateMsg{State: s}) }),
		c.CacheStatus().Subscribe(func(s lifecycle.CacheStatus) { post(chat.CacheStatusMsg{Status: s}) }),
		c.OnGuidance(func(s string) { post(chat.GuidanceMsg{Text: s}) }),
	}
	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}

// syncedThemes saves the theme and tells the preference watcher, once one
// is attached, so the UI's own writes are not reported back to it.
type syncedThemes struct {
	store   *prefs.Store
	watcher atomic.Pointer[prefs.Watcher]
}

func (s *syncedThemes) SetTheme(ctx context.Context, t prefs.Theme) error {
	if err := s.store.SetTheme(ctx, t); err != nil {
		return err
	}
	if w := s.watcher.Load(); w != nil {
		w.Sync(s.store.Load(ctx))
	}
	return nil
}

// =============================================================================
// FULL-SCREEN UI
// =============================================================================

func runTUI(ctx context.Context, e *env) error {
	app, err := NewApp(e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), disposeTimeout)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			e.logger.Warn("shutdown failed", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stored := app.Prefs.Load(ctx)
	theme := styles.NewTheme(styles.ParseMode(string(stored.Theme)))
	themes := &syncedThemes{store: app.Prefs}

	m := chat.New(chat.Options{
		Context:       ctx,
		Lifecycle:     app.Coordinator,
		Sender:        app.Mediator,
		Themes:        themes,
		Theme:         theme,
		ModelID:       e.cfg.Engine.Model,
		AutoLoad:      stored.AutoLoad,
		NotReadyDelay: e.cfg.NotReadyDelay(),
		Logger:        e.logger.Named("ui"),
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	q := startPump(ctx, p.Send)
	unbind := bindCoordinator(app.Coordinator, q.post)
	defer unbind()

	watcher, err := app.WatchPrefs(func(changed prefs.Preferences) {
		q.post(chat.ThemeChangedMsg{Theme: changed.Theme})
	})
	if err != nil {
		e.logger.Warn("preference watcher disabled", zap.Error(err))
	} else {
		themes.watcher.Store(watcher)
		defer watcher.Close()
	}

	autoLoad := stored.AutoLoad && !e.noAutoLoad
	go func() {
		if err := app.Coordinator.Startup(ctx, autoLoad); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Warn("startup load failed", zap.Error(err))
		}
	}()

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
