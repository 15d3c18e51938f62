// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/qubi-tui/internal/lifecycle"
	"github.com/jeranaias/qubi-tui/internal/mediator"
	"github.com/jeranaias/qubi-tui/internal/prefs"
)

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// sendCmd asks the mediator for a reply. There is no timeout; the call ends
// when the engine answers or ctx is cancelled on shutdown.
func sendCmd(ctx context.Context, sender Sender, text string) tea.Cmd {
	return func() tea.Msg {
		if sender == nil {
			return replyMsg{err: mediator.ErrModelNotInitialized}
		}
		reply, err := sender.Send(ctx, text)
		return replyMsg{text: reply, err: err}
	}
}

// notReadyCmd fires notReadyMsg after delay.
func notReadyCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg { return notReadyMsg{} })
}

// lifecycleCmd runs one coordinator operation off the UI loop.
func lifecycleCmd(action menuAction, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{action: action, err: fn()}
	}
}

// themeWriter serializes theme writes. Each toggle takes a ticket on the
// UI loop; a write whose ticket is older than the last one stored is
// dropped, so the store ends on the theme shown.
type themeWriter struct {
	store ThemeStore

	issued  atomic.Uint64
	mu      sync.Mutex
	written uint64
}

func newThemeWriter(store ThemeStore) *themeWriter {
	if store == nil {
		return nil
	}
	return &themeWriter{store: store}
}

func (w *themeWriter) ticket() uint64 {
	return w.issued.Add(1)
}

// write stores t unless a later ticket was already written.
func (w *themeWriter) write(ctx context.Context, seq uint64, t prefs.Theme) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if seq <= w.written {
		return false, nil
	}
	w.written = seq
	return true, w.store.SetTheme(ctx, t)
}

func saveThemeCmd(ctx context.Context, w *themeWriter, t prefs.Theme) tea.Cmd {
	if w == nil {
		return nil
	}
	seq := w.ticket()
	return func() tea.Msg {
		wrote, err := w.write(ctx, seq, t)
		if !wrote {
			return nil
		}
		return themeSavedMsg{theme: t, err: err}
	}
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{chars: len([]rune(text)), err: copyToClipboard(text)}
	}
}

// replyErrorText picks the transcript text for a failed chat call.
func replyErrorText(err error) string {
	if errors.Is(err, mediator.ErrModelNotInitialized) {
		return NotReadyText
	}
	return ApologyText
}

// =============================================================================
// MENU
// =============================================================================

type menuItem struct {
	label  string
	action menuAction
}

// menuItems lists the entries; labels reflect the current state.
func (m Model) menuItems() []menuItem {
	load := "Load Model"
	if m.loaded {
		load = "Reload Model"
	}
	autoLoad := "Auto-load: off"
	if m.autoLoad {
		autoLoad = "Auto-load: on"
	}
	return []menuItem{
		{load, actionLoad},
		{autoLoad, actionAutoLoad},
		{"Theme: " + m.theme.Attribute(), actionTheme},
		{"Clear model cache", actionClearCache},
		{"Quit", actionQuit},
	}
}

func (m Model) handleMenuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.menuItems()
	switch {
	case key.Matches(msg, m.keyMap.MenuClose):
		m.menuOpen = false
	case key.Matches(msg, m.keyMap.Up), msg.String() == "shift+tab":
		m.menuIndex = (m.menuIndex - 1 + len(items)) % len(items)
	case key.Matches(msg, m.keyMap.Down), msg.String() == "tab":
		m.menuIndex = (m.menuIndex + 1) % len(items)
	case key.Matches(msg, m.keyMap.MenuSelect):
		m.menuOpen = false
		return m.runAction(items[m.menuIndex].action)
	}
	return m, nil
}

// runAction performs a menu entry.
func (m Model) runAction(action menuAction) (tea.Model, tea.Cmd) {
	lc := m.opts.Lifecycle
	switch action {
	case actionLoad:
		if lc == nil {
			return m, nil
		}
		m.statusMsg = ""
		return m, lifecycleCmd(actionLoad, func() error { return lc.Load(m.ctx) })

	case actionAutoLoad:
		m.autoLoad = !m.autoLoad
		enabled := m.autoLoad
		if enabled && !m.loaded {
			m.appendAssistant(AutoLoadOnText)
		} else if !enabled {
			m.appendAssistant(AutoLoadOffText)
		}
		if lc == nil {
			return m, nil
		}
		return m, lifecycleCmd(actionAutoLoad, func() error { return lc.SetAutoLoad(m.ctx, enabled) })

	case actionTheme:
		return m.toggleTheme()

	case actionClearCache:
		if lc == nil {
			return m, nil
		}
		m.statusMsg = "Clearing model cache..."
		return m, lifecycleCmd(actionClearCache, func() error { return lc.ClearCache(m.ctx) })

	case actionQuit:
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleActionDone(msg actionDoneMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.err == nil:
		if msg.action == actionClearCache {
			m.statusMsg = "Model cache cleared"
		}
	case errors.Is(msg.err, lifecycle.ErrLoadInProgress):
		m.statusMsg = "Model load already in progress"
	case errors.Is(msg.err, context.Canceled):
	default:
		m.logger.Error("menu action failed", zap.Int("action", int(msg.action)), zap.Error(msg.err))
		m.statusMsg = msg.err.Error()
	}
	return m, nil
}
