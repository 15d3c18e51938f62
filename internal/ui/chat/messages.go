// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/qubi-tui/internal/lifecycle"
	"github.com/jeranaias/qubi-tui/internal/prefs"
)

// =============================================================================
// TRANSCRIPT TEXT
// =============================================================================

const (
	Greeting     = "Hello! I'm Qubi, your AI assistant. How can I help you today?"
	LoadedNotice = "Model loaded successfully! I'm ready to assist you."
	NotReadyText = "Please load the model first by choosing \"Load Model\" in the menu (ctrl+o) before I can respond to your message."
	ApologyText  = "Sorry, I encountered an error processing your message. Please try to load the model from the menu."
	GuidanceText = "I notice the AI model isn't loaded yet. Please choose \"Load Model\" in the menu (ctrl+o) to enable full functionality."

	AutoLoadOnText  = "Auto-load enabled. Checking for cached model..."
	AutoLoadOffText = "Auto-load disabled. The model will need to be loaded manually next time you start qubi."
)

// =============================================================================
// LIFECYCLE SIGNALS
// =============================================================================
//
// The composition root subscribes to the coordinator and forwards each
// published value into the program with one of these messages.

// LoadedMsg carries the loaded flag.
type LoadedMsg struct{ Loaded bool }

// ProgressMsg carries the latest progress text.
type ProgressMsg struct{ Text string }

// FractionMsg carries the load progress in [0, 1].
type FractionMsg struct{ Fraction float64 }

// StateMsg carries the coarse loading state.
type StateMsg struct{ State lifecycle.LoadingState }

// CacheStatusMsg carries the cache probe result.
type CacheStatusMsg struct{ Status lifecycle.CacheStatus }

// GuidanceMsg is the one-shot hint shown after a cache miss.
type GuidanceMsg struct{ Text string }

// ThemeChangedMsg reports a theme written by another qubi process.
type ThemeChangedMsg struct{ Theme prefs.Theme }

// =============================================================================
// INTERNAL RESULTS
// =============================================================================

// replyMsg is the outcome of one mediator call.
type replyMsg struct {
	text string
	err  error
}

// notReadyMsg fires after the not-ready delay.
type notReadyMsg struct{}

// menuAction identifies a menu entry.
type menuAction int

const (
	actionLoad menuAction = iota
	actionAutoLoad
	actionTheme
	actionClearCache
	actionQuit
)

// actionDoneMsg reports a finished background menu action.
type actionDoneMsg struct {
	action menuAction
	err    error
}

// themeSavedMsg reports the theme preference write.
type themeSavedMsg struct {
	theme prefs.Theme
	err   error
}

// copiedMsg reports a clipboard write.
type copiedMsg struct {
	chars int
	err   error
}
