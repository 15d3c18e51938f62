// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Mode is the presentation attribute: "light" or "dark".
type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

// ParseMode maps "dark" to Dark and anything else to Light.
func ParseMode(s string) Mode {
	if s == string(Dark) {
		return Dark
	}
	return Light
}

// Toggle returns the opposite mode.
func (m Mode) Toggle() Mode {
	if m == Dark {
		return Light
	}
	return Dark
}

// Theme holds all the styled components for the application. The mode is
// chosen explicitly from preferences rather than detected, so the same
// terminal can show either palette.
type Theme struct {
	mode Mode
	dark bool

	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	// ==========================================================================
	// TRANSCRIPT
	// ==========================================================================

	UserLabel       lipgloss.Style
	AssistantLabel  lipgloss.Style
	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	Timestamp       lipgloss.Style

	// ==========================================================================
	// INPUT
	// ==========================================================================

	InputContainer   lipgloss.Style
	InputPrompt      lipgloss.Style
	InputPlaceholder lipgloss.Style

	// ==========================================================================
	// STATUS LINE
	// ==========================================================================

	StatusBar     lipgloss.Style
	StatusIdle    lipgloss.Style
	StatusLoading lipgloss.Style
	StatusLoaded  lipgloss.Style
	StatusError   lipgloss.Style
	ProgressText  lipgloss.Style
	ShortcutKey   lipgloss.Style
	ShortcutDesc  lipgloss.Style

	// ==========================================================================
	// MENU
	// ==========================================================================

	MenuBox          lipgloss.Style
	MenuTitle        lipgloss.Style
	MenuItem         lipgloss.Style
	MenuItemSelected lipgloss.Style
	MenuHint         lipgloss.Style

	Spinner lipgloss.Style
	Muted   lipgloss.Style
}

// NewTheme creates a theme in the given mode.
func NewTheme(mode Mode) *Theme {
	t := &Theme{ColorProfile: termenv.ColorProfile()}
	t.SetMode(mode)
	return t
}

// Mode returns the presentation attribute.
func (t *Theme) Mode() Mode { return t.mode }

// Attribute returns the presentation attribute as a string.
func (t *Theme) Attribute() string { return string(t.mode) }

// IsDark reports the dark flag. It always agrees with Mode.
func (t *Theme) IsDark() bool { return t.dark }

// SetMode switches the attribute and the dark flag together and rebuilds
// every style.
func (t *Theme) SetMode(mode Mode) {
	mode = ParseMode(string(mode))
	t.mode = mode
	t.dark = mode == Dark
	lipgloss.SetHasDarkBackground(t.dark)
	t.initStyles()
}

// Toggle flips the mode and returns the new one.
func (t *Theme) Toggle() Mode {
	t.SetMode(t.mode.Toggle())
	return t.mode
}

// GlamourStyle names the glamour standard style matching the mode.
func (t *Theme) GlamourStyle() string {
	if t.dark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	c := func(ac lipgloss.AdaptiveColor) lipgloss.Color { return pick(ac, t.dark) }

	t.Header = lipgloss.NewStyle().
		Background(c(SurfaceDim)).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(c(Cyan))

	t.HeaderSubtitle = lipgloss.NewStyle().
		Foreground(c(TextSecondary)).
		Italic(true)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(c(Cyan))

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(c(Purple))

	t.UserBubble = lipgloss.NewStyle().
		Foreground(c(UserBubbleFg)).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(c(UserBubbleBorder)).
		PaddingLeft(1)

	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(c(AssistantBubbleFg)).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(c(AssistantBubbleBorder)).
		PaddingLeft(1)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(c(TextMuted))

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(c(Overlay)).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(c(Cyan)).
		Bold(true)

	t.InputPlaceholder = lipgloss.NewStyle().
		Foreground(c(TextMuted)).
		Italic(true)

	t.StatusBar = lipgloss.NewStyle().
		Background(c(SurfaceDim)).
		Foreground(c(TextSecondary)).
		Padding(0, 1)

	t.StatusIdle = lipgloss.NewStyle().Foreground(c(TextSecondary))
	t.StatusLoading = lipgloss.NewStyle().Foreground(c(Amber)).Bold(true)
	t.StatusLoaded = lipgloss.NewStyle().Foreground(c(Emerald)).Bold(true)
	t.StatusError = lipgloss.NewStyle().Foreground(c(Rose)).Bold(true)

	t.ProgressText = lipgloss.NewStyle().
		Foreground(c(TextSecondary))

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(c(Cyan)).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(c(TextMuted))

	t.MenuBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(c(Purple)).
		Padding(0, 1)

	t.MenuTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(c(Purple))

	t.MenuItem = lipgloss.NewStyle().
		Foreground(c(TextPrimary)).
		PaddingLeft(2)

	t.MenuItemSelected = lipgloss.NewStyle().
		Foreground(c(TextInverse)).
		Background(c(Purple)).
		Bold(true).
		PaddingLeft(1).
		PaddingRight(1)

	t.MenuHint = lipgloss.NewStyle().
		Foreground(c(TextMuted)).
		Italic(true)

	t.Spinner = lipgloss.NewStyle().Foreground(c(Purple))
	t.Muted = lipgloss.NewStyle().Foreground(c(TextMuted))
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
