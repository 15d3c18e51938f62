// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the qubi TUI.

# Modes

A Theme is built for one Mode, "light" or "dark", taken from the stored
theme preference. The mode is the presentation attribute; IsDark is the
dark flag. SetMode and Toggle change both together and rebuild every style,
so the two never disagree:

	theme := styles.NewTheme(styles.ParseMode(prefs.Theme.String()))
	theme.Toggle()
	theme.Attribute() // "dark"
	theme.IsDark()    // true

# Colors (colors.go)

Colors are declared as lipgloss.AdaptiveColor pairs and resolved against the
explicit mode rather than the terminal's detected background:

  - Purple - assistant accent and menu selection
  - Cyan - brand color, prompt and user accent
  - Emerald - model loaded
  - Amber - model loading
  - Rose - errors

RenderSuccess, RenderError, RenderWarning and RenderInfo prefix messages
with ASCII indicators ([OK], [X], [!], [i]) for the line-oriented commands.

# Progress (progress.go)

RenderProgressBar draws the model load fraction; LineSpinner and DotsSpinner
feed bubbles spinners.
*/
package styles
