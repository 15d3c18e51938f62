// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat implements the qubi chat screen as a Bubble Tea model.

The model owns the transcript, the input buffer and a busy flag. It never
loads the model itself: the composition root subscribes to the lifecycle
coordinator's signals and forwards them with LoadedMsg, ProgressMsg,
FractionMsg, StateMsg, CacheStatusMsg and GuidanceMsg.

# Submitting

Enter calls Submit. Blank input and input entered while busy are ignored.
Otherwise the user message is appended immediately and busy is set until:

  - the reply arrives (appended as an assistant message),
  - the call fails (ApologyText is appended), or
  - no model is loaded, in which case NotReadyText is appended after the
    configured delay without contacting the engine.

# Keys

	Enter   send
	C-o     menu: Load Model, Auto-load, Theme, Clear model cache, Quit
	C-t     toggle light/dark theme (persisted)
	C-y     copy the last reply to the clipboard
	C-c     quit
	PgUp/Dn scroll the transcript

Assistant messages are rendered as Markdown with glamour in the style that
matches the active theme.
*/
package chat
