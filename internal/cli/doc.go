// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli is the qubi command line.
//
// The root command starts the full-screen chat. Subcommands:
//
//	qubi chat                line-based chat with history
//	qubi cache status|clear  inspect or evict the cached model
//	qubi prefs show|set      stored theme and auto-load preference
//	qubi status              engine, cache, GPU and preference report
//	qubi version             build information
//
// NewApp is the composition root shared by the full-screen and line
// front-ends.
package cli
