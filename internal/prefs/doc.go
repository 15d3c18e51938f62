// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prefs persists user preferences (theme and auto-load) in a small
// SQLite key/value table under the data directory.
//
//	kv, err := prefs.OpenSQLite(filepath.Join(dataDir, "prefs.db"))
//	store := prefs.NewStore(kv, logger)
//	p := store.Load(ctx) // absent keys: light theme, auto-load on
package prefs
