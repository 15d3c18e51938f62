// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lifecycle owns the local model's lifecycle.
//
// The Coordinator moves between Idle, CheckingCache, Loading, Loaded and
// Error and publishes four observable values (loaded, progress, state,
// cache status) plus a one-shot guidance event for a missing model.
// Only one load, probe or eviction runs at a time; overlapping calls get
// ErrLoadInProgress.
package lifecycle
