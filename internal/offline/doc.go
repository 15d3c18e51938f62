// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline keeps inference on the user's machine.
//
// With engine.local_only set (the default) the engine URL must name a
// loopback host, so prompts and replies never leave the computer:
//
//	if err := offline.ValidateEngineURL(cfg.Engine.URL, cfg.Engine.LocalOnly); err != nil {
//		return err
//	}
package offline
