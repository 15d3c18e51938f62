// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for qubi.
//
// Supports TOML and JSON configuration files with built-in defaults,
// QUBI_* environment variable overrides and validation.
//
// # Key Types
//
//   - Config: complete configuration
//   - EngineConfig: inference server URL, model identifier, auto-start and
//     the local-only guard
//   - ChatConfig: system prompt and fixed sampling parameters
//   - UIConfig: guidance and not-ready delays
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	model := cfg.Engine.Model
package config
