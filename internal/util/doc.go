// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the qubi packages.
//
//   - AtomicWriteFile: crash-safe file writes (config saves)
//   - FitWidth / PadWidth: display-width aware truncation for the status line
package util
