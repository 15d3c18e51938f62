// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat messages.
//
// # Key Types
//
//   - ChatMessage: single message with ID, role, content and timestamp
//   - Transcript: ordered, append-only list of messages for one session
//   - Role: message role enumeration (user, assistant)
//
// # Usage
//
//	t := model.NewTranscript("Hello!")
//	t.AddUser("What is a qubit?")
//	t.AddAssistant("A quantum bit.")
package model
