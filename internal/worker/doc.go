// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package worker runs the inference engine on a dedicated goroutine that is
// reached only by message passing.
//
// A Worker handles JSON-shaped records one at a time. A Bridge owns the one
// live Worker: Start tears down the previous worker before creating the
// next and sends it {type:"init"}. Error records are forwarded to OnError
// subscribers; every other record is logged and left to the engine proxy.
package worker
