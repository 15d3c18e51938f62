// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama implements the engine boundary on top of a local Ollama
// server.
//
// # Key Types
//
//   - Client: HTTP client for the Ollama API (health, show, tags, pull,
//     load/unload, delete, chat)
//   - Handler: worker-side request handler speaking the engine protocol
//   - WorkerEngine: main-side proxy implementing engine.Engine
//   - Cache: engine.Cache over /api/show and /api/delete
//
// # Usage
//
//	client := ollama.NewClient()
//	bridge := worker.NewBridge(ollama.HandlerFactory(client, ollama.HandlerOptions{AutoStart: true}), logger)
//	w := bridge.Start()
//	eng, err := ollama.CreateWorkerEngine(ctx, w, "gemma2:2b", engine.Config{}, logger)
//	resp, err := eng.ChatCompletion(ctx, engine.Request{...})
package ollama
