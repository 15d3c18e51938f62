// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine defines the narrow boundary between qubi and the local
// inference engine, so the concrete engine can be swapped or faked.
package engine

import (
	"context"
	"fmt"

	"github.com/jeranaias/qubi-tui/internal/worker"
)

// Engine is a loaded model ready for chat completions.
type Engine interface {
	ChatCompletion(ctx context.Context, req Request) (*Completion, error)
	Unload(ctx context.Context) error
}

// GPUVendorer is implemented by engines that can report the GPU in use.
type GPUVendorer interface {
	GPUVendor(ctx context.Context) (string, error)
}

// Constructor builds an Engine bound to a worker. Construct blocks until
// the model is resident or loading fails.
type Constructor interface {
	Construct(ctx context.Context, w *worker.Worker, modelID string, cfg Config) (Engine, error)
}

// ConstructorFunc adapts a function to Constructor.
type ConstructorFunc func(ctx context.Context, w *worker.Worker, modelID string, cfg Config) (Engine, error)

// Construct calls f.
func (f ConstructorFunc) Construct(ctx context.Context, w *worker.Worker, modelID string, cfg Config) (Engine, error) {
	return f(ctx, w, modelID, cfg)
}

// Cache inspects and evicts locally stored model weights.
type Cache interface {
	HasModelInCache(ctx context.Context, modelID string) (bool, error)
	DeleteModelFromCache(ctx context.Context, modelID string) error
}

// Report is one progress update emitted while a model loads.
type Report struct {
	Progress float64 `json:"progress"`
	Text     string  `json:"text"`
	// TimeElapsed is in seconds.
	TimeElapsed float64 `json:"timeElapsed"`
}

// CacheConfig selects how model weights are stored.
type CacheConfig struct {
	// KeepAlive is passed to the engine when warming the model, e.g. "30m".
	KeepAlive string `json:"keepAlive,omitempty"`
}

// Config is passed to Constructor.Construct.
type Config struct {
	ProgressCallback func(Report) `json:"-"`
	LogLevel         string       `json:"logLevel,omitempty"`
	Cache            CacheConfig  `json:"cache"`
}

// ChatMessage is one entry of a completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is an OpenAI-style chat completion request.
type Request struct {
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// Choice is one candidate reply.
type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// Usage reports token counts for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Completion is an OpenAI-style chat completion response.
type Completion struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// RemoteError is an error reported by the engine across the worker channel.
type RemoteError struct {
	Op      string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}
