// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mediator turns a user's chat message into one completion request
// against the loaded engine.
package mediator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/qubi-tui/internal/engine"
	"github.com/jeranaias/qubi-tui/internal/logging"
)

var (
	// ErrModelNotInitialized is returned when no engine is loaded.
	ErrModelNotInitialized = errors.New("model not initialized")
	// ErrUnexpectedResponse is returned when the engine replies without a
	// choice.
	ErrUnexpectedResponse = errors.New("unexpected response from engine: no choices")
)

// EngineProvider returns the live engine, or nil.
// *lifecycle.Coordinator implements it.
type EngineProvider interface {
	Engine() engine.Engine
}

// Options fixes the request parameters.
type Options struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Logger       *zap.Logger
}

// Mediator sends single-turn chat requests. It keeps no history.
type Mediator struct {
	provider EngineProvider
	opts     Options
	logger   *zap.Logger
}

// New creates a Mediator.
func New(provider EngineProvider, opts Options) *Mediator {
	return &Mediator{
		provider: provider,
		opts:     opts,
		logger:   logging.OrNop(opts.Logger).Named("mediator"),
	}
}

// Send asks the engine to answer userText and returns the reply text.
// Engine errors are returned wrapped, so errors.Is still matches them.
func (m *Mediator) Send(ctx context.Context, userText string) (string, error) {
	eng := m.provider.Engine()
	if eng == nil {
		return "", ErrModelNotInitialized
	}

	text := norm.NFC.String(userText)
	req := engine.Request{
		Messages: []engine.ChatMessage{
			{Role: "system", Content: m.opts.SystemPrompt},
			{Role: "user", Content: text},
		},
		Temperature: m.opts.Temperature,
		MaxTokens:   m.opts.MaxTokens,
	}

	m.logger.Debug("sending chat request", zap.Int("chars", len(text)))
	resp, err := eng.ChatCompletion(ctx, req)
	if err != nil {
		m.logger.Error("chat completion failed", zap.Error(err))
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrUnexpectedResponse
	}

	reply := resp.Choices[0].Message.Content
	m.logger.Debug("chat reply",
		zap.Int("chars", len(reply)),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	return reply, nil
}
