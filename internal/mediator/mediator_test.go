// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mediator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/qubi-tui/internal/engine"
)

type stubEngine struct {
	last engine.Request
	resp *engine.Completion
	err  error
}

func (s *stubEngine) ChatCompletion(_ context.Context, req engine.Request) (*engine.Completion, error) {
	s.last = req
	return s.resp, s.err
}

func (s *stubEngine) Unload(context.Context) error { return nil }

type provider struct{ eng engine.Engine }

func (p provider) Engine() engine.Engine { return p.eng }

func opts() Options {
	return Options{SystemPrompt: "You are Qubi.", Temperature: 0.7, MaxTokens: 1000}
}

func TestSend_NotInitialized(t *testing.T) {
	m := New(provider{}, opts())
	_, err := m.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrModelNotInitialized)
	assert.Equal(t, "model not initialized", err.Error())
}

func TestSend_BuildsRequestAndReturnsFirstChoice(t *testing.T) {
	eng := &stubEngine{resp: &engine.Completion{Choices: []engine.Choice{
		{Message: engine.ChatMessage{Role: "assistant", Content: "first"}},
		{Message: engine.ChatMessage{Role: "assistant", Content: "second"}},
	}}}
	m := New(provider{eng}, opts())

	reply, err := m.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "first", reply)

	require.Len(t, eng.last.Messages, 2)
	assert.Equal(t, engine.ChatMessage{Role: "system", Content: "You are Qubi."}, eng.last.Messages[0])
	assert.Equal(t, engine.ChatMessage{Role: "user", Content: "hello"}, eng.last.Messages[1])
	assert.Equal(t, 0.7, eng.last.Temperature)
	assert.Equal(t, 1000, eng.last.MaxTokens)
}

func TestSend_NormalizesToNFC(t *testing.T) {
	eng := &stubEngine{resp: &engine.Completion{Choices: []engine.Choice{{}}}}
	m := New(provider{eng}, opts())

	// "e" followed by a combining acute accent.
	_, err := m.Send(context.Background(), "cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", eng.last.Messages[1].Content)
}

func TestSend_NoChoices(t *testing.T) {
	m := New(provider{&stubEngine{resp: &engine.Completion{}}}, opts())
	_, err := m.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestSend_PropagatesEngineError(t *testing.T) {
	cause := &engine.RemoteError{Op: "chatCompletion", Message: "context window exceeded"}
	m := New(provider{&stubEngine{err: cause}}, opts())

	_, err := m.Send(context.Background(), "hello")
	require.Error(t, err)

	var remote *engine.RemoteError
	assert.True(t, errors.As(err, &remote))
	assert.Contains(t, err.Error(), "context window exceeded")
}
