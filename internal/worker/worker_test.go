// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// collector gathers outbound records from a worker.
type collector struct {
	mu   sync.Mutex
	msgs []Message
	ch   chan Message
}

func newCollector() *collector {
	return &collector{ch: make(chan Message, 32)}
}

func (c *collector) add(msg Message) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
	c.ch <- msg
}

func (c *collector) next(t *testing.T) Message {
	t.Helper()
	select {
	case msg := <-c.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker record")
		return Message{}
	}
}

func echoHandler() Handler {
	return HandlerFunc(func(_ context.Context, msg Message, post func(Message)) {
		post(Message{Type: TypeReturn, ID: msg.ID, Message: string(msg.Type)})
	})
}

func TestWorker_HandlesInOrder(t *testing.T) {
	w := New(echoHandler(), nil)
	defer w.Terminate()

	c := newCollector()
	w.AddListener(c.add)

	require.NoError(t, w.PostMessage(Message{Type: TypeReload, ID: "1"}))
	require.NoError(t, w.PostMessage(Message{Type: TypeUnload, ID: "2"}))

	first := c.next(t)
	second := c.next(t)
	assert.Equal(t, "1", first.ID)
	assert.Equal(t, "reload", first.Message)
	assert.Equal(t, "2", second.ID)
}

func TestWorker_NilHandler(t *testing.T) {
	w := New(nil, nil)
	defer w.Terminate()

	c := newCollector()
	w.AddListener(c.add)
	require.NoError(t, w.PostMessage(Message{Type: TypeInit}))

	got := c.next(t)
	assert.Equal(t, TypeError, got.Type)
	assert.Equal(t, "Handler not initialized yet", got.Message)
}

func TestWorker_PanicBecomesErrorRecord(t *testing.T) {
	w := New(HandlerFunc(func(context.Context, Message, func(Message)) {
		panic("boom")
	}), nil)
	defer w.Terminate()

	c := newCollector()
	w.AddListener(c.add)
	require.NoError(t, w.PostMessage(Message{Type: TypeReload}))

	got := c.next(t)
	assert.Equal(t, TypeError, got.Type)
	assert.Contains(t, got.Message, "boom")

	// The worker survives the panic.
	require.NoError(t, w.PostMessage(Message{Type: TypeReload}))
	assert.Equal(t, TypeError, c.next(t).Type)
}

func TestWorker_TerminateCancelsHandler(t *testing.T) {
	started := make(chan struct{})
	w := New(HandlerFunc(func(ctx context.Context, _ Message, _ func(Message)) {
		close(started)
		<-ctx.Done()
	}), nil)

	require.NoError(t, w.PostMessage(Message{Type: TypeReload}))
	<-started

	w.Terminate()
	w.Terminate()

	select {
	case <-w.Done():
	default:
		t.Fatal("Done not closed after Terminate")
	}
	assert.ErrorIs(t, w.PostMessage(Message{Type: TypeInit}), ErrTerminated)
}

func TestWorker_RemoveListener(t *testing.T) {
	w := New(echoHandler(), nil)
	defer w.Terminate()

	var calls atomic.Int32
	remove := w.AddListener(func(Message) { calls.Add(1) })
	c := newCollector()
	w.AddListener(c.add)

	remove()
	require.NoError(t, w.PostMessage(Message{Type: TypeInit}))
	c.next(t)
	assert.Equal(t, int32(0), calls.Load())
}

func TestMessage_Payload(t *testing.T) {
	type req struct {
		Model string `json:"model"`
	}
	msg, err := Message{Type: TypeReload, ID: "x"}.WithPayload(req{Model: "gemma2:2b"})
	require.NoError(t, err)

	var got req
	require.NoError(t, msg.DecodePayload(&got))
	assert.Equal(t, "gemma2:2b", got.Model)

	assert.Error(t, Message{Type: TypeReturn}.DecodePayload(&got))
}
