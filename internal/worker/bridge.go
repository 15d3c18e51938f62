// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package worker

import (
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/qubi-tui/internal/logging"
)

// Bridge owns the single live worker. Starting a new worker always tears
// the previous one down first.
type Bridge struct {
	factory func() Handler
	logger  *zap.Logger

	mu      sync.Mutex
	current *Worker

	errMu   sync.RWMutex
	nextID  int
	onError map[int]func(string)
}

// NewBridge creates a bridge whose workers run handlers built by factory.
func NewBridge(factory func() Handler, logger *zap.Logger) *Bridge {
	return &Bridge{
		factory: factory,
		logger:  logging.OrNop(logger),
		onError: make(map[int]func(string)),
	}
}

// Start terminates the current worker, if any, creates a new one and sends
// it the init record.
func (b *Bridge) Start() *Worker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current != nil {
		b.logger.Debug("terminating previous worker")
		b.current.Terminate()
		b.current = nil
	}

	var h Handler
	if b.factory != nil {
		h = b.factory()
	}
	w := New(h, b.logger)
	w.AddListener(b.inspect)
	b.current = w

	if err := w.PostMessage(Message{Type: TypeInit, Message: "Initializing engine"}); err != nil {
		b.logger.Warn("failed to post init record", zap.Error(err))
	}
	b.logger.Info("worker started")
	return w
}

// Stop terminates the current worker and clears the handle.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return
	}
	b.current.Terminate()
	b.current = nil
	b.logger.Info("worker stopped")
}

// Current returns the live worker, or nil.
func (b *Bridge) Current() *Worker {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// OnError registers fn to receive the text of every error record.
func (b *Bridge) OnError(fn func(string)) (remove func()) {
	b.errMu.Lock()
	id := b.nextID
	b.nextID++
	b.onError[id] = fn
	b.errMu.Unlock()

	return func() {
		b.errMu.Lock()
		delete(b.onError, id)
		b.errMu.Unlock()
	}
}

func (b *Bridge) inspect(msg Message) {
	if msg.Type != TypeError {
		b.logger.Debug("worker record",
			zap.String("type", string(msg.Type)),
			zap.String("id", msg.ID),
			zap.String("message", msg.Message))
		return
	}

	b.logger.Error("worker error", zap.String("message", msg.Message))

	b.errMu.RLock()
	fns := make([]func(string), 0, len(b.onError))
	for _, fn := range b.onError {
		fns = append(fns, fn)
	}
	b.errMu.RUnlock()

	for _, fn := range fns {
		fn(msg.Message)
	}
}
