// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/qubi-tui/internal/logging"
)

// ErrTerminated is returned when posting to a worker that has stopped.
var ErrTerminated = errors.New("worker terminated")

// inboxSize bounds queued inbound records.
const inboxSize = 64

// Handler processes inbound records on the worker goroutine. Replies and
// unsolicited records are sent with post. ctx is cancelled on Terminate.
type Handler interface {
	Handle(ctx context.Context, msg Message, post func(Message))
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg Message, post func(Message))

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg Message, post func(Message)) {
	f(ctx, msg, post)
}

// Worker is a background execution context reachable only by message
// passing. Inbound records are handled one at a time, in order.
type Worker struct {
	handler Handler
	logger  *zap.Logger

	inbox  chan Message
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.RWMutex
	nextID    int
	listeners map[int]func(Message)
}

// New starts a worker running handler. A nil handler answers every record
// with an error record.
func New(handler Handler, logger *zap.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		handler:   handler,
		logger:    logging.OrNop(logger),
		inbox:     make(chan Message, inboxSize),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		listeners: make(map[int]func(Message)),
	}
	go w.run()
	return w
}

// PostMessage queues msg for the worker.
func (w *Worker) PostMessage(msg Message) error {
	select {
	case <-w.ctx.Done():
		return ErrTerminated
	default:
	}

	select {
	case w.inbox <- msg:
		return nil
	case <-w.ctx.Done():
		return ErrTerminated
	}
}

// AddListener registers fn for every outbound record. Listeners run on the
// worker goroutine and must not block or call Terminate.
func (w *Worker) AddListener(fn func(Message)) (remove func()) {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = fn
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.listeners, id)
			w.mu.Unlock()
		})
	}
}

// Terminate stops the worker and waits for its goroutine to exit. Queued
// records are dropped. Safe to call more than once.
func (w *Worker) Terminate() {
	w.cancel()
	<-w.done
}

// Done is closed once the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Context is cancelled when the worker is terminated.
func (w *Worker) Context() context.Context {
	return w.ctx
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case msg := <-w.inbox:
			w.dispatch(msg)
		}
	}
}

func (w *Worker) dispatch(msg Message) {
	if w.handler == nil {
		w.post(ErrorMessage("Handler not initialized yet"))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker handler panicked",
				zap.String("type", string(msg.Type)),
				zap.Any("panic", r))
			w.post(ErrorMessage(fmt.Sprintf("worker panic: %v", r)))
		}
	}()

	w.handler.Handle(w.ctx, msg, w.post)
}

// post fans msg out to the listeners. Records posted after Terminate are
// dropped.
func (w *Worker) post(msg Message) {
	if w.ctx.Err() != nil {
		return
	}

	w.mu.RLock()
	fns := make([]func(Message), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.mu.RUnlock()

	for _, fn := range fns {
		fn(msg)
	}
}
