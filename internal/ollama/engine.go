// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/qubi-tui/internal/engine"
	"github.com/jeranaias/qubi-tui/internal/logging"
	"github.com/jeranaias/qubi-tui/internal/worker"
)

// WorkerEngine is the main-side proxy for a model running on a worker.
// Requests are correlated with replies by a UUID.
type WorkerEngine struct {
	w        *worker.Worker
	modelID  string
	progress func(engine.Report)
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]chan worker.Message

	stopListening func()
}

// CreateWorkerEngine asks the worker to make modelID resident and returns
// a proxy once it is. Progress records are forwarded to
// cfg.ProgressCallback while loading.
func CreateWorkerEngine(ctx context.Context, w *worker.Worker, modelID string, cfg engine.Config, logger *zap.Logger) (*WorkerEngine, error) {
	if w == nil {
		return nil, fmt.Errorf("create engine: no worker")
	}

	e := &WorkerEngine{
		w:        w,
		modelID:  modelID,
		progress: cfg.ProgressCallback,
		logger:   logging.OrNop(logger),
		pending:  make(map[string]chan worker.Message),
	}
	e.stopListening = w.AddListener(e.onMessage)

	_, err := e.call(ctx, worker.TypeReload, reloadPayload{
		Model:     modelID,
		LogLevel:  cfg.LogLevel,
		KeepAlive: cfg.Cache.KeepAlive,
	})
	if err != nil {
		e.stopListening()
		return nil, err
	}
	return e, nil
}

// Constructor implements engine.Constructor with CreateWorkerEngine.
type Constructor struct {
	Logger *zap.Logger
}

// Construct implements engine.Constructor.
func (c Constructor) Construct(ctx context.Context, w *worker.Worker, modelID string, cfg engine.Config) (engine.Engine, error) {
	e, err := CreateWorkerEngine(ctx, w, modelID, cfg, c.Logger)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ModelID returns the model this engine serves.
func (e *WorkerEngine) ModelID() string {
	return e.modelID
}

// ChatCompletion implements engine.Engine.
func (e *WorkerEngine) ChatCompletion(ctx context.Context, req engine.Request) (*engine.Completion, error) {
	reply, err := e.call(ctx, worker.TypeChatCompletion, req)
	if err != nil {
		return nil, err
	}
	var out engine.Completion
	if err := reply.DecodePayload(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Unload implements engine.Engine. The proxy stops listening to the worker
// afterwards.
func (e *WorkerEngine) Unload(ctx context.Context) error {
	defer e.stopListening()
	_, err := e.call(ctx, worker.TypeUnload, nil)
	return err
}

// GPUVendor implements engine.GPUVendorer.
func (e *WorkerEngine) GPUVendor(ctx context.Context) (string, error) {
	reply, err := e.call(ctx, worker.TypeGetGPUVendor, nil)
	if err != nil {
		return "", err
	}
	var vendor string
	if err := reply.DecodePayload(&vendor); err != nil {
		return "", err
	}
	return vendor, nil
}

// call posts a request and waits for its return or throw record.
func (e *WorkerEngine) call(ctx context.Context, typ worker.Type, payload any) (worker.Message, error) {
	msg := worker.Message{Type: typ, ID: uuid.NewString()}
	if payload != nil {
		var err error
		if msg, err = msg.WithPayload(payload); err != nil {
			return worker.Message{}, err
		}
	}

	ch := make(chan worker.Message, 1)
	e.mu.Lock()
	e.pending[msg.ID] = ch
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.pending, msg.ID)
		e.mu.Unlock()
	}()

	if err := e.w.PostMessage(msg); err != nil {
		return worker.Message{}, err
	}

	select {
	case reply := <-ch:
		if reply.Type == worker.TypeThrow {
			return worker.Message{}, &engine.RemoteError{Op: string(typ), Message: reply.Message}
		}
		return reply, nil
	case <-ctx.Done():
		return worker.Message{}, ctx.Err()
	case <-e.w.Done():
		return worker.Message{}, worker.ErrTerminated
	}
}

// onMessage runs on the worker goroutine.
func (e *WorkerEngine) onMessage(msg worker.Message) {
	switch msg.Type {
	case worker.TypeInitProgress:
		if e.progress == nil {
			return
		}
		var r engine.Report
		if err := msg.DecodePayload(&r); err != nil {
			e.logger.Warn("bad progress record", zap.Error(err))
			return
		}
		e.progress(r)

	case worker.TypeReturn, worker.TypeThrow:
		e.mu.Lock()
		ch, ok := e.pending[msg.ID]
		e.mu.Unlock()
		if !ok {
			return
		}
		select {
		case ch <- msg:
		default:
		}
	}
}
