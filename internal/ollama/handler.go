// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/qubi-tui/internal/engine"
	"github.com/jeranaias/qubi-tui/internal/logging"
	"github.com/jeranaias/qubi-tui/internal/worker"
)

// reloadPayload is the body of a reload request.
type reloadPayload struct {
	Model     string `json:"model"`
	LogLevel  string `json:"logLevel,omitempty"`
	KeepAlive string `json:"keepAlive,omitempty"`
}

// HandlerOptions configures the worker-side engine handler.
type HandlerOptions struct {
	// AutoStart launches `ollama serve` when the server is not reachable.
	AutoStart bool
	// ProgressInterval is the minimum gap between progress records
	// (default 100ms). The final record of each phase is always sent.
	ProgressInterval time.Duration
	// GPUVendor answers getGPUVendor requests.
	GPUVendor func(ctx context.Context) (string, error)
	Logger    *zap.Logger
}

// Handler runs on the worker goroutine and drives the Ollama server on
// behalf of a WorkerEngine.
type Handler struct {
	client *Client
	opts   HandlerOptions
	logger *zap.Logger

	model string
}

// NewHandler creates a worker handler backed by client.
func NewHandler(client *Client, opts HandlerOptions) *Handler {
	if opts.ProgressInterval == 0 {
		opts.ProgressInterval = 100 * time.Millisecond
	}
	return &Handler{
		client: client,
		opts:   opts,
		logger: logging.OrNop(opts.Logger),
	}
}

// HandlerFactory returns a factory for worker.NewBridge. Each worker gets a
// fresh handler.
func HandlerFactory(client *Client, opts HandlerOptions) func() worker.Handler {
	return func() worker.Handler {
		return NewHandler(client, opts)
	}
}

// Handle implements worker.Handler.
func (h *Handler) Handle(ctx context.Context, msg worker.Message, post func(worker.Message)) {
	switch msg.Type {
	case worker.TypeInit:
		post(worker.Message{Type: worker.TypeWorkerResponse, Message: "Engine worker ready"})

	case worker.TypeReload:
		var p reloadPayload
		if err := msg.DecodePayload(&p); err != nil {
			throw(post, msg.ID, err)
			return
		}
		if err := h.reload(ctx, msg.ID, p, post); err != nil {
			throw(post, msg.ID, err)
			return
		}
		reply(post, msg.ID, nil)

	case worker.TypeChatCompletion:
		var req engine.Request
		if err := msg.DecodePayload(&req); err != nil {
			throw(post, msg.ID, err)
			return
		}
		completion, err := h.chat(ctx, req)
		if err != nil {
			throw(post, msg.ID, err)
			return
		}
		reply(post, msg.ID, completion)

	case worker.TypeUnload:
		if h.model != "" {
			if err := h.client.Unload(ctx, h.model); err != nil {
				throw(post, msg.ID, err)
				return
			}
			h.logger.Info("model unloaded", zap.String("model", h.model))
			h.model = ""
		}
		reply(post, msg.ID, nil)

	case worker.TypeGetGPUVendor:
		if h.opts.GPUVendor == nil {
			throw(post, msg.ID, fmt.Errorf("GPU vendor detection unavailable"))
			return
		}
		vendor, err := h.opts.GPUVendor(ctx)
		if err != nil {
			throw(post, msg.ID, err)
			return
		}
		reply(post, msg.ID, vendor)

	default:
		throw(post, msg.ID, fmt.Errorf("unknown request type %q", msg.Type))
	}
}

// reload makes p.Model resident: start the server if needed, pull the
// weights if absent, then warm the model.
func (h *Handler) reload(ctx context.Context, id string, p reloadPayload, post func(worker.Message)) error {
	start := time.Now()
	limiter := rate.NewLimiter(rate.Every(h.opts.ProgressInterval), 1)
	report := func(progress float64, text string, force bool) {
		if !force && !limiter.Allow() {
			return
		}
		msg, err := worker.Message{Type: worker.TypeInitProgress, ID: id}.WithPayload(engine.Report{
			Progress:    progress,
			Text:        text,
			TimeElapsed: time.Since(start).Seconds(),
		})
		if err == nil {
			post(msg)
		}
	}

	report(0, "Connecting to inference engine...", true)
	var err error
	if h.opts.AutoStart {
		err = h.client.EnsureRunning(ctx)
	} else {
		err = h.client.CheckRunning(ctx)
	}
	if err != nil {
		return fmt.Errorf("inference engine unavailable at %s: %w", h.client.BaseURL(), err)
	}

	exists, err := h.client.ModelExists(ctx, p.Model)
	if err != nil {
		return err
	}
	if !exists {
		h.logger.Info("model not cached, pulling", zap.String("model", p.Model))
		var tracker pullTracker
		err := h.client.Pull(ctx, p.Model, func(pp PullProgress) {
			text := fmt.Sprintf("Fetching model %s: %s", p.Model, pp)
			report(tracker.update(pp)*0.9, text, pp.Status == "success")
		})
		if err != nil {
			return fmt.Errorf("download %s: %w", p.Model, err)
		}
	} else {
		report(0.9, fmt.Sprintf("Found %s in local cache", p.Model), true)
	}

	report(0.95, "Loading model into memory...", true)
	if err := h.client.Load(ctx, p.Model, p.KeepAlive); err != nil {
		return fmt.Errorf("load %s: %w", p.Model, err)
	}
	h.model = p.Model

	elapsed := time.Since(start)
	report(1, fmt.Sprintf("Finish loading %s in %.1fs", p.Model, elapsed.Seconds()), true)
	h.logger.Info("model loaded", zap.String("model", p.Model), zap.Duration("elapsed", elapsed))
	return nil
}

func (h *Handler) chat(ctx context.Context, req engine.Request) (*engine.Completion, error) {
	if h.model == "" {
		return nil, fmt.Errorf("no model loaded")
	}

	messages := make([]Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, Message{Role: m.Role, Content: m.Content})
	}
	temp := req.Temperature
	opts := &Options{Temperature: &temp, NumPredict: req.MaxTokens}

	resp, err := h.client.ChatWithOptions(ctx, h.model, messages, opts)
	if err != nil {
		return nil, err
	}
	h.logger.Debug("chat completion",
		zap.Int("prompt_tokens", resp.PromptEvalCount),
		zap.Int("completion_tokens", resp.EvalCount),
		zap.Float64("tokens_per_sec", resp.TokensPerSecond()))

	return &engine.Completion{
		ID:    "chatcmpl-" + uuid.NewString(),
		Model: resp.Model,
		Choices: []engine.Choice{{
			Index:        0,
			Message:      engine.ChatMessage{Role: resp.Message.Role, Content: resp.Message.Content},
			FinishReason: resp.DoneReason,
		}},
		Usage: engine.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
		},
	}, nil
}

func reply(post func(worker.Message), id string, payload any) {
	msg := worker.Message{Type: worker.TypeReturn, ID: id}
	if payload != nil {
		var err error
		if msg, err = msg.WithPayload(payload); err != nil {
			throw(post, id, err)
			return
		}
	}
	post(msg)
}

func throw(post func(worker.Message), id string, err error) {
	post(worker.Message{Type: worker.TypeThrow, ID: id, Message: err.Error()})
}
