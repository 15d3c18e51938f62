// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package lifecycle

import (
	"context"
	"errors"
	"sync"

	"github.com/jeranaias/qubi-tui/internal/engine"
	"github.com/jeranaias/qubi-tui/internal/worker"
)

type fakeBridge struct {
	mu      sync.Mutex
	starts  int
	stops   int
	onError []func(string)
}

func (b *fakeBridge) Start() *worker.Worker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.starts++
	return nil
}

func (b *fakeBridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stops++
}

func (b *fakeBridge) OnError(fn func(string)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = append(b.onError, fn)
	return func() {}
}

func (b *fakeBridge) emitError(msg string) {
	b.mu.Lock()
	fns := append([]func(string){}, b.onError...)
	b.mu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
}

func (b *fakeBridge) counts() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.starts, b.stops
}

// fakeCache answers lookups from found. With gate set a lookup blocks
// until the gate closes or, unless stubborn, its context ends.
type fakeCache struct {
	mu       sync.Mutex
	found    bool
	err      error
	probes   int
	deleted  []string
	gate     chan struct{}
	entered  chan struct{}
	stubborn bool
}

func (c *fakeCache) HasModelInCache(ctx context.Context, _ string) (bool, error) {
	c.mu.Lock()
	c.probes++
	gate, entered, stubborn := c.gate, c.entered, c.stubborn
	c.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		if stubborn {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.found, c.err
}

func (c *fakeCache) DeleteModelFromCache(_ context.Context, modelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, modelID)
	c.found = false
	return nil
}

type fakeEngine struct {
	mu      sync.Mutex
	unloads int
}

func (e *fakeEngine) ChatCompletion(context.Context, engine.Request) (*engine.Completion, error) {
	return &engine.Completion{}, nil
}

func (e *fakeEngine) Unload(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unloads++
	return nil
}

func (e *fakeEngine) GPUVendor(context.Context) (string, error) {
	return "", errors.New("no adapter")
}

// fakeConstructor builds fakeEngines, optionally blocking until released.
type fakeConstructor struct {
	mu      sync.Mutex
	calls   int
	err     error
	reports []string
	gate    chan struct{}
	entered chan struct{}
	built   []*fakeEngine
}

func (f *fakeConstructor) Construct(ctx context.Context, _ *worker.Worker, _ string, cfg engine.Config) (engine.Engine, error) {
	f.mu.Lock()
	f.calls++
	gate, entered, err, reports := f.gate, f.entered, f.err, f.reports
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	for _, r := range reports {
		cfg.ProgressCallback(engine.Report{Text: r})
	}
	if err != nil {
		return nil, err
	}

	e := &fakeEngine{}
	f.mu.Lock()
	f.built = append(f.built, e)
	f.mu.Unlock()
	return e, nil
}

type fakePrefs struct {
	mu     sync.Mutex
	values []bool
}

func (p *fakePrefs) SetAutoLoad(_ context.Context, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, enabled)
	return nil
}
