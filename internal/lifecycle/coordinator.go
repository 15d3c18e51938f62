// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/qubi-tui/internal/engine"
	"github.com/jeranaias/qubi-tui/internal/logging"
	"github.com/jeranaias/qubi-tui/internal/signal"
	"github.com/jeranaias/qubi-tui/internal/worker"
)

// ErrLoadInProgress is returned when a load or eviction is already running,
// or when a second cache probe overlaps the first. The rejected call changes
// nothing.
var ErrLoadInProgress = errors.New("model load already in progress")

// Bridge owns the worker the engine runs on. *worker.Bridge implements it.
type Bridge interface {
	Start() *worker.Worker
	Stop()
	OnError(fn func(string)) (remove func())
}

// PrefsWriter persists the auto-load preference.
type PrefsWriter interface {
	SetAutoLoad(ctx context.Context, enabled bool) error
}

// Progress texts published by the coordinator.
const (
	ProgressStarting = "Starting model initialization..."
	ProgressCleared  = "Model removed from local cache"
)

// Options wires a Coordinator.
type Options struct {
	Bridge      Bridge
	Cache       engine.Cache
	Constructor engine.Constructor
	Prefs       PrefsWriter

	ModelID      string
	EngineConfig engine.Config

	// GuidanceText is emitted once when the model is missing after a probe.
	GuidanceText  string
	GuidanceDelay time.Duration

	Logger *zap.Logger
}

// Coordinator drives the model lifecycle: cache probe, load, unload and
// eviction. It is the only writer of its signals.
type Coordinator struct {
	opts   Options
	logger *zap.Logger

	loaded      *signal.Value[bool]
	progress    *signal.Value[string]
	fraction    *signal.Value[float64]
	state       *signal.Value[LoadingState]
	cacheStatus *signal.Value[CacheStatus]

	mu            sync.Mutex
	phase         Phase
	busy          bool
	probing       bool
	cancelProbe   context.CancelFunc
	loadGen       int
	eng           engine.Engine
	guidanceShown bool
	guidanceTimer *time.Timer
	guidanceID    int
	guidanceFns   map[int]func(string)
	disposed      bool

	removeErrListener func()
}

// New creates a coordinator in the Idle phase.
func New(opts Options) *Coordinator {
	c := &Coordinator{
		opts:        opts,
		logger:      logging.OrNop(opts.Logger).Named("lifecycle"),
		loaded:      signal.New(false),
		progress:    signal.New(""),
		fraction:    signal.New(0.0),
		state:       signal.New(StateIdle),
		cacheStatus: signal.New(CacheUnknown),
		phase:       PhaseIdle,
		guidanceFns: make(map[int]func(string)),
	}
	if opts.Bridge != nil {
		c.removeErrListener = opts.Bridge.OnError(c.onWorkerError)
	}
	return c
}

// Loaded reports whether a live engine is available.
func (c *Coordinator) Loaded() *signal.Value[bool] { return c.loaded }

// Progress carries the latest human-readable progress text.
func (c *Coordinator) Progress() *signal.Value[string] { return c.progress }

// Fraction carries the load progress in [0, 1] as reported by the engine.
func (c *Coordinator) Fraction() *signal.Value[float64] { return c.fraction }

// State carries the coarse loading state.
func (c *Coordinator) State() *signal.Value[LoadingState] { return c.state }

// CacheStatus carries the result of the last cache probe.
func (c *Coordinator) CacheStatus() *signal.Value[CacheStatus] { return c.cacheStatus }

// ModelID returns the model identifier this coordinator loads.
func (c *Coordinator) ModelID() string { return c.opts.ModelID }

// Phase returns the current internal phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Engine returns the live engine, or nil when none is loaded.
func (c *Coordinator) Engine() engine.Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eng
}

// OnGuidance registers fn for the one-shot "model not loaded" hint.
func (c *Coordinator) OnGuidance(fn func(string)) (remove func()) {
	c.mu.Lock()
	id := c.guidanceID
	c.guidanceID++
	c.guidanceFns[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.guidanceFns, id)
		c.mu.Unlock()
	}
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Startup probes the cache and loads the model when autoLoad is set.
// With autoLoad off nothing happens.
func (c *Coordinator) Startup(ctx context.Context, autoLoad bool) error {
	if !autoLoad {
		c.logger.Info("auto-load disabled, waiting for manual load")
		return nil
	}
	return c.checkAndLoad(ctx)
}

// CheckCache probes the cache and publishes the result. A failed probe
// counts as not found.
func (c *Coordinator) CheckCache(ctx context.Context) (bool, error) {
	ctx, gen, ok := c.beginProbe(ctx)
	if !ok {
		return false, ErrLoadInProgress
	}
	defer c.endProbe()
	found, _ := c.probe(ctx, gen)
	return found, nil
}

// Load constructs the engine on a fresh worker. Any previous engine is
// unloaded first. On failure the coordinator enters the Error phase and
// stays there until the next load. A cache probe still running is
// abandoned: its result is dropped and it neither loads nor schedules
// guidance.
func (c *Coordinator) Load(ctx context.Context) error {
	if !c.acquire() {
		c.logger.Debug("load ignored, already in progress")
		return ErrLoadInProgress
	}
	defer c.release()
	return c.load(ctx)
}

// SetAutoLoad persists the preference. Enabling it while no model is
// loaded runs the cache probe and loads on a hit.
func (c *Coordinator) SetAutoLoad(ctx context.Context, enabled bool) error {
	if c.opts.Prefs != nil {
		if err := c.opts.Prefs.SetAutoLoad(ctx, enabled); err != nil {
			return fmt.Errorf("save auto-load preference: %w", err)
		}
	}
	c.logger.Info("auto-load preference changed", zap.Bool("enabled", enabled))

	if enabled && !c.loaded.Get() {
		return c.checkAndLoad(ctx)
	}
	return nil
}

// ClearCache unloads the model, stops the worker and evicts the weights
// from the engine's cache.
func (c *Coordinator) ClearCache(ctx context.Context) error {
	if !c.acquire() {
		return ErrLoadInProgress
	}
	defer c.release()

	c.mu.Lock()
	eng := c.eng
	c.eng = nil
	c.mu.Unlock()

	if eng != nil {
		c.loaded.Publish(false)
		if err := eng.Unload(ctx); err != nil {
			c.logger.Warn("unload before eviction failed", zap.Error(err))
		}
		if c.opts.Bridge != nil {
			c.opts.Bridge.Stop()
		}
	}

	err := c.opts.Cache.DeleteModelFromCache(ctx, c.opts.ModelID)
	c.cacheStatus.Publish(CacheNotFound)
	c.setPhase(PhaseIdle)
	if err != nil {
		c.logger.Error("cache eviction failed", zap.String("model", c.opts.ModelID), zap.Error(err))
		return fmt.Errorf("clear model cache: %w", err)
	}
	c.progress.Publish(ProgressCleared)
	c.logger.Info("model evicted from cache", zap.String("model", c.opts.ModelID))
	return nil
}

// Dispose unloads the engine and stops the worker. Unload failures are
// logged only.
func (c *Coordinator) Dispose(ctx context.Context) {
	c.mu.Lock()
	eng := c.eng
	c.eng = nil
	c.disposed = true
	if c.cancelProbe != nil {
		c.cancelProbe()
	}
	if c.guidanceTimer != nil {
		c.guidanceTimer.Stop()
	}
	c.mu.Unlock()

	if eng != nil {
		if err := eng.Unload(ctx); err != nil {
			c.logger.Error("error unloading engine", zap.Error(err))
		}
	}
	if c.opts.Bridge != nil {
		c.opts.Bridge.Stop()
	}
	if c.removeErrListener != nil {
		c.removeErrListener()
	}

	c.loaded.Publish(false)
	c.setPhase(PhaseIdle)
	c.logger.Info("coordinator disposed")
}

// =============================================================================
// INTERNALS
// =============================================================================

func (c *Coordinator) acquire() bool { return c.acquireAt(-1) }

// acquireAt marks a load or eviction as running and cancels any probe in
// flight. With gen >= 0 it also fails when another load or eviction began
// after gen was read.
func (c *Coordinator) acquireAt(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy || (gen >= 0 && gen != c.loadGen) {
		return false
	}
	c.busy = true
	c.loadGen++
	if c.cancelProbe != nil {
		c.cancelProbe()
	}
	return true
}

func (c *Coordinator) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func (c *Coordinator) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
	c.state.Publish(p.State())
}

// beginProbe claims the probe slot. Probes only exclude each other and
// running loads; a load may start while a probe is in flight.
func (c *Coordinator) beginProbe(ctx context.Context) (context.Context, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy || c.probing {
		return ctx, 0, false
	}
	ctx, cancel := context.WithCancel(ctx)
	c.probing = true
	c.cancelProbe = cancel
	return ctx, c.loadGen, true
}

func (c *Coordinator) endProbe() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelProbe != nil {
		c.cancelProbe()
	}
	c.probing = false
	c.cancelProbe = nil
}

// superseded reports whether a load or eviction began after gen was read.
func (c *Coordinator) superseded(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy || c.loadGen != gen
}

// checkAndLoad probes the cache and loads on a hit. On a miss it returns
// to Idle and schedules the guidance hint. Nothing happens after the probe
// when a manual load or eviction started meanwhile.
func (c *Coordinator) checkAndLoad(ctx context.Context) error {
	probeCtx, gen, ok := c.beginProbe(ctx)
	if !ok {
		return ErrLoadInProgress
	}
	found, current := c.probe(probeCtx, gen)
	c.endProbe()

	if !current {
		c.logger.Debug("probe result dropped, load already started")
		return nil
	}
	if found {
		if !c.acquireAt(gen) {
			c.logger.Debug("auto-load skipped, load already started")
			return nil
		}
		defer c.release()
		return c.load(ctx)
	}

	if c.superseded(gen) {
		return nil
	}
	c.setPhase(PhaseIdle)
	c.scheduleGuidance()
	return nil
}

// probe runs with the probe slot held. current is false when a load or
// eviction began during the probe. A probe cut short that way restores the
// previous cache status instead of publishing not-found.
func (c *Coordinator) probe(ctx context.Context, gen int) (found, current bool) {
	c.mu.Lock()
	prev := c.phase
	c.phase = PhaseCheckingCache
	c.mu.Unlock()
	prevStatus := c.cacheStatus.Get()
	c.cacheStatus.Publish(CacheChecking)

	found, err := c.opts.Cache.HasModelInCache(ctx, c.opts.ModelID)
	if err != nil {
		c.logger.Warn("cache probe failed, treating as not found",
			zap.String("model", c.opts.ModelID), zap.Error(err))
		found = false
	}

	c.mu.Lock()
	if c.phase == PhaseCheckingCache {
		c.phase = prev
	}
	current = c.loadGen == gen
	c.mu.Unlock()

	if !current && err != nil {
		c.cacheStatus.Publish(prevStatus)
		return false, false
	}
	if found {
		c.cacheStatus.Publish(CacheFound)
	} else {
		c.cacheStatus.Publish(CacheNotFound)
	}
	c.logger.Info("cache probe", zap.String("model", c.opts.ModelID), zap.Bool("found", found))
	return found, current
}

// load runs with busy held.
func (c *Coordinator) load(ctx context.Context) error {
	c.mu.Lock()
	old := c.eng
	c.eng = nil
	c.mu.Unlock()

	c.setPhase(PhaseLoading)
	c.progress.Publish(ProgressStarting)
	c.fraction.Publish(0)
	c.logger.Info("loading model", zap.String("model", c.opts.ModelID))

	if old != nil {
		c.loaded.Publish(false)
		if err := old.Unload(ctx); err != nil {
			c.logger.Warn("failed to unload previous engine", zap.Error(err))
		}
	}

	w := c.opts.Bridge.Start()

	cfg := c.opts.EngineConfig
	cfg.ProgressCallback = func(r engine.Report) {
		c.logger.Debug("init progress",
			zap.Float64("progress", r.Progress),
			zap.String("text", r.Text))
		c.progress.Publish(r.Text)
		c.fraction.Publish(r.Progress)
	}

	eng, err := c.opts.Constructor.Construct(ctx, w, c.opts.ModelID, cfg)
	if err != nil {
		c.logger.Error("failed to initialize model", zap.String("model", c.opts.ModelID), zap.Error(err))
		c.opts.Bridge.Stop()
		c.setPhase(PhaseError)
		c.progress.Publish(fmt.Sprintf("Error loading model: %v", err))
		return fmt.Errorf("unable to initialize model: %w", err)
	}

	if v, ok := eng.(engine.GPUVendorer); ok {
		if vendor, err := v.GPUVendor(ctx); err != nil {
			c.logger.Warn("could not get GPU vendor", zap.Error(err))
		} else {
			c.logger.Info("GPU vendor", zap.String("vendor", vendor))
		}
	}

	c.mu.Lock()
	c.eng = eng
	c.mu.Unlock()

	c.fraction.Publish(1)
	c.loaded.Publish(true)
	c.setPhase(PhaseLoaded)
	c.logger.Info("model loaded", zap.String("model", c.opts.ModelID))
	return nil
}

func (c *Coordinator) onWorkerError(msg string) {
	c.logger.Error("worker reported error", zap.String("message", msg))
	c.setPhase(PhaseError)
	c.progress.Publish("Error: " + msg)
}

func (c *Coordinator) scheduleGuidance() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.guidanceShown || c.disposed || c.opts.GuidanceText == "" {
		return
	}
	if c.guidanceTimer != nil {
		c.guidanceTimer.Stop()
	}
	c.guidanceTimer = time.AfterFunc(c.opts.GuidanceDelay, c.fireGuidance)
}

func (c *Coordinator) fireGuidance() {
	c.mu.Lock()
	if c.guidanceShown || c.disposed || c.loaded.Get() || c.cacheStatus.Get() != CacheNotFound {
		c.mu.Unlock()
		return
	}
	c.guidanceShown = true
	fns := make([]func(string), 0, len(c.guidanceFns))
	for _, fn := range c.guidanceFns {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	c.logger.Info("showing load guidance")
	for _, fn := range fns {
		fn(c.opts.GuidanceText)
	}
}
