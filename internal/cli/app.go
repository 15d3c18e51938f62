// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/qubi-tui/internal/config"
	"github.com/jeranaias/qubi-tui/internal/detect"
	"github.com/jeranaias/qubi-tui/internal/engine"
	"github.com/jeranaias/qubi-tui/internal/lifecycle"
	"github.com/jeranaias/qubi-tui/internal/logging"
	"github.com/jeranaias/qubi-tui/internal/mediator"
	"github.com/jeranaias/qubi-tui/internal/ollama"
	"github.com/jeranaias/qubi-tui/internal/prefs"
	"github.com/jeranaias/qubi-tui/internal/ui/chat"
	"github.com/jeranaias/qubi-tui/internal/worker"
)

// PrefsFileName is the preference database inside the data directory.
const PrefsFileName = "prefs.db"

// App is the composition root of one qubi session. It owns the preference
// database, the engine worker and the lifecycle coordinator; nothing in it
// is global.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Client      *ollama.Client
	Cache       *ollama.Cache
	Prefs       *prefs.Store
	Bridge      *worker.Bridge
	Coordinator *lifecycle.Coordinator
	Mediator    *mediator.Mediator

	kv     *prefs.SQLiteKV
	dbPath string
}

// NewApp wires every component from cfg. Close releases them.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)

	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}
	dbPath := filepath.Join(dataDir, PrefsFileName)
	kv, err := prefs.OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	store := prefs.NewStore(kv, logger.Named("prefs"))

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:     cfg.Engine.URL,
		Timeout:     30 * time.Second,
		StartupWait: 15 * time.Second,
		Logger:      logger.Named("ollama"),
	})
	cache := ollama.NewCache(client, cfg.Engine.AutoStart)

	bridge := worker.NewBridge(ollama.HandlerFactory(client, ollama.HandlerOptions{
		AutoStart: cfg.Engine.AutoStart,
		GPUVendor: detect.GPUVendor,
		Logger:    logger.Named("engine"),
	}), logger.Named("worker"))

	coord := lifecycle.New(lifecycle.Options{
		Bridge:        bridge,
		Cache:         cache,
		Constructor:   ollama.Constructor{Logger: logger.Named("engine")},
		Prefs:         store,
		ModelID:       cfg.Engine.Model,
		EngineConfig:  engine.Config{LogLevel: cfg.Engine.LogLevel},
		GuidanceText:  chat.GuidanceText,
		GuidanceDelay: cfg.GuidanceDelay(),
		Logger:        logger,
	})

	med := mediator.New(coord, mediator.Options{
		SystemPrompt: cfg.Chat.SystemPrompt,
		Temperature:  cfg.Chat.Temperature,
		MaxTokens:    cfg.Chat.MaxTokens,
		Logger:       logger,
	})

	return &App{
		Config:      cfg,
		Logger:      logger,
		Client:      client,
		Cache:       cache,
		Prefs:       store,
		Bridge:      bridge,
		Coordinator: coord,
		Mediator:    med,
		kv:          kv,
		dbPath:      dbPath,
	}, nil
}

// PrefsPath returns the preference database path.
func (a *App) PrefsPath() string { return a.dbPath }

// WatchPrefs reports preference changes made by other qubi processes.
func (a *App) WatchPrefs(onChange func(prefs.Preferences)) (*prefs.Watcher, error) {
	return prefs.NewWatcher(a.Prefs, a.dbPath, 0, onChange, a.Logger.Named("prefs"))
}

// Close unloads the model, stops the worker and closes the database.
func (a *App) Close(ctx context.Context) error {
	a.Coordinator.Dispose(ctx)
	if err := a.kv.Close(); err != nil {
		return fmt.Errorf("close prefs database: %w", err)
	}
	return nil
}
