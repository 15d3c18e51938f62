// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/qubi-tui/internal/config"
	"github.com/jeranaias/qubi-tui/internal/logging"
)

// Build information, set with -ldflags at release time.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	model      string
	engineURL  string
	logLevel   string
	noAutoLoad bool
}

// env is the resolved configuration and logger for one invocation.
type env struct {
	cfg        *config.Config
	logger     *zap.Logger
	noAutoLoad bool
}

// setup loads the config file, applies flag overrides and opens the log.
func (f *globalFlags) setup() (*env, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFromPath(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if f.model != "" {
		cfg.Engine.Model = f.model
	}
	if f.engineURL != "" {
		cfg.Engine.URL = f.engineURL
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	logPath, err := cfg.LogPath()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{Path: logPath, Level: cfg.Log.Level})
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, noAutoLoad: f.noAutoLoad}, nil
}

// NewRootCmd builds the qubi command tree.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "qubi",
		Short: "Chat with a local quantized model",
		Long: `qubi is a terminal chat front-end for a local quantized language model
served by Ollama.

Run without arguments for the full-screen interface. When stdin is not a
terminal qubi falls back to the line-based chat.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup()
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()

			if !IsTTY() || !IsStdoutTTY() {
				return runREPL(cmd.Context(), e, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			return runTUI(cmd.Context(), e)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ~/.qubi/config.toml)")
	pf.StringVar(&flags.model, "model", "", "model identifier to load")
	pf.StringVar(&flags.engineURL, "engine-url", "", "Ollama server URL")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&flags.noAutoLoad, "no-auto-load", false, "skip the startup cache probe and auto-load")

	root.AddCommand(
		newChatCmd(flags),
		newCacheCmd(flags),
		newPrefsCmd(flags),
		newStatusCmd(flags),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:"), err)
		return 1
	}
	return 0
}
