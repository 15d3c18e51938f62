// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/qubi-tui/internal/config"
	"github.com/jeranaias/qubi-tui/internal/ollama"
)

func newCacheCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the local model cache",
	}
	cmd.AddCommand(newCacheStatusCmd(flags), newCacheClearCmd(flags))
	return cmd
}

// newEngineClient builds a short-lived client for one-shot commands.
func newEngineClient(cfg *config.Config) *ollama.Client {
	return ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:     cfg.Engine.URL,
		Timeout:     30 * time.Second,
		StartupWait: 15 * time.Second,
	})
}

func newCacheStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the model is in the local cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup()
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()

			out := cmd.OutOrStdout()
			modelID := e.cfg.Engine.Model
			// A status query never starts the engine.
			cache := ollama.NewCache(newEngineClient(e.cfg), false)

			found, err := cache.HasModelInCache(cmd.Context(), modelID)
			if err != nil {
				return fmt.Errorf("check cache: %w", err)
			}

			fmt.Fprintln(out, RenderLabel("Model:"), ValueStyle.Render(modelID))
			if !found {
				fmt.Fprintln(out, RenderLabel("Cached:"), RenderStatus("warn"), "not found")
				return nil
			}
			fmt.Fprintln(out, RenderLabel("Cached:"), RenderStatus("ok"), "found")
			if size, err := cache.ModelSize(cmd.Context(), modelID); err == nil && size > 0 {
				fmt.Fprintln(out, RenderLabel("Size:"), ValueStyle.Render(ollama.FormatSize(size)))
			}
			return nil
		},
	}
}

func newCacheClearCmd(flags *globalFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the model from the local cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup()
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()

			out := cmd.OutOrStdout()
			modelID := e.cfg.Engine.Model
			if !yes && !confirm(cmd.InOrStdin(), out, fmt.Sprintf("Remove %s from the local cache?", modelID)) {
				fmt.Fprintln(out, DimStyle.Render("Cancelled"))
				return nil
			}

			cache := ollama.NewCache(newEngineClient(e.cfg), e.cfg.Engine.AutoStart)
			if err := cache.DeleteModelFromCache(cmd.Context(), modelID); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintln(out, RenderStatus("ok"), "Model cache cleared")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// confirm asks a yes/no question. Anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprint(out, question+" [y/N] ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
