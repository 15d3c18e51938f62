// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeranaias/qubi-tui/internal/config"
	"github.com/jeranaias/qubi-tui/internal/detect"
	"github.com/jeranaias/qubi-tui/internal/offline"
	"github.com/jeranaias/qubi-tui/internal/prefs"
)

func newStatusCmd(flags *globalFlags) *cobra.Command {
	var skipGPU bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show engine, cache, GPU and preference status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup()
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, TitleStyle.Render("qubi status"))
			fmt.Fprintln(out, RenderSeparator(40))

			configPath := flags.configPath
			if configPath == "" {
				configPath, _ = config.ConfigPathTOML()
			}
			dataDir, err := e.cfg.DataDir()
			if err != nil {
				return err
			}
			row(out, "Config:", configPath)
			row(out, "Data dir:", dataDir)

			client := newEngineClient(e.cfg)
			row(out, "Engine:", client.BaseURL()+" "+offline.Badge(e.cfg.Engine.LocalOnly))
			if err := client.CheckRunning(ctx); err != nil {
				fmt.Fprintln(out, RenderLabel("Server:"), RenderStatus("fail"), DimStyle.Render(err.Error()))
			} else {
				fmt.Fprintln(out, RenderLabel("Server:"), RenderStatus("ok"), "running")
				found, err := client.ModelExists(ctx, e.cfg.Engine.Model)
				switch {
				case err != nil:
					fmt.Fprintln(out, RenderLabel("Cached:"), RenderStatus("fail"), DimStyle.Render(err.Error()))
				case found:
					fmt.Fprintln(out, RenderLabel("Cached:"), RenderStatus("ok"), "found")
				default:
					fmt.Fprintln(out, RenderLabel("Cached:"), RenderStatus("warn"), "not found")
				}
			}
			row(out, "Model:", e.cfg.Engine.Model)

			if !skipGPU {
				gpu := detect.DetectCached(ctx)
				row(out, "GPU:", gpu.String())
				row(out, "Backend:", gpu.Vendor.String()+" ("+runtime.GOOS+"/"+runtime.GOARCH+")")
			}

			kv, err := prefs.OpenSQLite(filepath.Join(dataDir, PrefsFileName))
			if err != nil {
				fmt.Fprintln(out, RenderLabel("Prefs:"), RenderStatus("fail"), DimStyle.Render(err.Error()))
				return nil
			}
			defer kv.Close()
			p := prefs.NewStore(kv, e.logger).Load(ctx)
			row(out, "Theme:", string(p.Theme))
			row(out, "Auto-load:", strconv.FormatBool(p.AutoLoad))
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipGPU, "no-gpu", false, "skip GPU detection")
	return cmd
}

func row(out io.Writer, label, value string) {
	fmt.Fprintln(out, RenderLabel(label), ValueStyle.Render(value))
}
