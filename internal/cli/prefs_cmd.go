// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeranaias/qubi-tui/internal/prefs"
)

func newPrefsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change stored preferences",
		Long: `Show or change the preferences qubi keeps between sessions.

Keys:
  theme           light or dark
  autoLoadModel   true or false

A running qubi picks up changes made here.`,
	}
	cmd.AddCommand(newPrefsShowCmd(flags), newPrefsSetCmd(flags))
	return cmd
}

// withPrefs opens the preference database for one command.
func withPrefs(flags *globalFlags, fn func(e *env, store *prefs.Store, path string) error) error {
	e, err := flags.setup()
	if err != nil {
		return err
	}
	defer func() { _ = e.logger.Sync() }()

	dataDir, err := e.cfg.DataDir()
	if err != nil {
		return err
	}
	path := filepath.Join(dataDir, PrefsFileName)
	kv, err := prefs.OpenSQLite(path)
	if err != nil {
		return err
	}
	defer kv.Close()

	return fn(e, prefs.NewStore(kv, e.logger.Named("prefs")), path)
}

func newPrefsShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrefs(flags, func(_ *env, store *prefs.Store, path string) error {
				p := store.Load(cmd.Context())
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, RenderLabel(prefs.KeyTheme), ValueStyle.Render(string(p.Theme)))
				fmt.Fprintln(out, RenderLabel(prefs.KeyAutoLoad), ValueStyle.Render(strconv.FormatBool(p.AutoLoad)))
				fmt.Fprintln(out, RenderLabel("database"), DimStyle.Render(path))
				return nil
			})
		},
	}
}

func newPrefsSetCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one preference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrefs(flags, func(_ *env, store *prefs.Store, _ string) error {
				if err := store.Set(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), RenderStatus("ok"), args[0], "=", args[1])
				return nil
			})
		},
	}
}
