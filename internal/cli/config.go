// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/config"
)

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or reset the configuration file",
		Args:  cobra.NoArgs,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration as TOML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp(cmd, opts)
				if err != nil {
					return err
				}
				return config.Encode(a.cfg, a.out)
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := configFilePath(opts)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)

				if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s (file does not exist, defaults apply)\n", mutedStyle.Render("Note"))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Write the default configuration, keeping --url and --model",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return resetConfig(cmd, opts)
			},
		},
	)
	return cmd
}

// configFilePath is the --config flag when given, the default path otherwise.
func configFilePath(opts *globalOptions) (string, error) {
	if opts.configPath != "" {
		return opts.configPath, nil
	}
	return config.ConfigPath()
}

// resetConfig overwrites the config file with defaults. Flag values are
// written in so "config reset --url ... -m ..." produces a usable file.
func resetConfig(cmd *cobra.Command, opts *globalOptions) error {
	path, err := configFilePath(opts)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if opts.url != "" {
		cfg.Ollama.URL = opts.url
	}
	if opts.model != "" {
		cfg.Ollama.Model = opts.model
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	if err := config.SaveToPath(cfg, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Configuration reset to defaults\n", successStyle.Render("[OK]"))
	fmt.Fprintf(out, "Config file: %s\n", valueStyle.Render(path))
	return nil
}
