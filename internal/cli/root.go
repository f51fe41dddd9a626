// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/chat"
	"github.com/jeranaias/rigrun-chat/internal/config"
	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/ollama"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	url        string
	model      string
	configPath string
	verbose    bool
}

// app is everything a subcommand needs once flags and config are resolved.
type app struct {
	cfg    *config.Config
	client *ollama.Client
	store  *chat.Store
	out    io.Writer
	errOut io.Writer
}

// NewRootCmd builds the rigrun-chat command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "rigrun-chat",
		Short: "Chat with local models served by Ollama",
		Long: `rigrun-chat is a terminal chat client for a local Ollama server.

Examples:
  rigrun-chat chat -m llama3.2            Start interactive chat
  rigrun-chat tui -m llama3.2             Start full-screen chat
  rigrun-chat ask -m llama3.2 "Why is the sky blue?"
  echo "Summarize Go channels" | rigrun-chat ask
  rigrun-chat models                      List installed models
  rigrun-chat title "plan a trip to Lisbon"
  rigrun-chat config reset -m llama3.2    Write a config file`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.url, "url", "", "Ollama base URL (default from config, "+config.EnvOllamaURL+")")
	flags.StringVarP(&opts.model, "model", "m", "", "Model to use (default from config, "+config.EnvModel+")")
	flags.StringVar(&opts.configPath, "config", "", "Config file (default ~/.rigrun-chat/config.toml)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log request failures and skipped stream lines to stderr")

	root.AddCommand(
		newChatCmd(opts),
		newTUICmd(opts),
		newAskCmd(opts),
		newModelsCmd(opts),
		newTitleCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("[Error]"), describeError(err))
		return 1
	}
	return 0
}

// newApp loads configuration, applies flag overrides and wires the client
// and store. The model named by flags or config is selected as given; it
// is not checked against the server.
func newApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFromPath(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if opts.url != "" {
		cfg.Ollama.URL = opts.url
	}
	if opts.model != "" {
		cfg.Ollama.Model = opts.model
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	storeCfg := cfg.StoreConfig()
	if opts.verbose {
		storeCfg.Logger = log.New(cmd.ErrOrStderr(), "rigrun-chat: ", log.LstdFlags)
	} else {
		storeCfg.Logger = log.New(io.Discard, "", 0)
	}

	client := ollama.NewClientWithConfig(cfg.ClientConfig())
	store := chat.NewStore(client, storeCfg)
	if cfg.Ollama.Model != "" {
		store.SelectModel(model.SelectedModel{Name: cfg.Ollama.Model})
	}

	return &app{
		cfg:    cfg,
		client: client,
		store:  store,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
	}, nil
}

// describeError adds a hint for the failures users hit most.
func describeError(err error) string {
	switch {
	case ollama.IsNotRunning(err):
		return err.Error() + "\n  Start it with: ollama serve"
	case ollama.IsModelNotFound(err):
		return err.Error() + "\n  List installed models with: rigrun-chat models"
	case ollama.IsTimeout(err):
		return err.Error() + "\n  Raise ollama.timeout_secs or " + config.EnvTimeout
	case errors.Is(err, chat.ErrNoModelSelected):
		return err.Error() + "\n  Pass --model or set ollama.model in the config file"
	default:
		return err.Error()
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rigrun-chat %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}
