// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/chat"
	"github.com/jeranaias/rigrun-chat/internal/ollama"
)

// errNoPrompt is returned when neither arguments nor stdin carry a prompt.
var errNoPrompt = errors.New("no prompt given (pass it as arguments or pipe it on stdin)")

func newAskCmd(opts *globalOptions) *cobra.Command {
	var (
		render    bool
		showStats bool
	)

	cmd := &cobra.Command{
		Use:   "ask [prompt...]",
		Short: "Send a single prompt and stream the answer",
		Long: `Send a single prompt and stream the answer to stdout.

The prompt is read from the arguments, or from stdin when no arguments
are given and stdin is not a terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			prompt, err := readPrompt(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			useMarkdown := a.cfg.UI.Markdown
			if cmd.Flags().Changed("render") {
				useMarkdown = render
			}
			return runAsk(cmd.Context(), a, prompt, useMarkdown && isTerminal(a.out), showStats)
		},
	}

	cmd.Flags().BoolVar(&render, "render", true, "Render the answer as markdown when stdout is a terminal")
	cmd.Flags().BoolVar(&showStats, "stats", false, "Print timing and token statistics to stderr")
	return cmd
}

// readPrompt joins args, falling back to reading all of in when there are
// none and in is not a terminal.
func readPrompt(in io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if in == nil || isTerminal(in) {
		return "", errNoPrompt
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errNoPrompt
	}
	return prompt, nil
}

// runAsk generates one answer. Fragments are written as they arrive unless
// render is set, in which case the complete answer is rendered once.
func runAsk(ctx context.Context, a *app, prompt string, render, showStats bool) error {
	var stats *ollama.StreamStats
	unsubscribe := a.store.Subscribe(func(ev chat.Event) {
		switch ev.Type {
		case chat.EventFragment:
			if !render {
				fmt.Fprint(a.out, ev.Delta)
			}
		case chat.EventGenerationDone:
			stats = ev.Stats
		}
	})
	defer unsubscribe()

	err := a.store.Generate(ctx, prompt)
	if errors.Is(err, chat.ErrNoModelSelected) {
		return err
	}

	msgs := a.store.Messages()
	answer := msgs[len(msgs)-1].Text
	switch {
	case render && answer != "":
		fmt.Fprint(a.out, renderMarkdown(answer, terminalWidth(a.out)))
	case answer != "" && !strings.HasSuffix(answer, "\n"):
		fmt.Fprintln(a.out)
	}
	if err != nil {
		return err
	}

	if showStats && stats != nil {
		fmt.Fprintln(a.errOut, mutedStyle.Render(stats.Format()))
	}
	return nil
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// renderMarkdown renders markdown for terminal display, falling back to
// the raw content if glamour fails.
func renderMarkdown(content string, width int) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	if err != nil {
		return content
	}

	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}
