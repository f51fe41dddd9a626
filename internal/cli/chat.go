// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/chat"
	"github.com/jeranaias/rigrun-chat/internal/config"
	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/ollama"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

// historyPreviewRunes bounds each message shown by /history.
const historyPreviewRunes = 200

func newChatCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}

			session, err := startChatSession(cmd.Context(), a)
			if err != nil {
				return err
			}

			input := NewChatCLI()
			defer input.Close()
			return session.run(input)
		},
	}
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads any saved history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history, owner read/write only.
func (c *ChatCLI) SaveHistory() {
	var buf bytes.Buffer
	if _, err := c.line.WriteHistory(&buf); err != nil {
		return
	}
	_ = util.AtomicWriteFile(c.historyFile, buf.Bytes(), 0600)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION
// =============================================================================

// lineReader is satisfied by ChatCLI.
type lineReader interface {
	ReadInput(prompt string) (string, error)
}

// chatSession drives one interactive conversation against the store.
type chatSession struct {
	app *app

	// titleAttempted is set once a title has been requested, successful
	// or not, so it is derived at most once per session.
	titleAttempted bool
}

func newChatSession(a *app) *chatSession {
	return &chatSession{app: a}
}

// startChatSession checks that the server answers before any prompt is
// read, then resolves the configured model.
func startChatSession(ctx context.Context, a *app) (*chatSession, error) {
	if err := a.client.CheckRunning(ctx); err != nil {
		return nil, err
	}
	session := newChatSession(a)
	session.resolveModel(ctx)
	return session, nil
}

// resolveModel replaces a bare model name with the server's full entry so
// the welcome banner can describe it. Failures only warn; the name is
// kept as given.
func (s *chatSession) resolveModel(ctx context.Context) {
	name := s.app.store.SelectedModel().Name
	if name == "" {
		return
	}
	if _, err := s.app.store.SelectModelByName(ctx, name); err != nil {
		fmt.Fprintf(s.app.errOut, "%s %v\n", warningStyle.Render("[Warning]"), err)
	}
}

// run is the REPL loop. It returns when input ends or the user quits.
func (s *chatSession) run(input lineReader) error {
	s.printWelcome()

	for {
		line, err := input.ReadInput(promptStyle.Render("you> "))
		if err != nil {
			// Ctrl+C (liner.ErrPromptAborted) and Ctrl+D both end the session.
			fmt.Fprintln(s.app.out)
			s.printExitSummary()
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		keepGoing, err := s.handleLine(ctx, line)
		stop()

		if err != nil {
			fmt.Fprintf(s.app.errOut, "%s %s\n", errorStyle.Render("[Error]"), describeError(err))
		}
		if !keepGoing {
			s.printExitSummary()
			return nil
		}
	}
}

// handleLine processes one line of input. It returns false when the
// session should end.
func (s *chatSession) handleLine(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return true, nil
	case strings.HasPrefix(line, "/"):
		return s.handleSlashCommand(ctx, line)
	case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
		return false, nil
	default:
		return true, s.send(ctx, line)
	}
}

// send generates a reply to prompt, streaming it to the output. After the
// first reply a title is derived from the opening message.
func (s *chatSession) send(ctx context.Context, prompt string) error {
	out := s.app.out
	var stats *ollama.StreamStats

	unsubscribe := s.app.store.Subscribe(func(ev chat.Event) {
		switch ev.Type {
		case chat.EventMessageAdded:
			if !ev.Message.IsUser {
				fmt.Fprint(out, botRoleStyle.Render(ev.Message.Sender()+"> "))
			}
		case chat.EventFragment:
			fmt.Fprint(out, ev.Delta)
		case chat.EventGenerationDone:
			stats = ev.Stats
		}
	})
	err := s.app.store.Generate(ctx, prompt)
	unsubscribe()

	if errors.Is(err, chat.ErrNoModelSelected) {
		return err
	}
	fmt.Fprintln(out)
	if err != nil {
		return err
	}
	if stats != nil {
		fmt.Fprintln(out, mutedStyle.Render(stats.Format()))
	}

	if !s.titleAttempted {
		s.titleAttempted = true
		if title, err := s.app.store.GenerateTitle(ctx); err == nil && title != "" {
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Title:"), titleStyle.Render(title))
		}
	}
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (shouldContinue, error) where shouldContinue=false means exit.
func (s *chatSession) handleSlashCommand(ctx context.Context, line string) (bool, error) {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		s.printHelp()
		return true, nil

	case "/models":
		models, err := s.app.store.GetModels(ctx)
		if err != nil {
			return true, err
		}
		printModels(s.app.out, models, s.app.store.SelectedModel().Name)
		return true, nil

	case "/model", "/m":
		return true, s.handleModelCommand(ctx, args)

	case "/history":
		s.printHistory()
		return true, nil

	case "/title":
		return true, s.handleTitleCommand(ctx)

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// handleModelCommand shows the current model, or switches to args[0] after
// checking the server has it.
func (s *chatSession) handleModelCommand(ctx context.Context, args []string) error {
	out := s.app.out
	if len(args) == 0 {
		current := s.app.store.SelectedModel()
		if current.IsZero() {
			fmt.Fprintln(out, warningStyle.Render("No model selected."), "Use /model NAME")
			return nil
		}
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Model:"), valueStyle.Render(current.Describe()))
		return nil
	}

	selected, err := s.app.store.SelectModelByName(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s Switched to %s\n", successStyle.Render("[OK]"), selected.Describe())
	return nil
}

// handleTitleCommand prints the title, deriving it first if needed.
func (s *chatSession) handleTitleCommand(ctx context.Context) error {
	title := s.app.store.Title()
	if title == model.DefaultTitle && s.app.store.Len() > 0 {
		s.titleAttempted = true
		derived, err := s.app.store.GenerateTitle(ctx)
		if err != nil {
			return err
		}
		title = derived
	}
	fmt.Fprintf(s.app.out, "%s %s\n", labelStyle.Render("Title:"), titleStyle.Render(title))
	return nil
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

func (s *chatSession) printWelcome() {
	out := s.app.out
	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render("rigrun-chat"))
	fmt.Fprintln(out, labelStyle.Render(strings.Repeat("─", 30)))

	current := s.app.store.SelectedModel()
	if current.IsZero() {
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Model:"), warningStyle.Render("none (use /model NAME)"))
	} else {
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Model:"), valueStyle.Render(current.Describe()))
	}
	fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Server:"), valueStyle.Render(s.app.client.BaseURL()))
	fmt.Fprintln(out, mutedStyle.Render("Type /help for commands, /quit to exit."))
	fmt.Fprintln(out)
}

func (s *chatSession) printHelp() {
	commands := [][2]string{
		{"/models", "List installed models"},
		{"/model [NAME]", "Show or switch the model"},
		{"/history", "Show the conversation so far"},
		{"/title", "Show the conversation title"},
		{"/quit", "Exit"},
	}
	for _, c := range commands {
		fmt.Fprintf(s.app.out, "  %s %s\n", successStyle.Render(util.PadRight(c[0], 16)), c[1])
	}
}

func (s *chatSession) printHistory() {
	msgs := s.app.store.Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(s.app.out, mutedStyle.Render("No messages yet."))
		return
	}
	for _, msg := range msgs {
		role := botRoleStyle.Render(msg.Sender())
		if msg.IsUser {
			role = userRoleStyle.Render(msg.Sender())
		}
		fmt.Fprintf(s.app.out, "%s: %s\n", role, msg.Preview(historyPreviewRunes))
	}
}

func (s *chatSession) printExitSummary() {
	fmt.Fprintf(s.app.out, "%s %d messages\n",
		labelStyle.Render(s.app.store.Title()+":"),
		s.app.store.Len())
}
