// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigrun-chat/internal/chat"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

// Layout rows around the viewport: header, status line, input line.
const chromeHeight = 3

// Model is the Bubble Tea model of the chat view.
type Model struct {
	ctx   context.Context
	store *chat.Store
	keys  KeyMap

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	// status is the line under the transcript: stats, hints or the last error.
	status  string
	isError bool

	titleAttempted bool
}

// New creates the chat view for store. Generations started from the view
// run under ctx.
func New(ctx context.Context, store *chat.Store) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message... (/model NAME, /quit)"
	ti.CharLimit = 4096
	ti.Width = 70
	ti.Prompt = "> "
	ti.PromptStyle = userStyle
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	s.Style = spinnerStyle

	return Model{
		ctx:      ctx,
		store:    store,
		keys:     DefaultKeyMap(),
		viewport: viewport.New(80, 20),
		input:    ti,
		spinner:  s,
	}
}

// Run starts a full-screen program on store and blocks until the user
// quits. In-flight generations are cancelled on return.
func Run(ctx context.Context, store *chat.Store) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(ctx, store), tea.WithAltScreen())
	unsubscribe := Forward(store, p)
	defer unsubscribe()

	_, err := p.Run()
	return err
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StoreEventMsg:
		return m.handleStoreEvent(msg.Event)

	case generateDoneMsg:
		return m.handleGenerateDone(msg)

	case titleDoneMsg:
		if msg.err != nil {
			m.setError(fmt.Errorf("title: %w", msg.err))
		}
		return m, nil

	case modelSwitchedMsg:
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.setStatus("Switched to " + msg.selected.Describe())
		return m, nil

	case spinner.TickMsg:
		if !m.store.Loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat view.
func (m Model) View() string {
	if !m.ready {
		return "Starting..."
	}

	header := headerStyle.Render(m.store.Title())
	if selected := m.store.SelectedModel(); !selected.IsZero() {
		header += "  " + modelStyle.Render(selected.Name)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		m.statusLine(),
		m.input.View(),
	)
}

// =============================================================================
// MESSAGE HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height

	m.viewport.Width = msg.Width
	m.viewport.Height = max(1, msg.Height-chromeHeight)
	m.input.Width = max(10, msg.Width-len(m.input.Prompt)-1)
	m.ready = true

	m.refresh()
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleStoreEvent(ev chat.Event) (tea.Model, tea.Cmd) {
	switch ev.Type {
	case chat.EventMessageAdded, chat.EventFragment:
		m.refresh()

	case chat.EventLoadingChanged:
		if ev.Loading {
			m.setStatus("")
			return m, m.spinner.Tick
		}

	case chat.EventGenerationDone:
		if ev.Err != nil {
			m.setError(ev.Err)
		} else if ev.Stats != nil {
			m.setStatus(ev.Stats.Format())
		}
	}
	return m, nil
}

// handleGenerateDone derives the title once, after the first answer.
func (m Model) handleGenerateDone(msg generateDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.setError(msg.err)
		return m, nil
	}
	if m.titleAttempted {
		return m, nil
	}
	m.titleAttempted = true
	return m, titleCmd(m.ctx, m.store)
}

// =============================================================================
// INPUT
// =============================================================================

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m.handleCommand(text)
	}

	if m.store.SelectedModel().IsZero() {
		m.setError(errors.New("no model selected, use /model NAME"))
		return m, nil
	}
	if m.store.Loading() {
		m.setStatus("Waiting for the current answer...")
		return m, nil
	}

	m.input.Reset()
	return m, generateCmd(m.ctx, m.store, text)
}

func (m Model) handleCommand(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/q", "/exit":
		return m, tea.Quit

	case "/model", "/m":
		if len(fields) < 2 {
			if selected := m.store.SelectedModel(); !selected.IsZero() {
				m.setStatus("Model: " + selected.Describe())
			} else {
				m.setStatus("No model selected.")
			}
			return m, nil
		}
		m.setStatus("Switching to " + fields[1] + "...")
		return m, selectModelCmd(m.ctx, m.store, fields[1])

	default:
		m.setError(fmt.Errorf("unknown command: %s", fields[0]))
		return m, nil
	}
}

// =============================================================================
// RENDERING
// =============================================================================

// refresh re-renders the transcript and follows the newest line.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func (m Model) renderMessages() string {
	msgs := m.store.Messages()
	if len(msgs) == 0 {
		return statusStyle.Render("No messages yet. " + m.keys.ShortHelp())
	}

	body := lipgloss.NewStyle().Width(max(1, m.viewport.Width))
	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := botStyle.Render(msg.Sender() + ">")
		if msg.IsUser {
			label = userStyle.Render(msg.Sender() + ">")
		}
		b.WriteString(label)
		b.WriteString("\n")

		text := msg.Text
		if text == "" && !msg.IsUser {
			text = "..."
		}
		b.WriteString(body.Render(text))
	}
	return b.String()
}

func (m Model) statusLine() string {
	if m.store.Loading() {
		return m.spinner.View() + " " + statusStyle.Render("generating")
	}
	if m.isError {
		return errorStyle.Render(m.status)
	}
	return statusStyle.Render(m.status)
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.isError = false
}

// setError shows err on the status line, folded onto one line.
func (m *Model) setError(err error) {
	m.status = "Error: " + util.TruncateWidth(util.SingleLine(err.Error()), max(20, m.width-8))
	m.isError = true
}
