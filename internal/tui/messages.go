// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigrun-chat/internal/chat"
	"github.com/jeranaias/rigrun-chat/internal/model"
)

// =============================================================================
// MESSAGES
// =============================================================================

// StoreEventMsg carries a store change into the program.
type StoreEventMsg struct {
	Event chat.Event
}

// generateDoneMsg is returned when a Generate call finishes.
type generateDoneMsg struct {
	err error
}

// titleDoneMsg is returned when title derivation finishes. A successful
// title also arrives as an EventTitleChanged store event.
type titleDoneMsg struct {
	title string
	err   error
}

// modelSwitchedMsg is returned by the /model command.
type modelSwitchedMsg struct {
	selected model.SelectedModel
	err      error
}

// =============================================================================
// EVENT FORWARDING
// =============================================================================

// Sender accepts messages from outside the program's event loop.
// *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Forward subscribes to store and sends every event to s as a
// StoreEventMsg. Events are sent on the goroutine that changed the store,
// never from inside Update. The returned func unsubscribes.
func Forward(store *chat.Store, s Sender) (unsubscribe func()) {
	return store.Subscribe(func(ev chat.Event) {
		s.Send(StoreEventMsg{Event: ev})
	})
}

// =============================================================================
// COMMANDS
// =============================================================================

func generateCmd(ctx context.Context, store *chat.Store, prompt string) tea.Cmd {
	return func() tea.Msg {
		return generateDoneMsg{err: store.Generate(ctx, prompt)}
	}
}

func titleCmd(ctx context.Context, store *chat.Store) tea.Cmd {
	return func() tea.Msg {
		title, err := store.GenerateTitle(ctx)
		return titleDoneMsg{title: title, err: err}
	}
}

func selectModelCmd(ctx context.Context, store *chat.Store, name string) tea.Cmd {
	return func() tea.Msg {
		selected, err := store.SelectModelByName(ctx, name)
		return modelSwitchedMsg{selected: selected, err: err}
	}
}
