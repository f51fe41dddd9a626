// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single entry in the conversation log.
//
// Text and Response always hold the same content. A user message carries
// the prompt in both; a bot message starts empty and both fields grow with
// every streamed fragment.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	IsUser    bool      `json:"isUser"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserMessage creates a message for a prompt typed by the user.
func NewUserMessage(prompt string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Text:      prompt,
		IsUser:    true,
		Response:  prompt,
		CreatedAt: time.Now(),
	}
}

// NewBotMessage creates the empty placeholder a generation streams into.
func NewBotMessage() *Message {
	return &Message{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendFragment extends both Text and Response with a streamed fragment.
func (m *Message) AppendFragment(fragment string) {
	m.Text += fragment
	m.Response += fragment
}

// Sender returns a human-readable name for who wrote the message.
func (m *Message) Sender() string {
	if m.IsUser {
		return "You"
	}
	return "Assistant"
}

// Preview returns a truncated preview of the message text.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	runes := []rune(m.Text)
	if len(runes) <= maxLen {
		return m.Text
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
