// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is an append-only, ordered message log.
//
// Messages are never removed or reordered. The only in-place mutation is
// AppendFragment on a bot message while it is being streamed.
//
// A Conversation is not safe for concurrent use; the chat store guards it.
type Conversation struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Messages  []*Message `json:"messages"`
}

// NewConversation creates a new empty conversation with a generated ID.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends a message and returns its index.
func (c *Conversation) AddMessage(msg *Message) int {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	return len(c.Messages) - 1
}

// AddUserMessage creates and appends a user message.
func (c *Conversation) AddUserMessage(prompt string) (*Message, int) {
	msg := NewUserMessage(prompt)
	return msg, c.AddMessage(msg)
}

// AddBotMessage creates and appends an empty bot placeholder.
func (c *Conversation) AddBotMessage() (*Message, int) {
	msg := NewBotMessage()
	return msg, c.AddMessage(msg)
}

// AppendToMessage extends the message at index with a fragment.
// Out-of-range indexes are ignored.
func (c *Conversation) AppendToMessage(index int, fragment string) {
	if index < 0 || index >= len(c.Messages) {
		return
	}
	c.Messages[index].AppendFragment(fragment)
	c.UpdatedAt = time.Now()
}

// GetFirstUserMessage returns the earliest user message, or nil.
func (c *Conversation) GetFirstUserMessage() *Message {
	for _, msg := range c.Messages {
		if msg.IsUser {
			return msg
		}
	}
	return nil
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// Snapshot returns value copies of all messages, safe to hand to readers.
func (c *Conversation) Snapshot() []Message {
	out := make([]Message, len(c.Messages))
	for i, msg := range c.Messages {
		out[i] = *msg
	}
	return out
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// SetTitle sets the conversation title.
func (c *Conversation) SetTitle(title string) {
	c.Title = title
	c.UpdatedAt = time.Now()
}

// DefaultTitle is shown until a conversation is given a title.
const DefaultTitle = "New Chat"

// GetTitle returns the conversation title or DefaultTitle.
func (c *Conversation) GetTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return DefaultTitle
}
