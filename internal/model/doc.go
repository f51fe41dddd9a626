// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Conversation: Append-only ordered message log with an optional title
//   - Message: One entry with text, response and a user/bot flag
//   - SelectedModel: The model chosen for generation
//
// # Usage
//
//	conv := model.NewConversation()
//	conv.AddUserMessage("Hello!")
//	bot, idx := conv.AddBotMessage()
//	conv.AppendToMessage(idx, "Hi")
//	fmt.Println(bot.Text)
package model
