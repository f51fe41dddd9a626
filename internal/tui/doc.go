// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tui provides the full-screen Bubble Tea chat view.
//
// The view never owns chat state. It renders chat.Store snapshots and
// redraws whenever a store event arrives. Events reach the program through
// Forward, which subscribes to the store and hands each event to a Sender
// (normally the running *tea.Program).
//
// Usage:
//
//	store := chat.NewStore(client, chat.DefaultConfig())
//	if err := tui.Run(ctx, store); err != nil {
//		log.Fatal(err)
//	}
package tui
