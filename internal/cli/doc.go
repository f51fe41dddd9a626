// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the rigrun-chat command line.
//
// # Commands
//
//   - chat: interactive REPL with line editing and history
//   - tui: full-screen chat view (Bubble Tea)
//   - ask: one-shot streamed answer, optionally rendered as markdown
//   - models: installed models as an aligned table
//   - title: suggest a chat title for a first message
//   - config: show, locate or reset the config file
//   - version: build information
//
// Every command resolves its settings the same way: built-in defaults,
// then the config file, then RIGRUN_CHAT_* environment variables, then
// the --url and --model flags. chat and tui refuse to start when the
// server does not answer its health check.
//
// Colors follow termenv profile detection and are disabled when NO_COLOR
// is set or stdout is not a terminal.
package cli
