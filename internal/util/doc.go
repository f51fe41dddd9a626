// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the chat client.
//
// String helpers are rune- and column-aware so log lines and terminal
// tables never split a multi-byte character:
//
//	preview := util.TruncateRunes(line, 80)
//	cell := util.PadRight(model.Name, 28)
//
// AtomicWriteFile is used for anything persisted to the user's config
// directory:
//
//	err := util.AtomicWriteFile(path, data, 0600)
package util
