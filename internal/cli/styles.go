// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/lipgloss"
)

func init() {
	lipgloss.SetColorProfile(ColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// promptStyle is the REPL prompt
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")). // Cyan
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("141")). // Purple
			Bold(true)

	// labelStyle is used for field labels and table headers
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")) // Light gray

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")) // Off-white

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")) // Green

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // Orange

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// mutedStyle is used for stats lines and hints
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	userRoleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	botRoleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("141")).
			Bold(true)
)
