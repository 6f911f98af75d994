// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the theseus TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderModel lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	MessageBody    lipgloss.Style

	// ==========================================================================
	// SIDEBAR STYLES
	// ==========================================================================

	Sidebar             lipgloss.Style
	SidebarTitle        lipgloss.Style
	SessionItem         lipgloss.Style
	SessionItemSelected lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	Attachment     lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar   lipgloss.Style
	StatusKey   lipgloss.Style
	GPUGauge    lipgloss.Style
	GPUGaugeHot lipgloss.Style

	// ==========================================================================
	// FEEDBACK STYLES
	// ==========================================================================

	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style
	ErrorBox     lipgloss.Style
	ErrorTitle   lipgloss.Style
}

// color palettes
var (
	darkAccent    = lipgloss.Color("170") // magenta
	darkSecondary = lipgloss.Color("99")  // purple
	darkMuted     = lipgloss.Color("241")
	darkError     = lipgloss.Color("196")
	darkWarn      = lipgloss.Color("214")

	lightAccent    = lipgloss.Color("127")
	lightSecondary = lipgloss.Color("55")
	lightMuted     = lipgloss.Color("245")
)

// NewTheme builds a theme for the requested variant ("dark" or
// "light"). Unknown variants fall back to dark.
func NewTheme(variant string) *Theme {
	isDark := variant != "light"

	accent, secondary, muted := darkAccent, darkSecondary, darkMuted
	if !isDark {
		accent, secondary, muted = lightAccent, lightSecondary, lightMuted
	}

	return &Theme{
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),

		Header:      lipgloss.NewStyle().Padding(0, 1),
		HeaderTitle: lipgloss.NewStyle().Bold(true).Foreground(accent),
		HeaderModel: lipgloss.NewStyle().Foreground(muted),

		UserLabel:      lipgloss.NewStyle().Bold(true).Foreground(secondary),
		AssistantLabel: lipgloss.NewStyle().Bold(true).Foreground(accent),
		SystemLabel:    lipgloss.NewStyle().Bold(true).Foreground(muted),
		MessageBody:    lipgloss.NewStyle(),

		Sidebar: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(muted).
			Padding(0, 1),
		SidebarTitle:        lipgloss.NewStyle().Bold(true).Foreground(accent),
		SessionItem:         lipgloss.NewStyle().Foreground(muted),
		SessionItemSelected: lipgloss.NewStyle().Bold(true).Foreground(accent),

		InputContainer: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(secondary).
			Padding(0, 1),
		InputPrompt: lipgloss.NewStyle().Bold(true).Foreground(accent),
		Attachment:  lipgloss.NewStyle().Foreground(darkWarn),

		StatusBar:   lipgloss.NewStyle().Foreground(muted).Padding(0, 1),
		StatusKey:   lipgloss.NewStyle().Bold(true).Foreground(secondary),
		GPUGauge:    lipgloss.NewStyle().Foreground(secondary),
		GPUGaugeHot: lipgloss.NewStyle().Foreground(darkError),

		Spinner:      lipgloss.NewStyle().Foreground(accent),
		ThinkingText: lipgloss.NewStyle().Foreground(muted).Italic(true),
		ErrorBox: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(darkError).
			Padding(0, 1),
		ErrorTitle: lipgloss.NewStyle().Bold(true).Foreground(darkError),
	}
}
