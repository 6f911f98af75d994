// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/theseus-tui/internal/model"
	"github.com/jeranaias/theseus-tui/internal/util"
)

// chromeHeight is the number of terminal rows used by everything that
// is not the transcript: header, input box, status bar.
const chromeHeight = 7

// =============================================================================
// VIEW
// =============================================================================

// View renders the full screen.
func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	main := m.viewport.View()
	if m.showSidebar {
		main = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), main)
	}

	sections := []string{
		m.renderHeader(),
		main,
	}
	if line := m.renderAttachmentLine(); line != "" {
		sections = append(sections, line)
	}
	if m.errText != "" {
		sections = append(sections, m.theme.ErrorBox.Width(m.width-2).Render(
			m.theme.ErrorTitle.Render("Error: ")+m.errText))
	}
	sections = append(sections,
		m.theme.InputContainer.Width(m.width-2).Render(m.input.View()),
		m.renderStatusBar(),
	)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("theseus")
	sessionID := m.theme.HeaderModel.Render(m.session.ID)
	return m.theme.Header.Render(title + "  " + sessionID)
}

func (m *Model) renderHelp() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.theme.HeaderTitle.Render("commands"),
		"",
		HelpText(),
		"",
		m.theme.HeaderModel.Render("press esc to close"),
	)
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m *Model) renderSidebar() string {
	height := m.viewport.Height
	innerWidth := sidebarWidth - 4 // border + padding

	lines := []string{m.theme.SidebarTitle.Render("sessions"), ""}
	for i, meta := range m.metas {
		if len(lines) >= height {
			break
		}
		label := fmt.Sprintf("%2d %s", i+1, util.TruncateWidth(meta.Label, innerWidth-3))
		if meta.ID == m.session.ID {
			lines = append(lines, m.theme.SessionItemSelected.Render(label))
		} else {
			lines = append(lines, m.theme.SessionItem.Render(label))
		}
	}
	if len(m.metas) == 0 {
		lines = append(lines, m.theme.SessionItem.Render("(none yet)"))
	}

	body := strings.Join(lines, "\n")
	return m.theme.Sidebar.Width(sidebarWidth - 2).Height(height).Render(body)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refreshViewport re-renders the transcript into the viewport and
// keeps the view pinned to the newest content while streaming.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if atBottom || m.streaming {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderTranscript() string {
	if m.session.IsEmpty() {
		return m.theme.ThinkingText.Render("No messages yet. Say something.")
	}

	var sb strings.Builder
	for _, msg := range m.session.Messages {
		sb.WriteString(m.renderMessage(msg))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *Model) renderMessage(msg *model.Message) string {
	// The in-flight reply renders its accumulated tokens with a cursor
	// block; partial markdown is left unstyled until the stream ends.
	if msg.IsStreaming {
		label := m.theme.AssistantLabel.Render(msg.Role.DisplayName())
		body := msg.DisplayContent()
		if body == "" {
			return label + "\n" + m.spin.View() + m.theme.ThinkingText.Render(" thinking...") + "\n"
		}
		return label + "\n" + body + "▌" + "\n"
	}

	var label string
	switch msg.Role {
	case model.RoleUser:
		label = m.theme.UserLabel.Render(msg.Role.DisplayName())
	case model.RoleAssistant:
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	default:
		label = m.theme.SystemLabel.Render(msg.Role.DisplayName())
	}

	body := msg.DisplayContent()
	// Assistant markdown gets the glamour treatment; user text stays
	// verbatim.
	if msg.Role == model.RoleAssistant && m.renderer != nil {
		if rendered, err := m.renderer.Render(body); err == nil {
			body = strings.TrimRight(rendered, "\n")
		}
	}

	return label + "\n" + body + "\n"
}

// =============================================================================
// STATUS BAR
// =============================================================================

func (m *Model) renderStatusBar() string {
	parts := []string{
		m.theme.StatusKey.Render(m.modelName),
	}

	if m.cfg.UI.ShowVRAM {
		parts = append(parts, m.renderGPUGauge())
	}

	switch {
	case m.attaching && m.attachStatus != "":
		parts = append(parts, m.spin.View()+" "+m.attachStatus)
	case m.flash != "":
		parts = append(parts, util.TruncateRunes(m.flash, 80))
	case m.streaming:
		parts = append(parts, m.spin.View()+" generating")
	default:
		parts = append(parts, "/help for commands")
	}

	return m.theme.StatusBar.Width(m.width).Render(strings.Join(parts, "  |  "))
}

// renderGPUGauge draws VRAM usage as a small bar plus numbers.
func (m *Model) renderGPUGauge() string {
	const cells = 10
	filled := int(m.usage.Percent()*cells + 0.5)
	if filled > cells {
		filled = cells
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", cells-filled)
	text := fmt.Sprintf("%s %d/%d MB", bar, m.usage.UsedMB, m.usage.TotalMB)

	if m.usage.Percent() > 0.9 {
		return m.theme.GPUGaugeHot.Render(text)
	}
	return m.theme.GPUGauge.Render(text)
}

// =============================================================================
// ATTACHMENT LINE
// =============================================================================

func (m *Model) renderAttachmentLine() string {
	if m.attachment == nil {
		return ""
	}
	note := "📎 " + m.attachment.Name
	if m.attachment.OCRUsed {
		note += " (OCR)"
	}
	note += "  (/detach to remove)"
	return m.theme.Attachment.Render(note)
}

// =============================================================================
// EXPORT HELPER
// =============================================================================

// writeExport writes an exported transcript next to the session files.
func writeExport(path, content string) error {
	return util.AtomicWriteFile(path, []byte(content), 0644)
}
