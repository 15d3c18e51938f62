// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/qubi-tui/internal/lifecycle"
	"github.com/jeranaias/qubi-tui/internal/model"
	"github.com/jeranaias/qubi-tui/internal/ui/styles"
	"github.com/jeranaias/qubi-tui/internal/util"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// View renders header, transcript (or the menu over it), input and status
// line. The viewport height is set in handleResize to fill the rest.
func (m Model) View() string {
	body := m.viewport.View()
	if m.menuOpen {
		body = lipgloss.Place(m.viewport.Width, m.viewport.Height,
			lipgloss.Center, lipgloss.Center, m.renderMenu())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderInput(),
		m.renderStatusBar(),
	)
}

func (m Model) width80() int {
	if m.width <= 0 {
		return 80
	}
	return m.width
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	width := m.width80()

	title := m.theme.HeaderTitle.Render("Qubi")
	content := title
	if m.opts.ModelID != "" {
		content += m.theme.HeaderSubtitle.Render(" | " + m.opts.ModelID)
	}
	content += m.theme.Muted.Render(" | " + m.theme.Attribute())

	return m.theme.Header.Width(width).Render(content)
}

// =============================================================================
// MESSAGES
// =============================================================================

// renderMessages renders the whole transcript for the viewport.
func (m *Model) renderMessages() string {
	msgs := m.transcript.Messages()
	parts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		parts = append(parts, m.renderMessage(msg))
	}
	return strings.Join(parts, "\n\n")
}

func (m *Model) renderMessage(msg model.ChatMessage) string {
	width := m.width80() - 2
	if width < 10 {
		width = 10
	}

	label := m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	bubble := m.theme.AssistantBubble
	content := m.renderMarkdown(msg.Content)
	if msg.IsUser() {
		label = m.theme.UserLabel.Render(msg.Role.DisplayName())
		bubble = m.theme.UserBubble
		content = msg.Content
	}

	header := label + " " + m.theme.Timestamp.Render(formatTimestamp(msg.Timestamp))
	return header + "\n" + bubble.Width(width).Render(content)
}

// renderMarkdown renders assistant text with glamour, falling back to the
// raw text if rendering is unavailable or fails.
func (m *Model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

// =============================================================================
// INPUT
// =============================================================================

func (m Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width80()).Render(m.input.View())
}

// =============================================================================
// MENU
// =============================================================================

func (m Model) renderMenu() string {
	items := m.menuItems()
	lines := make([]string, 0, len(items)+2)
	lines = append(lines, m.theme.MenuTitle.Render("Menu"))
	for i, item := range items {
		if i == m.menuIndex {
			lines = append(lines, m.theme.MenuItemSelected.Render("> "+item.label))
			continue
		}
		lines = append(lines, m.theme.MenuItem.Render(item.label))
	}
	lines = append(lines, m.theme.MenuHint.Render("up/down move, enter select, esc close"))
	return m.theme.MenuBox.Render(strings.Join(lines, "\n"))
}

// =============================================================================
// STATUS LINE
// =============================================================================

// cacheStatusWidth keeps the separator after the cache status in place.
var cacheStatusWidth = len(lifecycle.CacheNotFound)

// renderStatusBar shows the loading state, the progress text, the cache
// status and either the transient status message or the key help.
func (m Model) renderStatusBar() string {
	width := m.width80()
	contentWidth := width - 2
	if contentWidth < 10 {
		contentWidth = 10
	}

	left := m.renderState()
	if m.busy {
		left += " " + m.theme.Spinner.Render(m.spinner.View()) + " " + m.theme.Muted.Render("Qubi is thinking...")
	}

	var right string
	switch {
	case m.statusMsg != "":
		right = m.statusMsg
	case m.cacheStatus != lifecycle.CacheUnknown:
		right = "cache: " + util.PadWidth(string(m.cacheStatus), cacheStatusWidth)
	}
	help := m.renderHelp()

	used := lipgloss.Width(left)
	if right != "" {
		used += 3 + lipgloss.Width(right)
	}

	// Progress text gets whatever is left; wide runes are measured by
	// display width, not bytes.
	if m.progress != "" && (m.state == lifecycle.StateLoading || m.state == lifecycle.StateError || m.statusMsg == "") {
		room := contentWidth - used - 3
		if room > 8 {
			left += " " + m.theme.ProgressText.Render(util.FitWidth(m.progress, room))
		}
	}

	line := left
	if right != "" {
		line += m.theme.Muted.Render(" | ") + m.theme.ProgressText.Render(right)
	}
	if rest := contentWidth - lipgloss.Width(line) - 3; rest > lipgloss.Width(help) {
		line += m.theme.Muted.Render(" | ") + help
	}

	return m.theme.StatusBar.Width(width).Render(line)
}

func (m Model) renderState() string {
	switch m.state {
	case lifecycle.StateLoading:
		bar := "[" + styles.RenderProgressBar(12, m.fraction) + "]"
		return m.theme.StatusLoading.Render(m.spinner.View()+" loading ") + m.theme.Muted.Render(bar)
	case lifecycle.StateLoaded:
		return m.theme.StatusLoaded.Render(styles.StatusIndicators.Success + " loaded")
	case lifecycle.StateError:
		return m.theme.StatusError.Render(styles.StatusIndicators.Error + " error")
	default:
		return m.theme.StatusIdle.Render(styles.StatusIndicators.Pending + " not loaded")
	}
}

func (m Model) renderHelp() string {
	bindings := m.keyMap.ShortHelp()
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}
