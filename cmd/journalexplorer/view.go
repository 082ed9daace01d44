package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ilyalabun/btm/status"
)

const detailHeight = 8

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")).Padding(0, 1)
	selectedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	corruptedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	committedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	danglingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helpStyle      = lipgloss.NewStyle().Faint(true)
	detailBorder   = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(0, 1)
)

func (m *model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("journalexplorer — %s (%d records)", m.filename, len(m.entries))))
	b.WriteString("\n\n")

	listHeight := m.height - detailHeight - 7
	if listHeight < 3 {
		listHeight = 3
	}
	start := 0
	if m.cursor >= listHeight {
		start = m.cursor - listHeight + 1
	}
	end := start + listHeight
	if end > len(m.entries) {
		end = len(m.entries)
	}

	for i := start; i < end; i++ {
		line := m.renderLine(m.entries[i])
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.entries) == 0 {
		b.WriteString(helpStyle.Render("  (journal is empty)\n"))
	}

	if m.showDetail {
		b.WriteString("\n")
		b.WriteString(detailBorder.Render(m.detail.View()))
		b.WriteString("\n")
	}

	if m.statusMsg != "" {
		b.WriteString(helpStyle.Render(m.statusMsg))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ move · tab detail · c copy gtrid · q quit"))
	return b.String()
}

func (m *model) renderLine(e entry) string {
	if e.record == nil {
		return corruptedStyle.Render(fmt.Sprintf("#%-4d CORRUPTED", e.index))
	}

	name := status.Name(e.record.Status)
	line := fmt.Sprintf("#%-4d %-13s %s", e.index, name, e.record.Gtrid)
	switch e.record.Status {
	case status.Committed:
		return committedStyle.Render(line)
	case status.Committing:
		return danglingStyle.Render(line)
	}
	return line
}
