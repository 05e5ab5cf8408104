package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	summaryStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	rowStyle      = lipgloss.NewStyle().PaddingLeft(2)
	selectedStyle = lipgloss.NewStyle().PaddingLeft(1).Foreground(lipgloss.Color("11")).Bold(true)
	detailStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle    = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	markStyle     = lipgloss.NewStyle().Reverse(true)
)

// View renders the screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	parts := []string{titleStyle.Render("kbrag")}
	if m.summary != "" {
		parts = append(parts, summaryStyle.Render(m.summary))
	}
	if list := m.renderList(); list != "" {
		parts = append(parts, list)
	}
	parts = append(parts,
		detailStyle.Render(m.detail.View()),
		inputStyle.Render(m.input.View()),
		statusStyle.Render(m.status),
		m.help.View(m.keys),
	)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderList() string {
	rows := make([]string, 0, len(m.results))
	for i, r := range m.results {
		line := fmt.Sprintf("%2d. %.3f  %s p.%d", i+1, r.Score, r.Source, r.Page)
		if i == m.cursor {
			rows = append(rows, selectedStyle.Render(">"+line))
			continue
		}
		rows = append(rows, rowStyle.Render(line))
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderDetail() string {
	r, ok := m.Selected()
	if !ok {
		return "No results yet."
	}
	header := fmt.Sprintf("[%d/%d] %s, page %d (score %.3f)", m.cursor+1, len(m.results), r.Source, r.Page, r.Score)
	body := highlightTerms(r.Text, m.terms, func(s string) string { return markStyle.Render(s) })
	if m.detail.Width > 0 {
		body = lipgloss.NewStyle().Width(m.detail.Width).Render(body)
	}
	return header + "\n\n" + body
}
