package components

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/quill/internal/tui/styles"
)

// ConfirmModal asks a yes/no question before a destructive action
type ConfirmModal struct {
	visible bool
	title   string
	body    string
	target  int64
}

// NewConfirmModal creates a hidden confirmation modal
func NewConfirmModal() ConfirmModal {
	return ConfirmModal{}
}

// Show displays the modal for the given target id
func (m *ConfirmModal) Show(title, body string, target int64) {
	m.visible = true
	m.title = title
	m.body = body
	m.target = target
}

// Hide dismisses the modal
func (m *ConfirmModal) Hide() {
	m.visible = false
}

// IsVisible returns whether the modal is shown
func (m ConfirmModal) IsVisible() bool {
	return m.visible
}

// Target returns the id the question is about
func (m ConfirmModal) Target() int64 {
	return m.target
}

// Update handles key events, returns (modal, confirmed). The modal hides
// itself on either answer.
func (m ConfirmModal) Update(msg tea.Msg) (ConfirmModal, bool) {
	if !m.visible {
		return m, false
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, false
	}
	switch {
	case key.Matches(keyMsg, ConfirmKeys.Yes):
		m.Hide()
		return m, true
	case key.Matches(keyMsg, ConfirmKeys.No):
		m.Hide()
	}
	return m, false
}

// View renders the confirmation modal
func (m ConfirmModal) View() string {
	if !m.visible {
		return ""
	}

	const modalWidth = 40

	titleStyle := lipgloss.NewStyle().
		Foreground(styles.White).
		Bold(true).
		Width(modalWidth).
		Background(styles.SlateDark)

	bodyStyle := lipgloss.NewStyle().
		Foreground(styles.LightGray).
		Width(modalWidth).
		Background(styles.SlateDark)

	spacer := lipgloss.NewStyle().
		Width(modalWidth).
		Background(styles.SlateDark).
		Render("")

	hints := bodyStyle.Render(styles.RenderHint("y", "yes") + "    " + styles.RenderHint("n", "no"))

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(m.title),
		spacer,
		bodyStyle.Render(m.body),
		spacer,
		hints,
	)

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Red).
		Background(styles.SlateDark).
		Padding(1, 2).
		Render(content)
}
