package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/kanban/internal/theme"
)

// Layout manages the terminal layout dimensions: a header line, the filter
// bar, the content area and a status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	FilterBarHeight int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		FilterBarHeight: 1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height left for the board or an open panel.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.FilterBarHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// ColumnWidth splits the content width evenly between n columns.
func (l Layout) ColumnWidth(n int) int {
	if n <= 0 {
		return l.Width
	}
	return l.Width / n
}

// RenderHeader renders the top bar with a title on the left and the
// connection state on the right.
func (l Layout) RenderHeader(title string, connection string) string {
	titleRendered := theme.HeaderStyle.Render(title)
	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(connection)

	return l.fill(theme.HeaderStyle, titleRendered, statusRendered)
}

// RenderStatusBar renders the bottom bar. A non-empty errText replaces the
// hints.
func (l Layout) RenderStatusBar(hints string, errText string) string {
	var rendered string
	if errText != "" {
		rendered = theme.StatusBarStyle.Render(theme.ErrorStyle.Render("✗ " + errText))
	} else {
		rendered = theme.StatusBarStyle.Render(hints)
	}
	return l.fill(theme.StatusBarStyle, rendered, "")
}

func (l Layout) fill(style lipgloss.Style, left, right string) string {
	gap := l.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}

// RenderWithFrame composes the full terminal view.
func (l Layout) RenderWithFrame(header, filterBar, content, statusBar string) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		filterBar,
		content,
		statusBar,
	)
}
