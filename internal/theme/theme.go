package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/kanban/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// ErrorStyle renders failures in the status bar.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(ColorRed).
	Bold(true)

// DetailPanelStyle wraps the detail and create views.
var DetailPanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// ColumnStyle frames an unfocused column.
var ColumnStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// FocusedColumnStyle frames the column holding the cursor.
var FocusedColumnStyle = ColumnStyle.
	BorderForeground(ColorBlue)

// ColumnHeaderStyle is the column title line.
var ColumnHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite)

// CardStyle is the base style for a task card.
var CardStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedCardStyle highlights the card under the cursor.
var SelectedCardStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// GrabbedCardStyle marks the card being carried.
var GrabbedCardStyle = SelectedCardStyle.
	Foreground(ColorMagenta).
	BorderForeground(ColorMagenta)

// BannerStyle is used for warnings inside a panel.
var BannerStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorRed).
	Padding(0, 1)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ColumnColor returns the accent colour of a board column.
func ColumnColor(s model.Status) lipgloss.TerminalColor {
	switch s {
	case model.StatusBacklog:
		return ColorGray
	case model.StatusTodo:
		return ColorBlue
	case model.StatusInProgress:
		return ColorYellow
	case model.StatusDone:
		return ColorGreen
	default:
		return ColorGray
	}
}

// PriorityStyle returns a color-coded style for the given priority.
func PriorityStyle(p model.Priority) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch p {
	case model.PriorityCritical:
		return base.Foreground(ColorRed)
	case model.PriorityHigh:
		return base.Foreground(ColorOrange)
	case model.PriorityMedium:
		return base.Foreground(ColorYellow)
	case model.PriorityLow:
		return base.Foreground(ColorBlue)
	default:
		return base.Foreground(ColorGray)
	}
}

// TypeBadgeStyle returns the badge style for a task type.
func TypeBadgeStyle(t model.TaskType) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch t {
	case model.TypeFE:
		return base.Foreground(ColorBlue)
	case model.TypeBE:
		return base.Foreground(ColorGreen)
	case model.TypeBoth:
		return base.Foreground(ColorMagenta)
	default:
		return base.Foreground(ColorGray)
	}
}

// Avatar renders a user's initials on their avatar colour. Unknown or
// missing users render as a grey "?".
func Avatar(u model.User, ok bool) string {
	if !ok {
		return lipgloss.NewStyle().
			Foreground(ColorWhite).
			Background(ColorGray).
			Render("?")
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color(u.AvatarColor)).
		Render(u.Initials())
}
