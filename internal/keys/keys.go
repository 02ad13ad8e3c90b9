package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Left  key.Binding
	Right key.Binding
	Up    key.Binding
	Down  key.Binding

	// Drag and drop
	Grab   key.Binding
	Cancel key.Binding

	// Task actions
	Open   key.Binding
	New    key.Binding
	Save   key.Binding
	Delete key.Binding

	// Filters
	FilterPriority key.Binding
	FilterType     key.Binding
	FilterAssignee key.Binding
	FilterCategory key.Binding
	ClearFilters   key.Binding

	// Help toggle
	Help key.Binding

	// Quit
	Quit key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Left: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h/←", "prev column"),
		),
		Right: key.NewBinding(
			key.WithKeys("l", "right"),
			key.WithHelp("l/→", "next column"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Grab: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "grab/drop"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel/back"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open detail"),
		),
		New: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new task"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save"),
		),
		Delete: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "delete"),
		),
		FilterPriority: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "cycle priority filter"),
		),
		FilterType: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "cycle type filter"),
		),
		FilterAssignee: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "cycle assignee filter"),
		),
		FilterCategory: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "cycle category filter"),
		),
		ClearFilters: key.NewBinding(
			key.WithKeys("0"),
			key.WithHelp("0", "clear filters"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Left, k.Right, k.Grab, k.Open,
		k.New, k.Help, k.Quit,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.Grab, k.Cancel, k.Open, k.New},
		{k.FilterPriority, k.FilterType, k.FilterAssignee, k.FilterCategory, k.ClearFilters},
		{k.Save, k.Delete, k.Help, k.Quit},
	}
}
