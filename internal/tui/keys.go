package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
	Select    key.Binding
	Clear     key.Binding
	Focus     key.Binding
	NextFacet key.Binding
	PrevFacet key.Binding
	More      key.Binding
	Help      key.Binding
	Quit      key.Binding
}

var keys = keyMap{
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Left:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
	Right:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),
	Select:    key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "select / expand")),
	Clear:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear selection")),
	Focus:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch panel")),
	NextFacet: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next run")),
	PrevFacet: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "previous run")),
	More:      key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "more rows")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Focus, k.Select, k.Clear, k.More, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Select, k.Clear, k.Focus},
		{k.NextFacet, k.PrevFacet, k.More},
		{k.Help, k.Quit},
	}
}
