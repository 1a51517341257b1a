package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	Open       key.Binding
	SelectMode key.Binding
	Toggle     key.Binding
	Download   key.Binding
	Delete     key.Binding
	Filter     key.Binding
	Refresh    key.Binding
	Scan       key.Binding
	Help       key.Binding
	Quit       key.Binding

	// viewer
	Close    key.Binding
	Previous key.Binding
	Next     key.Binding
	Remove   key.Binding
	Share    key.Binding
	Chrome   key.Binding

	// confirm prompt
	Yes key.Binding
	No  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Open:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		SelectMode: key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "select mode")),
		Toggle:     key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "toggle")),
		Download:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "download selected")),
		Delete:     key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete selected")),
		Filter:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Scan:       key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "scan storage")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

		Close:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		Previous: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "previous")),
		Next:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next")),
		Remove:   key.NewBinding(key.WithKeys("delete", "backspace"), key.WithHelp("del", "delete")),
		Share:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy link")),
		Chrome:   key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "info")),

		Yes: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "confirm")),
		No:  key.NewBinding(key.WithKeys("n", "esc", "q"), key.WithHelp("n", "cancel")),
	}
}

// gridKeys and viewerKeys feed the help bubble for the active screen.
type gridKeys struct{ k keyMap }

func (g gridKeys) ShortHelp() []key.Binding {
	return []key.Binding{g.k.Open, g.k.SelectMode, g.k.Filter, g.k.Refresh, g.k.Help, g.k.Quit}
}

func (g gridKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{g.k.Up, g.k.Down, g.k.Open, g.k.Filter},
		{g.k.SelectMode, g.k.Toggle, g.k.Download, g.k.Delete},
		{g.k.Refresh, g.k.Scan, g.k.Help, g.k.Quit},
	}
}

type viewerKeys struct{ k keyMap }

func (v viewerKeys) ShortHelp() []key.Binding {
	return []key.Binding{v.k.Previous, v.k.Next, v.k.Chrome, v.k.Share, v.k.Remove, v.k.Close}
}

func (v viewerKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{v.ShortHelp()}
}
