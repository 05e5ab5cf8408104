package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap lists the bindings the search screen reacts to. Letters are left
// to the query input, so navigation uses arrows and tab.
type keyMap struct {
	Search key.Binding
	Next   key.Binding
	Prev   key.Binding
	Clear  key.Binding
	Quit   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Search: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "search")),
		Next:   key.NewBinding(key.WithKeys("down", "tab"), key.WithHelp("↓/tab", "next")),
		Prev:   key.NewBinding(key.WithKeys("up", "shift+tab"), key.WithHelp("↑/shift+tab", "prev")),
		Clear:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear")),
		Quit:   key.NewBinding(key.WithKeys("ctrl+c", "ctrl+d"), key.WithHelp("ctrl+c", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Search, k.Next, k.Prev, k.Clear, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
