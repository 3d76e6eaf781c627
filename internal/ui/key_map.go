package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	skip    key.Binding
	add     key.Binding
	history key.Binding
	yank    key.Binding
	submit  key.Binding
	back    key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		skip:    key.NewBinding(key.WithKeys("enter", "s"), key.WithHelp("enter/s", "skip to")),
		add:     key.NewBinding(key.WithKeys("a", "/"), key.WithHelp("a", "add track")),
		history: key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "history")),
		yank:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy now playing")),
		submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.add, k.skip, k.history, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.skip},
		{k.add, k.submit, k.back},
		{k.history, k.yank, k.quit},
	}
}
