package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	sortName key.Binding
	sortSize key.Binding
	sortDate key.Binding
	refresh  key.Binding
	upload   key.Binding
	rename   key.Binding
	remove   key.Binding
	assign   key.Binding
	unmap    key.Binding
	enter    key.Binding
	back     key.Binding
	yes      key.Binding
	no       key.Binding
	help     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		sortName: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "sort name")),
		sortSize: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort size")),
		sortDate: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "sort date")),
		refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		upload:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "upload")),
		rename:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "rename")),
		remove:   key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "delete")),
		assign:   key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "map tag")),
		unmap:    key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unmap")),
		enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		yes:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:       key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
		help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.assign, k.upload, k.refresh, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.refresh},
		{k.sortName, k.sortSize, k.sortDate},
		{k.upload, k.rename, k.remove},
		{k.assign, k.unmap, k.quit},
	}
}
