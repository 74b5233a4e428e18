package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Left     key.Binding
	Right    key.Binding
	Up       key.Binding
	Down     key.Binding
	Pick     key.Binding
	Drop     key.Binding
	Cancel   key.Binding
	Unassign key.Binding
	Optimize key.Binding
	Prev     key.Binding
	Next     key.Binding
	Today    key.Binding
	View     key.Binding
	Refresh  key.Binding
	Detail   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Left:     key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column")),
		Right:    key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column")),
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Pick:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pick up")),
		Drop:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop")),
		Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Unassign: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "unassign")),
		Optimize: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "optimize")),
		Prev:     key.NewBinding(key.WithKeys("["), key.WithHelp("[", "previous")),
		Next:     key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next")),
		Today:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "today")),
		View:     key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "day/week/month")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Detail:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "details")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pick, k.Drop, k.Unassign, k.Optimize, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.Pick, k.Drop, k.Cancel, k.Unassign},
		{k.Prev, k.Next, k.Today, k.View},
		{k.Optimize, k.Refresh, k.Detail, k.Help, k.Quit},
	}
}
