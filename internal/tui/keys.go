package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap lists the bindings of the month view.
type KeyMap struct {
	PrevMonth key.Binding
	NextMonth key.Binding
	Today     key.Binding
	Left      key.Binding
	Right     key.Binding
	Up        key.Binding
	Down      key.Binding
	Enter     key.Binding
	Back      key.Binding
	Quit      key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		PrevMonth: key.NewBinding(key.WithKeys("h", "[", "pgup"), key.WithHelp("h/[", "前の月")),
		NextMonth: key.NewBinding(key.WithKeys("l", "]", "pgdown"), key.WithHelp("l/]", "次の月")),
		Today:     key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "今月")),
		Left:      key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "前日")),
		Right:     key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "翌日")),
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑", "前週")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "翌週")),
		Enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "一覧")),
		Back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "閉じる")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "終了")),
	}
}

// ShortHelp is the one-line help under the grid.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PrevMonth, k.NextMonth, k.Today, k.Enter, k.Back, k.Quit}
}
