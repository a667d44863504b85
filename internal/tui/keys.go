package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the chat key bindings.
type KeyMap struct {
	Quit       key.Binding
	Send       key.Binding
	AttachMenu key.Binding
	Emoji      key.Binding
	Record     key.Binding
	Cancel     key.Binding
	Escape     key.Binding
	LoadMore   key.Binding
	Refresh    key.Binding
	SelectUp   key.Binding
	SelectDown key.Binding
	Reply      key.Binding
	Delete     key.Binding
	Unstage    key.Binding

	// attach menu
	PickLibrary  key.Binding
	PickCamera   key.Binding
	PickDocument key.Binding
	PickLocation key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		Send:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		AttachMenu: key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("ctrl+a", "attach")),
		Emoji:      key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("ctrl+e", "emoji")),
		Record:     key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "voice")),
		Cancel:     key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "cancel voice")),
		Escape:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		LoadMore:   key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "older")),
		Refresh:    key.NewBinding(key.WithKeys("f5"), key.WithHelp("f5", "refresh")),
		SelectUp:   key.NewBinding(key.WithKeys("alt+up", "ctrl+p"), key.WithHelp("ctrl+p", "select")),
		SelectDown: key.NewBinding(key.WithKeys("alt+down", "ctrl+n")),
		Reply:      key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "reply")),
		Delete:     key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "delete")),
		Unstage:    key.NewBinding(key.WithKeys("ctrl+z"), key.WithHelp("ctrl+z", "drop attachment")),

		PickLibrary:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "photos")),
		PickCamera:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "camera")),
		PickDocument: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "document")),
		PickLocation: key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "location")),
	}
}

// help renders "key action" pairs separated by dots.
func help(bindings ...key.Binding) string {
	s := ""
	for i, b := range bindings {
		h := b.Help()
		if i > 0 {
			s += " · "
		}
		s += h.Key + " " + h.Desc
	}
	return s
}
