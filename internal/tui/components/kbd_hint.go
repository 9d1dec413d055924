package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// KeyBinding represents a keyboard shortcut hint.
type KeyBinding struct {
	Key  string
	Desc string
}

// KbdHint renders a horizontal keyboard shortcut hint bar.
type KbdHint struct {
	Bindings  []KeyBinding
	KeyStyle  lipgloss.Style
	DescStyle lipgloss.Style
}

// NewKbdHint creates a KbdHint with the given styles.
func NewKbdHint(keyStyle, descStyle lipgloss.Style) KbdHint {
	return KbdHint{
		KeyStyle:  keyStyle,
		DescStyle: descStyle,
	}
}

// View renders the keyboard hints.
func (k KbdHint) View() string {
	var parts []string
	for _, b := range k.Bindings {
		part := k.KeyStyle.Render(b.Key) + " " + k.DescStyle.Render(b.Desc)
		parts = append(parts, part)
	}
	return "  " + strings.Join(parts, "   ")
}

// WizardHints returns the navigation shortcuts available on every step.
func WizardHints() []KeyBinding {
	return []KeyBinding{
		{Key: "ctrl+n", Desc: "next"},
		{Key: "ctrl+p", Desc: "back"},
		{Key: "f1-f5", Desc: "jump"},
		{Key: "ctrl+r", Desc: "reset"},
		{Key: "esc", Desc: "quit"},
	}
}

// SelectHints returns standard hints for single-select components.
func SelectHints() []KeyBinding {
	return []KeyBinding{
		{Key: "↑↓", Desc: "navigate"},
		{Key: "⏎", Desc: "select"},
	}
}

// InputHints returns standard hints for text input components.
func InputHints() []KeyBinding {
	return []KeyBinding{
		{Key: "⏎", Desc: "submit"},
	}
}

// EditorHints returns hints for screens that edit a document source.
func EditorHints() []KeyBinding {
	return []KeyBinding{
		{Key: "ctrl+s", Desc: "apply"},
		{Key: "esc", Desc: "cancel edit"},
	}
}
