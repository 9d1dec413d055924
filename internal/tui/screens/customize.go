package screens

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jonaddams/document-generator/internal/steps"
	"github.com/jonaddams/document-generator/internal/tui"
	"github.com/jonaddams/document-generator/internal/tui/components"
)

// CustomizeScreen shows the loaded template and lets the user edit its
// definition before adding data.
type CustomizeScreen struct {
	doc docView
}

// NewCustomizeScreen creates the customize screen.
func NewCustomizeScreen(ctx context.Context, styles *tui.StyleSet, flow *steps.Flow) *CustomizeScreen {
	return &CustomizeScreen{doc: newDocView(ctx, styles, flow.Customize())}
}

func (s *CustomizeScreen) Title() string { return "Customize Template" }
func (s *CustomizeScreen) Icon() string  { return "✏️" }

func (s *CustomizeScreen) Init() tea.Cmd {
	s.doc.reset()
	return nil
}

func (s *CustomizeScreen) Update(msg tea.Msg) (tui.Step, tea.Cmd) {
	cmd, consumed := s.doc.update(msg)
	if consumed {
		return s, cmd
	}
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
		return s, completeCmd
	}
	return s, cmd
}

func (s *CustomizeScreen) View(width int) string {
	return "  " + s.doc.styles.Subtitle.Render("Edit your template design and layout") + "\n\n" +
		s.doc.render("Loading template…")
}

func (s *CustomizeScreen) Summary() string {
	if s.doc.edited {
		return "template edited"
	}
	return "template loaded"
}

func (s *CustomizeScreen) Hints() []components.KeyBinding {
	return s.doc.hints("continue")
}

// Capturing reports whether the source editor is open.
func (s *CustomizeScreen) Capturing() bool {
	return s.doc.editing
}
