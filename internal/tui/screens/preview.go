package screens

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jonaddams/document-generator/internal/steps"
	"github.com/jonaddams/document-generator/internal/tui"
	"github.com/jonaddams/document-generator/internal/tui/components"
)

// PreviewScreen shows the populated document. Enter finishes it into a
// PDF.
type PreviewScreen struct {
	doc docView
}

// NewPreviewScreen creates the preview screen.
func NewPreviewScreen(ctx context.Context, styles *tui.StyleSet, flow *steps.Flow) *PreviewScreen {
	return &PreviewScreen{doc: newDocView(ctx, styles, flow.Preview())}
}

func (s *PreviewScreen) Title() string { return "Preview & Edit" }
func (s *PreviewScreen) Icon() string  { return "👁" }

func (s *PreviewScreen) Init() tea.Cmd {
	s.doc.reset()
	return nil
}

func (s *PreviewScreen) Update(msg tea.Msg) (tui.Step, tea.Cmd) {
	cmd, consumed := s.doc.update(msg)
	if consumed {
		return s, cmd
	}
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
		return s, completeCmd
	}
	return s, cmd
}

func (s *PreviewScreen) View(width int) string {
	return "  " + s.doc.styles.Subtitle.Render("Review and make final adjustments") + "\n\n" +
		s.doc.render("Generating your document…")
}

func (s *PreviewScreen) Summary() string {
	if s.doc.edited {
		return "document edited"
	}
	return "document generated"
}

func (s *PreviewScreen) Hints() []components.KeyBinding {
	return s.doc.hints("finish")
}

// Capturing reports whether the source editor is open.
func (s *PreviewScreen) Capturing() bool {
	return s.doc.editing
}
