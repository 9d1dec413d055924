package screens

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jonaddams/document-generator/internal/fault"
	"github.com/jonaddams/document-generator/internal/steps"
	"github.com/jonaddams/document-generator/internal/tui"
	"github.com/jonaddams/document-generator/internal/tui/components"
	"github.com/jonaddams/document-generator/internal/wizard"
	"github.com/jonaddams/document-generator/util"
)

const maxWarnings = 5

// DataScreen edits the template data as JSON, with live validation and an
// outline of the model.
type DataScreen struct {
	styles   *tui.StyleSet
	flow     *steps.Flow
	editor   textarea.Model
	outline  viewport.Model
	parseErr error
	warnings []string
}

// NewDataScreen creates the data screen.
func NewDataScreen(styles *tui.StyleSet, flow *steps.Flow) *DataScreen {
	ta := textarea.New()
	ta.ShowLineNumbers = true
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.Placeholder = `{"model": {...}}`
	ta.SetWidth(74)
	ta.SetHeight(10)
	return &DataScreen{
		styles:  styles,
		flow:    flow,
		editor:  ta,
		outline: viewport.New(74, 6),
	}
}

func (s *DataScreen) Title() string { return "Add Data" }
func (s *DataScreen) Icon() string  { return "🧾" }

func (s *DataScreen) Init() tea.Cmd {
	s.load()
	return s.editor.Focus()
}

func (s *DataScreen) load() {
	s.editor.SetValue(s.flow.Data().Text())
	s.parseErr = nil
	s.refresh()
}

func (s *DataScreen) refresh() {
	s.outline.SetContent(s.flow.Data().Outline())
	s.warnings = nil
	if s.parseErr != nil {
		return
	}
	warnings, err := s.flow.Data().Validate()
	if err == nil {
		s.warnings = warnings
	}
}

func (s *DataScreen) Update(msg tea.Msg) (tui.Step, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w := msg.Width - 8
		if w < 20 {
			w = 20
		}
		h := (msg.Height - 24) / 2
		if h < 6 {
			h = 6
		}
		s.editor.SetWidth(w)
		s.editor.SetHeight(h)
		s.outline.Width, s.outline.Height = w, h
		return s, nil

	case tui.StepEnteredMsg:
		if s.flow.Store().Snapshot().Current().ID == wizard.StepData {
			s.load()
		}
		return s, nil

	case tea.KeyMsg:
		var cmd tea.Cmd
		s.editor, cmd = s.editor.Update(msg)
		if text := s.editor.Value(); text != s.flow.Data().Text() {
			s.parseErr = s.flow.EditData(text)
			s.refresh()
		}
		return s, cmd
	}

	var cmd tea.Cmd
	s.editor, cmd = s.editor.Update(msg)
	return s, cmd
}

func (s *DataScreen) View(width int) string {
	out := "  " + s.styles.Subtitle.Render("Provide the data to populate your document") + "\n\n"
	out += indent(s.editor.View()) + "\n"

	switch {
	case s.editor.Value() == "":
	case s.parseErr != nil:
		out += "  " + s.styles.ErrorTxt.Render("✗ "+fault.Message(s.parseErr)) + "\n"
	default:
		out += "  " + s.styles.SuccessTxt.Render("✓ Valid JSON") + "\n"
	}
	for i, w := range s.warnings {
		if i == maxWarnings {
			out += "  " + s.styles.WarningTxt.Render(fmt.Sprintf("… %d more", len(s.warnings)-maxWarnings)) + "\n"
			break
		}
		out += "  " + s.styles.WarningTxt.Render("⚠ "+w) + "\n"
	}

	out += "\n  " + s.styles.SecondaryTxt.Render("Data preview") + "\n"
	out += indent(s.styles.InactiveBorder.Render(s.outline.View())) + "\n"
	return out
}

func (s *DataScreen) Summary() string {
	text := s.flow.Data().Text()
	if text == "" {
		return ""
	}
	return util.HumanBytes(int64(len(text))) + " of JSON"
}

func (s *DataScreen) Hints() []components.KeyBinding {
	return nil
}
