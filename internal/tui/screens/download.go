package screens

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jonaddams/document-generator/internal/fault"
	"github.com/jonaddams/document-generator/internal/steps"
	"github.com/jonaddams/document-generator/internal/tui"
	"github.com/jonaddams/document-generator/internal/tui/components"
	"github.com/jonaddams/document-generator/util"
)

type savedMsg struct {
	path string
	err  error
}

// DownloadScreen summarizes the finished document and saves it as PDF or
// DOCX.
type DownloadScreen struct {
	ctx    context.Context
	styles *tui.StyleSet
	flow   *steps.Flow
	dir    components.TextInput
	saved  []string
}

// NewDownloadScreen creates the download screen, saving into outputDir
// unless the user changes it.
func NewDownloadScreen(ctx context.Context, styles *tui.StyleSet, flow *steps.Flow, outputDir string) *DownloadScreen {
	s := &DownloadScreen{ctx: ctx, styles: styles, flow: flow}
	s.dir = components.NewTextInput(
		"Save to directory",
		".",
		func(v string) error {
			if v == "" {
				return errors.New("directory is required")
			}
			return nil
		},
		func(v string) string {
			if v == "" {
				return ""
			}
			return "→ " + filepath.Join(v, flow.Download().FileName()+".pdf")
		},
		styles.Theme.Accent,
		styles.AccentTxt,
		styles.InactiveBorder,
		styles.ErrorTxt,
		styles.DimTxt,
	)
	s.dir.SetValue(outputDir)
	return s
}

func (s *DownloadScreen) Title() string { return "Download" }
func (s *DownloadScreen) Icon() string  { return "💾" }

func (s *DownloadScreen) Init() tea.Cmd {
	s.dir.Reset()
	s.saved = nil
	return s.dir.Init()
}

func (s *DownloadScreen) Update(msg tea.Msg) (tui.Step, tea.Cmd) {
	switch msg := msg.(type) {
	case savedMsg:
		if msg.err != nil {
			s.dir.SetError(errors.New(fault.Message(msg.err)))
			return s, nil
		}
		s.dir.Reset()
		s.saved = append(s.saved, msg.path)
		return s, statusCmd("Saved " + msg.path)

	case tea.KeyMsg:
		if msg.String() == "ctrl+d" {
			ctx, d, dir := s.ctx, s.flow.Download(), s.dir.Value()
			return s, func() tea.Msg {
				path, err := d.SaveDOCX(ctx, dir)
				return savedMsg{path: path, err: err}
			}
		}
	}

	var cmd tea.Cmd
	s.dir, cmd = s.dir.Update(msg)
	if s.dir.Done() {
		path, err := s.flow.Download().Save(s.dir.Value())
		return s, func() tea.Msg { return savedMsg{path: path, err: err} }
	}
	return s, cmd
}

func (s *DownloadScreen) View(width int) string {
	sum := s.flow.Download().Summary()
	out := "  " + s.styles.SuccessTxt.Render("Your document is ready!") + "\n\n"

	rows := []components.SummaryRow{
		{Key: "Template", Value: sum.TemplateName},
		{Key: "Model fields", Value: fmt.Sprint(sum.ModelFields)},
		{Key: "Steps", Value: fmt.Sprintf("%d of %d completed", sum.CompletedSteps, sum.TotalSteps)},
		{Key: "PDF size", Value: util.HumanBytes(int64(sum.PDFBytes))},
	}
	if sum.Pages > 0 {
		rows = append(rows, components.SummaryRow{Key: "Pages", Value: fmt.Sprint(sum.Pages)})
	}
	box := components.NewSummaryBox(rows, s.styles.SummaryKey, s.styles.SummaryValue, s.styles.BorderedBox)
	out += box.View(width) + "\n\n"

	out += s.dir.View(width)
	for _, p := range s.saved {
		out += "  " + s.styles.SuccessTxt.Render("✓ "+p) + "\n"
	}
	return out
}

func (s *DownloadScreen) Summary() string {
	if len(s.saved) == 0 {
		return ""
	}
	return fmt.Sprintf("%d file(s) saved", len(s.saved))
}

func (s *DownloadScreen) Hints() []components.KeyBinding {
	return []components.KeyBinding{
		{Key: "⏎", Desc: "save PDF"},
		{Key: "ctrl+d", Desc: "save DOCX"},
	}
}
