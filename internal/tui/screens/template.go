package screens

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jonaddams/document-generator/internal/steps"
	"github.com/jonaddams/document-generator/internal/tui"
	"github.com/jonaddams/document-generator/internal/tui/components"
	"github.com/jonaddams/document-generator/internal/wizard"
	"github.com/jonaddams/document-generator/registry"
	"github.com/jonaddams/document-generator/util"
)

// TemplateScreen lists the predefined templates plus a custom DOCX upload.
type TemplateScreen struct {
	styles    *tui.StyleSet
	flow      *steps.Flow
	list      components.SingleSelect
	upload    components.TextInput
	uploading bool
	names     map[wizard.TemplateID]string
}

// NewTemplateScreen creates the template screen over templates.
func NewTemplateScreen(styles *tui.StyleSet, flow *steps.Flow, templates []registry.Template) *TemplateScreen {
	names := map[wizard.TemplateID]string{wizard.TemplateCustom: "Custom template"}
	var items []components.SingleSelectItem
	for _, t := range templates {
		desc := t.Description
		if t.Category != "" {
			desc += " · " + t.Category
		}
		items = append(items, components.SingleSelectItem{
			Label:       t.DisplayName,
			Value:       t.ID,
			Description: desc,
			Icon:        "📄",
		})
		names[wizard.TemplateID(t.ID)] = t.DisplayName
	}
	limit := util.HumanBytes(flow.Env().Policy.MaxTemplateBytes)
	items = append(items, components.SingleSelectItem{
		Label:       "Upload custom DOCX",
		Value:       string(wizard.TemplateCustom),
		Description: "Use your own DOCX template (max " + limit + ")",
		Icon:        "📤",
	})

	th := styles.Theme
	s := &TemplateScreen{
		styles: styles,
		flow:   flow,
		list:   components.NewSingleSelect(items, th.Accent, th.Primary, th.Secondary, th.Dim, th.Border, th.ActiveBorder),
		names:  names,
	}
	s.upload = components.NewTextInput(
		"Path to your DOCX template",
		"./template.docx",
		func(v string) error {
			if v == "" {
				return errors.New("path is required")
			}
			return nil
		},
		nil,
		th.Accent,
		styles.AccentTxt,
		styles.InactiveBorder,
		styles.ErrorTxt,
		styles.DimTxt,
	)
	return s
}

func (s *TemplateScreen) Title() string { return "Choose Template" }
func (s *TemplateScreen) Icon() string  { return "📋" }

func (s *TemplateScreen) Init() tea.Cmd {
	s.list.Reset()
	s.uploading = false
	return nil
}

func (s *TemplateScreen) Update(msg tea.Msg) (tui.Step, tea.Cmd) {
	if s.uploading {
		return s.updateUpload(msg)
	}

	s.list, _ = s.list.Update(msg)
	if !s.list.Done() {
		return s, nil
	}
	_, value := s.list.Selected()
	id := wizard.TemplateID(value)
	if id == wizard.TemplateCustom {
		s.uploading = true
		s.upload.Reset()
		return s, s.upload.Init()
	}
	if err := s.flow.Select(id, nil); err != nil {
		s.list.Reset()
		return s, func() tea.Msg { return tui.StatusMsg{Err: err} }
	}
	return s, completeCmd
}

func (s *TemplateScreen) updateUpload(msg tea.Msg) (tui.Step, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		s.uploading = false
		s.list.Reset()
		return s, nil
	}

	var cmd tea.Cmd
	s.upload, cmd = s.upload.Update(msg)
	if !s.upload.Done() {
		return s, cmd
	}
	if err := s.selectFile(s.upload.Value()); err != nil {
		s.upload.SetError(err)
		return s, nil
	}
	s.uploading = false
	return s, completeCmd
}

func (s *TemplateScreen) selectFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening template: %w", err)
	}
	defer f.Close()

	data, err := s.flow.Template().ReadUpload(f)
	if err != nil {
		return err
	}
	return s.flow.Select(wizard.TemplateCustom, data)
}

func (s *TemplateScreen) View(width int) string {
	out := "  " + s.styles.Subtitle.Render("Select a document template to get started") + "\n\n"
	current := string(s.flow.Store().Snapshot().SelectedTemplate)
	out += s.list.View(width, current)
	if s.uploading {
		out += "\n" + s.upload.View(width)
	}
	return out
}

func (s *TemplateScreen) Summary() string {
	return s.names[s.flow.Store().Snapshot().SelectedTemplate]
}

func (s *TemplateScreen) Hints() []components.KeyBinding {
	if s.uploading {
		return append(components.InputHints(), components.KeyBinding{Key: "esc", Desc: "back to list"})
	}
	return components.SelectHints()
}

// Capturing reports whether the upload path input is open.
func (s *TemplateScreen) Capturing() bool {
	return s.uploading
}
