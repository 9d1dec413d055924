package screens

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jonaddams/document-generator/internal/fault"
	"github.com/jonaddams/document-generator/internal/tui"
	"github.com/jonaddams/document-generator/internal/tui/components"
)

// document is a step whose bound editor can be drawn and edited as
// source.
type document interface {
	Render(width int) string
	Source() string
	ApplySource(ctx context.Context, src string) error
}

type sourceAppliedMsg struct {
	err error
}

// docView shows a rendered document in a scrolling viewport and lets the
// user edit its source in place.
type docView struct {
	ctx     context.Context
	styles  *tui.StyleSet
	doc     document
	view    viewport.Model
	editor  textarea.Model
	content string
	editing bool
	edited  bool
	width   int
	height  int
}

func newDocView(ctx context.Context, styles *tui.StyleSet, doc document) docView {
	ta := textarea.New()
	ta.ShowLineNumbers = true
	ta.CharLimit = 0
	ta.MaxHeight = 0
	return docView{
		ctx:    ctx,
		styles: styles,
		doc:    doc,
		view:   viewport.New(74, 12),
		editor: ta,
		width:  80,
		height: 24,
	}
}

func (d *docView) reset() {
	d.editing = false
	d.editor.Blur()
	d.refresh()
}

func (d *docView) resize(width, height int) {
	d.width, d.height = width, height
	w := width - 6
	if w < 20 {
		w = 20
	}
	h := height - 22
	if h < 8 {
		h = 8
	}
	d.view.Width, d.view.Height = w, h
	d.editor.SetWidth(w)
	d.editor.SetHeight(h)
	d.refresh()
}

func (d *docView) refresh() {
	d.content = d.doc.Render(d.view.Width)
	d.view.SetContent(d.content)
}

// update handles the keys shared by every document screen. It reports
// whether msg was consumed.
func (d *docView) update(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.resize(msg.Width, msg.Height)
		return nil, false

	case tui.StepEnteredMsg:
		d.refresh()
		return nil, false

	case sourceAppliedMsg:
		if msg.err != nil {
			return statusCmd(fault.Message(msg.err)), true
		}
		d.editing = false
		d.edited = true
		d.editor.Blur()
		d.refresh()
		return statusCmd("Changes applied."), true

	case tea.KeyMsg:
		if d.editing {
			switch msg.String() {
			case "esc":
				d.editing = false
				d.editor.Blur()
				return nil, true
			case "ctrl+s":
				src, doc, ctx := d.editor.Value(), d.doc, d.ctx
				return func() tea.Msg {
					return sourceAppliedMsg{err: doc.ApplySource(ctx, src)}
				}, true
			}
			var cmd tea.Cmd
			d.editor, cmd = d.editor.Update(msg)
			return cmd, true
		}
		if msg.String() == "e" {
			src := d.doc.Source()
			if src == "" {
				return statusCmd("Nothing to edit yet."), true
			}
			d.editing = true
			d.editor.SetValue(src)
			return d.editor.Focus(), true
		}
		var cmd tea.Cmd
		d.view, cmd = d.view.Update(msg)
		return cmd, msg.String() != "enter"
	}
	return nil, false
}

func (d *docView) render(empty string) string {
	if d.editing {
		return "  " + d.styles.SecondaryTxt.Render("Editing source") + "\n" +
			indent(d.editor.View()) + "\n"
	}
	if d.content == "" {
		return "  " + d.styles.DimTxt.Render(empty) + "\n"
	}
	return indent(d.styles.InactiveBorder.Render(d.view.View())) + "\n"
}

func (d *docView) hints(enter string) []components.KeyBinding {
	if d.editing {
		return components.EditorHints()
	}
	return []components.KeyBinding{
		{Key: "⏎", Desc: enter},
		{Key: "e", Desc: "edit source"},
		{Key: "↑↓", Desc: "scroll"},
	}
}

func statusCmd(text string) tea.Cmd {
	return func() tea.Msg { return tui.StatusMsg{Text: text} }
}

func completeCmd() tea.Msg {
	return tui.StepCompleteMsg{}
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
