package tui

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jonaddams/document-generator/internal/engine"
	"github.com/jonaddams/document-generator/internal/steps"
	"github.com/jonaddams/document-generator/internal/tui/components"
)

// ErrCancelled is returned by Err when the user quit before saving a
// document.
var ErrCancelled = errors.New("wizard cancelled")

// SurfaceID is the container id of the terminal window.
const SurfaceID = "terminal"

// WizardModel is the top-level bubbletea model. It renders the flow's
// state and runs every blocking flow call as a command, so the terminal
// stays responsive while the engine works.
type WizardModel struct {
	ctx     context.Context
	styles  *StyleSet
	flow    *steps.Flow
	steps   []Step
	surface *engine.StaticContainer
	spinner spinner.Model
	kbd     components.KbdHint
	width   int
	height  int
	notice  string
	err     error
	version string
}

// NewWizardModel creates a wizard over flow with one screen per step, in
// step order. The terminal window is the container every step binds to; it
// becomes available once the first window size arrives.
func NewWizardModel(ctx context.Context, theme TermTheme, flow *steps.Flow, screens []Step, version string) WizardModel {
	styles := NewStyleSet(theme)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.AccentTxt
	return WizardModel{
		ctx:     ctx,
		styles:  styles,
		flow:    flow,
		steps:   screens,
		surface: engine.NewStaticContainer(SurfaceID, 0, 0),
		spinner: sp,
		kbd:     components.NewKbdHint(styles.KbdKey, styles.KbdDesc),
		width:   80,
		height:  24,
		version: version,
	}
}

// Styles returns the style set the wizard renders with.
func (w WizardModel) Styles() *StyleSet {
	return w.styles
}

// Surface returns the container backing the terminal window.
func (w WizardModel) Surface() *engine.StaticContainer {
	return w.surface
}

// Init shows the current step.
func (w WizardModel) Init() tea.Cmd {
	return tea.Batch(w.spinner.Tick, w.show())
}

func (w WizardModel) current() int {
	return w.flow.Store().Snapshot().CurrentStep
}

// show initializes the current step's screen and runs its lifecycle.
func (w WizardModel) show() tea.Cmd {
	idx := w.current()
	var cmds []tea.Cmd
	if idx < len(w.steps) {
		cmds = append(cmds, w.steps[idx].Init())
	}
	flow, ctx, surface := w.flow, w.ctx, w.surface
	cmds = append(cmds, func() tea.Msg {
		return StepEnteredMsg{Index: idx, Err: flow.Enter(ctx, surface)}
	})
	return tea.Batch(cmds...)
}

// advance completes the current step in the background.
func (w WizardModel) advance() tea.Cmd {
	flow, ctx := w.flow, w.ctx
	return func() tea.Msg {
		return StepAdvancedMsg{Err: flow.Next(ctx)}
	}
}

func (w WizardModel) move(moved bool) (tea.Model, tea.Cmd) {
	if !moved {
		w.notice = "That step is not available yet."
		return w, nil
	}
	w.notice = ""
	return w, w.show()
}

func (w WizardModel) capturing() bool {
	idx := w.current()
	if idx >= len(w.steps) {
		return false
	}
	c, ok := w.steps[idx].(Capturer)
	return ok && c.Capturing()
}

// Update handles messages for the wizard.
func (w WizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.width = msg.Width
		w.height = msg.Height
		w.surface.Resize(msg.Width, msg.Height)
		// Every screen lays out against the window, not only the current one.
		var cmds []tea.Cmd
		for i, s := range w.steps {
			updated, cmd := s.Update(msg)
			w.steps[i] = updated
			cmds = append(cmds, cmd)
		}
		return w, tea.Batch(cmds...)

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "ctrl+c":
			return w.quit()
		case "esc":
			if !w.capturing() {
				return w.quit()
			}
		case "ctrl+n":
			w.notice = ""
			return w, w.advance()
		case "ctrl+p":
			return w.move(w.flow.Prev())
		case "ctrl+r":
			w.flow.Reset()
			w.notice = "Started a new document."
			return w, w.show()
		case "f1", "f2", "f3", "f4", "f5":
			n, _ := strconv.Atoi(strings.TrimPrefix(key, "f"))
			return w.move(w.flow.GoTo(n - 1))
		}

	case StepCompleteMsg:
		w.notice = ""
		return w, w.advance()

	case StepBackMsg:
		return w.move(w.flow.Prev())

	case StepAdvancedMsg:
		if msg.Err != nil {
			if errors.Is(msg.Err, steps.ErrNotReady) || errors.Is(msg.Err, steps.ErrWrongStep) {
				w.notice = "Finish this step before continuing."
			}
			return w, nil
		}
		return w, w.show()

	case StatusMsg:
		w.notice = msg.Text
		if msg.Err != nil {
			w.notice = msg.Err.Error()
		}
		return w, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		w.spinner, cmd = w.spinner.Update(msg)
		return w, cmd
	}

	// Delegate to current step
	if idx := w.current(); idx < len(w.steps) {
		updated, cmd := w.steps[idx].Update(msg)
		w.steps[idx] = updated
		return w, cmd
	}
	return w, nil
}

func (w WizardModel) quit() (tea.Model, tea.Cmd) {
	if !w.Done() {
		w.err = ErrCancelled
	}
	w.surface.Detach()
	return w, tea.Quit
}

// View renders the entire wizard UI.
func (w WizardModel) View() string {
	st := w.flow.Store().Snapshot()
	var out string

	out += "\n" + RenderBanner(w.styles, w.version, w.width)
	out += "  " + w.styles.DimTxt.Render(StepIndicator(st.CurrentStep, len(st.Steps))) + "\n\n"

	out += RenderProgress(st.Steps, w.steps, st.CurrentStep, w.styles, w.width)
	out += "\n"

	if st.ErrorMessage != "" {
		out += "  " + w.styles.ErrorTxt.Render("✗ "+st.ErrorMessage) + "\n\n"
	}

	if st.CurrentStep < len(w.steps) {
		out += w.steps[st.CurrentStep].View(w.width)
	}
	out += "\n"

	if st.Loading {
		phase := w.flow.Current().Phase()
		out += "  " + w.spinner.View() + " " + w.styles.SecondaryTxt.Render(phase.String()) + "\n"
	}
	if w.notice != "" {
		out += "  " + w.styles.AccentTxt.Render(w.notice) + "\n"
	}

	bindings := components.WizardHints()
	if st.CurrentStep < len(w.steps) {
		bindings = append(w.steps[st.CurrentStep].Hints(), bindings...)
	}
	kbd := w.kbd
	kbd.Bindings = bindings
	out += "\n" + kbd.View() + "\n"

	return out
}

// Err returns ErrCancelled when the user quit before finishing.
func (w WizardModel) Err() error {
	return w.err
}

// Done reports whether a document was saved from the download step.
func (w WizardModel) Done() bool {
	st := w.flow.Store().Snapshot()
	return st.Steps[len(st.Steps)-1].IsComplete
}
