package tui_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jonaddams/document-generator/internal/engine/local"
	"github.com/jonaddams/document-generator/internal/lifecycle"
	"github.com/jonaddams/document-generator/internal/steps"
	"github.com/jonaddams/document-generator/internal/tui"
	"github.com/jonaddams/document-generator/internal/tui/screens"
	"github.com/jonaddams/document-generator/internal/wizard"
	"github.com/jonaddams/document-generator/registry"
)

// cmdTimeout bounds how long the driver waits for a command. Cursor blink
// commands sleep longer than this and are abandoned.
const cmdTimeout = 250 * time.Millisecond

// driver runs a bubbletea model without a terminal, executing commands
// and feeding their messages back until nothing is left.
type driver struct {
	t    *testing.T
	m    tea.Model
	flow *steps.Flow
	dir  string
}

func newDriver(t *testing.T) *driver {
	t.Helper()
	reg := registry.MustNew()
	flow := steps.NewFlow(&steps.Env{
		Engine:    local.New(nil),
		Populator: local.NewPopulator(),
		Viewer:    local.NewViewer(),
		Registry:  reg,
		Validator: reg,
		Scheduler: lifecycle.NewManualScheduler(),
	})
	t.Cleanup(flow.Close)

	ctx := context.Background()
	dir := t.TempDir()
	styles := tui.NewStyleSet(tui.DarkTheme)
	m := tui.NewWizardModel(ctx, tui.DarkTheme, flow, screens.All(ctx, styles, flow, reg.List(), dir), "test")

	d := &driver{t: t, m: m, flow: flow, dir: dir}
	d.send(tea.WindowSizeMsg{Width: 100, Height: 40})
	d.run(d.m.Init())
	return d
}

func (d *driver) wizard() tui.WizardModel {
	return d.m.(tui.WizardModel)
}

func (d *driver) current() wizard.StepID {
	return d.flow.Store().Snapshot().Current().ID
}

func (d *driver) send(msg tea.Msg) {
	d.t.Helper()
	var cmd tea.Cmd
	d.m, cmd = d.m.Update(msg)
	d.run(cmd)
}

func (d *driver) key(k tea.KeyType) {
	d.t.Helper()
	d.send(tea.KeyMsg{Type: k})
}

func (d *driver) typeText(s string) {
	d.t.Helper()
	d.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func (d *driver) run(cmd tea.Cmd) {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg, ok := execute(c)
		if !ok {
			continue
		}
		switch msg := msg.(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case spinner.TickMsg, tea.QuitMsg, nil:
		default:
			if strings.HasPrefix(fmt.Sprintf("%T", msg), "cursor.") {
				continue
			}
			var next tea.Cmd
			d.m, next = d.m.Update(msg)
			queue = append(queue, next)
		}
	}
}

func execute(cmd tea.Cmd) (tea.Msg, bool) {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		return msg, true
	case <-time.After(cmdTimeout):
		return nil, false
	}
}

func (d *driver) expectStep(want wizard.StepID) {
	d.t.Helper()
	if got := d.current(); got != want {
		d.t.Fatalf("current step = %s, want %s (error %q)", got, want, d.flow.Store().Snapshot().ErrorMessage)
	}
}

func (d *driver) expectView(want string) {
	d.t.Helper()
	if view := d.m.View(); !strings.Contains(view, want) {
		d.t.Fatalf("view does not contain %q:\n%s", want, view)
	}
}

func TestWizardGeneratesInvoice(t *testing.T) {
	d := newDriver(t)
	d.expectStep(wizard.StepTemplate)
	d.expectView("Step 1 of 5")
	d.expectView("Invoice Template")

	d.key(tea.KeyEnter)
	d.expectStep(wizard.StepCustomize)
	if p := d.flow.Customize().Phase(); p != lifecycle.Ready {
		t.Fatalf("customize phase = %s, want ready", p)
	}
	d.expectView("Step 2 of 5")

	d.key(tea.KeyEnter)
	d.expectStep(wizard.StepData)
	d.expectView("Valid JSON")

	d.key(tea.KeyCtrlN)
	d.expectStep(wizard.StepPreview)
	if p := d.flow.Preview().Phase(); p != lifecycle.Ready {
		t.Fatalf("preview phase = %s, want ready", p)
	}

	d.key(tea.KeyEnter)
	d.expectStep(wizard.StepDownload)
	d.expectView("Your document is ready!")

	d.key(tea.KeyEnter)
	path := filepath.Join(d.dir, "invoice-document.pdf")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("saved pdf: %v", err)
	}
	d.expectView("Saved " + path)
	if !d.wizard().Done() {
		t.Fatal("Done() = false after saving")
	}

	d.key(tea.KeyCtrlD)
	if _, err := os.Stat(filepath.Join(d.dir, "invoice-document.docx")); err != nil {
		t.Fatalf("saved docx: %v", err)
	}

	d.key(tea.KeyEsc)
	if err := d.wizard().Err(); err != nil {
		t.Errorf("Err() = %v after finishing", err)
	}
}

func TestWizardInvalidDataStaysOnStep(t *testing.T) {
	d := newDriver(t)
	d.key(tea.KeyEnter)
	d.key(tea.KeyEnter)
	d.expectStep(wizard.StepData)

	d.typeText("x")
	d.expectView("Invalid JSON format")

	d.key(tea.KeyCtrlN)
	d.expectStep(wizard.StepData)
	if msg := d.flow.Store().Snapshot().ErrorMessage; !strings.HasPrefix(msg, "Invalid JSON format") {
		t.Errorf("ErrorMessage = %q", msg)
	}
}

func TestWizardEditSourceKeepsEscForEditor(t *testing.T) {
	d := newDriver(t)
	d.key(tea.KeyEnter)
	d.expectStep(wizard.StepCustomize)

	d.typeText("e")
	d.expectView("Editing source")

	d.key(tea.KeyEsc)
	if !d.wizard().Surface().Connected() {
		t.Fatal("esc while editing quit the wizard")
	}
	if strings.Contains(d.m.View(), "Editing source") {
		t.Error("editor still open after esc")
	}
}

func TestWizardRejectsUnreachableJump(t *testing.T) {
	d := newDriver(t)
	d.key(tea.KeyF3)
	d.expectStep(wizard.StepTemplate)
	d.expectView("That step is not available yet.")
}

func TestWizardBackAndJump(t *testing.T) {
	d := newDriver(t)
	d.key(tea.KeyEnter)
	d.key(tea.KeyEnter)
	d.expectStep(wizard.StepData)

	d.key(tea.KeyCtrlP)
	d.expectStep(wizard.StepCustomize)

	d.key(tea.KeyF3)
	d.expectStep(wizard.StepData)

	d.key(tea.KeyF1)
	d.expectStep(wizard.StepTemplate)
	d.expectView("✓")
}

func TestWizardResetReturnsToTemplate(t *testing.T) {
	d := newDriver(t)
	d.key(tea.KeyEnter)
	d.key(tea.KeyEnter)
	d.expectStep(wizard.StepData)

	d.key(tea.KeyCtrlR)
	d.expectStep(wizard.StepTemplate)
	if id := d.flow.Store().Snapshot().SelectedTemplate; id != wizard.TemplateNone {
		t.Errorf("SelectedTemplate = %q after reset", id)
	}
	d.expectView("Started a new document.")
}

func TestWizardQuitCancels(t *testing.T) {
	d := newDriver(t)
	d.key(tea.KeyEsc)
	if err := d.wizard().Err(); !errors.Is(err, tui.ErrCancelled) {
		t.Fatalf("Err() = %v, want ErrCancelled", err)
	}
	if d.wizard().Surface().Connected() {
		t.Error("surface still connected after quit")
	}
}

func TestWizardWaitsForWindowSize(t *testing.T) {
	reg := registry.MustNew()
	flow := steps.NewFlow(&steps.Env{
		Engine:    local.New(nil),
		Populator: local.NewPopulator(),
		Viewer:    local.NewViewer(),
		Registry:  reg,
		Scheduler: lifecycle.NewManualScheduler(),
	})
	t.Cleanup(flow.Close)
	if err := flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	if err := flow.Next(context.Background()); err != nil {
		t.Fatal(err)
	}

	m := tui.NewWizardModel(context.Background(), tui.DarkTheme, flow, nil, "test")
	if w, h := m.Surface().Size(); w != 0 || h != 0 {
		t.Fatalf("surface size before first resize = %dx%d", w, h)
	}
	if err := flow.Enter(context.Background(), m.Surface()); err == nil {
		t.Fatal("Enter succeeded before the window reported a size")
	}

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = updated.(tui.WizardModel)
	if err := flow.Enter(context.Background(), m.Surface()); err != nil {
		t.Fatalf("Enter after resize: %v", err)
	}
}
