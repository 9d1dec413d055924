package steps

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonaddams/document-generator/internal/engine"
	"github.com/jonaddams/document-generator/internal/wizard"
)

// Flow drives the wizard: it owns the store and one controller per step,
// activating the controller of the current step and tearing down the one
// that was left.
type Flow struct {
	env *Env

	template  *Template
	customize *Customize
	data      *Data
	preview   *Preview
	download  *Download

	mu     sync.Mutex
	active int // index of the activated controller, -1 when none
}

// NewFlow creates a Flow over env, filling unset collaborators with
// defaults.
func NewFlow(env *Env) *Flow {
	env.defaults()
	return &Flow{
		env:       env,
		template:  newTemplate(env),
		customize: newCustomize(env),
		data:      newData(env),
		preview:   newPreview(env),
		download:  newDownload(env),
		active:    -1,
	}
}

func (f *Flow) Store() *wizard.Store  { return f.env.Store }
func (f *Flow) Env() *Env             { return f.env }
func (f *Flow) Template() *Template   { return f.template }
func (f *Flow) Customize() *Customize { return f.customize }
func (f *Flow) Data() *Data           { return f.data }
func (f *Flow) Preview() *Preview     { return f.preview }
func (f *Flow) Download() *Download   { return f.download }

func (f *Flow) controllers() []Controller {
	return []Controller{f.template, f.customize, f.data, f.preview, f.download}
}

// Controller returns the controller of step i.
func (f *Flow) Controller(i int) Controller {
	cs := f.controllers()
	if i < 0 || i >= len(cs) {
		return nil
	}
	return cs[i]
}

// Current returns the controller of the current step.
func (f *Flow) Current() Controller {
	return f.Controller(f.env.Store.Snapshot().CurrentStep)
}

// Enter activates the current step's controller against container,
// deactivating whichever controller was active before.
func (f *Flow) Enter(ctx context.Context, container engine.Container) error {
	idx := f.env.Store.Snapshot().CurrentStep
	f.mu.Lock()
	prev := f.active
	f.active = idx
	f.mu.Unlock()
	if prev >= 0 && prev != idx {
		f.Controller(prev).Deactivate()
	}
	return f.Controller(idx).Activate(ctx, container)
}

// Leave deactivates the active controller.
func (f *Flow) Leave() {
	f.mu.Lock()
	prev := f.active
	f.active = -1
	f.mu.Unlock()
	if prev >= 0 {
		f.Controller(prev).Deactivate()
	}
}

// CanProceed reports whether the current step may be advanced.
func (f *Flow) CanProceed() bool {
	return f.Current().CanProceed()
}

// Next advances the current step. The controller that was left is torn
// down; call Enter to activate the new step.
func (f *Flow) Next(ctx context.Context) error {
	if err := f.Current().Advance(ctx); err != nil {
		return err
	}
	f.leaveIfMoved()
	return nil
}

// Prev moves back one step.
func (f *Flow) Prev() bool {
	if !f.env.Store.PrevStep() {
		return false
	}
	f.leaveIfMoved()
	return true
}

// GoTo jumps to step i when the navigation rules allow it.
func (f *Flow) GoTo(i int) bool {
	if !f.env.Store.GoToStep(i) {
		return false
	}
	f.leaveIfMoved()
	return true
}

func (f *Flow) leaveIfMoved() {
	f.mu.Lock()
	moved := f.active >= 0 && f.active != f.env.Store.Snapshot().CurrentStep
	f.mu.Unlock()
	if moved {
		f.Leave()
	}
}

// Select chooses a template.
func (f *Flow) Select(id wizard.TemplateID, binary []byte) error {
	return f.template.Select(id, binary)
}

// EditData replaces the data text.
func (f *Flow) EditData(text string) error {
	return f.data.Edit(text)
}

// Reset tears everything down and returns to the first step.
func (f *Flow) Reset() {
	f.Leave()
	for _, c := range f.controllers() {
		c.Deactivate()
	}
	f.customize.reset()
	f.data.reset()
	f.preview.reset()
	f.download.reset()
	f.template.base.reset()
	f.env.Store.ResetWizard()
}

// Close releases every engine handle the flow holds.
func (f *Flow) Close() {
	f.Reset()
}

// Generate runs the remaining steps headlessly against container, ending
// on the download step with the PDF exported. A template must already be
// selected.
func (f *Flow) Generate(ctx context.Context, container engine.Container) error {
	last := len(f.env.Store.Snapshot().Steps) - 1
	for {
		st := f.env.Store.Snapshot()
		c := f.Controller(st.CurrentStep)
		if err := f.Enter(ctx, container); err != nil {
			return fmt.Errorf("%s: %w", c.Stage(), err)
		}
		if st.CurrentStep == last {
			return nil
		}
		if err := f.Next(ctx); err != nil {
			if cause := c.Err(); cause != nil {
				return fmt.Errorf("%s: %w", c.Stage(), cause)
			}
			return fmt.Errorf("%s: %w", c.Stage(), err)
		}
	}
}
