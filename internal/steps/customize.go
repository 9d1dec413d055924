package steps

import (
	"context"
	"sync"

	"github.com/jonaddams/document-generator/internal/engine"
	"github.com/jonaddams/document-generator/internal/fault"
	"github.com/jonaddams/document-generator/internal/lifecycle"
	"github.com/jonaddams/document-generator/internal/wizard"
)

// Customize loads the selected template into the engine and binds an
// editor to it.
type Customize struct {
	base

	mu       sync.Mutex
	bound    engine.Container
	boundRev uint64
}

func newCustomize(env *Env) *Customize {
	return &Customize{base: newBase(env, wizard.StepCustomize)}
}

func (c *Customize) Activate(ctx context.Context, container engine.Container) error {
	if !c.tracker.Begin() {
		return nil
	}
	defer c.tracker.End()

	st := c.env.Store.Snapshot()
	if st.SelectedTemplate == wizard.TemplateNone {
		return c.fail("customize.load", fault.Errorf(fault.ArtifactFetchFailed, "customize.load", "no template selected"))
	}
	if c.live(st, container) {
		c.set(lifecycle.Ready)
		return nil
	}

	if err := c.waitForContainer(ctx, container); err != nil {
		return c.fail("customize.acquire", err)
	}
	sess, err := c.env.session(ctx)
	if err != nil {
		return c.fail("customize.session", err)
	}

	c.set(lifecycle.LoadingArtifact)
	doc, loaded := st.TemplateDocument, false
	if doc == nil {
		doc, err = c.load(ctx, sess, st)
		if err != nil {
			return c.fail("customize.load", err)
		}
		loaded = true
	}
	drop := func() {
		if loaded {
			doc.Close()
		}
	}

	c.set(lifecycle.BindingWidget)
	c.env.Store.SetTemplateEditor(nil)
	ed, err := lifecycle.BindWithRetry(ctx, c.env.Scheduler, container, c.env.Policy.CustomizeRetry,
		func(ctx context.Context) (engine.Editor, error) {
			return sess.CreateEditor(ctx, container, doc)
		})
	if err != nil {
		drop()
		return c.fail("customize.bind", err)
	}
	if c.discard(container) || c.env.Store.Snapshot().TemplateRevision != st.TemplateRevision {
		ed.Destroy()
		drop()
		c.set(lifecycle.Idle)
		return nil
	}

	c.env.Store.SetTemplateArtifacts(doc, ed)
	c.mu.Lock()
	c.bound, c.boundRev = container, st.TemplateRevision
	c.mu.Unlock()
	c.env.Store.ClearError()
	c.set(lifecycle.Ready)
	return nil
}

// live reports whether the published editor already shows the current
// template in container.
func (c *Customize) live(st wizard.State, container engine.Container) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return st.TemplateEditor != nil && st.TemplateDocument != nil &&
		c.bound == container && c.boundRev == st.TemplateRevision &&
		lifecycle.SurfaceReady(container)
}

func (c *Customize) load(ctx context.Context, sess engine.Session, st wizard.State) (engine.Document, error) {
	if st.SelectedTemplate == wizard.TemplateCustom {
		doc, err := sess.ImportDOCX(ctx, st.CustomTemplateBinary)
		if err != nil {
			return nil, fault.New(fault.ArtifactFetchFailed, "customize.import", err)
		}
		return doc, nil
	}
	if c.env.Registry == nil {
		return nil, fault.Errorf(fault.ArtifactFetchFailed, "customize.definition", "no template registry")
	}
	def, err := c.env.Registry.Definition(string(st.SelectedTemplate))
	if err != nil {
		return nil, err
	}
	doc, err := sess.LoadDefinition(ctx, def)
	if err != nil {
		return nil, fault.New(fault.ArtifactFetchFailed, "customize.definition", err)
	}
	return doc, nil
}

func (c *Customize) CanProceed() bool {
	if c.Phase() != lifecycle.Ready {
		return false
	}
	st := c.env.Store.Snapshot()
	return st.TemplateDocument != nil && st.TemplateEditor != nil
}

func (c *Customize) Advance(context.Context) error {
	if !c.CanProceed() {
		return ErrNotReady
	}
	return c.advance()
}

// Render draws the template editor to width columns.
func (c *Customize) Render(width int) string {
	return renderEditor(c.env.Store.Snapshot().TemplateEditor, width)
}

// Source returns the template's editable source, or "" when the editor has
// none.
func (c *Customize) Source() string {
	if se, ok := c.env.Store.Snapshot().TemplateEditor.(engine.SourceEditor); ok {
		return se.Source()
	}
	return ""
}

// ApplySource replaces the template with an edited source. Anything already
// generated from the old template is discarded.
func (c *Customize) ApplySource(ctx context.Context, src string) error {
	se, ok := c.env.Store.Snapshot().TemplateEditor.(engine.SourceEditor)
	if !ok {
		return ErrNotReady
	}
	if err := se.Apply(ctx, src); err != nil {
		return err
	}
	c.env.Store.SetGeneratedDocx(nil)
	c.env.Logger.Info("template edited", nil)
	return nil
}

// Deactivate destroys the template editor; the loaded document is kept.
func (c *Customize) Deactivate() {
	c.env.Store.SetTemplateEditor(nil)
	c.mu.Lock()
	c.bound = nil
	c.mu.Unlock()
	c.tracker.Invalidate()
}

func (c *Customize) reset() {
	c.mu.Lock()
	c.bound, c.boundRev = nil, 0
	c.mu.Unlock()
	c.base.reset()
}

func renderEditor(ed engine.Editor, width int) string {
	if r, ok := ed.(engine.Renderer); ok {
		return r.Render(width)
	}
	return ""
}
