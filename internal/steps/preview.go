package steps

import (
	"context"
	"sync"

	"github.com/jonaddams/document-generator/internal/engine"
	"github.com/jonaddams/document-generator/internal/fault"
	"github.com/jonaddams/document-generator/internal/lifecycle"
	"github.com/jonaddams/document-generator/internal/wizard"
	"github.com/jonaddams/document-generator/pipeline"
)

// Preview generates the populated document and binds an editor to it.
type Preview struct {
	base

	mu      sync.Mutex
	tmplRev uint64
	dataRev uint64
	bound   engine.Container
}

func newPreview(env *Env) *Preview {
	return &Preview{base: newBase(env, wizard.StepPreview)}
}

func (p *Preview) Activate(ctx context.Context, container engine.Container) error {
	if !p.tracker.Begin() {
		return nil
	}
	defer p.tracker.End()

	st := p.env.Store.Snapshot()
	if st.TemplateDocument == nil {
		return p.fail("preview.generate", fault.Errorf(fault.GenerationFailed, "preview.generate", "template is not loaded"))
	}
	if len(st.DataJSON) == 0 {
		return p.fail("preview.generate", fault.Errorf(fault.GenerationFailed, "preview.generate", "no data"))
	}
	if p.live(st, container) {
		p.set(lifecycle.Ready)
		return nil
	}

	if err := p.waitForContainer(ctx, container); err != nil {
		return p.fail("preview.acquire", err)
	}
	sess, err := p.env.session(ctx)
	if err != nil {
		return p.fail("preview.session", err)
	}

	p.set(lifecycle.LoadingArtifact)
	doc := st.GeneratedDocx
	if p.stale(st) {
		p.env.Store.SetGeneratedDocx(nil)
		doc, err = p.generate(ctx, sess, st)
		if err != nil {
			return p.fail("preview.generate", err)
		}
		if p.superseded(st) {
			doc.Close()
			p.set(lifecycle.Idle)
			return nil
		}
		p.env.Store.SetGeneratedDocx(doc)
		p.mu.Lock()
		p.tmplRev, p.dataRev = st.TemplateRevision, st.DataRevision
		p.mu.Unlock()
	}

	p.set(lifecycle.BindingWidget)
	p.env.Store.SetGeneratedDocxEditor(nil)
	ed, err := lifecycle.BindWithRetry(ctx, p.env.Scheduler, container, p.env.Policy.PreviewRetry,
		func(ctx context.Context) (engine.Editor, error) {
			return sess.CreateEditor(ctx, container, doc)
		})
	if err != nil {
		return p.fail("preview.bind", err)
	}
	if p.discard(container) || p.superseded(st) {
		ed.Destroy()
		return nil
	}

	p.env.Store.SetGeneratedDocxEditor(ed)
	p.mu.Lock()
	p.bound = container
	p.mu.Unlock()
	p.env.Store.ClearError()
	p.set(lifecycle.Ready)
	return nil
}

func (p *Preview) generate(ctx context.Context, sess engine.Session, st wizard.State) (engine.Document, error) {
	gc := pipeline.NewGenerationContext(sess, p.env.Populator, st.TemplateDocument, st.DataJSON)
	if err := pipeline.Document().WithLogger(p.env.Logger).Run(ctx, gc); err != nil {
		if gc.Document != nil {
			gc.Document.Close()
		}
		return nil, err
	}
	p.env.Logger.Info("document generated", map[string]any{
		"template": string(st.SelectedTemplate),
		"bytes":    len(gc.PopulatedDOCX),
	})
	return gc.Document, nil
}

// stale reports whether the generated document is missing or was built
// from an older template or data revision.
func (p *Preview) stale(st wizard.State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return st.GeneratedDocx == nil || p.tmplRev != st.TemplateRevision || p.dataRev != st.DataRevision
}

func (p *Preview) live(st wizard.State, container engine.Container) bool {
	if p.stale(st) || st.GeneratedDocxEditor == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bound == container && lifecycle.SurfaceReady(container)
}

func (p *Preview) CanProceed() bool {
	if p.Phase() != lifecycle.Ready {
		return false
	}
	return p.env.Store.Snapshot().GeneratedDocx != nil
}

// Advance finishes the document: it exports the PDF, publishes it and
// moves to the download step.
func (p *Preview) Advance(ctx context.Context) error {
	if !p.isCurrent() {
		return ErrWrongStep
	}
	if !p.CanProceed() {
		return ErrNotReady
	}
	doc := p.env.Store.Snapshot().GeneratedDocx
	pdf, err := doc.ExportPDF(ctx)
	if err != nil {
		ferr := fault.New(fault.GenerationFailed, "preview.export", err)
		p.env.Store.SetError(ferr)
		return ferr
	}
	p.env.Store.SetGeneratedPDF(pdf)
	p.env.Logger.Info("pdf exported", map[string]any{"bytes": len(pdf)})
	return p.advance()
}

// Render draws the generated document to width columns.
func (p *Preview) Render(width int) string {
	return renderEditor(p.env.Store.Snapshot().GeneratedDocxEditor, width)
}

// Source returns the generated document's editable source.
func (p *Preview) Source() string {
	if se, ok := p.env.Store.Snapshot().GeneratedDocxEditor.(engine.SourceEditor); ok {
		return se.Source()
	}
	return ""
}

// ApplySource edits the generated document in place. A previously exported
// PDF no longer matches and is dropped.
func (p *Preview) ApplySource(ctx context.Context, src string) error {
	se, ok := p.env.Store.Snapshot().GeneratedDocxEditor.(engine.SourceEditor)
	if !ok {
		return ErrNotReady
	}
	if err := se.Apply(ctx, src); err != nil {
		return err
	}
	p.env.Store.SetGeneratedPDF(nil)
	return nil
}

// Deactivate destroys the document editor. The generated document is kept
// so returning to the step does not regenerate it.
func (p *Preview) Deactivate() {
	p.env.Store.SetGeneratedDocxEditor(nil)
	p.mu.Lock()
	p.bound = nil
	p.mu.Unlock()
	p.tracker.Invalidate()
}

func (p *Preview) reset() {
	p.mu.Lock()
	p.tmplRev, p.dataRev, p.bound = 0, 0, nil
	p.mu.Unlock()
	p.base.reset()
}
