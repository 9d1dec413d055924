package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jonaddams/document-generator/internal/engine"
	"github.com/jonaddams/document-generator/internal/fault"
	"github.com/jonaddams/document-generator/internal/lifecycle"
	"github.com/jonaddams/document-generator/internal/outline"
	"github.com/jonaddams/document-generator/internal/wizard"
	"github.com/jonaddams/document-generator/util"
)

const defaultFileBase = "generated-document"

// Summary describes the finished document.
type Summary struct {
	Template       wizard.TemplateID `json:"template"`
	TemplateName   string            `json:"template_name"`
	ModelFields    int               `json:"model_fields"`
	CompletedSteps int               `json:"completed_steps"`
	TotalSteps     int               `json:"total_steps"`
	PDFBytes       int               `json:"pdf_bytes"`
	Pages          int               `json:"pages"`
}

type pageCounter interface {
	Pages() int
}

// Download binds the PDF viewer and writes the finished files.
type Download struct {
	base

	mu     sync.Mutex
	viewer engine.Viewer
}

func newDownload(env *Env) *Download {
	return &Download{base: newBase(env, wizard.StepDownload)}
}

func (d *Download) Activate(ctx context.Context, container engine.Container) error {
	if !d.tracker.Begin() {
		return nil
	}
	defer d.tracker.End()

	st := d.env.Store.Snapshot()
	if err := d.waitForContainer(ctx, container); err != nil {
		return d.failOrDrop(st, "download.acquire", err)
	}

	d.set(lifecycle.LoadingArtifact)
	pdf, err := d.pdf(ctx, st)
	if err != nil {
		return d.failOrDrop(st, "download.export", err)
	}
	if d.env.Viewer == nil {
		return d.fail("download.view", fault.Errorf(fault.EngineNotLoaded, "download.view", "no pdf viewer configured"))
	}

	d.set(lifecycle.BindingWidget)
	d.unload()
	v, err := lifecycle.BindWithRetry(ctx, d.env.Scheduler, container, d.env.Policy.PreviewRetry,
		func(ctx context.Context) (engine.Viewer, error) {
			return d.env.Viewer.Load(ctx, container, pdf)
		})
	if err != nil {
		return d.failOrDrop(st, "download.view", err)
	}
	if d.discard(container) {
		v.Unload()
		return nil
	}
	if d.superseded(st) {
		v.Unload()
		d.set(lifecycle.Idle)
		return nil
	}

	d.mu.Lock()
	d.viewer = v
	d.mu.Unlock()
	d.set(lifecycle.Ready)
	return nil
}

// pdf returns the PDF published before the run started, exporting it from
// the generated document when Finish was skipped. The export is published
// only while st is still current.
func (d *Download) pdf(ctx context.Context, st wizard.State) ([]byte, error) {
	if len(st.GeneratedPDF) > 0 {
		return st.GeneratedPDF, nil
	}
	if st.GeneratedDocx == nil {
		return nil, fault.Errorf(fault.GenerationFailed, "download.export", "no generated document")
	}
	pdf, err := st.GeneratedDocx.ExportPDF(ctx)
	if err != nil {
		return nil, fault.New(fault.GenerationFailed, "download.export", err)
	}
	if !d.superseded(st) {
		d.env.Store.SetGeneratedPDF(pdf)
	}
	return pdf, nil
}

// PDF returns the finished PDF bytes.
func (d *Download) PDF() []byte {
	return d.env.Store.Snapshot().GeneratedPDF
}

// DOCX exports the generated document as DOCX.
func (d *Download) DOCX(ctx context.Context) ([]byte, error) {
	doc := d.env.Store.Snapshot().GeneratedDocx
	if doc == nil {
		return nil, fault.Errorf(fault.GenerationFailed, "download.docx", "no generated document")
	}
	data, err := doc.ExportDOCX(ctx)
	if err != nil {
		return nil, fault.New(fault.GenerationFailed, "download.docx", err)
	}
	return data, nil
}

func (d *Download) Summary() Summary {
	st := d.env.Store.Snapshot()
	s := Summary{
		Template:       st.SelectedTemplate,
		TemplateName:   d.templateName(st.SelectedTemplate),
		ModelFields:    modelFields(st.DataJSON),
		CompletedSteps: st.CompletedCount(),
		TotalSteps:     len(st.Steps),
		PDFBytes:       len(st.GeneratedPDF),
	}
	d.mu.Lock()
	if pc, ok := d.viewer.(pageCounter); ok {
		s.Pages = pc.Pages()
	}
	d.mu.Unlock()
	return s
}

func (d *Download) templateName(id wizard.TemplateID) string {
	switch id {
	case wizard.TemplateNone:
		return "N/A"
	case wizard.TemplateCustom:
		return "Custom"
	}
	if d.env.Registry != nil {
		for _, t := range d.env.Registry.List() {
			if t.ID == string(id) {
				return t.DisplayName
			}
		}
	}
	return string(id)
}

// modelFields counts the top-level members of the data's model.
func modelFields(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	v, err := outline.Decode(data)
	if err != nil {
		return 0
	}
	root, ok := v.(outline.Object)
	if !ok {
		return 0
	}
	model, ok := root.Get("model")
	if !ok {
		return 0
	}
	switch m := model.(type) {
	case outline.Object:
		return len(m)
	case []any:
		return len(m)
	}
	return 0
}

// FileName returns the base name used for saved files, without extension.
func (d *Download) FileName() string {
	id := d.env.Store.Snapshot().SelectedTemplate
	if id == wizard.TemplateNone {
		return defaultFileBase
	}
	return util.FileName(string(id)+" document", defaultFileBase, "")
}

// Save writes the PDF into dir and completes the step. It returns the
// written path.
func (d *Download) Save(dir string) (string, error) {
	pdf := d.PDF()
	if len(pdf) == 0 {
		return "", fault.Errorf(fault.GenerationFailed, "download.save", "no pdf to save")
	}
	return d.write(dir, ".pdf", pdf)
}

// SaveDOCX writes the generated DOCX into dir and completes the step.
func (d *Download) SaveDOCX(ctx context.Context, dir string) (string, error) {
	data, err := d.DOCX(ctx)
	if err != nil {
		return "", err
	}
	return d.write(dir, ".docx", data)
}

func (d *Download) write(dir, ext string, data []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, d.FileName()+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if d.isCurrent() {
		d.env.Store.CompleteCurrentStep()
	}
	d.env.Logger.Info("document saved", map[string]any{"path": path, "bytes": len(data)})
	return path, nil
}

// Render describes the loaded PDF.
func (d *Download) Render(width int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.viewer.(engine.Renderer); ok {
		return r.Render(width)
	}
	return ""
}

func (d *Download) CanProceed() bool {
	return false
}

// Advance does nothing useful: download is the last step.
func (d *Download) Advance(context.Context) error {
	return ErrNotReady
}

// Deactivate unloads the PDF viewer.
func (d *Download) Deactivate() {
	d.unload()
	d.tracker.Invalidate()
}

func (d *Download) unload() {
	d.mu.Lock()
	v := d.viewer
	d.viewer = nil
	d.mu.Unlock()
	if v == nil {
		return
	}
	if err := v.Unload(); err != nil {
		d.env.Logger.Warn("unloading pdf viewer", map[string]any{"error": err})
	}
}

func (d *Download) reset() {
	d.unload()
	d.base.reset()
}
