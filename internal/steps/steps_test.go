package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/quick"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jonaddams/document-generator/internal/engine"
	"github.com/jonaddams/document-generator/internal/engine/local"
	"github.com/jonaddams/document-generator/internal/fault"
	"github.com/jonaddams/document-generator/internal/lifecycle"
	"github.com/jonaddams/document-generator/internal/logging"
	"github.com/jonaddams/document-generator/internal/wizard"
	"github.com/jonaddams/document-generator/registry"
)

// flakySession wraps a local session, failing CreateEditor with queued
// errors and running a hook after each successful bind.
type flakySession struct {
	engine.Session

	mu      sync.Mutex
	errs    []error
	calls   int
	closed  int
	editors []engine.Editor
	after   func()
}

func (s *flakySession) failNext(errs ...error) {
	s.mu.Lock()
	s.errs = append(s.errs, errs...)
	s.mu.Unlock()
}

func (s *flakySession) CreateEditor(ctx context.Context, c engine.Container, doc engine.Document) (engine.Editor, error) {
	s.mu.Lock()
	s.calls++
	var err error
	if len(s.errs) > 0 {
		err, s.errs = s.errs[0], s.errs[1:]
	}
	after := s.after
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	ed, err := s.Session.CreateEditor(ctx, c, doc)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.editors = append(s.editors, ed)
	s.mu.Unlock()
	if after != nil {
		after()
	}
	return ed, nil
}

func (s *flakySession) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return s.Session.Close()
}

func (s *flakySession) editorCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fixedEngine wraps every local session it creates in a flakySession.
type fixedEngine struct {
	mu       sync.Mutex
	sessions []*flakySession
}

func (e *fixedEngine) CreateSession(ctx context.Context) (engine.Session, error) {
	inner, err := local.New(logging.Nop()).CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	s := &flakySession{Session: inner}
	e.mu.Lock()
	e.sessions = append(e.sessions, s)
	e.mu.Unlock()
	return s, nil
}

// session returns the most recently created session.
func (e *fixedEngine) session(t *testing.T) *flakySession {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.sessions) == 0 {
		t.Fatal("no engine session has been created")
	}
	return e.sessions[len(e.sessions)-1]
}

type failingSamples struct {
	*registry.Registry
	kind fault.Kind
}

func (f failingSamples) SampleData(id string) (json.RawMessage, error) {
	return nil, fault.Errorf(f.kind, "registry.sample", "%s: unavailable", id)
}

type harness struct {
	flow   *Flow
	engine *fixedEngine
	sched  *lifecycle.ManualScheduler
	c      *engine.StaticContainer
}

func newHarness(t *testing.T, opts ...func(*Env)) *harness {
	t.Helper()
	reg := registry.MustNew()
	h := &harness{
		engine: &fixedEngine{},
		sched:  lifecycle.NewManualScheduler(),
		c:      engine.NewStaticContainer("test", 100, 40),
	}
	env := &Env{
		Engine:    h.engine,
		Populator: local.NewPopulator(),
		Viewer:    local.NewViewer(),
		Registry:  reg,
		Validator: reg,
		Scheduler: h.sched,
	}
	for _, opt := range opts {
		opt(env)
	}
	h.flow = NewFlow(env)
	return h
}

func (h *harness) store() *wizard.Store { return h.flow.Store() }

// to enters and advances steps until step is current.
func (h *harness) to(t *testing.T, step wizard.StepID) {
	t.Helper()
	ctx := context.Background()
	for h.store().Snapshot().Current().ID != step {
		if err := h.flow.Enter(ctx, h.c); err != nil {
			t.Fatalf("Enter(%s): %v", h.store().Snapshot().Current().ID, err)
		}
		if err := h.flow.Next(ctx); err != nil {
			t.Fatalf("Next(%s): %v", h.store().Snapshot().Current().ID, err)
		}
	}
}

func (h *harness) enter(t *testing.T) {
	t.Helper()
	if err := h.flow.Enter(context.Background(), h.c); err != nil {
		t.Fatalf("Enter(%s): %v", h.store().Snapshot().Current().ID, err)
	}
}

func jsonEqual(t *testing.T, got, want []byte) {
	t.Helper()
	var g, w any
	if err := json.Unmarshal(got, &g); err != nil {
		t.Fatalf("unmarshal got: %v", err)
	}
	if err := json.Unmarshal(want, &w); err != nil {
		t.Fatalf("unmarshal want: %v", err)
	}
	if diff := cmp.Diff(w, g); diff != "" {
		t.Errorf("JSON mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateInvoice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := h.flow.Generate(ctx, h.c); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	st := h.store().Snapshot()
	if st.Current().ID != wizard.StepDownload {
		t.Fatalf("current step = %s, want download", st.Current().ID)
	}
	if !bytes.HasPrefix(st.GeneratedPDF, []byte("%PDF-")) {
		t.Fatalf("generated PDF lacks header: %q", st.GeneratedPDF[:min(8, len(st.GeneratedPDF))])
	}
	if st.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q", st.ErrorMessage)
	}

	sum := h.flow.Download().Summary()
	if sum.Pages < 1 {
		t.Errorf("Summary.Pages = %d, want >= 1", sum.Pages)
	}
	sum.Pages = 0
	want := Summary{
		Template:       wizard.TemplateInvoice,
		TemplateName:   "Invoice Template",
		ModelFields:    9,
		CompletedSteps: 4,
		TotalSteps:     5,
		PDFBytes:       len(st.GeneratedPDF),
	}
	if diff := cmp.Diff(want, sum); diff != "" {
		t.Errorf("Summary mismatch (-want +got):\n%s", diff)
	}

	dir := t.TempDir()
	path, err := h.flow.Download().Save(dir)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(path) != "invoice-document.pdf" {
		t.Errorf("saved as %s", filepath.Base(path))
	}
	if n := h.store().CompletedCount(); n != 5 {
		t.Errorf("CompletedCount after save = %d, want 5", n)
	}

	docx, err := h.flow.Download().DOCX(ctx)
	if err != nil {
		t.Fatalf("DOCX: %v", err)
	}
	def, err := local.ReadDOCX(docx)
	if err != nil {
		t.Fatalf("ReadDOCX: %v", err)
	}
	text := local.PlainText(def)
	if !strings.Contains(text, "John Doe") || !strings.Contains(text, "Invoice INV-001") {
		t.Errorf("document text lacks populated values:\n%s", text)
	}
	if strings.Contains(text, "{{") {
		t.Errorf("document text has unresolved placeholders:\n%s", text)
	}
}

func TestGenerateEveryTemplate(t *testing.T) {
	for _, tmpl := range registry.MustNew().List() {
		t.Run(tmpl.ID, func(t *testing.T) {
			h := newHarness(t)
			if err := h.flow.Select(wizard.TemplateID(tmpl.ID), nil); err != nil {
				t.Fatalf("Select: %v", err)
			}
			if err := h.flow.Generate(context.Background(), h.c); err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if len(h.store().Snapshot().GeneratedPDF) == 0 {
				t.Error("no PDF generated")
			}
		})
	}
}

func TestGenerateCustomTemplateUsesDefaultData(t *testing.T) {
	docx, err := local.WriteDOCX(&local.Definition{
		Title: "Receipt",
		Pages: []local.Page{{Elements: []local.Element{
			{Type: local.TypeHeading, Text: "{{companyName}}", Level: 1},
			{Type: local.TypeParagraph, Text: "Received {{amount}} from {{customerName}}."},
		}}},
	})
	if err != nil {
		t.Fatalf("WriteDOCX: %v", err)
	}

	h := newHarness(t)
	if err := h.flow.Select(wizard.TemplateCustom, docx); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := h.flow.Generate(context.Background(), h.c); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	st := h.store().Snapshot()
	jsonEqual(t, st.DataJSON, registry.DefaultData())

	out, err := h.flow.Download().DOCX(context.Background())
	if err != nil {
		t.Fatalf("DOCX: %v", err)
	}
	def, err := local.ReadDOCX(out)
	if err != nil {
		t.Fatalf("ReadDOCX: %v", err)
	}
	if got := local.PlainText(def); !strings.Contains(got, "Received $1,250.00 from John Doe.") {
		t.Errorf("populated text = %q", got)
	}
	if got := h.flow.Download().Summary().TemplateName; got != "Custom" {
		t.Errorf("TemplateName = %q, want Custom", got)
	}
}

func TestTemplateSelectRejects(t *testing.T) {
	h := newHarness(t, func(e *Env) {
		e.Policy = DefaultPolicy()
		e.Policy.MaxTemplateBytes = 16
	})
	tests := []struct {
		name   string
		id     wizard.TemplateID
		binary []byte
		want   error
	}{
		{"unknown id", "letter", nil, ErrUnknownTemplate},
		{"custom without file", wizard.TemplateCustom, nil, ErrNotDOCX},
		{"custom not a zip", wizard.TemplateCustom, []byte("%PDF-1.4"), ErrNotDOCX},
		{"custom too large", wizard.TemplateCustom, bytes.Repeat([]byte("x"), 17), ErrTemplateTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.flow.Select(tt.id, tt.binary)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Select() error = %v, want %v", err, tt.want)
			}
			if got := h.store().Snapshot().SelectedTemplate; got != wizard.TemplateNone {
				t.Errorf("SelectedTemplate = %q after rejected select", got)
			}
		})
	}

	if _, err := h.flow.Template().ReadUpload(bytes.NewReader(make([]byte, 17))); !errors.Is(err, ErrTemplateTooLarge) {
		t.Errorf("ReadUpload over limit error = %v", err)
	}
	data, err := h.flow.Template().ReadUpload(strings.NewReader("PK\x03\x04"))
	if err != nil || len(data) != 4 {
		t.Errorf("ReadUpload = %d bytes, %v", len(data), err)
	}
}

func TestTemplateAdvanceNeedsSelection(t *testing.T) {
	h := newHarness(t)
	h.enter(t)
	if err := h.flow.Next(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Next without selection error = %v, want ErrNotReady", err)
	}
	if h.store().Snapshot().CurrentStep != 0 {
		t.Error("wizard moved without a selection")
	}
}

func TestCustomizeRetriesEditorCreation(t *testing.T) {
	h := newHarness(t)
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepCustomize)

	sess, err := h.flow.env.session(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	sess.(*flakySession).failNext(errors.New("mount point not measured"))

	h.enter(t)
	if got := h.flow.Customize().Phase(); got != lifecycle.Ready {
		t.Fatalf("phase = %s, want ready", got)
	}
	if diff := cmp.Diff([]time.Duration{500 * time.Millisecond}, h.sched.Slept()); diff != "" {
		t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
	}
	if n := h.engine.session(t).editorCalls(); n != 2 {
		t.Errorf("CreateEditor calls = %d, want 2", n)
	}
	if !h.flow.CanProceed() {
		t.Error("CanProceed() = false after successful retry")
	}
}

func TestCustomizeFailsAfterSecondAttempt(t *testing.T) {
	h := newHarness(t)
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepCustomize)
	sess, _ := h.flow.env.session(context.Background())
	sess.(*flakySession).failNext(errors.New("mount failed"), errors.New("mount failed again"))

	err := h.flow.Enter(context.Background(), h.c)
	if !fault.Is(err, fault.WidgetCreationFailed) {
		t.Fatalf("Enter() error = %v, want WidgetCreationFailed", err)
	}
	st := h.store().Snapshot()
	if st.ErrorMessage == "" {
		t.Error("ErrorMessage is empty after terminal failure")
	}
	if st.Loading {
		t.Error("Loading still set after failure")
	}
	if st.TemplateEditor != nil || st.TemplateDocument != nil {
		t.Error("failed bind published template artifacts")
	}
	if h.flow.CanProceed() {
		t.Error("CanProceed() = true after failure")
	}
}

func TestCustomizeSuppressesEngineNoise(t *testing.T) {
	h := newHarness(t)
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepCustomize)
	sess, _ := h.flow.env.session(context.Background())
	noisy := errors.New("TypeError: Cannot read properties of null (reading 'observe')")
	sess.(*flakySession).failNext(noisy, noisy)

	if err := h.flow.Enter(context.Background(), h.c); err != nil {
		t.Fatalf("Enter() error = %v, want nil for suppressed noise", err)
	}
	if got := h.flow.Customize().Phase(); got != lifecycle.Failed {
		t.Errorf("phase = %s, want failed", got)
	}
	if msg := h.store().Snapshot().ErrorMessage; msg != "" {
		t.Errorf("ErrorMessage = %q, want empty", msg)
	}
	if h.flow.env.Noise.Count() != 1 {
		t.Errorf("suppressed count = %d, want 1", h.flow.env.Noise.Count())
	}
}

func TestCustomizeContainerUnavailable(t *testing.T) {
	h := newHarness(t)
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepCustomize)
	h.c.Resize(0, 0)

	err := h.flow.Enter(context.Background(), h.c)
	if !fault.Is(err, fault.ContainerUnavailable) {
		t.Fatalf("Enter() error = %v, want ContainerUnavailable", err)
	}
	if n := len(h.sched.Slept()); n != 20 {
		t.Errorf("polled %d times, want 20", n)
	}
	if got := h.sched.Elapsed(); got != 2*time.Second {
		t.Errorf("waited %s, want 2s", got)
	}
	if h.store().Snapshot().Session != nil {
		t.Error("session created before the container was available")
	}
}

func TestCustomizeDiscardsEditorWhenContainerDetaches(t *testing.T) {
	h := newHarness(t)
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepCustomize)
	sess, _ := h.flow.env.session(context.Background())
	fs := sess.(*flakySession)
	fs.after = h.c.Detach

	if err := h.flow.Enter(context.Background(), h.c); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}
	st := h.store().Snapshot()
	if st.TemplateEditor != nil || st.TemplateDocument != nil {
		t.Error("result published for a detached container")
	}
	if len(fs.editors) != 1 || !fs.editors[0].(*local.Editor).Destroyed() {
		t.Error("discarded editor was not destroyed")
	}
	if got := h.flow.Customize().Phase(); got != lifecycle.Idle {
		t.Errorf("phase = %s, want idle", got)
	}
}

func TestCustomizeActivateIsReentrant(t *testing.T) {
	h := newHarness(t)
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepCustomize)
	h.c.Resize(0, 0)

	var nested error
	h.sched.OnSleep = func(call int, _ time.Duration) {
		switch call {
		case 1:
			nested = h.flow.Customize().Activate(context.Background(), h.c)
		case 3:
			h.c.Resize(100, 40)
		}
	}
	h.enter(t)
	if nested != nil {
		t.Errorf("nested Activate() error = %v", nested)
	}
	if n := h.engine.session(t).editorCalls(); n != 1 {
		t.Errorf("CreateEditor calls = %d, want 1", n)
	}
	if got := h.flow.Customize().Phase(); got != lifecycle.Ready {
		t.Errorf("phase = %s, want ready", got)
	}
}

func TestCustomizeReactivationKeepsEditor(t *testing.T) {
	h := newHarness(t)
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepCustomize)
	h.enter(t)
	first := h.store().Snapshot().TemplateEditor

	if err := h.flow.Customize().Activate(context.Background(), h.c); err != nil {
		t.Fatal(err)
	}
	if h.store().Snapshot().TemplateEditor != first {
		t.Error("re-activation replaced a live editor")
	}
	if n := h.engine.session(t).editorCalls(); n != 1 {
		t.Errorf("CreateEditor calls = %d, want 1", n)
	}
}

func TestCustomizeApplySourceDropsGeneratedDocument(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepPreview)
	h.enter(t)
	if h.store().Snapshot().GeneratedDocx == nil {
		t.Fatal("preview generated nothing")
	}

	if !h.flow.GoTo(1) {
		t.Fatal("GoTo(customize) rejected")
	}
	h.enter(t)
	def, err := local.ParseDefinition([]byte(h.flow.Customize().Source()))
	if err != nil {
		t.Fatalf("ParseDefinition(Source()): %v", err)
	}
	def.Title = "Edited {{invoiceNumber}}"
	src, err := def.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if err := h.flow.Customize().ApplySource(ctx, string(src)); err != nil {
		t.Fatalf("ApplySource: %v", err)
	}
	if h.store().Snapshot().GeneratedDocx != nil {
		t.Fatal("generated document survived a template edit")
	}

	if !h.flow.GoTo(3) {
		t.Fatal("GoTo(preview) rejected")
	}
	h.enter(t)
	doc := h.store().Snapshot().GeneratedDocx
	if doc == nil {
		t.Fatal("preview did not regenerate")
	}
	out, err := doc.ExportDOCX(ctx)
	if err != nil {
		t.Fatal(err)
	}
	got, err := local.ReadDOCX(out)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Edited INV-001" {
		t.Errorf("regenerated title = %q", got.Title)
	}
}

func TestDataFallsBackToDefaultData(t *testing.T) {
	h := newHarness(t, func(e *Env) {
		e.Registry = failingSamples{Registry: registry.MustNew(), kind: fault.ArtifactFetchFailed}
	})
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepData)
	h.enter(t)

	st := h.store().Snapshot()
	jsonEqual(t, st.DataJSON, registry.DefaultData())
	if st.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want empty after fallback", st.ErrorMessage)
	}
	if !h.flow.CanProceed() {
		t.Error("CanProceed() = false with default data")
	}
}

func TestDataFetchFailureThatIsNotRecoverable(t *testing.T) {
	h := newHarness(t, func(e *Env) {
		e.Registry = failingSamples{Registry: registry.MustNew(), kind: fault.EngineNotLoaded}
	})
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepData)
	if err := h.flow.Enter(context.Background(), h.c); !fault.Is(err, fault.EngineNotLoaded) {
		t.Fatalf("Enter() error = %v, want EngineNotLoaded", err)
	}
	if h.flow.CanProceed() {
		t.Error("CanProceed() = true after failed load")
	}
}

func TestDataInvalidJSONBlocksAdvance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepData)
	h.enter(t)
	before := h.store().Snapshot().DataJSON

	if err := h.flow.EditData(`{"model": `); !fault.Is(err, fault.InvalidJSON) {
		t.Fatalf("EditData(invalid) error = %v, want InvalidJSON", err)
	}
	if h.flow.Data().Text() != `{"model": ` {
		t.Error("invalid text was not kept in the editor")
	}
	if !bytes.Equal(h.store().Snapshot().DataJSON, before) {
		t.Error("invalid text replaced DataJSON")
	}
	if h.flow.CanProceed() {
		t.Error("CanProceed() = true with invalid text")
	}

	err := h.flow.Next(ctx)
	if !fault.Is(err, fault.InvalidJSON) {
		t.Fatalf("Next() error = %v, want InvalidJSON", err)
	}
	st := h.store().Snapshot()
	if st.Current().ID != wizard.StepData {
		t.Errorf("wizard moved to %s on invalid JSON", st.Current().ID)
	}
	if st.ErrorMessage != fault.Message(err) {
		t.Errorf("ErrorMessage = %q, want %q", st.ErrorMessage, fault.Message(err))
	}

	if err := h.flow.EditData(`{"model": {"companyName": "Globex"}}`); err != nil {
		t.Fatalf("EditData(valid): %v", err)
	}
	if msg := h.store().Snapshot().ErrorMessage; msg != "" {
		t.Errorf("ErrorMessage = %q after valid edit", msg)
	}
	if err := h.flow.Next(ctx); err != nil {
		t.Fatalf("Next() after fix: %v", err)
	}
}

func TestDataKeepsUserEdits(t *testing.T) {
	h := newHarness(t)
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepData)
	h.enter(t)
	edited := `{"model": {"companyName": "Globex"}}`
	if err := h.flow.EditData(edited); err != nil {
		t.Fatal(err)
	}

	if !h.flow.Prev() {
		t.Fatal("Prev() rejected")
	}
	h.enter(t)
	if !h.flow.GoTo(2) {
		t.Fatal("GoTo(data) rejected")
	}
	h.enter(t)
	if got := h.flow.Data().Text(); got != edited {
		t.Errorf("Text() = %q, want the user's edit", got)
	}
}

func TestDataRefetchesSampleForNewTemplate(t *testing.T) {
	h := newHarness(t)
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepData)
	h.enter(t)
	if !strings.Contains(h.flow.Data().Text(), "INV-001") {
		t.Fatal("invoice sample not loaded")
	}

	if !h.flow.GoTo(0) {
		t.Fatal("GoTo(template) rejected")
	}
	if err := h.flow.Select(wizard.TemplateChecklist, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepData)
	h.enter(t)

	raw, err := registry.MustNew().SampleData("checklist")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := h.flow.Data().Text(), pretty(raw); got != want {
		t.Errorf("data text mismatch:\ngot  %s\nwant %s", got, want)
	}
}

func TestDataOutlineAndValidate(t *testing.T) {
	h := newHarness(t)
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepData)
	h.enter(t)

	if out := h.flow.Data().Outline(); !strings.Contains(out, "Company Name: Acme Corporation") {
		t.Errorf("Outline() lacks company name:\n%s", out)
	}
	warnings, err := h.flow.Data().Validate()
	if err != nil || len(warnings) != 0 {
		t.Fatalf("Validate(sample) = %v, %v", warnings, err)
	}

	if err := h.flow.EditData(`{"model": {"companyName": 7}}`); err != nil {
		t.Fatal(err)
	}
	warnings, err = h.flow.Data().Validate()
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) == 0 {
		t.Error("Validate() found no problems in invalid data")
	}
}

func TestPreviewRegeneratesOnlyWhenInputsChange(t *testing.T) {
	h := newHarness(t)
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepPreview)
	h.enter(t)
	first := h.store().Snapshot().GeneratedDocx
	if first == nil {
		t.Fatal("nothing generated")
	}

	// Back to data and forward again without editing.
	if !h.flow.Prev() {
		t.Fatal("Prev() rejected")
	}
	h.to(t, wizard.StepPreview)
	h.enter(t)
	if h.store().Snapshot().GeneratedDocx != first {
		t.Error("unchanged inputs regenerated the document")
	}

	if !h.flow.Prev() {
		t.Fatal("Prev() rejected")
	}
	h.enter(t)
	edited := strings.Replace(h.flow.Data().Text(), "Acme Corporation", "Globex", 1)
	if err := h.flow.EditData(edited); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepPreview)
	h.enter(t)
	if h.store().Snapshot().GeneratedDocx == first {
		t.Fatal("edited data did not regenerate the document")
	}
	if out := h.flow.Preview().Render(100); !strings.Contains(out, "Globex") {
		t.Errorf("preview does not show edited data:\n%s", out)
	}
}

func TestPreviewRetriesEditorCreation(t *testing.T) {
	h := newHarness(t)
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepPreview)
	h.engine.session(t).failNext(errors.New("viewport not ready"))

	h.enter(t)
	if diff := cmp.Diff([]time.Duration{time.Second}, h.sched.Slept()); diff != "" {
		t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
	}
	if got := h.flow.Preview().Phase(); got != lifecycle.Ready {
		t.Errorf("phase = %s, want ready", got)
	}
}

func TestPreviewPopulateFailure(t *testing.T) {
	h := newHarness(t)
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepData)
	h.enter(t)
	if err := h.flow.EditData(`{"config": {"delimiter": ["<<"]}, "model": {}}`); err != nil {
		t.Fatal(err)
	}
	if err := h.flow.Next(context.Background()); err != nil {
		t.Fatal(err)
	}

	err := h.flow.Enter(context.Background(), h.c)
	if !fault.Is(err, fault.GenerationFailed) {
		t.Fatalf("Enter() error = %v, want GenerationFailed", err)
	}
	if h.store().Snapshot().ErrorMessage == "" {
		t.Error("ErrorMessage empty after generation failure")
	}
	if err := h.flow.Next(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("Next() error = %v, want ErrNotReady", err)
	}
}

// randomValue builds a JSON tree mixing every value kind, including strings
// that need escaping.
func randomValue(r *rand.Rand, depth int) any {
	kind := r.Intn(8)
	if depth > 3 {
		kind = r.Intn(5)
	}
	switch kind {
	case 0:
		return nil
	case 1:
		return r.Intn(2) == 0
	case 2:
		return float64(r.Intn(20000)-10000) / 8
	case 3:
		return r.NormFloat64() * 1e6
	case 4:
		words := []string{"", "Acme", "naïve café", "line\nbreak", `quote "x"`, `back\slash`, "<b>&amp;</b>", "日本語", "tab\t"}
		return words[r.Intn(len(words))]
	case 5, 6:
		m := map[string]any{}
		for i := 0; i < r.Intn(4); i++ {
			m[string(rune('a'+i))+"Key"] = randomValue(r, depth+1)
		}
		return m
	default:
		arr := make([]any, r.Intn(4))
		for i := range arr {
			arr[i] = randomValue(r, depth+1)
		}
		return arr
	}
}

func TestDataPayloadRoundTrip(t *testing.T) {
	h := newHarness(t)
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepData)
	h.enter(t)

	f := func(seed int64) bool {
		r := rand.New(rand.NewSource(seed))
		want := map[string]any{"config": map[string]any{}, "model": randomValue(r, 0)}
		raw, err := json.Marshal(want)
		if err != nil {
			t.Logf("Marshal: %v", err)
			return false
		}
		text := pretty(raw)
		if err := h.flow.EditData(text); err != nil {
			t.Logf("EditData: %v", err)
			return false
		}

		st := h.store().Snapshot()
		ed, ok := st.DataEditor.(*TextEditor)
		if !ok || ed.Text() != text {
			t.Log("data editor does not hold the edited text")
			return false
		}
		for _, got := range []string{string(st.DataJSON), h.flow.Data().Text(), pretty(st.DataJSON)} {
			var v any
			if err := json.Unmarshal([]byte(got), &v); err != nil {
				t.Logf("Unmarshal: %v", err)
				return false
			}
			if diff := cmp.Diff(any(want), v); diff != "" {
				t.Logf("payload changed (-want +got):\n%s", diff)
				return false
			}
		}
		return true
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 100}); err != nil {
		t.Error(err)
	}
}

func TestDataDropsRunOvertakenByReset(t *testing.T) {
	tests := []struct {
		name    string
		restore bool // the container becomes usable again after the reset
	}{
		{"container returns", true},
		{"container never returns", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
				t.Fatal(err)
			}
			h.to(t, wizard.StepData)
			h.flow.Leave()

			h.c.Resize(0, 0)
			reset := false
			h.sched.OnSleep = func(int, time.Duration) {
				if reset {
					return
				}
				reset = true
				h.flow.Reset()
				if tt.restore {
					h.c.Resize(100, 40)
				}
			}
			if err := h.flow.Data().Activate(context.Background(), h.c); err != nil {
				t.Fatalf("Activate() error = %v, want nil for a superseded run", err)
			}

			st := h.store().Snapshot()
			if st.CurrentStep != 0 || st.SelectedTemplate != wizard.TemplateNone {
				t.Errorf("store not at its initial state: step %d, template %q", st.CurrentStep, st.SelectedTemplate)
			}
			if st.DataJSON != nil || st.DataEditor != nil {
				t.Errorf("stale run published data: %d bytes, editor %v", len(st.DataJSON), st.DataEditor != nil)
			}
			if st.ErrorMessage != "" || st.Loading {
				t.Errorf("stale run surfaced state: error %q, loading %v", st.ErrorMessage, st.Loading)
			}
			if got := h.flow.Data().Text(); got != "" {
				t.Errorf("Text() = %q after reset", got)
			}
			if p := h.flow.Data().Phase(); p != lifecycle.Idle {
				t.Errorf("Phase() = %s, want Idle", p)
			}
		})
	}
}

func TestDownloadDropsRunOvertakenByReset(t *testing.T) {
	h := newHarness(t)
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepDownload)
	h.flow.Leave()

	h.c.Resize(0, 0)
	reset := false
	h.sched.OnSleep = func(int, time.Duration) {
		if !reset {
			reset = true
			h.flow.Reset()
			h.c.Resize(100, 40)
		}
	}
	if err := h.flow.Download().Activate(context.Background(), h.c); err != nil {
		t.Fatalf("Activate() error = %v, want nil for a superseded run", err)
	}

	st := h.store().Snapshot()
	if st.CurrentStep != 0 || st.GeneratedPDF != nil || st.ErrorMessage != "" {
		t.Errorf("stale run leaked into the reset store: step %d, pdf %d bytes, error %q",
			st.CurrentStep, len(st.GeneratedPDF), st.ErrorMessage)
	}
	if p := h.flow.Download().Phase(); p != lifecycle.Idle {
		t.Errorf("Phase() = %s, want Idle", p)
	}
	if pages := h.flow.Download().Summary().Pages; pages != 0 {
		t.Errorf("viewer kept after reset, %d pages", pages)
	}
}

func TestBlockedAdvanceLeavesStepOpen(t *testing.T) {
	h := newHarness(t)
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepCustomize)

	// Never entered, so there is no editor and the gate refuses.
	if err := h.flow.Customize().advance(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("advance() error = %v, want ErrNotReady", err)
	}
	st := h.store().Snapshot()
	if st.Steps[1].IsComplete {
		t.Error("customize marked complete although the wizard did not move")
	}
	if h.flow.GoTo(2) {
		t.Error("GoTo(data) jumped past the open customize step")
	}
}

func TestNavigationRules(t *testing.T) {
	h := newHarness(t)
	if h.flow.GoTo(3) {
		t.Error("GoTo(3) accepted from a fresh wizard")
	}
	if h.flow.Prev() {
		t.Error("Prev() accepted on the first step")
	}
	if err := h.flow.Select(wizard.TemplateMenu, nil); err != nil {
		t.Fatal(err)
	}
	h.to(t, wizard.StepData)
	if !h.flow.GoTo(0) || !h.flow.GoTo(2) {
		t.Error("GoTo rejected a completed or reachable step")
	}
	if h.flow.GoTo(4) {
		t.Error("GoTo(download) accepted before preview is complete")
	}
}

func TestResetReleasesEverything(t *testing.T) {
	h := newHarness(t)
	if err := h.flow.Select(wizard.TemplateInvoice, nil); err != nil {
		t.Fatal(err)
	}
	if err := h.flow.Generate(context.Background(), h.c); err != nil {
		t.Fatal(err)
	}
	sess := h.engine.session(t)

	h.flow.Reset()
	st := h.store().Snapshot()
	if st.CurrentStep != 0 || st.SelectedTemplate != wizard.TemplateNone || st.CompletedCount() != 0 {
		t.Errorf("state not reset: step %d, template %q, completed %d", st.CurrentStep, st.SelectedTemplate, st.CompletedCount())
	}
	if st.Session != nil || st.GeneratedDocx != nil || st.GeneratedPDF != nil || st.DataJSON != nil {
		t.Error("handles survived reset")
	}
	if sess.closed != 1 {
		t.Errorf("session closed %d times, want 1", sess.closed)
	}
	for i, ed := range sess.editors {
		if !ed.(*local.Editor).Destroyed() {
			t.Errorf("editor %d not destroyed", i)
		}
	}
	if h.flow.Data().Text() != "" {
		t.Error("data text survived reset")
	}

	// The wizard is usable again.
	if err := h.flow.Select(wizard.TemplateChecklist, nil); err != nil {
		t.Fatal(err)
	}
	if err := h.flow.Generate(context.Background(), h.c); err != nil {
		t.Fatalf("Generate after reset: %v", err)
	}
}

func TestDownloadSaveWithoutDocument(t *testing.T) {
	h := newHarness(t)
	if _, err := h.flow.Download().Save(t.TempDir()); !fault.Is(err, fault.GenerationFailed) {
		t.Errorf("Save() error = %v, want GenerationFailed", err)
	}
	if got := h.flow.Download().FileName(); got != "generated-document" {
		t.Errorf("FileName() = %q, want generated-document", got)
	}
}
