package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/jonaddams/document-generator/internal/engine"
	"github.com/jonaddams/document-generator/internal/fault"
	"github.com/jonaddams/document-generator/internal/lifecycle"
	"github.com/jonaddams/document-generator/internal/outline"
	"github.com/jonaddams/document-generator/internal/wizard"
	"github.com/jonaddams/document-generator/registry"
)

type dataOrigin int

const (
	originNone dataOrigin = iota
	originSample
	originUser
)

// Data fetches the template's sample data and binds a JSON editor to it.
type Data struct {
	base

	mu        sync.Mutex
	text      string
	origin    dataOrigin
	sampleRev uint64
	editor    *TextEditor
}

func newData(env *Env) *Data {
	return &Data{base: newBase(env, wizard.StepData)}
}

func (d *Data) Activate(ctx context.Context, container engine.Container) error {
	if !d.tracker.Begin() {
		return nil
	}
	defer d.tracker.End()

	st := d.env.Store.Snapshot()
	if st.SelectedTemplate == wizard.TemplateNone {
		return d.fail("data.load", fault.Errorf(fault.ArtifactFetchFailed, "data.load", "no template selected"))
	}
	if err := d.waitForContainer(ctx, container); err != nil {
		return d.failOrDrop(st, "data.acquire", err)
	}

	d.set(lifecycle.LoadingArtifact)
	text, sample, err := d.loadText(st)
	if err != nil {
		return d.failOrDrop(st, "data.load", err)
	}

	d.set(lifecycle.BindingWidget)
	d.env.Store.SetDataEditor(nil)
	ed, err := lifecycle.BindWithRetry(ctx, d.env.Scheduler, container, d.env.Policy.CustomizeRetry,
		func(context.Context) (*TextEditor, error) {
			return NewTextEditor(container, text)
		})
	if err != nil {
		return d.failOrDrop(st, "data.bind", err)
	}
	if d.discard(container) {
		ed.Destroy()
		return nil
	}
	if d.superseded(st) {
		ed.Destroy()
		d.set(lifecycle.Idle)
		return nil
	}

	d.mu.Lock()
	d.text, d.editor = text, ed
	if sample {
		d.origin, d.sampleRev = originSample, st.TemplateRevision
	}
	d.mu.Unlock()
	if sample {
		d.env.Store.SetDataJSON(json.RawMessage(text))
	}
	d.env.Store.SetDataEditor(ed)
	d.set(lifecycle.Ready)
	return nil
}

// loadText decides what the editor shows and whether it is freshly fetched
// sample data. Sample data is fetched when there is no data yet or the
// sample belongs to a previous template; data the user supplied is never
// replaced. Nothing is published here.
func (d *Data) loadText(st wizard.State) (string, bool, error) {
	d.mu.Lock()
	current, origin := d.text, d.origin
	stale := origin == originSample && d.sampleRev != st.TemplateRevision
	d.mu.Unlock()

	if origin == originUser && current != "" {
		return current, false, nil
	}
	if len(st.DataJSON) > 0 && !stale {
		if current == "" {
			current = pretty(st.DataJSON)
		}
		return current, false, nil
	}

	raw, err := d.fetchSample(st.SelectedTemplate)
	if err != nil {
		return "", false, err
	}
	return pretty(raw), true, nil
}

func (d *Data) fetchSample(id wizard.TemplateID) (json.RawMessage, error) {
	var (
		raw json.RawMessage
		err error
	)
	if d.env.Registry == nil {
		err = fault.Errorf(fault.ArtifactFetchFailed, "data.sample", "no template registry")
	} else {
		raw, err = d.env.Registry.SampleData(string(id))
	}
	if err == nil {
		return raw, nil
	}
	if !fault.KindOf(err).Recoverable() {
		return nil, err
	}
	d.env.Logger.Warn("sample data unavailable, using default", map[string]any{"template": string(id), "error": err})
	return registry.DefaultData(), nil
}

// Edit replaces the data text. Valid JSON is published immediately; invalid
// text is kept in the editor and reported as InvalidJSON without blocking
// further edits.
func (d *Data) Edit(text string) error {
	d.mu.Lock()
	d.text = text
	d.origin = originUser
	ed := d.editor
	d.mu.Unlock()
	if ed != nil {
		ed.SetText(text)
	}

	if err := parseJSON(text); err != nil {
		return fault.New(fault.InvalidJSON, "data.edit", err)
	}
	d.env.Store.SetDataJSON(json.RawMessage(text))
	d.env.Store.ClearError()
	return nil
}

// Text returns the current data text.
func (d *Data) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

// Valid reports whether the current text parses as JSON.
func (d *Data) Valid() bool {
	return parseJSON(d.Text()) == nil
}

// Outline renders the model of the current data as a readable outline.
func (d *Data) Outline() string {
	v, err := outline.Decode([]byte(d.Text()))
	if err != nil {
		return ""
	}
	return outline.Readable(v)
}

// Validate checks the current data against the template's schema and
// returns the problems found. Templates without a schema yield none.
func (d *Data) Validate() ([]string, error) {
	id := d.env.Store.Snapshot().SelectedTemplate
	if d.env.Validator == nil || id == wizard.TemplateNone || id == wizard.TemplateCustom {
		return nil, nil
	}
	text := d.Text()
	if err := parseJSON(text); err != nil {
		return nil, fault.New(fault.InvalidJSON, "data.validate", err)
	}
	warnings, err := d.env.Validator.ValidateData(string(id), []byte(text))
	if errors.Is(err, registry.ErrNoSchema) {
		return nil, nil
	}
	return warnings, err
}

func (d *Data) CanProceed() bool {
	return d.Phase() == lifecycle.Ready && d.Valid()
}

// Advance parses the editor text and moves on. Invalid JSON sets the
// wizard error and keeps the wizard on this step.
func (d *Data) Advance(context.Context) error {
	if !d.isCurrent() {
		return ErrWrongStep
	}
	text := d.Text()
	if err := parseJSON(text); err != nil {
		ferr := fault.New(fault.InvalidJSON, "data.parse", err)
		d.env.Store.SetError(ferr)
		return ferr
	}
	if d.Phase() != lifecycle.Ready {
		return ErrNotReady
	}
	if !bytes.Equal(d.env.Store.Snapshot().DataJSON, []byte(text)) {
		d.env.Store.SetDataJSON(json.RawMessage(text))
	}
	return d.advance()
}

// Deactivate destroys the data editor. The text is kept.
func (d *Data) Deactivate() {
	d.env.Store.SetDataEditor(nil)
	d.mu.Lock()
	d.editor = nil
	d.mu.Unlock()
	d.tracker.Invalidate()
}

func (d *Data) reset() {
	d.mu.Lock()
	d.text, d.origin, d.sampleRev, d.editor = "", originNone, 0, nil
	d.mu.Unlock()
	d.base.reset()
}

func parseJSON(text string) error {
	var v any
	return json.Unmarshal([]byte(text), &v)
}

func pretty(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
