package steps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jonaddams/document-generator/internal/engine"
	"github.com/jonaddams/document-generator/internal/lifecycle"
	"github.com/jonaddams/document-generator/internal/wizard"
	"github.com/jonaddams/document-generator/util"
)

var (
	// ErrUnknownTemplate is returned when selecting an id the wizard does
	// not know.
	ErrUnknownTemplate = errors.New("unknown template")
	// ErrTemplateTooLarge is returned for uploads above the size limit.
	ErrTemplateTooLarge = errors.New("template file is too large")
	// ErrNotDOCX is returned for uploads that are not DOCX packages.
	ErrNotDOCX = errors.New("please select a valid DOCX file")
)

var docxSignature = []byte("PK\x03\x04")

// Template is the template selection stage. It binds no widget.
type Template struct {
	base
}

func newTemplate(env *Env) *Template {
	return &Template{base: newBase(env, wizard.StepTemplate)}
}

// Activate marks the stage ready; choosing a template needs no container.
func (t *Template) Activate(ctx context.Context, _ engine.Container) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.set(lifecycle.Ready)
	return nil
}

// Select chooses a predefined template, or custom with the uploaded DOCX.
func (t *Template) Select(id wizard.TemplateID, binary []byte) error {
	if !id.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	if id == wizard.TemplateCustom {
		if err := t.checkUpload(binary); err != nil {
			return err
		}
	} else if t.env.Registry != nil && !t.known(id) {
		return fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	if !t.env.Store.SetTemplate(id, binary) {
		return fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	t.env.Store.ClearError()
	t.env.Logger.Info("template selected", map[string]any{"template": string(id), "bytes": len(binary)})
	return nil
}

// ReadUpload reads a custom template from r, enforcing the size limit.
func (t *Template) ReadUpload(r io.Reader) ([]byte, error) {
	limit := t.env.Policy.MaxTemplateBytes
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, t.tooLarge()
	}
	return data, nil
}

func (t *Template) checkUpload(binary []byte) error {
	if int64(len(binary)) > t.env.Policy.MaxTemplateBytes {
		return t.tooLarge()
	}
	if !bytes.HasPrefix(binary, docxSignature) {
		return ErrNotDOCX
	}
	return nil
}

func (t *Template) tooLarge() error {
	return fmt.Errorf("%w: file size must be less than %s", ErrTemplateTooLarge, util.HumanBytes(t.env.Policy.MaxTemplateBytes))
}

func (t *Template) known(id wizard.TemplateID) bool {
	for _, tmpl := range t.env.Registry.List() {
		if tmpl.ID == string(id) {
			return true
		}
	}
	return false
}

func (t *Template) CanProceed() bool {
	return t.env.Store.Snapshot().SelectedTemplate != wizard.TemplateNone
}

func (t *Template) Advance(context.Context) error {
	if !t.CanProceed() {
		return ErrNotReady
	}
	return t.advance()
}

func (t *Template) Deactivate() {
	t.tracker.Invalidate()
}
