package steps

import (
	"sync"

	"github.com/jonaddams/document-generator/internal/engine"
	"github.com/jonaddams/document-generator/internal/fault"
	"github.com/jonaddams/document-generator/internal/lifecycle"
)

// TextEditor is the data editor widget: a text buffer bound to a container.
type TextEditor struct {
	container engine.Container

	mu        sync.Mutex
	text      string
	destroyed bool
}

// NewTextEditor binds a text editor holding text to container.
func NewTextEditor(container engine.Container, text string) (*TextEditor, error) {
	if !lifecycle.SurfaceReady(container) {
		return nil, fault.Errorf(fault.WidgetCreationFailed, "editor.create", "container is not ready")
	}
	return &TextEditor{container: container, text: text}, nil
}

// Text returns the buffer.
func (e *TextEditor) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text
}

// SetText replaces the buffer.
func (e *TextEditor) SetText(text string) {
	e.mu.Lock()
	e.text = text
	e.mu.Unlock()
}

// Render returns the buffer.
func (e *TextEditor) Render(int) string {
	return e.Text()
}

// Destroy unbinds the editor.
func (e *TextEditor) Destroy() error {
	e.mu.Lock()
	e.destroyed = true
	e.mu.Unlock()
	return nil
}

// Destroyed reports whether Destroy has been called.
func (e *TextEditor) Destroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}
