// Package engine declares the capabilities docgen needs from a document
// authoring engine and a PDF viewer. Handles are opaque: callers only hold
// them and hand them back, and every handle has an explicit release method.
package engine

import (
	"context"
	"encoding/json"
)

// Container is a rendering surface a widget can be bound to.
type Container interface {
	ID() string
	// Connected reports whether the surface is still mounted. Results for a
	// disconnected container are stale and must be discarded.
	Connected() bool
	// Size returns the current dimensions; zero means not laid out yet.
	Size() (width, height int)
}

// Engine creates authoring sessions.
type Engine interface {
	CreateSession(ctx context.Context) (Session, error)
}

// Session is one instance of the authoring engine, reused across steps.
type Session interface {
	// ImportDOCX loads a format-A (DOCX) binary.
	ImportDOCX(ctx context.Context, data []byte) (Document, error)
	// LoadDefinition loads a native document definition (DocJSON).
	LoadDefinition(ctx context.Context, definition json.RawMessage) (Document, error)
	// CreateEditor binds an editor widget for doc to container.
	CreateEditor(ctx context.Context, container Container, doc Document) (Editor, error)
	Close() error
}

// Document is a loaded document.
type Document interface {
	// ExportDOCX exports the document as format A (DOCX).
	ExportDOCX(ctx context.Context) ([]byte, error)
	// ExportPDF exports the document as format B (PDF).
	ExportPDF(ctx context.Context) ([]byte, error)
	Close() error
}

// Editor is a widget bound to a container.
type Editor interface {
	Destroy() error
}

// Populator merges template data into a DOCX template, format A in and out.
type Populator interface {
	Populate(ctx context.Context, docx []byte, data json.RawMessage) ([]byte, error)
}

// PDFViewer loads PDF bytes into a container.
type PDFViewer interface {
	Load(ctx context.Context, container Container, pdf []byte) (Viewer, error)
}

// Viewer is a PDF widget bound to a container.
type Viewer interface {
	ExportPDF(ctx context.Context) ([]byte, error)
	Unload() error
}

// Renderer is implemented by widgets that can draw themselves as text.
type Renderer interface {
	Render(width int) string
}

// SourceEditor is implemented by editors whose document has an editable
// textual source.
type SourceEditor interface {
	Source() string
	Apply(ctx context.Context, source string) error
}
