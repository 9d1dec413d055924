package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jonaddams/document-generator/internal/engine"
	"github.com/jonaddams/document-generator/internal/logging"
)

var (
	// ErrClosed is returned by operations on a closed session or document.
	ErrClosed = errors.New("handle is closed")
	// ErrDetached is returned when a widget is bound to a container that is
	// not mounted.
	ErrDetached = errors.New("container is detached")
	// ErrNoSize is returned when a widget is bound to a container that has
	// not been laid out.
	ErrNoSize = errors.New("container has zero size")
	// ErrForeignDocument is returned when a document from another engine is
	// passed in.
	ErrForeignDocument = errors.New("document does not belong to this engine")
)

// Engine creates local authoring sessions.
type Engine struct {
	logger    logging.Logger
	nextID    atomic.Int64
	partLimit int64
}

// New creates an Engine.
func New(logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{logger: logger, partLimit: DefaultMaxPartBytes}
}

// WithPartLimit bounds the inflated size of each part of an imported DOCX.
func (e *Engine) WithPartLimit(n int64) *Engine {
	if n > 0 {
		e.partLimit = n
	}
	return e
}

// CreateSession starts a new session.
func (e *Engine) CreateSession(ctx context.Context) (engine.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := e.nextID.Add(1)
	e.logger.Debug("engine session created", map[string]any{"session": id})
	return &Session{id: id, logger: e.logger, partLimit: e.partLimit}, nil
}

// Session owns the documents and editors it creates. Closing it closes them.
type Session struct {
	id        int64
	logger    logging.Logger
	partLimit int64

	mu     sync.Mutex
	closed bool
	docs   []*Document
}

func (s *Session) track(def *Definition) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	doc := &Document{session: s, def: def}
	s.docs = append(s.docs, doc)
	return doc, nil
}

func (s *Session) forget(doc *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.docs {
		if d == doc {
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			return
		}
	}
}

// Documents returns the number of open documents in the session.
func (s *Session) Documents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// ImportDOCX loads a DOCX package.
func (s *Session) ImportDOCX(ctx context.Context, data []byte) (engine.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def, err := ReadDOCXLimit(data, s.partLimit)
	if err != nil {
		return nil, fmt.Errorf("import docx: %w", err)
	}
	return s.track(def)
}

// LoadDefinition loads a DocJSON definition.
func (s *Session) LoadDefinition(ctx context.Context, definition json.RawMessage) (engine.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def, err := ParseDefinition(definition)
	if err != nil {
		return nil, fmt.Errorf("load definition: %w", err)
	}
	return s.track(def)
}

// CreateEditor binds a text editor for doc to container.
func (s *Session) CreateEditor(ctx context.Context, container engine.Container, doc engine.Document) (engine.Editor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, ok := doc.(*Document)
	if !ok || d.session != s {
		return nil, ErrForeignDocument
	}
	if err := checkContainer(container); err != nil {
		return nil, err
	}
	if d.isClosed() {
		return nil, ErrClosed
	}
	return &Editor{doc: d, container: container}, nil
}

// Close closes the session and every document it created.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	docs := s.docs
	s.docs = nil
	s.mu.Unlock()

	for _, d := range docs {
		d.Close()
	}
	s.logger.Debug("engine session closed", map[string]any{"session": s.id, "documents": len(docs)})
	return nil
}

func checkContainer(c engine.Container) error {
	if c == nil || !c.Connected() {
		return ErrDetached
	}
	if w, h := c.Size(); w <= 0 || h <= 0 {
		return ErrNoSize
	}
	return nil
}

// Document is a loaded definition.
type Document struct {
	session *Session

	mu     sync.RWMutex
	def    *Definition
	closed bool
}

// Definition returns a copy of the document's definition.
func (d *Document) Definition() (*Definition, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}
	return d.def.Clone(), nil
}

func (d *Document) replace(def *Definition) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.def = def
	return nil
}

func (d *Document) isClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

// ExportDOCX writes the document as a DOCX package.
func (d *Document) ExportDOCX(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def, err := d.Definition()
	if err != nil {
		return nil, err
	}
	return WriteDOCX(def)
}

// ExportPDF renders the document as PDF.
func (d *Document) ExportPDF(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def, err := d.Definition()
	if err != nil {
		return nil, err
	}
	return RenderPDF(def)
}

// Close releases the document and drops it from its session. Closing twice
// is harmless.
func (d *Document) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	if d.session != nil {
		d.session.forget(d)
	}
	return nil
}

// Editor shows a document as text and accepts edits to its DocJSON source.
type Editor struct {
	doc       *Document
	container engine.Container

	mu        sync.Mutex
	destroyed bool
}

// Render draws the document to width columns.
func (e *Editor) Render(width int) string {
	def, err := e.doc.Definition()
	if err != nil {
		return err.Error()
	}
	return RenderText(def, width)
}

// Source returns the document's DocJSON.
func (e *Editor) Source() string {
	def, err := e.doc.Definition()
	if err != nil {
		return ""
	}
	src, err := def.Marshal()
	if err != nil {
		return ""
	}
	return string(src)
}

// Apply replaces the document with the parsed source.
func (e *Editor) Apply(ctx context.Context, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	destroyed := e.destroyed
	e.mu.Unlock()
	if destroyed {
		return ErrClosed
	}
	def, err := ParseDefinition([]byte(source))
	if err != nil {
		return err
	}
	return e.doc.replace(def)
}

// Container returns the container the editor is bound to.
func (e *Editor) Container() engine.Container {
	return e.container
}

// Destroy unbinds the editor. The document stays open.
func (e *Editor) Destroy() error {
	e.mu.Lock()
	e.destroyed = true
	e.mu.Unlock()
	return nil
}

// Destroyed reports whether Destroy has been called.
func (e *Editor) Destroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}
