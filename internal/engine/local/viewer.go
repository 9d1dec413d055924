package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/jonaddams/document-generator/internal/engine"
)

// ErrNotPDF is returned when viewer input lacks a PDF header.
var ErrNotPDF = errors.New("not a PDF document")

var pageObject = regexp.MustCompile(`/Type\s*/Page\b`)

// Viewer loads PDFs into containers.
type Viewer struct{}

// NewViewer creates a Viewer.
func NewViewer() *Viewer { return &Viewer{} }

// Load binds pdf to container.
func (v *Viewer) Load(ctx context.Context, container engine.Container, pdf []byte) (engine.Viewer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkContainer(container); err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		return nil, ErrNotPDF
	}
	return &LoadedPDF{
		data:  append([]byte(nil), pdf...),
		pages: CountPages(pdf),
	}, nil
}

// CountPages counts page objects in a PDF.
func CountPages(pdf []byte) int {
	return len(pageObject.FindAllIndex(pdf, -1))
}

// LoadedPDF is a PDF bound to a container.
type LoadedPDF struct {
	data  []byte
	pages int

	mu       sync.Mutex
	unloaded bool
}

// Pages returns the page count.
func (l *LoadedPDF) Pages() int { return l.pages }

// ExportPDF returns the loaded bytes.
func (l *LoadedPDF) ExportPDF(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unloaded {
		return nil, ErrClosed
	}
	return append([]byte(nil), l.data...), nil
}

// Render describes the loaded document.
func (l *LoadedPDF) Render(int) string {
	return fmt.Sprintf("PDF document · %d page(s) · %d bytes", l.pages, len(l.data))
}

// Unload releases the viewer.
func (l *LoadedPDF) Unload() error {
	l.mu.Lock()
	l.unloaded = true
	l.mu.Unlock()
	return nil
}
