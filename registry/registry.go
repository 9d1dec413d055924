// Package registry provides the embedded template registry. Templates are
// embedded at compile time with their sample data and data schemas.
package registry

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jonaddams/document-generator/internal/fault"
)

//go:embed templates
var templateFS embed.FS

// Template describes a predefined template.
type Template struct {
	ID               string `yaml:"id" json:"id"`
	DisplayName      string `yaml:"display_name" json:"displayName"`
	Description      string `yaml:"description" json:"description"`
	PreviewImagePath string `yaml:"preview_image" json:"previewImagePath"`
	Category         string `yaml:"category" json:"category"`
}

type index struct {
	Templates []Template `yaml:"templates"`
}

// Source is the registry as seen by the wizard steps.
type Source interface {
	List() []Template
	Definition(id string) (json.RawMessage, error)
	SampleData(id string) (json.RawMessage, error)
}

// Registry serves templates from an fs.FS laid out like the embedded
// templates directory.
type Registry struct {
	fsys      fs.FS
	templates []Template

	schemaMu sync.Mutex
	schemas  map[string]*compiledSchema
}

// New loads the embedded registry.
func New() (*Registry, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	return NewFromFS(sub)
}

// NewFromFS loads a registry whose index.yaml sits at the root of fsys.
func NewFromFS(fsys fs.FS) (*Registry, error) {
	data, err := fs.ReadFile(fsys, "index.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading template index: %w", err)
	}
	var idx index
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing template index: %w", err)
	}
	seen := make(map[string]bool, len(idx.Templates))
	for i, t := range idx.Templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template index entry %d: id is required", i)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("template index: duplicate id %q", t.ID)
		}
		seen[t.ID] = true
	}
	return &Registry{
		fsys:      fsys,
		templates: idx.Templates,
		schemas:   make(map[string]*compiledSchema),
	}, nil
}

// MustNew is New for callers that cannot recover from a broken binary.
func MustNew() *Registry {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

// List returns every registered template in index order.
func (r *Registry) List() []Template {
	return append([]Template(nil), r.templates...)
}

// Get returns the template with the given id, or nil if not found.
func (r *Registry) Get(id string) *Template {
	for i := range r.templates {
		if r.templates[i].ID == id {
			t := r.templates[i]
			return &t
		}
	}
	return nil
}

// Definition returns the DocJSON definition of a template.
func (r *Registry) Definition(id string) (json.RawMessage, error) {
	return r.read(id, id+".json", "registry.definition")
}

// SampleData returns the sample {config, model} payload of a template.
func (r *Registry) SampleData(id string) (json.RawMessage, error) {
	return r.read(id, id+".data.json", "registry.sample_data")
}

func (r *Registry) read(id, name, op string) (json.RawMessage, error) {
	if r.Get(id) == nil {
		return nil, fault.Errorf(fault.ArtifactFetchFailed, op, "unknown template %q", id)
	}
	data, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		return nil, fault.New(fault.ArtifactFetchFailed, op, err)
	}
	if !json.Valid(data) {
		return nil, fault.Errorf(fault.ArtifactFetchFailed, op, "%s is not valid JSON", name)
	}
	return data, nil
}

// DefaultData is the payload used when a template's sample data cannot be
// fetched.
func DefaultData() json.RawMessage {
	return json.RawMessage(`{
  "config": {
    "delimiter": ["{{", "}}"]
  },
  "model": {
    "companyName": "Acme Corporation",
    "invoiceNumber": "INV-001",
    "date": "2024-01-15",
    "customerName": "John Doe",
    "amount": "$1,250.00"
  }
}`)
}
