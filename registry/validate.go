package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ErrNoSchema is returned by ValidateData for templates without a schema.
var ErrNoSchema = errors.New("template has no data schema")

type compiledSchema struct {
	once   sync.Once
	schema *gojsonschema.Schema
	err    error
}

func (r *Registry) schema(id string) (*gojsonschema.Schema, error) {
	r.schemaMu.Lock()
	cs, ok := r.schemas[id]
	if !ok {
		cs = &compiledSchema{}
		r.schemas[id] = cs
	}
	r.schemaMu.Unlock()

	cs.once.Do(func() {
		data, err := fs.ReadFile(r.fsys, id+".schema.json")
		if errors.Is(err, fs.ErrNotExist) {
			cs.err = ErrNoSchema
			return
		}
		if err != nil {
			cs.err = err
			return
		}
		cs.schema, cs.err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	})
	return cs.schema, cs.err
}

// ValidateData validates a data payload against the template's schema. It
// returns a slice of validation error descriptions and an error if the
// schema is missing or cannot be compiled.
func (r *Registry) ValidateData(id string, data []byte) ([]string, error) {
	if r.Get(id) == nil {
		return nil, fmt.Errorf("unknown template %q", id)
	}
	schema, err := r.schema(id)
	if err != nil {
		if errors.Is(err, ErrNoSchema) {
			return nil, err
		}
		return nil, fmt.Errorf("compiling %s data schema: %w", id, err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validating %s data: %w", id, err)
	}
	if result.Valid() {
		return nil, nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return errs, nil
}
