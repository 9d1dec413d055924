package pipeline

import (
	"encoding/json"

	"github.com/jonaddams/document-generator/internal/engine"
)

// GenerationContext carries inputs and intermediate artifacts through the
// pipeline.
type GenerationContext struct {
	Session   engine.Session
	Populator engine.Populator
	Template  engine.Document
	Data      json.RawMessage

	TemplateDOCX  []byte          // set by ExportTemplateStage
	PopulatedDOCX []byte          // set by PopulateStage
	Document      engine.Document // set by ImportStage; owned by the caller
	PDF           []byte          // set by ExportPDFStage
}

// NewGenerationContext creates a GenerationContext for one run.
func NewGenerationContext(sess engine.Session, pop engine.Populator, tmpl engine.Document, data json.RawMessage) *GenerationContext {
	return &GenerationContext{
		Session:   sess,
		Populator: pop,
		Template:  tmpl,
		Data:      data,
	}
}
