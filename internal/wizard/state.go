// Package wizard holds the wizard's progress and the artifacts that flow
// between its steps. All mutation goes through a Store.
package wizard

import (
	"encoding/json"

	"github.com/jonaddams/document-generator/internal/engine"
)

// TemplateID names a predefined template or the custom upload slot.
type TemplateID string

const (
	TemplateNone      TemplateID = ""
	TemplateInvoice   TemplateID = "invoice"
	TemplateChecklist TemplateID = "checklist"
	TemplateMenu      TemplateID = "menu"
	TemplateCustom    TemplateID = "custom"
)

// Valid reports whether id is one of the known template ids.
func (id TemplateID) Valid() bool {
	switch id {
	case TemplateInvoice, TemplateChecklist, TemplateMenu, TemplateCustom:
		return true
	}
	return false
}

// StepID identifies one of the five wizard stages.
type StepID string

const (
	StepTemplate  StepID = "template"
	StepCustomize StepID = "customize"
	StepData      StepID = "data"
	StepPreview   StepID = "preview"
	StepDownload  StepID = "download"
)

// StepDescriptor is the display and progress record of one stage.
type StepDescriptor struct {
	ID          StepID
	Title       string
	Description string
	IsComplete  bool
	IsActive    bool
}

// InitialSteps returns the five stages in order, with the first active.
func InitialSteps() []StepDescriptor {
	return []StepDescriptor{
		{ID: StepTemplate, Title: "Choose Template", Description: "Select a document template to get started", IsActive: true},
		{ID: StepCustomize, Title: "Customize Template", Description: "Edit your template design and layout"},
		{ID: StepData, Title: "Add Data", Description: "Provide the data to populate your document"},
		{ID: StepPreview, Title: "Preview & Edit", Description: "Review and make final adjustments"},
		{ID: StepDownload, Title: "Download", Description: "Get your finished document"},
	}
}

// State is a point-in-time copy of the wizard. Byte slices are shared with
// the Store and must be treated as read-only.
type State struct {
	CurrentStep int
	Steps       []StepDescriptor

	SelectedTemplate     TemplateID
	CustomTemplateBinary []byte

	Session          engine.Session
	TemplateDocument engine.Document
	TemplateEditor   engine.Editor

	DataJSON   json.RawMessage
	DataEditor engine.Editor

	GeneratedDocx       engine.Document
	GeneratedDocxEditor engine.Editor
	GeneratedPDF        []byte

	Loading      bool
	ErrorMessage string

	// TemplateRevision and DataRevision increase on every SetTemplate and
	// SetDataJSON, so steps can tell whether their inputs changed.
	TemplateRevision uint64
	DataRevision     uint64
}

// Current returns the descriptor of the active step.
func (s State) Current() StepDescriptor {
	return s.Steps[s.CurrentStep]
}

// CompletedCount returns how many steps are complete.
func (s State) CompletedCount() int {
	n := 0
	for _, st := range s.Steps {
		if st.IsComplete {
			n++
		}
	}
	return n
}

// CanAdvance reports whether the active step's exit requirements are met.
func (s State) CanAdvance() bool {
	switch s.Steps[s.CurrentStep].ID {
	case StepTemplate:
		return s.SelectedTemplate != TemplateNone
	case StepCustomize:
		return s.TemplateDocument != nil && s.TemplateEditor != nil
	case StepData:
		return len(s.DataJSON) > 0 && json.Valid(s.DataJSON)
	case StepPreview:
		return s.GeneratedDocx != nil && len(s.GeneratedPDF) > 0
	}
	return false
}

// Reachable reports whether GoToStep(i) would be accepted.
func (s State) Reachable(i int) bool {
	if i < 0 || i >= len(s.Steps) {
		return false
	}
	if i == s.CurrentStep || s.Steps[i].IsComplete {
		return true
	}
	for j := 0; j < i; j++ {
		if !s.Steps[j].IsComplete {
			return false
		}
	}
	return true
}

func initialState() State {
	return State{Steps: InitialSteps()}
}
