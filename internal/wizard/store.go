package wizard

import (
	"encoding/json"
	"sync"

	"github.com/jonaddams/document-generator/internal/engine"
	"github.com/jonaddams/document-generator/internal/fault"
	"github.com/jonaddams/document-generator/internal/logging"
)

// Store is the single source of truth for one wizard session. It is safe
// for concurrent use. Invalid transitions are ignored and reported through
// the boolean results, never as errors.
type Store struct {
	mu     sync.Mutex
	state  State
	logger logging.Logger
}

// NewStore creates a Store in the initial state.
func NewStore(logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Store{state: initialState(), logger: logger}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.state
	out.Steps = append([]StepDescriptor(nil), s.state.Steps...)
	return out
}

// CanAdvance reports whether NextStep would currently succeed.
func (s *Store) CanAdvance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canMove(1)
}

// CompletedCount returns the number of completed steps.
func (s *Store) CompletedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CompletedCount()
}

// GoToStep jumps to step i if it is the current step, already complete, or
// every step before it is complete.
func (s *Store) GoToStep(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Reachable(i) {
		return false
	}
	s.setCurrent(i)
	return true
}

// NextStep moves forward one step when the active step's requirements are
// met. It does nothing on the last step.
func (s *Store) NextStep() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canMove(1) {
		return false
	}
	s.setCurrent(s.state.CurrentStep + 1)
	return true
}

// PrevStep moves back one step. It does nothing on the first step.
func (s *Store) PrevStep() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CurrentStep == 0 {
		return false
	}
	s.setCurrent(s.state.CurrentStep - 1)
	return true
}

// CompleteCurrentStep marks the active step complete. It is idempotent.
func (s *Store) CompleteCurrentStep() {
	s.mu.Lock()
	s.state.Steps[s.state.CurrentStep].IsComplete = true
	s.mu.Unlock()
}

// CompleteAndNext marks the active step complete and moves forward in one
// step. When NextStep would be refused nothing changes, so a step never
// ends up complete while its requirements are unmet.
func (s *Store) CompleteAndNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canMove(1) {
		return false
	}
	s.state.Steps[s.state.CurrentStep].IsComplete = true
	s.setCurrent(s.state.CurrentStep + 1)
	return true
}

// SetTemplate selects a template. custom requires binary; any other id
// drops a previously uploaded binary. Every artifact derived from the old
// template is destroyed, even when id is unchanged.
func (s *Store) SetTemplate(id TemplateID, binary []byte) bool {
	if !id.Valid() || (id == TemplateCustom && len(binary) == 0) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.SelectedTemplate = id
	if id == TemplateCustom {
		s.state.CustomTemplateBinary = binary
	} else {
		s.state.CustomTemplateBinary = nil
	}
	s.invalidateTemplate()
	s.state.TemplateRevision++
	s.logger.Debug("template selected", map[string]any{
		"template": string(id),
		"revision": s.state.TemplateRevision,
	})
	return true
}

// SetDataJSON replaces the data payload. Generated artifacts are kept; the
// preview step regenerates when it sees the new DataRevision.
func (s *Store) SetDataJSON(v json.RawMessage) {
	s.mu.Lock()
	s.state.DataJSON = v
	s.state.DataRevision++
	s.mu.Unlock()
}

// SetSession records the shared engine session, closing any previous one.
func (s *Store) SetSession(sess engine.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Session != nil && s.state.Session != sess {
		s.release("session", s.state.Session.Close)
	}
	s.state.Session = sess
}

// SetTemplateArtifacts publishes the loaded template document and its
// editor together.
func (s *Store) SetTemplateArtifacts(doc engine.Document, ed engine.Editor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceEditor(&s.state.TemplateEditor, ed, "template editor")
	s.replaceDocument(&s.state.TemplateDocument, doc, "template document")
}

// SetTemplateEditor replaces only the template editor.
func (s *Store) SetTemplateEditor(ed engine.Editor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceEditor(&s.state.TemplateEditor, ed, "template editor")
}

// SetDataEditor replaces the data editor.
func (s *Store) SetDataEditor(ed engine.Editor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceEditor(&s.state.DataEditor, ed, "data editor")
}

// SetGeneratedDocx publishes the generated document. Passing nil clears it
// along with its editor and the exported PDF.
func (s *Store) SetGeneratedDocx(doc engine.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc == nil {
		s.replaceEditor(&s.state.GeneratedDocxEditor, nil, "generated docx editor")
		s.state.GeneratedPDF = nil
	}
	s.replaceDocument(&s.state.GeneratedDocx, doc, "generated docx")
}

// SetGeneratedDocxEditor replaces the editor bound to the generated document.
func (s *Store) SetGeneratedDocxEditor(ed engine.Editor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceEditor(&s.state.GeneratedDocxEditor, ed, "generated docx editor")
}

// SetGeneratedPDF stores the exported PDF bytes.
func (s *Store) SetGeneratedPDF(pdf []byte) {
	s.mu.Lock()
	s.state.GeneratedPDF = pdf
	s.mu.Unlock()
}

// SetLoading toggles the loading indicator.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	s.state.Loading = loading
	s.mu.Unlock()
}

// SetError records the user-facing message for err. A nil err clears it.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	s.state.ErrorMessage = fault.Message(err)
	s.mu.Unlock()
}

// ClearError removes the current error message.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.state.ErrorMessage = ""
	s.mu.Unlock()
}

// ResetWizard destroys every held handle and returns to the initial state.
// Revision counters keep increasing so steps notice the reset.
func (s *Store) ResetWizard() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invalidateTemplate()
	s.replaceEditor(&s.state.DataEditor, nil, "data editor")
	if s.state.Session != nil {
		s.release("session", s.state.Session.Close)
	}

	tmplRev, dataRev := s.state.TemplateRevision+1, s.state.DataRevision+1
	s.state = initialState()
	s.state.TemplateRevision, s.state.DataRevision = tmplRev, dataRev
	s.logger.Info("wizard reset", nil)
}

func (s *Store) canMove(delta int) bool {
	next := s.state.CurrentStep + delta
	if next < 0 || next >= len(s.state.Steps) {
		return false
	}
	return s.state.CanAdvance()
}

func (s *Store) setCurrent(i int) {
	s.state.CurrentStep = i
	for j := range s.state.Steps {
		s.state.Steps[j].IsActive = j == i
	}
}

// invalidateTemplate destroys everything derived from the selected template.
// Editors go before the documents they display.
func (s *Store) invalidateTemplate() {
	s.replaceEditor(&s.state.GeneratedDocxEditor, nil, "generated docx editor")
	s.replaceEditor(&s.state.TemplateEditor, nil, "template editor")
	s.replaceDocument(&s.state.GeneratedDocx, nil, "generated docx")
	s.replaceDocument(&s.state.TemplateDocument, nil, "template document")
	s.state.GeneratedPDF = nil
}

func (s *Store) replaceEditor(slot *engine.Editor, next engine.Editor, name string) {
	if *slot != nil && *slot != next {
		s.release(name, (*slot).Destroy)
	}
	*slot = next
}

func (s *Store) replaceDocument(slot *engine.Document, next engine.Document, name string) {
	if *slot != nil && *slot != next {
		s.release(name, (*slot).Close)
	}
	*slot = next
}

func (s *Store) release(name string, fn func() error) {
	if err := fn(); err != nil {
		s.logger.Warn("release failed", map[string]any{"handle": name, "error": err})
	}
}
