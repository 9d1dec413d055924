package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jonaddams/document-generator/internal/fault"
	"github.com/jonaddams/document-generator/internal/outline"
	"github.com/jonaddams/document-generator/internal/steps"
	"github.com/jonaddams/document-generator/internal/wizard"
	"github.com/jonaddams/document-generator/util"
)

type stepView struct {
	ID          wizard.StepID `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Complete    bool          `json:"complete"`
	Active      bool          `json:"active"`
}

type sessionView struct {
	ID           string         `json:"id"`
	CurrentStep  int            `json:"currentStep"`
	Steps        []stepView     `json:"steps"`
	Template     string         `json:"template,omitempty"`
	Phase        string         `json:"phase"`
	CanProceed   bool           `json:"canProceed"`
	Loading      bool           `json:"loading"`
	Error        string         `json:"error,omitempty"`
	HasDocument  bool           `json:"hasDocument"`
	PDFBytes     int            `json:"pdfBytes"`
	DataWarnings []string       `json:"dataWarnings,omitempty"`
	Summary      *steps.Summary `json:"summary,omitempty"`
}

type errorView struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func view(sess *Session) sessionView {
	f := sess.Flow
	st := f.Store().Snapshot()
	v := sessionView{
		ID:          sess.ID,
		CurrentStep: st.CurrentStep,
		Template:    string(st.SelectedTemplate),
		Phase:       f.Current().Phase().String(),
		CanProceed:  f.CanProceed(),
		Loading:     st.Loading,
		Error:       st.ErrorMessage,
		HasDocument: st.GeneratedDocx != nil,
		PDFBytes:    len(st.GeneratedPDF),
	}
	for _, s := range st.Steps {
		v.Steps = append(v.Steps, stepView{
			ID:          s.ID,
			Title:       s.Title,
			Description: s.Description,
			Complete:    s.IsComplete,
			Active:      s.IsActive,
		})
	}
	if st.Current().ID == wizard.StepDownload {
		sum := f.Download().Summary()
		v.Summary = &sum
	}
	return v
}

// statusFor maps wizard errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, steps.ErrNotReady), errors.Is(err, steps.ErrWrongStep):
		return http.StatusConflict
	case errors.Is(err, steps.ErrUnknownTemplate), errors.Is(err, steps.ErrNotDOCX):
		return http.StatusBadRequest
	case errors.Is(err, steps.ErrTemplateTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	switch fault.KindOf(err) {
	case fault.InvalidJSON:
		return http.StatusBadRequest
	case fault.ContainerUnavailable, fault.WidgetCreationFailed, fault.EngineNotLoaded:
		return http.StatusServiceUnavailable
	case fault.ArtifactFetchFailed, fault.GenerationFailed:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]any{"error": err})
	}
	writeJSON(w, status, errorView{Error: fault.Message(err), Detail: err.Error()})
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *Session)

// withSession resolves {id} and serialises the request against the
// session.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, errorView{Error: "session not found"})
			return
		}
		sess.op.Lock()
		defer sess.op.Unlock()
		h(w, r, sess)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Len()})
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	sess.op.Lock()
	defer sess.op.Unlock()
	if err := sess.Flow.Enter(r.Context(), sess.Container); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, sess *Session) {
	writeJSON(w, http.StatusOK, view(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "id")) {
		writeJSON(w, http.StatusNotFound, errorView{Error: "session not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSelectTemplate accepts {"template": id} or a multipart upload in
// the "file" field, which selects the custom template.
func (s *Server) handleSelectTemplate(w http.ResponseWriter, r *http.Request, sess *Session) {
	var (
		id     wizard.TemplateID
		binary []byte
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxTemplateBytes+1<<20)
		file, _, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.writeError(w, fmt.Errorf("%w: file size must be less than %s", steps.ErrTemplateTooLarge, util.HumanBytes(s.cfg.MaxTemplateBytes)))
				return
			}
			writeJSON(w, http.StatusBadRequest, errorView{Error: "missing file field", Detail: err.Error()})
			return
		}
		defer file.Close()
		binary, err = sess.Flow.Template().ReadUpload(file)
		if err != nil {
			s.writeError(w, err)
			return
		}
		id = wizard.TemplateCustom
	} else {
		var req struct {
			Template string `json:"template"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorView{Error: "invalid request body", Detail: err.Error()})
			return
		}
		id = wizard.TemplateID(req.Template)
	}

	if err := sess.Flow.Select(id, binary); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view(sess))
}

func (s *Server) handlePutData(w http.ResponseWriter, r *http.Request, sess *Session) {
	data, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxDataBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorView{Error: "reading body", Detail: err.Error()})
		return
	}
	if int64(len(data)) > s.cfg.MaxDataBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorView{
			Error: fmt.Sprintf("data must be less than %s", util.HumanBytes(s.cfg.MaxDataBytes)),
		})
		return
	}
	if err := sess.Flow.EditData(string(data)); err != nil {
		s.writeError(w, err)
		return
	}
	v := view(sess)
	if warnings, err := sess.Flow.Data().Validate(); err == nil {
		v.DataWarnings = warnings
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request, sess *Session) {
	text := sess.Flow.Data().Text()
	if text == "" {
		text = string(sess.Flow.Store().Snapshot().DataJSON)
	}
	out := outline.NoModelMessage
	if text != "" {
		v, err := outline.Decode([]byte(text))
		if err != nil {
			s.writeError(w, fault.New(fault.InvalidJSON, "api.outline", err))
			return
		}
		out = outline.Readable(v)
	}
	writeJSON(w, http.StatusOK, map[string]string{"outline": out})
}

// handleNext makes sure the current step has run, advances it and runs
// the step it lands on.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request, sess *Session) {
	ctx := r.Context()
	if err := sess.Flow.Enter(ctx, sess.Container); err != nil {
		s.writeError(w, err)
		return
	}
	if err := sess.Flow.Next(ctx); err != nil {
		if cause := sess.Flow.Current().Err(); cause != nil && errors.Is(err, steps.ErrNotReady) {
			err = cause
		}
		s.writeError(w, err)
		return
	}
	s.enter(w, r, sess)
}

func (s *Server) handlePrev(w http.ResponseWriter, r *http.Request, sess *Session) {
	if !sess.Flow.Prev() {
		writeJSON(w, http.StatusConflict, errorView{Error: "already on the first step"})
		return
	}
	s.enter(w, r, sess)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, sess *Session) {
	sess.Flow.Reset()
	s.enter(w, r, sess)
}

func (s *Server) handleGoTo(w http.ResponseWriter, r *http.Request, sess *Session) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorView{Error: "step index must be a number"})
		return
	}
	if !sess.Flow.GoTo(i) {
		writeJSON(w, http.StatusConflict, errorView{Error: fmt.Sprintf("step %d is not reachable", i)})
		return
	}
	s.enter(w, r, sess)
}

func (s *Server) enter(w http.ResponseWriter, r *http.Request, sess *Session) {
	if err := sess.Flow.Enter(r.Context(), sess.Container); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view(sess))
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request, sess *Session) {
	pdf := sess.Flow.Download().PDF()
	if len(pdf) == 0 {
		writeJSON(w, http.StatusConflict, errorView{Error: "the document has not been finished yet"})
		return
	}
	s.attachment(w, sess.Flow.Download().FileName()+".pdf", "application/pdf", pdf)
}

func (s *Server) handleDOCX(w http.ResponseWriter, r *http.Request, sess *Session) {
	data, err := sess.Flow.Download().DOCX(r.Context())
	if err != nil {
		if sess.Flow.Store().Snapshot().GeneratedDocx == nil {
			writeJSON(w, http.StatusConflict, errorView{Error: "the document has not been generated yet"})
			return
		}
		s.writeError(w, err)
		return
	}
	s.attachment(w, sess.Flow.Download().FileName()+".docx",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document", data)
}

func (s *Server) attachment(w http.ResponseWriter, name, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}
