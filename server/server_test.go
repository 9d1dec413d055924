package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/jonaddams/document-generator/internal/engine/local"
	"github.com/jonaddams/document-generator/internal/lifecycle"
	"github.com/jonaddams/document-generator/internal/steps"
	"github.com/jonaddams/document-generator/registry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := registry.MustNew()
	factory := func() *steps.Flow {
		return steps.NewFlow(&steps.Env{
			Engine:    local.New(nil),
			Populator: local.NewPopulator(),
			Viewer:    local.NewViewer(),
			Registry:  reg,
			Validator: reg,
			Scheduler: lifecycle.NewManualScheduler(),
		})
	}
	s := New(Config{MaxDataBytes: 4096}, reg, NewSessions(factory, time.Hour, nil), nil)
	t.Cleanup(s.Sessions().CloseAll)
	return s
}

func do(t *testing.T, h http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, status, rec.Body.String())
	}
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/sessions", nil, "")
	expect(t, rec, http.StatusCreated)
	v := decode[sessionView](t, rec)
	if v.ID == "" || v.CurrentStep != 0 || len(v.Steps) != 5 {
		t.Fatalf("unexpected new session: %+v", v)
	}
	return v.ID
}

func TestHealthzAndTemplates(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := do(t, h, http.MethodGet, "/healthz", nil, "")
	expect(t, rec, http.StatusOK)

	rec = do(t, h, http.MethodGet, "/api/templates", nil, "")
	expect(t, rec, http.StatusOK)
	list := decode[[]registry.Template](t, rec)
	if len(list) != 3 || list[0].ID != "invoice" {
		t.Errorf("templates = %+v", list)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS header = %q", got)
	}
}

func TestWizardOverHTTP(t *testing.T) {
	h := newTestServer(t).Handler()
	id := createSession(t, h)
	base := "/api/sessions/" + id

	rec := do(t, h, http.MethodPost, base+"/next", nil, "")
	expect(t, rec, http.StatusConflict)

	rec = do(t, h, http.MethodPost, base+"/template", strings.NewReader(`{"template":"invoice"}`), "application/json")
	expect(t, rec, http.StatusOK)
	if v := decode[sessionView](t, rec); v.Template != "invoice" || !v.CanProceed {
		t.Fatalf("after select: %+v", v)
	}

	for want := 1; want <= 2; want++ {
		rec = do(t, h, http.MethodPost, base+"/next", nil, "")
		expect(t, rec, http.StatusOK)
		if v := decode[sessionView](t, rec); v.CurrentStep != want || v.Phase != "ready" {
			t.Fatalf("after next: step %d phase %s, want step %d ready", v.CurrentStep, v.Phase, want)
		}
	}

	rec = do(t, h, http.MethodGet, base+"/outline", nil, "")
	expect(t, rec, http.StatusOK)
	if out := decode[map[string]string](t, rec)["outline"]; !strings.Contains(out, "Invoice Number: INV-001") {
		t.Errorf("outline = %q", out)
	}

	rec = do(t, h, http.MethodPut, base+"/data", strings.NewReader(`{"model": `), "application/json")
	expect(t, rec, http.StatusBadRequest)

	data := `{"model": {"companyName": "Globex", "invoiceNumber": "INV-9", "date": "2024-05-01", "customerName": "Hank", "amount": "$5"}}`
	rec = do(t, h, http.MethodPut, base+"/data", strings.NewReader(data), "application/json")
	expect(t, rec, http.StatusOK)
	if v := decode[sessionView](t, rec); len(v.DataWarnings) != 0 {
		t.Errorf("valid data produced warnings: %v", v.DataWarnings)
	}

	rec = do(t, h, http.MethodGet, base+"/document.pdf", nil, "")
	expect(t, rec, http.StatusConflict)

	for want := 3; want <= 4; want++ {
		rec = do(t, h, http.MethodPost, base+"/next", nil, "")
		expect(t, rec, http.StatusOK)
	}
	v := decode[sessionView](t, rec)
	if v.CurrentStep != 4 || v.Summary == nil || v.Summary.ModelFields != 5 {
		t.Fatalf("at download: %+v", v)
	}

	rec = do(t, h, http.MethodGet, base+"/document.pdf", nil, "")
	expect(t, rec, http.StatusOK)
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Error("document.pdf is not a PDF")
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "invoice-document.pdf") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rec = do(t, h, http.MethodGet, base+"/document.docx", nil, "")
	expect(t, rec, http.StatusOK)
	def, err := local.ReadDOCX(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("document.docx: %v", err)
	}
	if got := local.PlainText(def); !strings.Contains(got, "Hank") {
		t.Errorf("docx text lacks edited data:\n%s", got)
	}

	rec = do(t, h, http.MethodPost, base+"/steps/1", nil, "")
	expect(t, rec, http.StatusOK)
	rec = do(t, h, http.MethodPost, base+"/reset", nil, "")
	expect(t, rec, http.StatusOK)
	if v := decode[sessionView](t, rec); v.CurrentStep != 0 || v.Template != "" || v.HasDocument {
		t.Errorf("after reset: %+v", v)
	}
}

func TestCustomTemplateUpload(t *testing.T) {
	h := newTestServer(t).Handler()
	id := createSession(t, h)

	docx, err := local.WriteDOCX(&local.Definition{
		Title: "Note for {{customerName}}",
		Pages: []local.Page{{Elements: []local.Element{{Type: local.TypeParagraph, Text: "{{amount}}"}}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "note.docx")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(docx)
	mw.Close()

	rec := do(t, h, http.MethodPost, "/api/sessions/"+id+"/template", &body, mw.FormDataContentType())
	expect(t, rec, http.StatusOK)
	if v := decode[sessionView](t, rec); v.Template != "custom" {
		t.Errorf("template = %q, want custom", v.Template)
	}

	body.Reset()
	mw = multipart.NewWriter(&body)
	fw, _ = mw.CreateFormFile("file", "note.txt")
	fw.Write([]byte("plain text"))
	mw.Close()
	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/template", &body, mw.FormDataContentType())
	expect(t, rec, http.StatusBadRequest)
}

func TestSessionErrors(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/sessions/nope", nil, "")
	expect(t, rec, http.StatusNotFound)

	id := createSession(t, h)
	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/template", strings.NewReader(`{"template":"letter"}`), "application/json")
	expect(t, rec, http.StatusBadRequest)
	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/steps/3", nil, "")
	expect(t, rec, http.StatusConflict)
	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/steps/x", nil, "")
	expect(t, rec, http.StatusBadRequest)
	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/prev", nil, "")
	expect(t, rec, http.StatusConflict)
	rec = do(t, h, http.MethodPut, "/api/sessions/"+id+"/data", strings.NewReader(strings.Repeat(" ", 5000)), "application/json")
	expect(t, rec, http.StatusRequestEntityTooLarge)

	rec = do(t, h, http.MethodDelete, "/api/sessions/"+id, nil, "")
	expect(t, rec, http.StatusNoContent)
	rec = do(t, h, http.MethodGet, "/api/sessions/"+id, nil, "")
	expect(t, rec, http.StatusNotFound)
	if s.Sessions().Len() != 0 {
		t.Errorf("Len() = %d after delete", s.Sessions().Len())
	}
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	sessions := NewSessions(func() *steps.Flow { return steps.NewFlow(&steps.Env{}) }, 10*time.Minute, nil)
	sessions.now = func() time.Time { return now }

	idle := sessions.Create()
	busy := sessions.Create()

	now = now.Add(8 * time.Minute)
	if _, ok := sessions.Get(busy.ID); !ok {
		t.Fatal("Get(busy) failed")
	}
	now = now.Add(5 * time.Minute)

	if n := sessions.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}
	if _, ok := sessions.Get(idle.ID); ok {
		t.Error("idle session survived the sweep")
	}
	if _, ok := sessions.Get(busy.ID); !ok {
		t.Error("recently used session was evicted")
	}
	if idle.Container.Connected() {
		t.Error("evicted session's container still connected")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	s := newTestServer(t)
	s.cfg.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
