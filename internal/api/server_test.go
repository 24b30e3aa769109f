package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/fieldmark/internal/boxes"
	"github.com/dgallion1/fieldmark/internal/config"
	"github.com/dgallion1/fieldmark/internal/extract"
	"github.com/dgallion1/fieldmark/internal/fields"
	"github.com/dgallion1/fieldmark/internal/pipeline"
	"github.com/dgallion1/fieldmark/internal/render"
	"github.com/dgallion1/fieldmark/internal/selection"
	"github.com/dgallion1/fieldmark/internal/session"
	"github.com/dgallion1/fieldmark/internal/snapshot"
	"github.com/dgallion1/fieldmark/internal/storage"
)

type stubProvider struct {
	ready   error
	result  boxes.Result
	mapping fields.MappingResult
}

func (p *stubProvider) Name() string { return "stub" }
func (p *stubProvider) Ready() error { return p.ready }
func (p *stubProvider) Close()       {}

func (p *stubProvider) ExtractBoxes(context.Context, extract.Document) (boxes.Result, error) {
	return p.result, nil
}

func (p *stubProvider) MapFields(context.Context, []string, []fields.BoxRef) (fields.MappingResult, error) {
	return p.mapping, nil
}

func formProvider() *stubProvider {
	return &stubProvider{
		result: boxes.Result{Pages: []boxes.Page{{Boxes: []boxes.Box{
			{Page: 1, X: 100, Y: 100, Width: 300, Height: 30, Text: "Name:"},
			{Page: 1, X: 100, Y: 200, Width: 300, Height: 30, Text: "Date"},
		}}}},
		mapping: fields.MappingResult{
			Mappings: []fields.Mapping{
				{FieldID: "Name", BoxID: "box-1-0"},
				{FieldID: "Date", BoxID: "box-1-1"},
			},
			UnmappedBoxes: []string{},
		},
	}
}

type testEnv struct {
	srv      *Server
	sessions *session.Manager
	store    *storage.Store
}

func newTestEnv(t *testing.T, provider extract.Provider, apiKey string) *testEnv {
	t.Helper()
	log := slog.New(slog.DiscardHandler)

	cfg := config.Default()
	cfg.APIKey = apiKey
	cfg.WorkerCount = 1
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = time.Millisecond
	cfg.MaxUploadBytes = 1 << 20

	store, err := storage.Open(t.TempDir(), log)
	require.NoError(t, err)

	sessions := session.NewManager(time.Hour, log)
	orch := pipeline.NewOrchestrator(cfg, provider, store, log)
	orch.Start(context.Background())
	t.Cleanup(func() {
		orch.Stop()
		_ = store.Close()
	})

	return &testEnv{
		srv:      NewServer(sessions, orch, store, extract.NewLLMStats(time.Hour), log, cfg),
		sessions: sessions,
		store:    store,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func testPDF(t *testing.T) []byte {
	t.Helper()
	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: 612, Ht: 792})
	pdf.Text(72, 72, "Name:")
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func (e *testEnv) upload(t *testing.T, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createSession(t *testing.T) session.View {
	t.Helper()
	rec := e.upload(t, "form.pdf", testPDF(t))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[session.View](t, rec)
}

func (e *testEnv) runJob(t *testing.T, id, kind string) pipeline.JobSnapshot {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/sessions/"+id+"/"+kind, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	queued := decode[map[string]any](t, rec)
	pollURL, _ := queued["poll_url"].(string)
	require.NotEmpty(t, pollURL)

	var snap pipeline.JobSnapshot
	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, pollURL, nil)
		rec := httptest.NewRecorder()
		e.srv.ServeHTTP(rec, req)
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			return false
		}
		return snap.Done()
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, formProvider(), "")
	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t, formProvider(), "")

	view := env.createSession(t)
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "form.pdf", view.FileName)
	require.Len(t, view.Pages, 1)
	assert.InDelta(t, 612, view.Pages[0].Width, 0.5)

	got := env.do(t, http.MethodGet, "/api/sessions/"+view.ID, nil)
	assert.Equal(t, http.StatusOK, got.Code)
}

func TestCreateSession_RejectsNonPDF(t *testing.T) {
	env := newTestEnv(t, formProvider(), "")
	rec := env.upload(t, "notes.txt", []byte("plain text"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "not a PDF")
	assert.Equal(t, 0, env.sessions.Len())
}

func TestUnknownSession(t *testing.T) {
	env := newTestEnv(t, formProvider(), "")
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/sessions/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/sessions/nope/extract", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/jobs/nope", nil).Code)
}

func TestExtractMapRenderExport(t *testing.T) {
	env := newTestEnv(t, formProvider(), "")
	id := env.createSession(t).ID

	snap := env.runJob(t, id, "extract")
	require.Equal(t, pipeline.StatusCompleted, snap.Status, snap.Result.Errors)
	assert.Equal(t, 2, snap.Result.Boxes)

	view := decode[session.View](t, env.do(t, http.MethodGet, "/api/sessions/"+id, nil))
	require.Len(t, view.Boxes, 2)
	assert.Equal(t, "box-1-0", view.Boxes[0].ID)
	require.Len(t, view.Fields, 2)
	assert.Equal(t, "Name", view.Fields[0].Name)
	assert.False(t, view.ShowVariables)

	snap = env.runJob(t, id, "map")
	require.Equal(t, pipeline.StatusCompleted, snap.Status, snap.Result.Errors)

	view = decode[session.View](t, env.do(t, http.MethodGet, "/api/sessions/"+id, nil))
	assert.True(t, view.ShowVariables)
	assert.Empty(t, view.Unmapped)

	fieldID := view.Fields[0].ID
	rec := env.do(t, http.MethodPatch, "/api/sessions/"+id+"/fields/"+fieldID, map[string]string{"value": "Jane Doe"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode[struct {
		Instructions []render.Instruction `json:"instructions"`
	}](t, env.do(t, http.MethodGet, "/api/sessions/"+id+"/render", nil))
	require.Len(t, out.Instructions, 2)
	assert.Equal(t, render.KindField, out.Instructions[0].Kind)
	assert.Equal(t, "Jane Doe", out.Instructions[0].Label)
	assert.Equal(t, "[Date]", out.Instructions[1].Label)

	pdf := env.do(t, http.MethodGet, "/api/sessions/"+id+"/export.pdf", nil)
	require.Equal(t, http.StatusOK, pdf.Code)
	assert.Equal(t, "application/pdf", pdf.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(pdf.Body.Bytes(), []byte("%PDF-")))

	// Completed jobs autosave.
	list := decode[map[string][]snapshot.Summary](t, env.do(t, http.MethodGet, "/api/snapshots", nil))
	require.Len(t, list["snapshots"], 1)
	assert.Equal(t, id, list["snapshots"][0].ID)
}

func TestEnqueueErrors(t *testing.T) {
	t.Run("map without boxes", func(t *testing.T) {
		env := newTestEnv(t, formProvider(), "")
		id := env.createSession(t).ID
		rec := env.do(t, http.MethodPost, "/api/sessions/"+id+"/map", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing credential", func(t *testing.T) {
		p := formProvider()
		p.ready = extract.ErrMissingCredential
		env := newTestEnv(t, p, "")
		id := env.createSession(t).ID
		rec := env.do(t, http.MethodPost, "/api/sessions/"+id+"/extract", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		view := decode[session.View](t, env.do(t, http.MethodGet, "/api/sessions/"+id, nil))
		assert.False(t, view.Processing)
	})
}

func TestInteraction(t *testing.T) {
	env := newTestEnv(t, formProvider(), "")
	id := env.createSession(t).ID
	env.runJob(t, id, "extract")
	base := "/api/sessions/" + id

	rec := env.do(t, http.MethodPut, base+"/viewport", selection.Viewport{Page: 1, Width: 612, Height: 792, Scale: 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPut, base+"/viewport", selection.Viewport{Page: 1, Width: 0, Height: 792, Scale: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// box-1-0 spans x 61.2..244.8, y 79.2..103 at 612x792.
	rec = env.do(t, http.MethodPost, base+"/pointer", session.PointerEvent{Type: session.PointerDown, X: 100, Y: 90})
	require.Equal(t, http.StatusOK, rec.Code)
	in := decode[session.Interaction](t, rec)
	assert.Equal(t, selection.StateBoxSelected, in.State)
	assert.Equal(t, "box-1-0", in.SelectedID)

	rec = env.do(t, http.MethodPost, base+"/pointer", map[string]any{"type": "wiggle"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/select", map[string]string{"boxId": "box-9-9"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/select", map[string]string{"boxId": ""})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, selection.StateIdle, decode[session.Interaction](t, rec).State)

	rec = env.do(t, http.MethodPatch, base+"/boxes/box-1-1", []byte(`{"x":"abc","y":250,"width":"320"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := decode[boxes.Box](t, rec)
	assert.Equal(t, 100.0, b.X)
	assert.Equal(t, 250.0, b.Y)
	assert.Equal(t, 320.0, b.Width)

	rec = env.do(t, http.MethodPatch, base+"/boxes/box-9-9", []byte(`{"x":1}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, base+"/show-variables", map[string]bool{"showVariables": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, base+"/show-variables", []byte(`{}`)).Code)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, base+"/error", nil).Code)
}

func TestFieldsCRUD(t *testing.T) {
	env := newTestEnv(t, formProvider(), "")
	id := env.createSession(t).ID
	base := "/api/sessions/" + id

	rec := env.do(t, http.MethodPost, base+"/fields", map[string]string{"name": "Signature"})
	require.Equal(t, http.StatusCreated, rec.Code)
	f := decode[fields.VariableField](t, rec)
	assert.Equal(t, "Signature", f.Name)

	rec = env.do(t, http.MethodPatch, base+"/fields/"+f.ID, map[string]string{"name": "Signed by"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Signed by", decode[fields.VariableField](t, rec).Name)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPatch, base+"/fields/missing", map[string]string{"name": "x"}).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, base+"/fields/"+f.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, base+"/fields/"+f.ID, nil).Code)

	env.do(t, http.MethodPost, base+"/fields", map[string]string{"name": "A"})
	env.do(t, http.MethodPost, base+"/fields", map[string]string{"name": "B"})
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, base+"/fields", nil).Code)
	view := decode[session.View](t, env.do(t, http.MethodGet, base, nil))
	assert.Empty(t, view.Fields)
}

func TestSnapshotRestoreAfterExpiry(t *testing.T) {
	env := newTestEnv(t, formProvider(), "")
	id := env.createSession(t).ID
	env.runJob(t, id, "extract")
	base := "/api/sessions/" + id

	env.do(t, http.MethodPost, base+"/select", map[string]string{"boxId": "box-1-1"})
	rec := env.do(t, http.MethodPost, base+"/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[snapshot.Summary](t, rec).Boxes)

	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, base, nil).Code)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, base, nil).Code)

	rec = env.do(t, http.MethodPost, "/api/snapshots/"+id+"/restore", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[session.View](t, rec)
	assert.Equal(t, id, view.ID)
	assert.Len(t, view.Boxes, 2)
	assert.Len(t, view.Fields, 2)
	// The restored selection waits for the page to be drawn.
	assert.Equal(t, "box-1-1", view.Interaction.PendingID)

	rec = env.do(t, http.MethodPut, base+"/viewport", selection.Viewport{Page: 1, Width: 612, Height: 792, Scale: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "box-1-1", decode[session.Interaction](t, rec).SelectedID)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/snapshots/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/snapshots/"+id+"/restore", nil).Code)
}

func TestDocumentRoundTrip(t *testing.T) {
	env := newTestEnv(t, formProvider(), "")
	id := env.createSession(t).ID
	env.runJob(t, id, "extract")

	rec := env.do(t, http.MethodGet, "/api/sessions/"+id+"/document", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "form.fieldmark.json")

	rec = env.do(t, http.MethodPost, "/api/documents", rec.Body.Bytes())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	view := decode[session.View](t, rec)
	assert.NotEqual(t, id, view.ID)
	assert.Equal(t, "form.pdf", view.FileName)
	assert.Len(t, view.Boxes, 2)
	assert.Len(t, view.Fields, 2)

	rec = env.do(t, http.MethodPost, "/api/documents", []byte(`{"fileName":"x.pdf"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLLMStats(t *testing.T) {
	env := newTestEnv(t, formProvider(), "")
	rec := env.do(t, http.MethodGet, "/api/stats/llm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "stub", body["provider"])
	assert.Contains(t, body, "stats")
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, formProvider(), "secret")

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/snapshots", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/snapshots", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/snapshots", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"form.pdf", "form.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\form.pdf`, "form.pdf"},
		{"", "unnamed.pdf"},
		{"a..b.pdf", "a_b.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFilename(tt.in))
		})
	}
}
