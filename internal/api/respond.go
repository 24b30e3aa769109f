package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/fieldmark/internal/export"
	"github.com/dgallion1/fieldmark/internal/extract"
	"github.com/dgallion1/fieldmark/internal/pdfinfo"
	"github.com/dgallion1/fieldmark/internal/pipeline"
	"github.com/dgallion1/fieldmark/internal/session"
	"github.com/dgallion1/fieldmark/internal/snapshot"
	"github.com/dgallion1/fieldmark/internal/storage"
)

// maxJSONBody caps request bodies other than uploads.
const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pdfinfo.ErrNotPDF),
		errors.Is(err, snapshot.ErrInvalidFormat),
		errors.Is(err, extract.ErrMissingCredential),
		errors.Is(err, session.ErrInvalidViewport),
		errors.Is(err, session.ErrInvalidPointer),
		errors.Is(err, session.ErrNoBoxes),
		errors.Is(err, session.ErrNoFields),
		errors.Is(err, export.ErrNoPages):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrUnknownBox),
		errors.Is(err, session.ErrUnknownField),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrQueueFull),
		errors.Is(err, pipeline.ErrStopped):
		return http.StatusServiceUnavailable
	}
	var retryable *extract.RetryableError
	if errors.As(err, &retryable) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	jsonError(w, err.Error(), code)
}

// decodeJSON reads a small JSON body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// session looks up the session named in the URL, writing a 404 when it is
// missing.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, ok := s.sessions.Get(id)
	if !ok {
		jsonError(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed.pdf"
	}
	return name
}
