package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dgallion1/fieldmark/internal/pdfinfo"
	"github.com/dgallion1/fieldmark/internal/snapshot"
)

const pdfContentType = "application/pdf"

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	info, err := pdfinfo.Inspect(data)
	if err != nil {
		s.writeError(w, err)
		return
	}

	doc := snapshot.Document{
		Name: sanitizeFilename(header.Filename),
		Type: pdfContentType,
		Data: data,
	}
	sess := s.sessions.Create(doc, info)
	s.log.Info("session created", "session_id", sess.ID, "file", doc.Name, "pages", info.PageCount(), "bytes", len(data))
	writeJSON(w, http.StatusCreated, sess.View())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.sessions.Delete(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

// handleDownloadDocument returns the session as a document file that
// POST /api/documents accepts.
func (s *Server) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	file := snapshot.NewDocumentFile(sess.ID, sess.State(), time.Now())
	name := strings.TrimSuffix(file.FileName, ".pdf") + ".fieldmark.json"
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	writeJSON(w, http.StatusOK, file)
}

// handleLoadDocument opens a new session from a downloaded document file.
func (s *Server) handleLoadDocument(w http.ResponseWriter, r *http.Request) {
	// Base64 inflates the PDF by a third; allow double plus the box data.
	r.Body = http.MaxBytesReader(w, r.Body, 2*s.cfg.MaxUploadBytes+1024*1024)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, "failed to read body: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, err := snapshot.DecodeDocumentFile(raw)
	if err != nil {
		s.writeError(w, err)
		return
	}
	st, err := file.State()
	if err != nil {
		s.writeError(w, err)
		return
	}
	info, err := pdfinfo.Inspect(st.Document.Data)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sess := s.sessions.Create(st.Document, info)
	sess.Restore(st, info)
	s.log.Info("document loaded", "session_id", sess.ID, "file", st.Document.Name)
	writeJSON(w, http.StatusCreated, sess.View())
}
