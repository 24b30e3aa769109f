package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/fieldmark/internal/pdfinfo"
	"github.com/dgallion1/fieldmark/internal/snapshot"
)

func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	rec := snapshot.Capture(sess.ID, sess.State(), time.Now())
	if err := s.store.Save(r.Context(), rec); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec.Summarize())
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": list})
}

// handleRestoreSnapshot loads a saved snapshot into the session with the
// same id, recreating the session when it has expired.
func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.store.Load(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	st, err := rec.State()
	if err != nil {
		s.writeError(w, err)
		return
	}

	var info pdfinfo.Info
	if len(st.Document.Data) > 0 {
		if info, err = pdfinfo.Inspect(st.Document.Data); err != nil {
			s.writeError(w, err)
			return
		}
	}

	sess, ok := s.sessions.Get(id)
	if !ok {
		sess = s.sessions.CreateWithID(id, st.Document, info)
	}
	sess.Restore(st, info)
	s.log.Info("snapshot restored", "session_id", id, "saved_at", rec.SavedAt)
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
