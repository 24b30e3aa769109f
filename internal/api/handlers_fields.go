package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/fieldmark/internal/fields"
)

func (s *Server) handleAddField(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusCreated, sess.AddField(req.Name))
}

func (s *Server) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Name  *string `json:"name"`
		Value *string `json:"value"`
		BoxID *string `json:"boxId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := sess.UpdateField(chi.URLParam(r, "fieldID"), fields.FieldPatch{
		Name:  req.Name,
		Value: req.Value,
		BoxID: req.BoxID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleRemoveField(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.RemoveField(chi.URLParam(r, "fieldID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveAllFields(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.RemoveAllFields()
	w.WriteHeader(http.StatusNoContent)
}
