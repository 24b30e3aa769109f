package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/fieldmark/internal/selection"
	"github.com/dgallion1/fieldmark/internal/session"
)

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var vp selection.Viewport
	if !decodeJSON(w, r, &vp) {
		return
	}
	out, err := sess.PageRendered(vp)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var ev session.PointerEvent
	if !decodeJSON(w, r, &ev) {
		return
	}
	out, err := sess.Pointer(ev)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSelect selects a box by id. An empty id clears the selection.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		BoxID string `json:"boxId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.BoxID == "" {
		writeJSON(w, http.StatusOK, sess.ClearSelection())
		return
	}
	out, err := sess.Select(req.BoxID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// coordinate accepts a JSON number or the raw text of an input element.
type coordinate string

func (c *coordinate) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = coordinate(s)
		return nil
	}
	*c = coordinate(b)
	return nil
}

func (c *coordinate) text() *string {
	if c == nil {
		return nil
	}
	s := string(*c)
	return &s
}

func (s *Server) handleEditBox(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		X      *coordinate `json:"x"`
		Y      *coordinate `json:"y"`
		Width  *coordinate `json:"width"`
		Height *coordinate `json:"height"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	box, err := sess.EditBox(chi.URLParam(r, "boxID"), session.BoxEdit{
		X:      req.X.text(),
		Y:      req.Y.text(),
		Width:  req.Width.text(),
		Height: req.Height.text(),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, box)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Frame())
}

func (s *Server) handleShowVariables(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		ShowVariables *bool `json:"showVariables"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ShowVariables == nil {
		jsonError(w, "showVariables is required", http.StatusBadRequest)
		return
	}
	sess.SetShowVariables(*req.ShowVariables)
	writeJSON(w, http.StatusOK, map[string]bool{"showVariables": *req.ShowVariables})
}

func (s *Server) handleDismissError(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.DismissError()
	w.WriteHeader(http.StatusNoContent)
}
