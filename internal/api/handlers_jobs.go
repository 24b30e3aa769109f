package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/fieldmark/internal/session"
)

// handleEnqueue starts an extraction or mapping job on the session.
func (s *Server) handleEnqueue(kind session.WorkKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.session(w, r)
		if !ok {
			return
		}
		job, err := s.orchestrator.Enqueue(sess, kind)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"job_id":     job.ID,
			"session_id": job.SessionID,
			"kind":       job.Kind,
			"status":     job.Snapshot().Status,
			"poll_url":   fmt.Sprintf("/api/jobs/%s", job.ID),
		})
	}
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}
