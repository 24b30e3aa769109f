package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/fieldmark/internal/config"
	"github.com/dgallion1/fieldmark/internal/extract"
	"github.com/dgallion1/fieldmark/internal/pipeline"
	"github.com/dgallion1/fieldmark/internal/session"
	"github.com/dgallion1/fieldmark/internal/storage"
)

// Server is the HTTP API server for fieldmark.
type Server struct {
	router       chi.Router
	sessions     *session.Manager
	orchestrator *pipeline.Orchestrator
	store        *storage.Store
	stats        *extract.LLMStats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. stats may be nil.
func NewServer(sessions *session.Manager, orch *pipeline.Orchestrator, store *storage.Store, stats *extract.LLMStats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		sessions:     sessions,
		orchestrator: orch,
		store:        store,
		stats:        stats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/sessions", s.handleCreateSession)
		r.Post("/api/documents", s.handleLoadDocument)

		r.Route("/api/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Get("/document", s.handleDownloadDocument)
			r.Get("/export.pdf", s.handleExport)

			r.Post("/extract", s.handleEnqueue(session.WorkExtract))
			r.Post("/map", s.handleEnqueue(session.WorkMap))

			r.Put("/viewport", s.handleViewport)
			r.Post("/pointer", s.handlePointer)
			r.Post("/select", s.handleSelect)
			r.Patch("/boxes/{boxID}", s.handleEditBox)
			r.Get("/render", s.handleRender)

			r.Post("/fields", s.handleAddField)
			r.Delete("/fields", s.handleRemoveAllFields)
			r.Patch("/fields/{fieldID}", s.handleUpdateField)
			r.Delete("/fields/{fieldID}", s.handleRemoveField)

			r.Put("/show-variables", s.handleShowVariables)
			r.Delete("/error", s.handleDismissError)

			r.Post("/snapshot", s.handleSaveSnapshot)
		})

		r.Get("/api/jobs/{jobID}", s.handleJobStatus)

		r.Get("/api/snapshots", s.handleListSnapshots)
		r.Post("/api/snapshots/{id}/restore", s.handleRestoreSnapshot)
		r.Delete("/api/snapshots/{id}", s.handleDeleteSnapshot)

		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
