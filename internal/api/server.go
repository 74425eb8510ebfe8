package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/wrnotes/internal/config"
	"github.com/dgallion1/wrnotes/internal/importer"
	"github.com/dgallion1/wrnotes/internal/notebook"
	"github.com/dgallion1/wrnotes/internal/pipeline"
	"github.com/dgallion1/wrnotes/internal/weread"
)

// Notebook is the read side served by the API. *notebook.Service satisfies it.
type Notebook interface {
	BookNotes(ctx context.Context, req notebook.NotesRequest) (*notebook.BookNotes, error)
	Bookshelf(ctx context.Context, limit int) (*notebook.Bookshelf, error)
	Search(ctx context.Context, req notebook.SearchRequest) (*notebook.SearchResult, error)
	BestReviews(ctx context.Context, bookID string, q weread.BestReviewsQuery) (*notebook.BestReviews, error)
	Imported(ctx context.Context, keyword string) (importer.Summary, error)
}

// Server is the HTTP API server for wrnotes.
type Server struct {
	router       chi.Router
	notes        Notebook
	orchestrator *pipeline.Orchestrator
	stats        *weread.Stats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. orch and stats may be
// nil, in which case their endpoints answer 503.
func NewServer(notes Notebook, orch *pipeline.Orchestrator, stats *weread.Stats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		notes:        notes,
		orchestrator: orch,
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

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Get("/api/shelf", s.handleShelf)
		r.Get("/api/search", s.handleSearch)
		r.Get("/api/imported", s.handleImported)

		r.Route("/api/books/{bookID}", func(r chi.Router) {
			r.Get("/notes", s.handleNotes)
			r.Get("/reviews/best", s.handleBestReviews)
			r.Get("/export", s.handleExport)
		})

		r.Post("/api/exports", s.handleCreateExport)
		r.Get("/api/exports/{jobID}", s.handleExportStatus)
		r.Get("/api/exports/{jobID}/download", s.handleExportDownload)

		r.Get("/api/stats/upstream", s.handleUpstreamStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
