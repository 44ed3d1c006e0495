package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/scholaris-ai/scholaris/internal/api/handlers"
	appMiddleware "github.com/scholaris-ai/scholaris/internal/api/middlewares"
	"github.com/scholaris-ai/scholaris/internal/config"
	"github.com/scholaris-ai/scholaris/internal/core"
	"github.com/scholaris-ai/scholaris/internal/core/ingestion"
	"github.com/scholaris-ai/scholaris/internal/core/queue"
	"github.com/scholaris-ai/scholaris/internal/core/retrieval"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, store core.Store, obj core.ObjectClient, pipeline *ingestion.Pipeline, q queue.JobQueue, searcher *retrieval.Searcher, logger zerolog.Logger) *Server {
	docHandler := handlers.NewDocumentHandler(store, obj, cfg, logger)
	ingestHandler := handlers.NewIngestHandler(store, pipeline, q, obj, cfg.BucketName, logger)
	searchHandler := handlers.NewSearchHandler(searcher, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		api.Group(func(protected chi.Router) {
			if cfg.JWTSecret != "" {
				protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))
			} else {
				logger.Warn().Msg("JWT_SECRET not set, /api endpoints are UNAUTHENTICATED; dev mode only")
			}

			protected.Post("/documents", docHandler.CreateDocument)
			protected.Get("/documents", docHandler.ListDocuments)
			protected.Get("/documents/{id}/chunks", docHandler.GetDocumentChunks)
			protected.Delete("/documents/{id}", docHandler.DeleteDocument)

			protected.Post("/rag/ingest", ingestHandler.Ingest)
			protected.Post("/rag/ingest/enqueue", ingestHandler.Enqueue)
			protected.Get("/rag/ingest/status", ingestHandler.JobStatus)

			protected.Post("/rag/query", searchHandler.Query)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, logger: logger}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
