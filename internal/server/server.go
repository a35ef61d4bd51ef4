// Package server exposes the ingestion and answer pipelines over an
// HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/edustack/doubtsolver/internal/answer"
	"github.com/edustack/doubtsolver/internal/config"
	"github.com/edustack/doubtsolver/internal/ingest"
	"github.com/edustack/doubtsolver/internal/model"
	"github.com/edustack/doubtsolver/internal/store"
)

// maxUploadBytes caps a single multipart upload.
const maxUploadBytes = 25 << 20

// Ingester is the frame pipeline surface the server calls.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (*model.Frame, error)
	ExtractRegion(ctx context.Context, frameID string, rect model.CropRect) (*ingest.Region, error)
	Delete(ctx context.Context, frameID string) (int, error)
}

// Answerer is the question pipeline surface the server calls.
type Answerer interface {
	Answer(ctx context.Context, req answer.Request) (*model.Doubt, error)
	RegenerateDiagram(ctx context.Context, doubtID, diagramType string) (string, error)
	Rate(ctx context.Context, doubtID string, rating int, feedback string) error
	ToggleBookmark(ctx context.Context, doubtID string) (bool, error)
	Delete(ctx context.Context, doubtID, ownerID string) error
}

// Server wires the pipelines and the store behind a chi router.
type Server struct {
	ingester Ingester
	answerer Answerer
	store    store.Store
	cfg      config.ServerConfig
}

// New creates a Server.
func New(ingester Ingester, answerer Answerer, st store.Store, cfg config.ServerConfig) *Server {
	return &Server{ingester: ingester, answerer: answerer, store: st, cfg: cfg}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/frames", func(r chi.Router) {
		r.Post("/", s.handleCreateFrame)
		r.Get("/", s.handleListFrames)
		r.Get("/{id}", s.handleGetFrame)
		r.Delete("/{id}", s.handleDeleteFrame)
		r.Post("/{id}/region", s.handleExtractRegion)
	})

	r.Route("/doubts", func(r chi.Router) {
		r.Post("/", s.handleCreateDoubt)
		r.Get("/", s.handleListDoubts)
		r.Get("/{id}", s.handleGetDoubt)
		r.Delete("/{id}", s.handleDeleteDoubt)
		r.Post("/{id}/rating", s.handleRateDoubt)
		r.Post("/{id}/bookmark", s.handleBookmarkDoubt)
		r.Post("/{id}/diagram", s.handleRegenerateDiagram)
	})

	return r
}

// Run serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("starting server", zap.Int("port", s.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondStoreError maps a pipeline error onto a status code. Not-found
// becomes 404, everything else 500.
func respondStoreError(w http.ResponseWriter, err error) {
	if eris.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	zap.L().Error("request failed", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal error")
}
