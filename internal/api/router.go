package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/filegrab/internal/api/handler"
	mw "github.com/iconidentify/filegrab/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
// lookupTimeout bounds metadata requests; downloads are only bounded by
// the outbound idle timeout since they may legitimately run for a long time.
func NewRouter(
	fileHandler *handler.FileHandler,
	healthHandler *handler.HealthHandler,
	lookupTimeout time.Duration,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.CORS)

	// Health endpoints
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/stats", healthHandler.Stats)

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.Timeout(lookupTimeout)).Get("/file-info", fileHandler.FileInfo)
		r.Post("/download", fileHandler.Download)
	})

	return r
}
