// Package restapi is a minimal HTTP surface over the catalog facade:
// a chi router, the usual middleware stack, and JSON handlers. The
// cache core itself exposes no wire protocol; this package exists to
// give callers something to drive the facade with.
package restapi

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ha1tch/pantrycache/pkg/catalog"
	"github.com/ha1tch/pantrycache/pkg/config"
	"github.com/ha1tch/pantrycache/pkg/inputvalidation"
	"github.com/ha1tch/pantrycache/pkg/respcache"
)

// Server wraps one catalog.DB behind an HTTP API. catalog.DB is not
// safe for concurrent use; Server supplies the required external
// synchronization with mu so one process can serve concurrent HTTP
// requests against one shared facade instance.
type Server struct {
	cfg       *config.Config
	db        *catalog.DB
	respCache respcache.Cache
	validator inputvalidation.Validator
	logger    zerolog.Logger
	router    *chi.Mux

	mu sync.Mutex
}

// New builds a Server wired to db, with router and middleware configured.
func New(cfg *config.Config, db *catalog.DB, respCache respcache.Cache, validator inputvalidation.Validator, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		db:        db,
		respCache: respCache,
		validator: validator,
		logger:    logger,
		router:    chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/version", s.handleVersion)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/categories", s.handleCreateCategory)
		r.Get("/categories", s.handleListCategories)
		r.Get("/categories/{id}", s.handleGetCategory)
		r.Put("/categories/{id}", s.handleUpdateCategory)
		r.Delete("/categories/{id}", s.handleDeleteCategory)

		r.Post("/categories/{id}/descriptions", s.handleCreateDescription)
		r.Get("/categories/{id}/descriptions", s.handleListDescriptionsByCategory)

		r.Get("/descriptions/{id}", s.handleGetDescription)
		r.Put("/descriptions/{id}", s.handleUpdateDescription)
		r.Delete("/descriptions/{id}", s.handleDeleteDescription)

		r.Post("/descriptions/{id}/instances", s.handleCreateInstance)
		r.Get("/descriptions/{id}/instances", s.handleListInstancesByDescription)

		r.Get("/instances/{id}", s.handleGetInstance)
		r.Put("/instances/{id}", s.handleUpdateInstance)
		r.Delete("/instances/{id}", s.handleDeleteInstance)
	})
}

// Start begins serving HTTP on cfg.Host:cfg.Port.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.logger.Info().Str("addr", addr).Msg("starting pantryd")
	return http.ListenAndServe(addr, s.router)
}

// Handler returns the HTTP handler, useful for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": config.Version,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": config.Version})
}
