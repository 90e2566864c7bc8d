// Package api wires the core services to an HTTP surface: connection
// CRUD, schema browsing, query execution, export and the
// natural-language assist. All request and response bodies use
// camelCase keys.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/querydeck/querydeck/internal/assist"
	"github.com/querydeck/querydeck/internal/query"
	"github.com/querydeck/querydeck/internal/schema"
	"github.com/querydeck/querydeck/internal/store"
)

// ConnectTimeout bounds the ping issued when a connection is registered
// or its URL updated.
const ConnectTimeout = 10 * time.Second

// Server holds the injected core services. Construct one at process
// start; it owns no global state.
type Server struct {
	store     *store.Store
	executor  *query.Executor
	extractor *schema.Extractor
	assist    *assist.Client // nil when the feature is not configured
	log       logrus.FieldLogger
}

func NewServer(st *store.Store, ex *query.Executor, sx *schema.Extractor, as *assist.Client, log logrus.FieldLogger) *Server {
	return &Server{store: st, executor: ex, extractor: sx, assist: as, log: log}
}

// Routes builds the router. Connection names live in the path; the
// name is the external identifier everywhere.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1/databases", func(r chi.Router) {
		r.Post("/", s.handleCreateConnection)
		r.Get("/", s.handleListConnections)

		r.Route("/{name}", func(r chi.Router) {
			r.Put("/", s.handleUpdateConnection)
			r.Delete("/", s.handleDeleteConnection)
			r.Get("/metadata", s.handleMetadata)
			r.Post("/query", s.handleQuery)
			r.Post("/nl-query", s.handleNLQuery)
			r.Post("/export", s.handleExport)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
