package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/querydeck/querydeck/internal/dialect"
	"github.com/querydeck/querydeck/internal/store"
)

type connectionRequest struct {
	URL string `json:"url"`
}

// handleCreateConnection registers a new connection. The URL scheme
// determines the dialect, the URL's path names both the target database
// and the connection itself, and the database must be reachable before
// anything is stored.
func (s *Server) handleCreateConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, codeValidation, "invalid request body: "+err.Error())
		return
	}

	kind, err := dialect.Detect(req.URL)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	name, err := dialect.DatabaseName(req.URL)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	if err := s.testConnection(r.Context(), req.URL); err != nil {
		s.writeCoreError(w, err)
		return
	}

	conn := store.Connection{
		Name:      name,
		URL:       req.URL,
		Dialect:   kind,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateConnection(conn); err != nil {
		s.writeCoreError(w, err)
		return
	}

	created, err := s.store.GetConnection(name)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	s.log.WithField("connection", name).Info("connection registered")
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := s.store.ListConnections()
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, conns)
}

// handleUpdateConnection replaces a connection's URL after verifying
// the new target is reachable. Nothing else about the record changes.
func (s *Server) handleUpdateConnection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if _, err := s.store.GetConnection(name); err != nil {
		s.writeCoreError(w, err)
		return
	}

	var req connectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, codeValidation, "invalid request body: "+err.Error())
		return
	}
	if _, err := dialect.Detect(req.URL); err != nil {
		s.writeCoreError(w, err)
		return
	}

	if err := s.testConnection(r.Context(), req.URL); err != nil {
		s.writeCoreError(w, err)
		return
	}

	if err := s.store.UpdateConnectionURL(name, req.URL); err != nil {
		s.writeCoreError(w, err)
		return
	}

	updated, err := s.store.GetConnection(name)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	s.log.WithField("connection", name).Info("connection updated")
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.store.DeleteConnection(name); err != nil {
		s.writeCoreError(w, err)
		return
	}
	s.log.WithField("connection", name).Info("connection deleted")
	w.WriteHeader(http.StatusNoContent)
}

// testConnection opens and pings the database, releasing the connection
// immediately. A failure surfaces as CONNECTION_FAILED.
func (s *Server) testConnection(ctx context.Context, url string) error {
	drv, err := dialect.ForURL(url)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	db, err := dialect.Open(ctx, drv, url, s.log)
	if err != nil {
		return err
	}
	return db.Close()
}
