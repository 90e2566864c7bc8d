package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/querydeck/querydeck/internal/schema"
)

type queryRequest struct {
	SQL string `json:"sql"`
}

// handleQuery runs ad-hoc SQL against a registered connection. The
// validator gate sits in front of the executor; a rejection never
// touches the database.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	conn, err := s.store.GetConnection(name)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, codeValidation, "invalid request body: "+err.Error())
		return
	}

	result, err := s.executor.Execute(r.Context(), conn.URL, req.SQL)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	if err := s.store.TouchLastConnected(name, time.Now().UTC()); err != nil {
		s.log.WithError(err).WithField("connection", name).Warn("could not record last connect time")
	}

	s.log.WithFields(map[string]any{
		"connection": name,
		"rows":       result.RowCount,
		"duration":   result.ExecutionTime,
	}).Info("query executed")
	s.writeJSON(w, http.StatusOK, result)
}

type metadataResponse struct {
	DatabaseName string             `json:"databaseName"`
	Tables       []schema.TableInfo `json:"tables"`
	ExtractedAt  time.Time          `json:"extractedAt"`
}

// handleMetadata returns the connection's schema snapshot. The cached
// snapshot is served unless none exists or ?refresh=true forces a new
// extraction; a fresh snapshot replaces the cached one wholesale.
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	conn, err := s.store.GetConnection(name)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	if !refresh {
		if cached, err := s.store.GetSnapshot(name); err == nil {
			s.writeJSON(w, http.StatusOK, metadataResponse{
				DatabaseName: name,
				Tables:       cached.Tables,
				ExtractedAt:  cached.ExtractedAt,
			})
			return
		}
	}

	snap, err := s.extractor.Extract(r.Context(), conn.URL)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	if err := s.store.SaveSnapshot(name, snap); err != nil {
		s.writeCoreError(w, err)
		return
	}
	if err := s.store.TouchLastConnected(name, time.Now().UTC()); err != nil {
		s.log.WithError(err).WithField("connection", name).Warn("could not record last connect time")
	}

	s.log.WithFields(map[string]any{
		"connection": name,
		"tables":     len(snap.Tables),
	}).Info("schema extracted")
	s.writeJSON(w, http.StatusOK, metadataResponse{
		DatabaseName: name,
		Tables:       snap.Tables,
		ExtractedAt:  snap.ExtractedAt,
	})
}

type nlQueryRequest struct {
	Prompt string `json:"prompt"`
}

// handleNLQuery asks the assist service for a candidate SELECT. Replies
// 501 when the feature is not configured.
func (s *Server) handleNLQuery(w http.ResponseWriter, r *http.Request) {
	if s.assist == nil {
		s.writeError(w, http.StatusNotImplemented, codeInternal, "natural language query feature not available")
		return
	}

	name := chi.URLParam(r, "name")
	conn, err := s.store.GetConnection(name)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	var req nlQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, codeValidation, "invalid request body: "+err.Error())
		return
	}

	snap, err := s.store.GetSnapshot(name)
	if err != nil {
		snap, err = s.extractor.Extract(r.Context(), conn.URL)
		if err != nil {
			s.writeCoreError(w, err)
			return
		}
		if err := s.store.SaveSnapshot(name, snap); err != nil {
			s.writeCoreError(w, err)
			return
		}
	}

	resp, err := s.assist.GenerateSQL(r.Context(), conn.Dialect, snap, req.Prompt)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}
