package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/querydeck/querydeck/internal/export"
)

type exportRequest struct {
	Format       string        `json:"format"`
	QueryResults exportPayload `json:"queryResults"`
}

type exportPayload struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"rowCount"`
}

// handleExport renders previously fetched query results as a file
// download. The result set travels in the request body; no SQL runs
// here.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.store.GetConnection(name); err != nil {
		s.writeCoreError(w, err)
		return
	}

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, codeValidation, "invalid request body: "+err.Error())
		return
	}

	format, err := export.ParseFormat(req.Format)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	// The guard runs on the declared count, not on len(rows); callers
	// state how large the result set is and oversized ones are refused
	// before any encoding work.
	if err := export.CheckRowCount(req.QueryResults.RowCount); err != nil {
		s.writeCoreError(w, err)
		return
	}

	exporter, err := export.ForFormat(format)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	data, err := exporter.Export(req.QueryResults.Columns, req.QueryResults.Rows)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, codeInternal, "export failed: "+err.Error())
		return
	}

	filename := export.Filename(name, format, time.Now().UTC())
	s.log.WithFields(map[string]any{
		"connection": name,
		"format":     string(format),
		"rows":       len(req.QueryResults.Rows),
	}).Info("results exported")

	w.Header().Set("Content-Type", format.MIMEType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.WithError(err).Error("write export body")
	}
}
