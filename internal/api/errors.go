package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/querydeck/querydeck/internal/dialect"
	"github.com/querydeck/querydeck/internal/export"
	"github.com/querydeck/querydeck/internal/query"
	"github.com/querydeck/querydeck/internal/store"
	"github.com/querydeck/querydeck/internal/validate"
)

// Wire error codes. Every core error category maps onto exactly one so
// clients can distinguish "your query was rejected" from "the database
// rejected your query" from "cannot connect".
const (
	codeValidation       = "VALIDATION_ERROR"
	codeSQLValidation    = "SQL_VALIDATION_ERROR"
	codeConnectionFailed = "CONNECTION_FAILED"
	codeExecution        = "EXECUTION_ERROR"
	codeNotFound         = "NOT_FOUND"
	codeInternal         = "INTERNAL_ERROR"
)

type errorResponse struct {
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	if status >= http.StatusInternalServerError {
		s.log.WithField("code", code).Error(message)
	} else {
		s.log.WithField("code", code).Debug(message)
	}
	s.writeJSON(w, status, errorResponse{Message: message, Code: code})
}

// writeCoreError maps a core error onto its wire status and code.
func (s *Server) writeCoreError(w http.ResponseWriter, err error) {
	var (
		rejection *validate.RejectionError
		connErr   *dialect.ConnectionError
		execErr   *query.ExecutionError
		rowLimit  *export.RowLimitError
	)
	switch {
	case errors.As(err, &rejection):
		s.writeError(w, http.StatusBadRequest, codeSQLValidation, rejection.Reason)
	case errors.As(err, &connErr):
		s.writeError(w, http.StatusBadRequest, codeConnectionFailed, "Failed to connect to database: "+connErr.Error())
	case errors.As(err, &execErr):
		s.writeError(w, http.StatusBadRequest, codeExecution, execErr.Error())
	case errors.As(err, &rowLimit):
		s.writeError(w, http.StatusBadRequest, codeValidation, rowLimit.Error())
	case errors.Is(err, store.ErrDuplicateName):
		s.writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, dialect.ErrUnsupportedScheme):
		s.writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
	}
}
