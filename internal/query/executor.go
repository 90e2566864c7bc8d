// Package query orchestrates the gate-execute-materialize chain: SQL is
// validated, run against a per-call connection through the dialect
// adapter, and returned as a normalized result set with timing.
package query

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/querydeck/querydeck/internal/dialect"
	"github.com/querydeck/querydeck/internal/validate"
)

// Result is a normalized query outcome. Columns keeps the cursor's
// order, duplicates included; RowCount always equals len(Rows), never a
// pre-cap true count.
type Result struct {
	Columns       []string         `json:"columns"`
	Rows          []map[string]any `json:"rows"`
	RowCount      int              `json:"rowCount"`
	ExecutionTime float64          `json:"executionTime"` // milliseconds
}

// ExecutionError wraps a driver-level failure: the database accepted
// the connection but refused or failed the statement. Distinct from
// validation rejections, which never reach the database.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Executor runs validated read-only SQL.
type Executor struct {
	validator *validate.Validator
	log       logrus.FieldLogger
}

func NewExecutor(v *validate.Validator, log logrus.FieldLogger) *Executor {
	return &Executor{validator: v, log: log}
}

// Execute validates sqlText and runs it against the database behind
// url. A rejection short-circuits before any connection is opened; the
// connection, once opened, is released on every path.
func (e *Executor) Execute(ctx context.Context, url, sqlText string) (*Result, error) {
	stmt, err := e.validator.Validate(sqlText)
	if err != nil {
		return nil, err
	}

	drv, err := dialect.ForURL(url)
	if err != nil {
		return nil, err
	}

	db, err := dialect.Open(ctx, drv, url, e.log)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	start := time.Now()
	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, &ExecutionError{Err: err}
	}
	defer rows.Close()

	cols, data, err := dialect.MaterializeRows(drv, rows)
	if err != nil {
		return nil, &ExecutionError{Err: err}
	}
	elapsed := roundMillis(time.Since(start))

	e.log.WithFields(logrus.Fields{
		"rows":     len(data),
		"duration": elapsed,
	}).Debug("query executed")

	return &Result{
		Columns:       cols,
		Rows:          data,
		RowCount:      len(data),
		ExecutionTime: elapsed,
	}, nil
}

// roundMillis converts a duration to milliseconds rounded to two
// decimal places.
func roundMillis(d time.Duration) float64 {
	ms := float64(d) / float64(time.Millisecond)
	return math.Round(ms*100) / 100
}
