// Package dialect isolates everything that differs between the two
// supported database kinds: URL scheme detection, driver DSNs, catalog
// queries, and conversion of raw driver values into the canonical cell
// value set. Nothing outside this package branches on the dialect.
package dialect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// Kind identifies a supported database dialect.
type Kind string

const (
	Postgres Kind = "postgresql"
	MySQL    Kind = "mysql"
)

// ErrUnsupportedScheme is returned for connection URLs whose scheme is
// neither a postgres nor a mysql variant.
var ErrUnsupportedScheme = errors.New("URL must start with postgresql://, postgres://, or mysql://")

// Driver is the capability set of one dialect. A driver is selected once
// per call, at open time; consumers never re-check the dialect.
type Driver interface {
	Kind() Kind

	// DriverName returns the database/sql driver to open.
	DriverName() string

	// DSN converts a connection URL into the form the driver expects.
	DSN(rawURL string) (string, error)

	// EnforceReadOnly puts the session into read-only transaction mode.
	// This is a second fence behind the SQL validator gate.
	EnforceReadOnly(ctx context.Context, db *sql.DB) error

	// TablesQuery lists user tables and views as
	// (table_schema, table_name, table_type) rows, system schemas
	// excluded, ordered by schema then name.
	TablesQuery() (string, []any)

	// ColumnsQuery lists one table's columns as
	// (column_name, data_type, is_nullable YES/NO, column_default,
	// is_primary_key) rows in ordinal position order.
	ColumnsQuery(schemaName, table string) (string, []any)

	// RowCountQuery reads the catalog's row estimate for one table.
	RowCountQuery(schemaName, table string) (string, []any)

	// Normalize converts a raw driver value into the canonical value set.
	// dbType is the column's database type name from the cursor metadata.
	Normalize(dbType string, v any) any
}

// Detect returns the dialect for a connection URL based on its scheme.
func Detect(rawURL string) (Kind, error) {
	switch {
	case strings.HasPrefix(rawURL, "postgres://"), strings.HasPrefix(rawURL, "postgresql://"):
		return Postgres, nil
	case strings.HasPrefix(rawURL, "mysql://"):
		return MySQL, nil
	}
	return "", ErrUnsupportedScheme
}

// ForKind returns the driver for a known dialect.
func ForKind(k Kind) (Driver, error) {
	switch k {
	case Postgres:
		return postgresDriver{}, nil
	case MySQL:
		return mysqlDriver{}, nil
	}
	return nil, fmt.Errorf("unsupported dialect: %q", k)
}

// ForURL detects the dialect of rawURL and returns its driver.
func ForURL(rawURL string) (Driver, error) {
	k, err := Detect(rawURL)
	if err != nil {
		return nil, err
	}
	return ForKind(k)
}

// DatabaseName extracts the target database from the URL path component.
func DatabaseName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid database URL: %w", err)
	}
	name := strings.TrimPrefix(u.Path, "/")
	if name == "" {
		return "", errors.New("database name not found in URL")
	}
	return name, nil
}

// ConnectionError reports that the database could not be reached. It is
// a distinct category from execution failures so callers can surface
// "cannot connect" separately from "the database rejected your query".
type ConnectionError struct {
	Kind Kind
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot reach %s database: %v", e.Kind, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Open opens a single physical connection for the duration of one call.
// The handle is never pooled across callers; the caller must Close it on
// every exit path. A failed ping closes the handle before returning.
func Open(ctx context.Context, drv Driver, rawURL string, log logrus.FieldLogger) (*sql.DB, error) {
	dsn, err := drv.DSN(rawURL)
	if err != nil {
		return nil, &ConnectionError{Kind: drv.Kind(), Err: err}
	}

	db, err := sql.Open(drv.DriverName(), dsn)
	if err != nil {
		return nil, &ConnectionError{Kind: drv.Kind(), Err: err}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &ConnectionError{Kind: drv.Kind(), Err: err}
	}

	if err := drv.EnforceReadOnly(ctx, db); err != nil {
		log.WithError(err).Warn("could not set read-only session mode")
	}

	return db, nil
}

// MaterializeRows drains rows into the cursor's column name list and a
// slice of canonical row maps. Duplicate column names are preserved in
// the returned list exactly as the cursor reported them; inside a row
// map the last duplicate wins, disambiguation belongs to the export
// layer.
func MaterializeRows(drv Driver, rows *sql.Rows) ([]string, []map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("read column names: %w", err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, fmt.Errorf("read column types: %w", err)
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan row %d: %w", len(out)+1, err)
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = drv.Normalize(colTypes[i].DatabaseTypeName(), values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return cols, out, nil
}
