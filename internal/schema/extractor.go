package schema

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/querydeck/querydeck/internal/dialect"
)

// Extractor assembles schema snapshots through the dialect adapter.
type Extractor struct {
	log logrus.FieldLogger
}

func NewExtractor(log logrus.FieldLogger) *Extractor {
	return &Extractor{log: log}
}

// Extract introspects the database behind url. The connection is opened
// for this call only and released on every path.
func (e *Extractor) Extract(ctx context.Context, url string) (*Snapshot, error) {
	drv, err := dialect.ForURL(url)
	if err != nil {
		return nil, err
	}

	db, err := dialect.Open(ctx, drv, url, e.log)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	refs, err := listTables(ctx, db, drv)
	if err != nil {
		return nil, err
	}

	tables := make([]TableInfo, 0, len(refs))
	for _, ref := range refs {
		cols, err := e.columns(ctx, db, drv, ref.schemaName, ref.name)
		if err != nil {
			return nil, err
		}

		kind := "view"
		if ref.tableType == "BASE TABLE" {
			kind = "table"
		}

		// Row estimates are best-effort and only meaningful for tables.
		var rowCount *int64
		if kind == "table" {
			rowCount = e.rowCount(ctx, db, drv, ref.schemaName, ref.name)
		}

		tables = append(tables, TableInfo{
			Name:       ref.name,
			SchemaName: ref.schemaName,
			TableType:  kind,
			Columns:    cols,
			RowCount:   rowCount,
		})
	}

	return &Snapshot{Tables: tables, ExtractedAt: time.Now()}, nil
}

type tableRef struct {
	schemaName string
	name       string
	tableType  string
}

func listTables(ctx context.Context, db *sql.DB, drv dialect.Driver) ([]tableRef, error) {
	q, args := drv.TablesQuery()
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var refs []tableRef
	for rows.Next() {
		var ref tableRef
		if err := rows.Scan(&ref.schemaName, &ref.name, &ref.tableType); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return refs, nil
}

func (e *Extractor) columns(ctx context.Context, db *sql.DB, drv dialect.Driver, schemaName, table string) ([]ColumnInfo, error) {
	q, args := drv.ColumnsQuery(schemaName, table)
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("read columns of %s.%s: %w", schemaName, table, err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var (
			name, dataType, isNullable string
			colDefault                 sql.NullString
			isPK                       bool
		)
		if err := rows.Scan(&name, &dataType, &isNullable, &colDefault, &isPK); err != nil {
			return nil, fmt.Errorf("scan column of %s.%s: %w", schemaName, table, err)
		}

		col := ColumnInfo{
			Name:         name,
			DataType:     dataType,
			IsNullable:   isNullable == "YES",
			IsPrimaryKey: isPK,
		}
		if colDefault.Valid {
			col.ColumnDefault = &colDefault.String
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns of %s.%s: %w", schemaName, table, err)
	}
	return cols, nil
}

// rowCount reads the catalog's row estimate. Any failure degrades to
// nil for this one table; it never aborts the snapshot. A zero estimate
// also maps to nil, since never-analyzed tables report 0 regardless of
// their contents.
func (e *Extractor) rowCount(ctx context.Context, db *sql.DB, drv dialect.Driver, schemaName, table string) *int64 {
	q, args := drv.RowCountQuery(schemaName, table)
	var n sql.NullInt64
	if err := db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		e.log.WithError(err).WithField("table", schemaName+"."+table).Debug("row count estimate unavailable")
		return nil
	}
	if !n.Valid || n.Int64 <= 0 {
		return nil
	}
	count := n.Int64
	return &count
}
