// Package schema introspects a live database into a normalized snapshot
// of its tables, views and columns. Both dialects produce structurally
// identical records; downstream consumers are dialect-blind.
package schema

import "time"

// ColumnInfo describes one column. Order within a table is catalog
// ordinal order and drives positional export, so it is preserved
// exactly.
type ColumnInfo struct {
	Name          string  `json:"name"`
	DataType      string  `json:"dataType"`
	IsNullable    bool    `json:"isNullable"`
	ColumnDefault *string `json:"columnDefault"`
	IsPrimaryKey  bool    `json:"isPrimaryKey"`
}

// TableInfo describes one table or view. RowCount is the catalog's
// estimate, not an exact count; nil means unknown and must not be read
// as zero.
type TableInfo struct {
	Name       string       `json:"name"`
	SchemaName string       `json:"schemaName"`
	TableType  string       `json:"tableType"` // "table" or "view"
	Columns    []ColumnInfo `json:"columns"`
	RowCount   *int64       `json:"rowCount"`
}

// Snapshot is the point-in-time schema of one connection. Staleness is
// the caller's concern; refreshing replaces the whole snapshot.
type Snapshot struct {
	Tables      []TableInfo `json:"tables"`
	ExtractedAt time.Time   `json:"extractedAt"`
}
