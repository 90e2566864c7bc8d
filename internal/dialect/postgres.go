package dialect

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
)

// postgresDriver implements Driver for PostgreSQL.
type postgresDriver struct{}

func (postgresDriver) Kind() Kind         { return Postgres }
func (postgresDriver) DriverName() string { return "postgres" }

// DSN passes the URL through unchanged; lib/pq accepts both
// postgres:// and postgresql:// URLs directly.
func (postgresDriver) DSN(rawURL string) (string, error) {
	return rawURL, nil
}

func (postgresDriver) EnforceReadOnly(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY")
	return err
}

func (postgresDriver) TablesQuery() (string, []any) {
	return `SELECT t.table_schema, t.table_name, t.table_type
		FROM information_schema.tables t
		WHERE t.table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY t.table_schema, t.table_name`, nil
}

func (postgresDriver) ColumnsQuery(schemaName, table string) (string, []any) {
	return `SELECT c.column_name,
			c.data_type,
			c.is_nullable,
			c.column_default,
			pk.column_name IS NOT NULL AS is_primary_key
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT ku.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage ku
				ON tc.constraint_name = ku.constraint_name
				AND tc.table_schema = ku.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY'
				AND tc.table_schema = $1
				AND tc.table_name = $2
		) pk ON c.column_name = pk.column_name
		WHERE c.table_schema = $3
			AND c.table_name = $4
		ORDER BY c.ordinal_position`, []any{schemaName, table, schemaName, table}
}

// RowCountQuery reads the planner's estimate from pg_class. Never
// COUNT(*): this runs for every table in a snapshot.
func (postgresDriver) RowCountQuery(schemaName, table string) (string, []any) {
	return `SELECT c.reltuples::bigint
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
			AND c.relname = $2`, []any{schemaName, table}
}

func (postgresDriver) Normalize(dbType string, v any) any {
	return normalizeValue(dbType, v)
}
