package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// mysqlDriver implements Driver for MySQL.
type mysqlDriver struct{}

func (mysqlDriver) Kind() Kind         { return MySQL }
func (mysqlDriver) DriverName() string { return "mysql" }

// DSN converts a mysql:// URL into the go-sql-driver DSN form
// (user:password@tcp(host:port)/dbname). parseTime is enabled so DATE,
// DATETIME and TIMESTAMP columns arrive as time.Time instead of bytes.
func (mysqlDriver) DSN(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid mysql URL: %w", err)
	}

	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := u.Port()
	if port == "" {
		port = "3306"
	}

	cfg := mysql.NewConfig()
	cfg.User = u.User.Username()
	cfg.Passwd, _ = u.User.Password()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, port)
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (mysqlDriver) EnforceReadOnly(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "SET SESSION TRANSACTION READ ONLY")
	return err
}

func (mysqlDriver) TablesQuery() (string, []any) {
	return `SELECT TABLE_SCHEMA, TABLE_NAME, TABLE_TYPE
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')
		ORDER BY TABLE_SCHEMA, TABLE_NAME`, nil
}

// ColumnsQuery detects primary keys via the catalog's COLUMN_KEY flag
// instead of the constraint join PostgreSQL needs.
func (mysqlDriver) ColumnsQuery(schemaName, table string) (string, []any) {
	return `SELECT COLUMN_NAME,
			DATA_TYPE,
			IS_NULLABLE,
			COLUMN_DEFAULT,
			(COLUMN_KEY = 'PRI') AS is_primary_key
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ?
			AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, []any{schemaName, table}
}

// RowCountQuery reads TABLE_ROWS, the engine's recorded estimate.
func (mysqlDriver) RowCountQuery(schemaName, table string) (string, []any) {
	return `SELECT TABLE_ROWS
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ?
			AND TABLE_NAME = ?`, []any{schemaName, table}
}

func (mysqlDriver) Normalize(dbType string, v any) any {
	return normalizeValue(dbType, v)
}
