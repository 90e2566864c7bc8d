// Package store persists connection descriptors and cached schema
// snapshots in a local SQLite database. A connection's name is its
// external identifier everywhere; deleting a connection cascades to its
// snapshot.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/querydeck/querydeck/internal/dialect"
	"github.com/querydeck/querydeck/internal/schema"
)

var (
	// ErrDuplicateName rejects registering a second connection under an
	// existing name; the first is never overwritten.
	ErrDuplicateName = errors.New("connection name already exists")

	// ErrNotFound reports a missing connection or snapshot.
	ErrNotFound = errors.New("not found")
)

// Connection is one registered database connection.
type Connection struct {
	Name            string       `json:"name"`
	URL             string       `json:"url"`
	Dialect         dialect.Kind `json:"databaseType"`
	CreatedAt       time.Time    `json:"createdAt"`
	LastConnectedAt *time.Time   `json:"lastConnectedAt"`
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS connections (
	name TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	dialect TEXT NOT NULL,
	created_at TEXT NOT NULL,
	last_connected_at TEXT
);

CREATE TABLE IF NOT EXISTS snapshots (
	connection_name TEXT PRIMARY KEY
		REFERENCES connections(name) ON DELETE CASCADE,
	tables_json TEXT NOT NULL,
	extracted_at TEXT NOT NULL
);
`

// Store wraps the SQLite handle. Safe for concurrent use; SQLite
// serializes writers through the single connection.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init store schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateConnection registers a new connection. A duplicate name returns
// ErrDuplicateName and leaves the existing record untouched.
func (s *Store) CreateConnection(conn Connection) error {
	var exists int
	err := s.db.QueryRow("SELECT COUNT(*) FROM connections WHERE name = ?", conn.Name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check connection name: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%q: %w", conn.Name, ErrDuplicateName)
	}

	_, err = s.db.Exec(
		"INSERT INTO connections (name, url, dialect, created_at) VALUES (?, ?, ?, ?)",
		conn.Name, conn.URL, string(conn.Dialect), conn.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert connection: %w", err)
	}
	return nil
}

// GetConnection looks a connection up by name.
func (s *Store) GetConnection(name string) (*Connection, error) {
	row := s.db.QueryRow(
		"SELECT name, url, dialect, created_at, last_connected_at FROM connections WHERE name = ?",
		name,
	)
	conn, err := scanConnection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("connection %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return conn, nil
}

// ListConnections returns all connections, newest first.
func (s *Store) ListConnections() ([]Connection, error) {
	rows, err := s.db.Query(
		"SELECT name, url, dialect, created_at, last_connected_at FROM connections ORDER BY created_at DESC, name",
	)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	conns := make([]Connection, 0)
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, *conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}
	return conns, nil
}

// UpdateConnectionURL replaces a connection's URL. Nothing else is
// re-derived from the new URL.
func (s *Store) UpdateConnectionURL(name, url string) error {
	res, err := s.db.Exec("UPDATE connections SET url = ? WHERE name = ?", url, name)
	if err != nil {
		return fmt.Errorf("update connection: %w", err)
	}
	return requireAffected(res, name)
}

// TouchLastConnected records a successful use of the connection.
func (s *Store) TouchLastConnected(name string, at time.Time) error {
	res, err := s.db.Exec(
		"UPDATE connections SET last_connected_at = ? WHERE name = ?",
		at.Format(time.RFC3339), name,
	)
	if err != nil {
		return fmt.Errorf("touch connection: %w", err)
	}
	return requireAffected(res, name)
}

// DeleteConnection removes a connection and, through the foreign key,
// its cached snapshot.
func (s *Store) DeleteConnection(name string) error {
	res, err := s.db.Exec("DELETE FROM connections WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	return requireAffected(res, name)
}

// SaveSnapshot replaces the connection's cached snapshot wholesale.
// Readers never observe a partially-written snapshot: the replace is a
// single statement.
func (s *Store) SaveSnapshot(name string, snap *schema.Snapshot) error {
	tablesJSON, err := json.Marshal(snap.Tables)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO snapshots (connection_name, tables_json, extracted_at) VALUES (?, ?, ?)",
		name, string(tablesJSON), snap.ExtractedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the cached snapshot for a connection, or
// ErrNotFound when none has been extracted yet.
func (s *Store) GetSnapshot(name string) (*schema.Snapshot, error) {
	var tablesJSON, extractedAt string
	err := s.db.QueryRow(
		"SELECT tables_json, extracted_at FROM snapshots WHERE connection_name = ?",
		name,
	).Scan(&tablesJSON, &extractedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot for %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var tables []schema.TableInfo
	if err := json.Unmarshal([]byte(tablesJSON), &tables); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, extractedAt)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot timestamp: %w", err)
	}
	return &schema.Snapshot{Tables: tables, ExtractedAt: at}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*Connection, error) {
	var (
		conn          Connection
		kind          string
		createdAt     string
		lastConnected sql.NullString
	)
	if err := row.Scan(&conn.Name, &conn.URL, &kind, &createdAt, &lastConnected); err != nil {
		return nil, err
	}
	conn.Dialect = dialect.Kind(kind)

	created, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	conn.CreatedAt = created

	if lastConnected.Valid {
		at, err := time.Parse(time.RFC3339, lastConnected.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_connected_at: %w", err)
		}
		conn.LastConnectedAt = &at
	}
	return &conn, nil
}

func requireAffected(res sql.Result, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("connection %q: %w", name, ErrNotFound)
	}
	return nil
}
