package persist

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"sync/atomic"
)

// SQLStore is a SQL-backed snapshot store.
// It works with any database/sql driver (PostgreSQL, MySQL, SQLite).
// Requires a table with schema (see CreateTable):
//
//	CREATE TABLE vstore_snapshots (
//	    snapshot_key VARCHAR(255) PRIMARY KEY,
//	    data BYTEA NOT NULL,
//	    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
//	);
type SQLStore struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect
	closed    atomic.Bool
}

// SQLDialect represents the SQL dialect for query generation.
type SQLDialect int

const (
	// DialectPostgreSQL uses PostgreSQL syntax ($1, $2 placeholders).
	DialectPostgreSQL SQLDialect = iota
	// DialectMySQL uses MySQL syntax (? placeholders).
	DialectMySQL
	// DialectSQLite uses SQLite syntax (? placeholders).
	DialectSQLite
)

// ParseDialect maps a driver or dialect name to a SQLDialect.
func ParseDialect(name string) (SQLDialect, error) {
	switch name {
	case "postgres", "postgresql", "pq", "pgx":
		return DialectPostgreSQL, nil
	case "mysql":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	}
	return 0, fmt.Errorf("unknown SQL dialect %q", name)
}

// SQLStoreOption configures SQLStore behavior.
type SQLStoreOption func(*SQLStore)

// WithSQLTableName sets the table name. Default: "vstore_snapshots".
func WithSQLTableName(name string) SQLStoreOption {
	return func(s *SQLStore) {
		s.tableName = name
	}
}

// WithSQLDialect sets the SQL dialect. Default: DialectPostgreSQL.
func WithSQLDialect(dialect SQLDialect) SQLStoreOption {
	return func(s *SQLStore) {
		s.dialect = dialect
	}
}

// NewSQLStore creates a SQL-backed snapshot store.
func NewSQLStore(db *sql.DB, opts ...SQLStoreOption) *SQLStore {
	s := &SQLStore{
		db:        db,
		tableName: "vstore_snapshots",
		dialect:   DialectPostgreSQL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SQLStore) placeholder(n int) string {
	if s.dialect == DialectPostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) saveQuery() string {
	switch s.dialect {
	case DialectMySQL:
		return fmt.Sprintf(`INSERT INTO %s (snapshot_key, data, updated_at) VALUES (?, ?, NOW())
			ON DUPLICATE KEY UPDATE data = VALUES(data), updated_at = NOW()`, s.tableName)
	case DialectSQLite:
		return fmt.Sprintf(`INSERT OR REPLACE INTO %s (snapshot_key, data, updated_at)
			VALUES (?, ?, datetime('now'))`, s.tableName)
	default:
		return fmt.Sprintf(`INSERT INTO %s (snapshot_key, data, updated_at) VALUES ($1, $2, NOW())
			ON CONFLICT (snapshot_key) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`, s.tableName)
	}
}

// Save upserts the snapshot under key.
func (s *SQLStore) Save(ctx context.Context, key string, data []byte) error {
	if s.closed.Load() {
		return errClosed("sql")
	}
	_, err := s.db.ExecContext(ctx, s.saveQuery(), key, data)
	return err
}

// Load returns the snapshot under key.
func (s *SQLStore) Load(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, errClosed("sql")
	}

	query := fmt.Sprintf(`SELECT data FROM %s WHERE snapshot_key = %s`, s.tableName, s.placeholder(1))
	var data []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&data)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Delete removes the snapshot under key.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return errClosed("sql")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE snapshot_key = %s`, s.tableName, s.placeholder(1))
	_, err := s.db.ExecContext(ctx, query, key)
	return err
}

// Close marks the store as closed. The database handle is left open, as
// it may be shared.
func (s *SQLStore) Close() error {
	s.closed.Store(true)
	return nil
}

// CreateTable creates the snapshot table if it doesn't exist.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	var query string
	switch s.dialect {
	case DialectMySQL:
		query = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			snapshot_key VARCHAR(255) PRIMARY KEY,
			data LONGBLOB NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`, s.tableName)
	case DialectSQLite:
		query = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			snapshot_key TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at TEXT DEFAULT (datetime('now'))
		)`, s.tableName)
	default:
		query = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			snapshot_key VARCHAR(255) PRIMARY KEY,
			data BYTEA NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`, s.tableName)
	}
	_, err := s.db.ExecContext(ctx, query)
	return err
}
