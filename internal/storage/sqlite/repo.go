// Package sqlite implements a SQLite-backed storage.Store using database/sql
// and the pure-Go modernc driver. The pool is limited to a single connection:
// SQLite serializes writers anyway, and a private :memory: database only
// exists on the connection that created it.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"dynetl/internal/ddl"
	"dynetl/internal/storage/sqlstore"
)

// Repository is the SQLite store.
type Repository struct {
	*sqlstore.Store
}

// Dialect renders the store tables for SQLite.
var Dialect = ddl.Dialect{
	Name:    "sqlite",
	Quote:   ddl.QuoteDouble,
	MapType: MapType,
}

// MapType maps a logical column kind into a SQLite column type. SQLite is
// dynamically typed, so the mapping only picks affinities; timestamps are
// ISO-8601 text.
func MapType(kind string) string {
	switch kind {
	case ddl.KindID:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	case ddl.KindInt:
		return "INTEGER"
	case ddl.KindText, ddl.KindTime:
		return "TEXT"
	default:
		return ""
	}
}

var queries = sqlstore.Queries{
	Current:      `SELECT version, schema FROM schema_history ORDER BY version DESC LIMIT 1`,
	InsertSchema: `INSERT INTO schema_history (version, schema, created_at) VALUES (?, ?, ?)`,
	InsertChange: `INSERT INTO schema_changes (old_version, new_version, added_fields, removed_fields, created_at) VALUES (?, ?, ?, ?, ?)`,
	InsertRecord: `INSERT INTO records (data, schema_version, ingested_at, quality_issues) VALUES (?, ?, ?, ?)`,
	Schemas:      `SELECT version, schema, created_at FROM schema_history ORDER BY version ASC`,
	Changes:      `SELECT id, old_version, new_version, added_fields, removed_fields, created_at FROM schema_changes ORDER BY id DESC`,
	Recent:       `SELECT id, data, schema_version, ingested_at, quality_issues FROM records ORDER BY id DESC LIMIT ?`,
	ByVersion:    `SELECT id, data, schema_version, ingested_at, quality_issues FROM records WHERE schema_version = ? ORDER BY id DESC LIMIT ?`,
}

// Flavor is the sqlstore configuration for SQLite.
var Flavor = sqlstore.Flavor{
	DDL:        Dialect,
	Queries:    queries,
	IsConflict: isConflict,
}

func isConflict(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_BUSY:
		return true
	}
	return false
}

// Open opens a SQLite database with a single pooled connection and the
// pragmas the store relies on.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply a basic ping with context to fail fast on invalid DSNs.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if !cfg.inMemory() {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}
	return db, nil
}

// NewRepository opens the database, creates the store tables and returns the
// Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	r := &Repository{Store: sqlstore.New(db, Flavor)}
	if err := r.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	closeFn := func() { db.Close() }
	return r, closeFn, nil
}
