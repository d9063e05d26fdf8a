// Package mysql implements a MySQL-backed storage.Store over database/sql
// and go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"

	"dynetl/internal/ddl"
	"dynetl/internal/storage/sqlstore"
)

// Config holds MySQL repository configuration.
type Config struct {
	DSN      string // go-sql-driver DSN, e.g. "user:pass@tcp(host:3306)/dynetl"
	MaxConns int
}

// Repository is the MySQL store.
type Repository struct {
	*sqlstore.Store
}

// Dialect renders the store tables for MySQL. MySQL has no
// CREATE INDEX IF NOT EXISTS, so indexes are declared inline.
var Dialect = ddl.Dialect{
	Name:          "mysql",
	Quote:         quoteIdent,
	MapType:       MapType,
	InlineIndexes: true,
}

// MapType maps a logical column kind into a MySQL column type.
func MapType(kind string) string {
	switch kind {
	case ddl.KindID:
		return "BIGINT AUTO_INCREMENT PRIMARY KEY"
	case ddl.KindInt:
		return "BIGINT"
	case ddl.KindText:
		return "LONGTEXT"
	case ddl.KindTime:
		return "VARCHAR(40)"
	default:
		return ""
	}
}

func quoteIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// schema is a reserved word in MySQL.
var queries = sqlstore.Queries{
	Current:      "SELECT version, `schema` FROM schema_history ORDER BY version DESC LIMIT 1",
	InsertSchema: "INSERT INTO schema_history (version, `schema`, created_at) VALUES (?, ?, ?)",
	InsertChange: "INSERT INTO schema_changes (old_version, new_version, added_fields, removed_fields, created_at) VALUES (?, ?, ?, ?, ?)",
	InsertRecord: "INSERT INTO records (data, schema_version, ingested_at, quality_issues) VALUES (?, ?, ?, ?)",
	Schemas:      "SELECT version, `schema`, created_at FROM schema_history ORDER BY version ASC",
	Changes:      "SELECT id, old_version, new_version, added_fields, removed_fields, created_at FROM schema_changes ORDER BY id DESC",
	Recent:       "SELECT id, data, schema_version, ingested_at, quality_issues FROM records ORDER BY id DESC LIMIT ?",
	ByVersion:    "SELECT id, data, schema_version, ingested_at, quality_issues FROM records WHERE schema_version = ? ORDER BY id DESC LIMIT ?",
}

// MySQL error numbers treated as a lost commit race.
const (
	errDupEntry     = 1062
	errLockWait     = 1205
	errLockDeadlock = 1213
)

// Flavor is the sqlstore configuration for MySQL. Commits run SERIALIZABLE so
// the read of the current version takes shared locks.
var Flavor = sqlstore.Flavor{
	DDL:        Dialect,
	Queries:    queries,
	IsConflict: isConflict,
	TxOptions:  &sql.TxOptions{Isolation: sql.LevelSerializable},
}

func isConflict(err error) bool {
	var me *mysqldrv.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	switch me.Number {
	case errDupEntry, errLockWait, errLockDeadlock:
		return true
	}
	return false
}

// normalizeDSN validates the DSN and pins the options the store needs.
func normalizeDSN(dsn string) (string, error) {
	c, err := mysqldrv.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	if c.Params == nil {
		c.Params = map[string]string{}
	}
	if _, ok := c.Params["charset"]; !ok {
		c.Params["charset"] = "utf8mb4"
	}
	return c.FormatDSN(), nil
}

// NewRepository opens the pool, creates the store tables and returns the
// Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: open: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}

	r := &Repository{Store: sqlstore.New(db, Flavor)}
	if err := r.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return r, func() { _ = db.Close() }, nil
}
