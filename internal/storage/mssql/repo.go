// Package mssql implements a Microsoft SQL Server storage.Store over
// database/sql and go-mssqldb.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"dynetl/internal/ddl"
	"dynetl/internal/storage/sqlstore"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN      string
	MaxConns int
}

// Repository is the SQL Server store.
type Repository struct {
	*sqlstore.Store
}

// Dialect renders the store tables for SQL Server. T-SQL has no
// CREATE ... IF NOT EXISTS, so tables and indexes get existence guards.
var Dialect = ddl.Dialect{
	Name:       "mssql",
	Quote:      msIdent,
	MapType:    MapType,
	GuardTable: guardTable,
	GuardIndex: guardIndex,
}

// MapType maps a logical column kind into a SQL Server column type.
func MapType(kind string) string {
	switch kind {
	case ddl.KindID:
		return "BIGINT IDENTITY(1,1) PRIMARY KEY"
	case ddl.KindInt:
		return "BIGINT"
	case ddl.KindText:
		return "NVARCHAR(MAX)"
	case ddl.KindTime:
		return "NVARCHAR(40)"
	default:
		return ""
	}
}

// guardTable wraps CREATE TABLE as
//
//	IF OBJECT_ID(N'[table]', N'U') IS NULL
//	BEGIN
//	  CREATE TABLE ...
//	END
func guardTable(table, stmt string) string {
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n%s\nEND", msIdent(table), stmt)
}

func guardIndex(table, index, stmt string) string {
	return fmt.Sprintf(
		"IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'%s' AND object_id = OBJECT_ID(N'%s'))\n%s",
		strings.ReplaceAll(index, "'", "''"), msIdent(table), stmt,
	)
}

// msIdent safely quotes a SQL Server identifier using [brackets], escaping ].
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// UPDLOCK+HOLDLOCK on the version read keeps a second committer waiting
// until the first transaction ends.
var queries = sqlstore.Queries{
	Current:         `SELECT TOP 1 version, [schema] FROM schema_history WITH (UPDLOCK, HOLDLOCK) ORDER BY version DESC`,
	InsertSchema:    `INSERT INTO schema_history (version, [schema], created_at) VALUES (@p1, @p2, @p3)`,
	InsertChange:    `INSERT INTO schema_changes (old_version, new_version, added_fields, removed_fields, created_at) VALUES (@p1, @p2, @p3, @p4, @p5)`,
	InsertRecord:    `INSERT INTO records (data, schema_version, ingested_at, quality_issues) OUTPUT INSERTED.id VALUES (@p1, @p2, @p3, @p4)`,
	InsertReturnsID: true,
	Schemas:         `SELECT version, [schema], created_at FROM schema_history ORDER BY version ASC`,
	Changes:         `SELECT id, old_version, new_version, added_fields, removed_fields, created_at FROM schema_changes ORDER BY id DESC`,
	Recent:          `SELECT TOP (@p1) id, data, schema_version, ingested_at, quality_issues FROM records ORDER BY id DESC`,
	ByVersion:       `SELECT TOP (@p2) id, data, schema_version, ingested_at, quality_issues FROM records WHERE schema_version = @p1 ORDER BY id DESC`,
}

// SQL Server error numbers treated as a lost commit race.
const (
	errPKViolation     = 2627
	errUniqueViolation = 2601
	errDeadlock        = 1205
)

// Flavor is the sqlstore configuration for SQL Server.
var Flavor = sqlstore.Flavor{
	DDL:        Dialect,
	Queries:    queries,
	IsConflict: isConflict,
}

func isConflict(err error) bool {
	var me mssql.Error
	if !errors.As(err, &me) {
		return false
	}
	switch me.Number {
	case errPKViolation, errUniqueViolation, errDeadlock:
		return true
	}
	return false
}

// NewRepository constructs a Repository, creates the store tables and returns
// a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}

	r := &Repository{Store: sqlstore.New(db, Flavor)}
	if err := r.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return r, func() { _ = db.Close() }, nil
}
