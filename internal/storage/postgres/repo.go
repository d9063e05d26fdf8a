// Package postgres implements a Postgres storage.Store using pgx v5. Schema
// commits run in SERIALIZABLE transactions, so two writers that read the same
// current version cannot both commit.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"dynetl/internal/ddl"
	"dynetl/internal/schema"
	"dynetl/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN      string // connection string for pgxpool
	MaxConns int32
}

// Repository is a Postgres-backed implementation of storage.Store.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ storage.Store = (*Repository)(nil)

// Dialect renders the store tables for Postgres.
var Dialect = ddl.Dialect{
	Name:    "postgres",
	Quote:   pgIdent,
	MapType: MapType,
}

// MapType maps a logical column kind into a Postgres column type.
func MapType(kind string) string {
	switch kind {
	case ddl.KindID:
		return "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
	case ddl.KindInt:
		return "BIGINT"
	case ddl.KindText, ddl.KindTime:
		return "TEXT"
	default:
		return ""
	}
}

// pgIdent quotes an identifier the way pgx does for COPY targets.
func pgIdent(id string) string { return pgx.Identifier{id}.Sanitize() }

const (
	qCurrent      = `SELECT version, schema FROM schema_history ORDER BY version DESC LIMIT 1`
	qInsertSchema = `INSERT INTO schema_history (version, schema, created_at) VALUES ($1, $2, $3)`
	qInsertChange = `INSERT INTO schema_changes (old_version, new_version, added_fields, removed_fields, created_at) VALUES ($1, $2, $3, $4, $5)`
	qInsertRecord = `INSERT INTO records (data, schema_version, ingested_at, quality_issues) VALUES ($1, $2, $3, $4) RETURNING id`
	qSchemas      = `SELECT version, schema, created_at FROM schema_history ORDER BY version ASC`
	qChanges      = `SELECT id, old_version, new_version, added_fields, removed_fields, created_at FROM schema_changes ORDER BY id DESC`
	qRecent       = `SELECT id, data, schema_version, ingested_at, quality_issues FROM records ORDER BY id DESC LIMIT $1`
	qByVersion    = `SELECT id, data, schema_version, ingested_at, quality_issues FROM records WHERE schema_version = $1 ORDER BY id DESC LIMIT $2`
)

// SQLSTATE codes treated as a lost commit race.
const (
	sqlStateUniqueViolation      = "23505"
	sqlStateSerializationFailure = "40001"
)

// NewRepository constructs a Repository, creates the store tables and returns
// a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	r := &Repository{pool: pool, now: time.Now}
	if err := r.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return r, func() { pool.Close() }, nil
}

// Migrate creates the store tables and indexes.
func (r *Repository) Migrate(ctx context.Context) error {
	return storage.Bootstrap(ctx, Dialect, func(ctx context.Context, stmt string) error {
		_, err := r.pool.Exec(ctx, stmt)
		return err
	})
}

// Close closes the pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func current(ctx context.Context, q rowQuerier) (int, schema.Schema, error) {
	var (
		version int
		doc     string
	)
	err := q.QueryRow(ctx, qCurrent).Scan(&version, &doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, schema.Schema{}, nil
	}
	if err != nil {
		return 0, schema.Schema{}, fmt.Errorf("postgres: current version: %w", err)
	}
	s, err := schema.Unmarshal([]byte(doc))
	if err != nil {
		return 0, schema.Schema{}, fmt.Errorf("postgres: version %d: %w", version, err)
	}
	return version, s, nil
}

// CurrentVersion implements storage.SchemaStore.
func (r *Repository) CurrentVersion(ctx context.Context) (int, schema.Schema, error) {
	return current(ctx, r.pool)
}

// Commit implements storage.SchemaStore.
func (r *Repository) Commit(ctx context.Context, s schema.Schema) (int, error) {
	doc, err := schema.Marshal(s)
	if err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}

	var next int
	err = pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		cur, prev, err := current(ctx, tx)
		if err != nil {
			return err
		}
		next = cur + 1
		ts := storage.FormatTime(r.now())
		if _, err := tx.Exec(ctx, qInsertSchema, next, string(doc), ts); err != nil {
			return fmt.Errorf("insert schema: %w", err)
		}
		if added, removed, ok := storage.ChangeBetween(cur, prev, s); ok {
			if _, err := tx.Exec(ctx, qInsertChange,
				cur, next, storage.EncodeList(added), storage.EncodeList(removed), ts); err != nil {
				return fmt.Errorf("insert change: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, wrapErr("commit", err)
	}
	return next, nil
}

// wrapErr adds PgError detail like the loader does and maps lost races to
// storage.ErrConflict.
func wrapErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("postgres: %s: %w", op, err)
	}
	switch pgErr.Code {
	case sqlStateUniqueViolation, sqlStateSerializationFailure:
		return fmt.Errorf("postgres: %s: %w: %s (%s)", op, storage.ErrConflict, pgErr.Message, pgErr.SQLState())
	}
	if pgErr.Detail != "" {
		return fmt.Errorf("postgres: %s: %s (%s): %w", op, pgErr.Detail, pgErr.SQLState(), err)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}

// Schemas implements storage.SchemaStore.
func (r *Repository) Schemas(ctx context.Context) ([]storage.SchemaVersion, error) {
	rows, err := r.pool.Query(ctx, qSchemas)
	if err != nil {
		return nil, wrapErr("list schemas", err)
	}
	defer rows.Close()

	out := []storage.SchemaVersion{}
	for rows.Next() {
		var (
			v       storage.SchemaVersion
			doc, ts string
		)
		if err := rows.Scan(&v.Version, &doc, &ts); err != nil {
			return nil, wrapErr("scan schema", err)
		}
		if v.Schema, err = schema.Unmarshal([]byte(doc)); err != nil {
			return nil, err
		}
		if v.CreatedAt, err = storage.ParseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Changes implements storage.SchemaStore.
func (r *Repository) Changes(ctx context.Context) ([]storage.SchemaChange, error) {
	rows, err := r.pool.Query(ctx, qChanges)
	if err != nil {
		return nil, wrapErr("list changes", err)
	}
	defer rows.Close()

	out := []storage.SchemaChange{}
	for rows.Next() {
		var (
			c                  storage.SchemaChange
			added, removed, ts string
		)
		if err := rows.Scan(&c.ID, &c.OldVersion, &c.NewVersion, &added, &removed, &ts); err != nil {
			return nil, wrapErr("scan change", err)
		}
		if c.Added, err = storage.DecodeList(added); err != nil {
			return nil, err
		}
		if c.Removed, err = storage.DecodeList(removed); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = storage.ParseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Append implements storage.RecordStore.
func (r *Repository) Append(ctx context.Context, payload []byte, version int, ingestedAt time.Time, issues []string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, qInsertRecord,
		string(payload), version, storage.FormatTime(ingestedAt), storage.EncodeIssues(issues),
	).Scan(&id)
	if err != nil {
		return 0, wrapErr("append record", err)
	}
	return id, nil
}

// ListRecent implements storage.RecordStore.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]storage.StoredRecord, error) {
	rows, err := r.pool.Query(ctx, qRecent, limit)
	if err != nil {
		return nil, wrapErr("list records", err)
	}
	return scanRecords(rows)
}

// ListByVersion implements storage.RecordStore.
func (r *Repository) ListByVersion(ctx context.Context, version, limit int) ([]storage.StoredRecord, error) {
	rows, err := r.pool.Query(ctx, qByVersion, version, limit)
	if err != nil {
		return nil, wrapErr("list records", err)
	}
	return scanRecords(rows)
}

func scanRecords(rows pgx.Rows) ([]storage.StoredRecord, error) {
	defer rows.Close()

	out := []storage.StoredRecord{}
	for rows.Next() {
		var (
			rec      storage.StoredRecord
			data, ts string
			issues   sql.NullString
		)
		if err := rows.Scan(&rec.ID, &data, &rec.SchemaVersion, &ts, &issues); err != nil {
			return nil, wrapErr("scan record", err)
		}
		rec.Data = []byte(data)
		var err error
		if rec.IngestedAt, err = storage.ParseTime(ts); err != nil {
			return nil, err
		}
		if rec.Issues, err = storage.DecodeIssues(issues); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
