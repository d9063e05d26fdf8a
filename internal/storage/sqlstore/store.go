// Package sqlstore implements storage.Store on top of database/sql. The SQLite,
// MySQL and SQL Server backends share it and differ only in their Flavor:
// DDL dialect, query text and how the driver reports key conflicts.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dynetl/internal/ddl"
	"dynetl/internal/schema"
	"dynetl/internal/storage"
)

// Queries holds the dialect-specific statement text. Argument order is fixed
// and documented per field.
type Queries struct {
	// Current selects (version, schema) of the highest version, at most one row.
	Current string
	// InsertSchema binds (version, schema, created_at).
	InsertSchema string
	// InsertChange binds (old_version, new_version, added_fields, removed_fields, created_at).
	InsertChange string
	// InsertRecord binds (data, schema_version, ingested_at, quality_issues).
	InsertRecord string
	// InsertReturnsID is set when InsertRecord yields the new id as a row
	// instead of through sql.Result.LastInsertId.
	InsertReturnsID bool
	// Schemas selects (version, schema, created_at) ascending.
	Schemas string
	// Changes selects (id, old_version, new_version, added_fields, removed_fields, created_at) newest first.
	Changes string
	// Recent binds (limit) and selects (id, data, schema_version, ingested_at, quality_issues) newest first.
	Recent string
	// ByVersion binds (schema_version, limit) with the same projection as Recent.
	ByVersion string
}

// Flavor is everything a database/sql backend contributes.
type Flavor struct {
	DDL     ddl.Dialect
	Queries Queries
	// IsConflict reports a primary key violation; may be nil.
	IsConflict func(error) bool
	// TxOptions for Commit; nil uses the driver default.
	TxOptions *sql.TxOptions
}

// Store is a storage.Store over one *sql.DB.
type Store struct {
	db  *sql.DB
	f   Flavor
	now func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New wraps an open database. The caller keeps ownership of connection pool
// tuning; Close closes db.
func New(db *sql.DB, f Flavor) *Store {
	return &Store{db: db, f: f, now: time.Now}
}

// SetClock replaces the timestamp source (tests).
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the store tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	return storage.Bootstrap(ctx, s.f.DDL, func(ctx context.Context, stmt string) error {
		_, err := s.db.ExecContext(ctx, stmt)
		return err
	})
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) current(ctx context.Context, q queryer) (int, schema.Schema, error) {
	var (
		version int
		doc     string
	)
	err := q.QueryRowContext(ctx, s.f.Queries.Current).Scan(&version, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, schema.Schema{}, nil
	}
	if err != nil {
		return 0, schema.Schema{}, fmt.Errorf("%s: current version: %w", s.f.DDL.Name, err)
	}
	sch, err := schema.Unmarshal([]byte(doc))
	if err != nil {
		return 0, schema.Schema{}, fmt.Errorf("%s: version %d: %w", s.f.DDL.Name, version, err)
	}
	return version, sch, nil
}

// CurrentVersion implements storage.SchemaStore.
func (s *Store) CurrentVersion(ctx context.Context) (int, schema.Schema, error) {
	return s.current(ctx, s.db)
}

// Commit implements storage.SchemaStore.
func (s *Store) Commit(ctx context.Context, sch schema.Schema) (int, error) {
	doc, err := schema.Marshal(sch)
	if err != nil {
		return 0, fmt.Errorf("%s: commit: %w", s.f.DDL.Name, err)
	}

	tx, err := s.db.BeginTx(ctx, s.f.TxOptions)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", s.f.DDL.Name, err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, prev, err := s.current(ctx, tx)
	if err != nil {
		return 0, err
	}
	next := cur + 1
	ts := storage.FormatTime(s.now())

	if _, err := tx.ExecContext(ctx, s.f.Queries.InsertSchema, next, string(doc), ts); err != nil {
		return 0, s.wrapConflict("insert schema", err)
	}
	if added, removed, ok := storage.ChangeBetween(cur, prev, sch); ok {
		if _, err := tx.ExecContext(ctx, s.f.Queries.InsertChange,
			cur, next, storage.EncodeList(added), storage.EncodeList(removed), ts); err != nil {
			return 0, fmt.Errorf("%s: insert change: %w", s.f.DDL.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, s.wrapConflict("commit", err)
	}
	return next, nil
}

func (s *Store) wrapConflict(op string, err error) error {
	if s.f.IsConflict != nil && s.f.IsConflict(err) {
		return fmt.Errorf("%s: %s: %w: %v", s.f.DDL.Name, op, storage.ErrConflict, err)
	}
	return fmt.Errorf("%s: %s: %w", s.f.DDL.Name, op, err)
}

// Schemas implements storage.SchemaStore.
func (s *Store) Schemas(ctx context.Context) ([]storage.SchemaVersion, error) {
	rows, err := s.db.QueryContext(ctx, s.f.Queries.Schemas)
	if err != nil {
		return nil, fmt.Errorf("%s: list schemas: %w", s.f.DDL.Name, err)
	}
	defer rows.Close()

	out := []storage.SchemaVersion{}
	for rows.Next() {
		var (
			v       storage.SchemaVersion
			doc, ts string
		)
		if err := rows.Scan(&v.Version, &doc, &ts); err != nil {
			return nil, fmt.Errorf("%s: scan schema: %w", s.f.DDL.Name, err)
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
func (s *Store) Changes(ctx context.Context) ([]storage.SchemaChange, error) {
	rows, err := s.db.QueryContext(ctx, s.f.Queries.Changes)
	if err != nil {
		return nil, fmt.Errorf("%s: list changes: %w", s.f.DDL.Name, err)
	}
	defer rows.Close()

	out := []storage.SchemaChange{}
	for rows.Next() {
		var (
			c                  storage.SchemaChange
			added, removed, ts string
		)
		if err := rows.Scan(&c.ID, &c.OldVersion, &c.NewVersion, &added, &removed, &ts); err != nil {
			return nil, fmt.Errorf("%s: scan change: %w", s.f.DDL.Name, err)
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
func (s *Store) Append(ctx context.Context, payload []byte, version int, ingestedAt time.Time, issues []string) (int64, error) {
	args := []any{string(payload), version, storage.FormatTime(ingestedAt), storage.EncodeIssues(issues)}
	if s.f.Queries.InsertReturnsID {
		var id int64
		if err := s.db.QueryRowContext(ctx, s.f.Queries.InsertRecord, args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("%s: append record: %w", s.f.DDL.Name, err)
		}
		return id, nil
	}
	res, err := s.db.ExecContext(ctx, s.f.Queries.InsertRecord, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: append record: %w", s.f.DDL.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: last insert id: %w", s.f.DDL.Name, err)
	}
	return id, nil
}

// ListRecent implements storage.RecordStore.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]storage.StoredRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.f.Queries.Recent, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: list records: %w", s.f.DDL.Name, err)
	}
	return s.scanRecords(rows)
}

// ListByVersion implements storage.RecordStore.
func (s *Store) ListByVersion(ctx context.Context, version, limit int) ([]storage.StoredRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.f.Queries.ByVersion, version, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: list records v%d: %w", s.f.DDL.Name, version, err)
	}
	return s.scanRecords(rows)
}

func (s *Store) scanRecords(rows *sql.Rows) ([]storage.StoredRecord, error) {
	defer rows.Close()

	out := []storage.StoredRecord{}
	for rows.Next() {
		var (
			r        storage.StoredRecord
			data, ts string
			issues   sql.NullString
		)
		if err := rows.Scan(&r.ID, &data, &r.SchemaVersion, &ts, &issues); err != nil {
			return nil, fmt.Errorf("%s: scan record: %w", s.f.DDL.Name, err)
		}
		r.Data = []byte(data)
		var err error
		if r.IngestedAt, err = storage.ParseTime(ts); err != nil {
			return nil, err
		}
		if r.Issues, err = storage.DecodeIssues(issues); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
