// Package storage defines the persistent contracts of the ingestion engine and
// a small registry of backends.
//
// A backend implements Store, which bundles the SchemaStore (versioned schema
// history plus change log) and the RecordStore (append-only annotated
// records). The two are coupled only through the schema_version column.
//
// Backends register a Factory under a kind name from their init function;
// importing internal/storage/all enables every built-in backend.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"dynetl/internal/schema"
)

var (
	// ErrUnknownKind is returned by New for a kind nobody registered.
	ErrUnknownKind = errors.New("unsupported storage.kind")

	// ErrConflict marks a commit that lost a race with another writer (for
	// example a duplicate schema_history version or a serialization failure).
	ErrConflict = errors.New("storage: concurrent schema commit")
)

// SchemaVersion is one row of the schema history.
type SchemaVersion struct {
	Version   int           `json:"version"`
	Schema    schema.Schema `json:"schema"`
	CreatedAt time.Time     `json:"created_at"`
}

// SchemaChange records the field-set difference between two consecutive
// versions. Added and Removed are sorted and disjoint.
type SchemaChange struct {
	ID         int64     `json:"id"`
	OldVersion int       `json:"old_version"`
	NewVersion int       `json:"new_version"`
	Added      []string  `json:"added_fields"`
	Removed    []string  `json:"removed_fields"`
	CreatedAt  time.Time `json:"created_at"`
}

// StoredRecord is one persisted record. Issues is nil when the record matched
// its schema.
type StoredRecord struct {
	ID            int64           `json:"id"`
	Data          json.RawMessage `json:"data"`
	SchemaVersion int             `json:"schema_version"`
	IngestedAt    time.Time       `json:"ingested_at"`
	Issues        []string        `json:"quality_issues"`
}

// SchemaStore owns schema_history and schema_changes.
type SchemaStore interface {
	// CurrentVersion returns the highest committed version and its schema,
	// or (0, zero Schema) before the first commit.
	CurrentVersion(ctx context.Context) (int, schema.Schema, error)

	// Commit appends s as version current+1 and, when a previous version
	// exists and the field sets differ, a change entry. Both writes and the
	// read of the current version happen in one transaction. Commit never
	// deduplicates; callers decide whether a commit is warranted.
	Commit(ctx context.Context, s schema.Schema) (int, error)

	// Schemas lists every version in ascending order.
	Schemas(ctx context.Context) ([]SchemaVersion, error)

	// Changes lists the change log newest first.
	Changes(ctx context.Context) ([]SchemaChange, error)
}

// RecordStore owns the records table.
type RecordStore interface {
	// Append stores one serialized record atomically and returns its id.
	// ingestedAt is the same instant the payload carries; empty issues are
	// stored as SQL NULL.
	Append(ctx context.Context, payload []byte, version int, ingestedAt time.Time, issues []string) (int64, error)

	// ListRecent returns up to limit records, newest first.
	ListRecent(ctx context.Context, limit int) ([]StoredRecord, error)

	// ListByVersion returns up to limit records of one schema version,
	// newest first.
	ListByVersion(ctx context.Context, version, limit int) ([]StoredRecord, error)
}

// Store is what a backend provides.
type Store interface {
	SchemaStore
	RecordStore

	// Migrate creates the tables and indexes if they do not exist.
	Migrate(ctx context.Context) error

	Close() error
}

// Config selects and parameterizes a backend.
type Config struct {
	Kind     string
	DSN      string
	MaxConns int
}

// Factory opens a Store for cfg.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. A later registration for
// the same kind replaces the earlier one.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens the backend registered under cfg.Kind.
func New(ctx context.Context, cfg Config) (Store, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w=%s", ErrUnknownKind, cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
