package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"dynetl/internal/schema"
	"dynetl/internal/storage"
	"dynetl/pkg/records"
)

/*
Package-level test helpers (TB-aware)
*/

func newRepo(tb testing.TB) *Repository {
	tb.Helper()
	r, closeFn, err := NewRepository(context.Background(), Config{DSN: ":memory:"})
	if err != nil {
		tb.Fatalf("open sqlite :memory:: %v", err)
	}
	tb.Cleanup(closeFn)
	return r
}

func fields(names ...string) schema.Schema {
	r := records.Record{}
	for _, n := range names {
		r[n] = "v"
	}
	return schema.Infer([]records.Record{r})
}

func mustCommit(tb testing.TB, r *Repository, s schema.Schema) int {
	tb.Helper()
	v, err := r.Commit(context.Background(), s)
	if err != nil {
		tb.Fatalf("commit: %v", err)
	}
	return v
}

/*
Schema store
*/

func TestCurrentVersion_Empty(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	v, s, err := r.CurrentVersion(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 || !s.IsZero() {
		t.Fatalf("CurrentVersion=(%d,%+v); want (0, zero)", v, s)
	}
}

// TestCommit_IncrementsAndNeverDedups checks that every commit yields
// previous+1, even for an identical schema, and that identical schemas do not
// produce change entries.
func TestCommit_IncrementsAndNeverDedups(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	ctx := context.Background()
	s := fields("a", "b")

	for want := 1; want <= 3; want++ {
		if got := mustCommit(t, r, s); got != want {
			t.Fatalf("commit #%d returned %d", want, got)
		}
	}
	v, cur, err := r.CurrentVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != 3 || !schema.SameFields(cur, s) {
		t.Fatalf("CurrentVersion=(%d,%v)", v, cur.FieldSet())
	}
	changes, err := r.Changes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 0 {
		t.Fatalf("identical commits produced changes: %+v", changes)
	}
}

func TestCommit_ChangeLog(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	ctx := context.Background()

	mustCommit(t, r, fields("a", "b"))
	mustCommit(t, r, fields("b", "c", "d"))
	mustCommit(t, r, fields("b", "c", "d"))
	mustCommit(t, r, fields("d"))

	changes, err := r.Changes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 2 {
		t.Fatalf("got %d changes; want 2: %+v", len(changes), changes)
	}
	// newest first
	c := changes[0]
	if c.OldVersion != 3 || c.NewVersion != 4 ||
		!reflect.DeepEqual(c.Added, []string{}) || !reflect.DeepEqual(c.Removed, []string{"b", "c"}) {
		t.Fatalf("changes[0]=%+v", c)
	}
	c = changes[1]
	if c.OldVersion != 1 || c.NewVersion != 2 ||
		!reflect.DeepEqual(c.Added, []string{"c", "d"}) || !reflect.DeepEqual(c.Removed, []string{"a"}) {
		t.Fatalf("changes[1]=%+v", c)
	}
	if changes[0].ID <= changes[1].ID {
		t.Fatalf("change ids not newest first: %d, %d", changes[0].ID, changes[1].ID)
	}
}

func TestSchemas_Ascending(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	r.SetClock(func() time.Time { return ts })

	mustCommit(t, r, fields("a"))
	mustCommit(t, r, fields("a", "b"))

	got, err := r.Schemas(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Version != 1 || got[1].Version != 2 {
		t.Fatalf("Schemas=%+v", got)
	}
	if !reflect.DeepEqual(got[1].Schema.FieldSet(), []string{"a", "b"}) {
		t.Fatalf("v2 fields=%v", got[1].Schema.FieldSet())
	}
	if !got[0].CreatedAt.Equal(ts) {
		t.Fatalf("CreatedAt=%v; want %v", got[0].CreatedAt, ts)
	}
}

// TestCommit_DuplicateVersionIsConflict simulates a writer that raced ahead:
// a trigger inserts the version the store is about to claim, so the store's
// own insert violates the primary key.
func TestCommit_DuplicateVersionIsConflict(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	ctx := context.Background()
	mustCommit(t, r, fields("a"))

	if _, err := r.DB().ExecContext(ctx, `
		CREATE TRIGGER race BEFORE INSERT ON schema_history
		WHEN NEW.version = 2 AND NOT EXISTS (SELECT 1 FROM schema_history WHERE version = 2)
		BEGIN
			INSERT INTO schema_history (version, schema, created_at) VALUES (2, '{}', '2025-01-01T00:00:00Z');
		END`); err != nil {
		t.Fatal(err)
	}
	_, err := r.Commit(ctx, fields("b"))
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err=%v; want ErrConflict", err)
	}

	// The failed transaction left nothing behind.
	v, cur, err := r.CurrentVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 || !reflect.DeepEqual(cur.FieldSet(), []string{"a"}) {
		t.Fatalf("after conflict CurrentVersion=(%d,%v)", v, cur.FieldSet())
	}
}

/*
Record store
*/

func TestAppendAndList(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	ctx := context.Background()

	id1, err := r.Append(ctx, []byte(`{"a":1}`), 1, time.Now(), nil)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := r.Append(ctx, []byte(`{"b":2}`), 2, time.Now(), []string{"Missing field: 'a'"})
	if err != nil {
		t.Fatal(err)
	}
	if id2 <= id1 {
		t.Fatalf("ids not increasing: %d, %d", id1, id2)
	}

	got, err := r.ListRecent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != id2 || got[1].ID != id1 {
		t.Fatalf("ListRecent order: %+v", got)
	}
	if got[1].Issues != nil {
		t.Fatalf("clean record issues=%q; want nil", got[1].Issues)
	}
	if !reflect.DeepEqual(got[0].Issues, []string{"Missing field: 'a'"}) {
		t.Fatalf("issues=%q", got[0].Issues)
	}
	var payload map[string]any
	if err := json.Unmarshal(got[1].Data, &payload); err != nil || payload["a"] != float64(1) {
		t.Fatalf("payload=%s err=%v", got[1].Data, err)
	}
	if got[0].SchemaVersion != 2 || got[0].IngestedAt.IsZero() {
		t.Fatalf("record=%+v", got[0])
	}

	var isNull bool
	if err := r.DB().QueryRowContext(ctx,
		`SELECT quality_issues IS NULL FROM records WHERE id = ?`, id1).Scan(&isNull); err != nil {
		t.Fatal(err)
	}
	if !isNull {
		t.Fatal("empty issues should be stored as SQL NULL")
	}

	byV, err := r.ListByVersion(ctx, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(byV) != 1 || byV[0].ID != id1 {
		t.Fatalf("ListByVersion=%+v", byV)
	}

	limited, err := r.ListRecent(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].ID != id2 {
		t.Fatalf("limit ignored: %+v", limited)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	for i := 0; i < 2; i++ {
		if err := r.Migrate(context.Background()); err != nil {
			t.Fatalf("migrate #%d: %v", i+2, err)
		}
	}
	var n int
	if err := r.DB().QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_records_schema'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("idx_records_schema count=%d", n)
	}
}
