// Package storagetest holds a behavioural suite every storage.Store backend
// must pass. Backends call Run from their own tests; the SQL engines other
// than SQLite do so behind the integration build tag.
package storagetest

import (
	"context"
	"reflect"
	"testing"
	"time"

	"dynetl/internal/schema"
	"dynetl/internal/storage"
	"dynetl/pkg/records"
)

// Fields builds a schema whose properties are exactly names.
func Fields(names ...string) schema.Schema {
	r := records.Record{}
	for _, n := range names {
		r[n] = "v"
	}
	return schema.Infer([]records.Record{r})
}

// Run exercises st. The store must be empty.
func Run(t *testing.T, st storage.Store) {
	t.Helper()
	ctx := context.Background()

	v, s, err := st.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentVersion on empty store: %v", err)
	}
	if v != 0 || !s.IsZero() {
		t.Fatalf("empty store CurrentVersion=(%d,%v)", v, s.FieldSet())
	}

	steps := []struct {
		fields []string
		change bool
	}{
		{[]string{"a", "b"}, false}, // first commit never logs a change
		{[]string{"a", "b"}, false}, // same fields, new version, no change
		{[]string{"b", "c"}, true},
	}
	for i, step := range steps {
		before, _, err := st.CurrentVersion(ctx)
		if err != nil {
			t.Fatal(err)
		}
		got, err := st.Commit(ctx, Fields(step.fields...))
		if err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
		if got != before+1 {
			t.Fatalf("commit %d returned %d; want %d", i, got, before+1)
		}
	}

	changes, err := st.Changes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 1 {
		t.Fatalf("changes=%+v; want exactly one", changes)
	}
	c := changes[0]
	if c.OldVersion != 2 || c.NewVersion != 3 ||
		!reflect.DeepEqual(c.Added, []string{"c"}) || !reflect.DeepEqual(c.Removed, []string{"a"}) {
		t.Fatalf("change=%+v", c)
	}

	versions, err := st.Schemas(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 3 {
		t.Fatalf("Schemas len=%d; want 3", len(versions))
	}
	for i, sv := range versions {
		if sv.Version != i+1 {
			t.Fatalf("Schemas not ascending: %+v", versions)
		}
	}

	at := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	clean, err := st.Append(ctx, []byte(`{"b":1,"c":2}`), 3, at, nil)
	if err != nil {
		t.Fatal(err)
	}
	flagged, err := st.Append(ctx, []byte(`{"b":1}`), 3, at, []string{"Missing field: 'c'"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.Append(ctx, []byte(`{"a":1}`), 1, at, nil); err != nil {
		t.Fatal(err)
	}

	recent, err := st.ListRecent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[1].ID != flagged {
		t.Fatalf("ListRecent=%+v", recent)
	}
	if !reflect.DeepEqual(recent[1].Issues, []string{"Missing field: 'c'"}) {
		t.Fatalf("issues=%q", recent[1].Issues)
	}
	if !recent[1].IngestedAt.Equal(at) {
		t.Fatalf("ingested_at=%v; want %v", recent[1].IngestedAt, at)
	}

	byV, err := st.ListByVersion(ctx, 3, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(byV) != 2 || byV[0].ID != flagged || byV[1].ID != clean || byV[1].Issues != nil {
		t.Fatalf("ListByVersion=%+v", byV)
	}
}
