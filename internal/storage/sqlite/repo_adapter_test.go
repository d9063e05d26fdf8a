package sqlite

import (
	"context"
	"errors"
	"testing"

	"dynetl/internal/storage"
)

// TestSQLiteStorageRegistrationUsesNewRepositoryHook verifies that the
// "sqlite" storage backend registered in init() uses the newRepository hook
// and that wrappedRepo correctly delegates Close.
//
// Not parallel: it swaps the package-level hook.
func TestSQLiteStorageRegistrationUsesNewRepositoryHook(t *testing.T) {
	ctx := context.Background()

	origNewRepository := newRepository
	defer func() { newRepository = origNewRepository }()

	var (
		called bool
		gotCfg Config
		closed bool

		fakeRepo = &Repository{}
	)

	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		called = true
		gotCfg = cfg
		return fakeRepo, func() { closed = true }, nil
	}

	cfg := storage.Config{Kind: "sqlite", DSN: "file:test.db?mode=memory"}

	st, err := storage.New(ctx, cfg)
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	if !called {
		t.Fatalf("newRepository hook was not called")
	}
	if gotCfg.DSN != cfg.DSN {
		t.Errorf("hook cfg.DSN = %q, want %q", gotCfg.DSN, cfg.DSN)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !closed {
		t.Errorf("Close did not call the cleanup function")
	}
}

// TestSQLiteStorageRegistrationPropagatesErrors ensures errors returned by
// the hook are surfaced by storage.New.
func TestSQLiteStorageRegistrationPropagatesErrors(t *testing.T) {
	origNewRepository := newRepository
	defer func() { newRepository = origNewRepository }()

	want := errors.New("boom")
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		return nil, nil, want
	}

	if _, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: "x"}); !errors.Is(err, want) {
		t.Fatalf("err=%v; want %v", err, want)
	}
}

func TestOpen_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
