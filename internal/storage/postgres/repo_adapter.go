// Package postgres wires the Postgres backend into the storage-agnostic
// factory by registering a constructor at init time. The CLI and other callers
// obtain a Store via storage.New(...) without importing this package directly.
package postgres

import (
	"context"

	"dynetl/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo delegates to *postgres.Repository while providing a Close
// method that calls the close function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Ensure wrappedRepo satisfies storage.Store at compile time.
var _ storage.Store = (*wrappedRepo)(nil)

// Close implements storage.Store.Close.
func (w *wrappedRepo) Close() error {
	if w.closeFn != nil {
		w.closeFn()
	}
	return nil
}

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, MaxConns: int32(cfg.MaxConns)})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}
