// Package sqlite implements a SQLite-backed storage.Store.
package sqlite

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite file path or URI, e.g.:
	//   "dynetl.db"
	//   "file:dynetl.db?cache=shared"
	//   ":memory:" (one private in-memory database)
	DSN string
}

// inMemory reports whether the DSN names a private in-memory database, on
// which WAL cannot be enabled.
func (c Config) inMemory() bool {
	return c.DSN == ":memory:" || c.DSN == "file::memory:"
}
