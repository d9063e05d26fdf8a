// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories with the storage package. After importing it the following
// kinds are available:
//
//   - "sqlite"   (dynetl/internal/storage/sqlite)
//   - "postgres" (dynetl/internal/storage/postgres)
//   - "mysql"    (dynetl/internal/storage/mysql)
//   - "mssql"    (dynetl/internal/storage/mssql)
//
// Typical usage (in cmd/dynetl):
//
//	import _ "dynetl/internal/storage/all"
//
//	st, err := storage.New(ctx, storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN})
//	if err != nil {
//	    // handle error
//	}
//	defer st.Close()
package all

import (
	_ "dynetl/internal/storage/mssql"
	_ "dynetl/internal/storage/mysql"
	_ "dynetl/internal/storage/postgres"
	_ "dynetl/internal/storage/sqlite"
)
