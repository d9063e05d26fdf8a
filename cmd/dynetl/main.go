// Command dynetl ingests heterogeneous files, infers and versions their
// schema, and flags records that deviate from it.
package main

import (
	"os"

	// register all backends with the storage factory.
	_ "dynetl/internal/storage/all"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
