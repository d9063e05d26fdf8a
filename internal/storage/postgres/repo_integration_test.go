//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"

	"dynetl/internal/storage/storagetest"
)

// Runs against a real, empty database named by PG_TEST_DSN.
func TestStoreContractIntegration(t *testing.T) {
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN not set; skipping postgres integration tests")
	}
	repo, closeFn, err := NewRepository(context.Background(), Config{DSN: dsn})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	defer closeFn()

	storagetest.Run(t, repo)
}
