//go:build integration

package mysql

import (
	"context"
	"os"
	"testing"

	"dynetl/internal/storage/storagetest"
)

// Runs against a real, empty database named by MYSQL_TEST_DSN.
func TestStoreContractIntegration(t *testing.T) {
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set; skipping mysql integration tests")
	}
	repo, closeFn, err := NewRepository(context.Background(), Config{DSN: dsn})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	defer closeFn()

	storagetest.Run(t, repo)
}
