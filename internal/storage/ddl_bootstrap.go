package storage

import (
	"context"
	"fmt"

	"dynetl/internal/ddl"
)

// ExecFunc runs one DDL statement. Backends pass their connection's Exec.
type ExecFunc func(ctx context.Context, stmt string) error

// Bootstrap renders the store tables for d and applies them in order through
// exec. Statements are idempotent, so Bootstrap is safe to run on every start.
func Bootstrap(ctx context.Context, d ddl.Dialect, exec ExecFunc) error {
	stmts, err := ddl.BuildAll(d)
	if err != nil {
		return fmt.Errorf("storage: render ddl: %w", err)
	}
	for _, s := range stmts {
		if err := exec(ctx, s); err != nil {
			return fmt.Errorf("storage: apply ddl (%s): %w", d.Name, err)
		}
	}
	return nil
}
