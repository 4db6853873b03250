package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/homebasehq/homebase/database"
)

// Bootstrap applies the embedded core DDL in a single transaction. SQL is
// embedded at build time so binaries stay self-contained. The statements are
// idempotent (CREATE TABLE IF NOT EXISTS) and intended for CLI bootstrap and
// tests.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("bootstrap: pool is required")
	}

	statements := splitStatements(sqlassets.CoreSQL)
	if len(statements) == 0 {
		return fmt.Errorf("bootstrap: embedded core schema is empty")
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func splitStatements(sql string) []string {
	raw := strings.Split(sql, ";")
	statements := make([]string, 0, len(raw))
	for _, chunk := range raw {
		stmt := strings.TrimSpace(chunk)
		if stmt == "" {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}
