package db

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/homebasehq/homebase/platform/go/persistence"
)

// Command groups database helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database utilities (schema bootstrap, connectivity check)",
	}

	cmd.AddCommand(bootstrapCommand())
	cmd.AddCommand(pingCommand())
	return cmd
}

func bootstrapCommand() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Apply the embedded schema DDL to the target database",
		Long:  "Applies the embedded schema DDL. Statements are idempotent, so re-running against an existing database is safe.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.Bootstrap(ctx, pool); err != nil {
				return fmt.Errorf("bootstrap schema: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Schema bootstrap complete.")
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	_ = cmd.MarkFlagRequired("database-url")

	return cmd
}

func pingCommand() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Verify database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("ping database: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Database reachable.")
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	_ = cmd.MarkFlagRequired("database-url")

	return cmd
}
