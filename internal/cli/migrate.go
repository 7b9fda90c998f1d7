package cli

import (
	"context"
	"fmt"

	"khoomi-api-io/taxonomy/internal/indexer"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending category data migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrations(cmd.Context(), func(ctx context.Context, mm *indexer.MigrationManager) error {
			if err := mm.Run(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrations(cmd.Context(), func(ctx context.Context, mm *indexer.MigrationManager) error {
			statuses, err := mm.Status(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, statuses)
			}

			applied := make(map[string]bool)
			for _, s := range statuses {
				if s.Success {
					applied[s.Version] = true
				}
			}
			for _, m := range mm.Pending() {
				state := "pending"
				if applied[m.Version] {
					state = "applied"
				}
				fmt.Fprintf(out, "  %s  %-8s %s\n", m.Version, state, m.Description)
			}
			return nil
		})
	},
}

var migrateRollbackCmd = &cobra.Command{
	Use:   "rollback <version>",
	Short: "Revert migrations newer than version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrations(cmd.Context(), func(ctx context.Context, mm *indexer.MigrationManager) error {
			return mm.Rollback(ctx, args[0])
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd, migrateRollbackCmd)
	rootCmd.AddCommand(migrateCmd)
}

func withMigrations(ctx context.Context, fn func(ctx context.Context, mm *indexer.MigrationManager) error) error {
	return withDatabase(ctx, func(ctx context.Context, _ *mongo.Client, db *mongo.Database) error {
		return fn(ctx, indexer.NewCategoryMigrationManager(db, logger))
	})
}
