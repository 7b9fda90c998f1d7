package cli

import (
	"context"
	"fmt"

	"khoomi-api-io/taxonomy/internal/indexer"
	"khoomi-api-io/taxonomy/pkg/services"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	continueOnError bool
	skipIfExists    bool
	collection      string
)

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Manage category collection indexes",
}

var indexesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the category indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIndexManager(cmd.Context(), func(ctx context.Context, m *indexer.Manager) error {
			result, err := m.Create(ctx)
			out := cmd.OutOrStdout()
			if jsonOutput {
				if jerr := writeJSON(out, result); jerr != nil {
					return jerr
				}
				return err
			}

			fmt.Fprintf(out, "Results:\n  Success: %d\n  Failed: %d\n  Duration: %v\n",
				result.SuccessCount, result.FailedCount, result.Duration)
			for _, f := range result.Failures {
				fmt.Fprintf(out, "  - %s.%s: %s\n", f.Collection, f.IndexName, f.Error)
			}
			return err
		})
	},
}

var indexesDropCmd = &cobra.Command{
	Use:   "drop [collection...]",
	Short: "Drop the category indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIndexManager(cmd.Context(), func(ctx context.Context, m *indexer.Manager) error {
			if err := m.Drop(ctx, args...); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Indexes dropped")
			return nil
		})
	},
}

var indexesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexes on a collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIndexManager(cmd.Context(), func(ctx context.Context, m *indexer.Manager) error {
			indexes, err := m.List(ctx, collection)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, indexes)
			}

			fmt.Fprintf(out, "Indexes for collection %s:\n", collection)
			for _, idx := range indexes {
				fmt.Fprintf(out, "  - %v\n    Keys: %v\n", idx["name"], idx["key"])
				if unique, ok := idx["unique"].(bool); ok && unique {
					fmt.Fprintln(out, "    Unique: true")
				}
			}
			return nil
		})
	},
}

var indexesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index usage statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIndexManager(cmd.Context(), func(ctx context.Context, m *indexer.Manager) error {
			stats, err := m.StatsAll(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, stats)
			}

			for coll, collStats := range stats {
				fmt.Fprintf(out, "=== %s ===\n", coll)
				for _, stat := range collStats {
					fmt.Fprintf(out, "  %s: %d accesses since %v", stat.Name, stat.Accesses, stat.Since)
					if stat.Building {
						fmt.Fprint(out, " (building)")
					}
					fmt.Fprintln(out)
				}
			}
			return nil
		})
	},
}

func init() {
	indexesCmd.PersistentFlags().BoolVar(&continueOnError, "continue-on-error", true, "continue past failing indexes")
	indexesCreateCmd.Flags().BoolVar(&skipIfExists, "skip-if-exists", true, "skip indexes that already exist")
	indexesListCmd.Flags().StringVar(&collection, "collection", services.CategoryCollection, "collection to list")

	indexesCmd.AddCommand(indexesCreateCmd, indexesDropCmd, indexesListCmd, indexesStatsCmd)
	rootCmd.AddCommand(indexesCmd)
}

func withIndexManager(ctx context.Context, fn func(ctx context.Context, m *indexer.Manager) error) error {
	return withDatabase(ctx, func(ctx context.Context, _ *mongo.Client, db *mongo.Database) error {
		opts := &indexer.Options{
			Timeout:         timeout,
			ContinueOnError: continueOnError,
			SkipIfExists:    skipIfExists,
		}
		return fn(ctx, indexer.NewCategoryManager(db, logger, opts))
	})
}
