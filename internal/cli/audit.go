package cli

import (
	"context"
	"fmt"

	"khoomi-api-io/taxonomy/pkg/services"
	"khoomi-api-io/taxonomy/pkg/taxonomy"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Report structural anomalies in stored categories",
	Long:  "Exits non-zero when dangling parents, cycles, duplicates or invalid templates are found.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(ctx context.Context, client *mongo.Client, _ *mongo.Database) error {
			records, err := services.NewMongoCategoryStore(client, dbName).ListCategoryRecords(ctx)
			if err != nil {
				return err
			}
			return reportAudit(cmd, taxonomy.Audit(records))
		})
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

func reportAudit(cmd *cobra.Command, report taxonomy.AuditReport) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "%d categories, %d roots, max depth %d\n", report.Categories, report.Roots, report.MaxDepth)
		for _, a := range report.Anomalies {
			fmt.Fprintf(out, "  %-16s %s %v %s\n", a.Kind, a.CategoryID, a.Related, a.Detail)
		}
	}
	if !report.Healthy() {
		return errors.Errorf("%d anomalies found", len(report.Anomalies))
	}
	return nil
}
