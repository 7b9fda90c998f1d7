package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"khoomi-api-io/taxonomy/pkg/models"
	"khoomi-api-io/taxonomy/pkg/services"
	"khoomi-api-io/taxonomy/pkg/taxonomy"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
)

var treeFile string

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the category forest with effective templates",
	Long: `Prints the stored forest. With --file the taxonomy file is loaded into an
in-memory store instead, which previews a seed without a database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if treeFile != "" {
			records, err := previewSeed(cmd.Context(), treeFile)
			if err != nil {
				return err
			}
			return printForest(cmd.OutOrStdout(), records)
		}

		return withDatabase(cmd.Context(), func(ctx context.Context, client *mongo.Client, _ *mongo.Database) error {
			records, err := services.NewMongoCategoryStore(client, dbName).ListCategoryRecords(ctx)
			if err != nil {
				return err
			}
			return printForest(cmd.OutOrStdout(), records)
		})
	},
}

func init() {
	treeCmd.Flags().StringVarP(&treeFile, "file", "f", "", "preview a taxonomy file instead of the database")
	rootCmd.AddCommand(treeCmd)
}

func previewSeed(ctx context.Context, path string) ([]models.CategoryRecord, error) {
	req, err := loadSeedFile(path)
	if err != nil {
		return nil, err
	}
	store := services.NewMemoryCategoryStore()
	svc, err := newCategoryService(store)
	if err != nil {
		return nil, err
	}
	if _, err := svc.CreateCategories(ctx, req, false); err != nil {
		return nil, err
	}
	return store.ListCategoryRecords(ctx)
}

func printForest(w io.Writer, records []models.CategoryRecord) error {
	if jsonOutput {
		return writeJSON(w, taxonomy.BuildForest(records))
	}

	snap := taxonomy.NewSnapshot(records, 0)
	forest := taxonomy.NewForest(records)
	var walkErr error
	forest.Walk(func(n *models.CategoryNode, depth int) bool {
		tmpl, err := taxonomy.ResolveTemplate(n, snap)
		if err != nil {
			walkErr = err
			return false
		}
		fmt.Fprintf(w, "%s%s (%s)%s\n", strings.Repeat("  ", depth), n.Name, n.Slug, fieldSummary(n, tmpl))
		return true
	})
	return walkErr
}

func fieldSummary(n *models.CategoryNode, tmpl models.Template) string {
	if len(tmpl.Fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tmpl.Fields))
	for _, f := range tmpl.Fields {
		keys = append(keys, f.Key)
	}
	marker := "inherited"
	if !n.Template.IsEmpty() {
		marker = "own"
	}
	return fmt.Sprintf(" [%s: %s]", marker, strings.Join(keys, ", "))
}
