package cli

import (
	"context"
	"fmt"
	"os"

	"khoomi-api-io/taxonomy/internal/common"
	"khoomi-api-io/taxonomy/pkg/models"
	"khoomi-api-io/taxonomy/pkg/services"
	"khoomi-api-io/taxonomy/pkg/taxonomy"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/yaml.v3"
)

var (
	seedFile string
	dryRun   bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create categories from a YAML taxonomy file",
	Long: `Creates every category in the file in one commit. Entries may reference a
parent by parentId or by the parentSlug of an existing category or an earlier
entry in the same file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := loadSeedFile(seedFile)
		if err != nil {
			return err
		}

		return withDatabase(cmd.Context(), func(ctx context.Context, client *mongo.Client, _ *mongo.Database) error {
			svc, err := newCategoryService(services.NewMongoCategoryStore(client, dbName))
			if err != nil {
				return err
			}
			created, err := svc.CreateCategories(ctx, req, dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, created)
			}
			verb := "Created"
			if dryRun {
				verb = "Would create"
			}
			fmt.Fprintf(out, "%s %d categories\n", verb, len(created))
			return nil
		})
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "taxonomy.yaml", "taxonomy file")
	seedCmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate without writing")
	rootCmd.AddCommand(seedCmd)
}

// loadSeedFile reads and validates a taxonomy file of the form
//
//	categories:
//	  - name: Electronics
//	  - name: Phones
//	    parentSlug: electronics
//	    template:
//	      fields:
//	        - {key: ram, label: RAM, type: number}
func loadSeedFile(path string) (models.CategoryRequestMulti, error) {
	var req models.CategoryRequestMulti
	data, err := os.ReadFile(path)
	if err != nil {
		return req, errors.Wrap(err, "read taxonomy file")
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, errors.Wrapf(err, "parse %s", path)
	}
	if err := common.Validate.Struct(req); err != nil {
		return req, errors.Wrapf(err, "invalid %s", path)
	}
	return req, nil
}

func newCategoryService(store services.CategoryStore) (*services.CategoryServiceImpl, error) {
	policy, err := taxonomy.ParseDeletePolicy(cfg.Category.DeletePolicy)
	if err != nil {
		return nil, err
	}
	return services.NewCategoryService(store, nil, logger, services.CategoryServiceConfig{
		DeletePolicy:  policy,
		MaxDepth:      cfg.Category.MaxDepth,
		MaxHops:       cfg.Category.MaxHops,
		CommitRetries: cfg.Category.CommitRetries,
	}), nil
}
