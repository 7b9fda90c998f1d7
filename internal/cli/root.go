package cli

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"khoomi-api-io/taxonomy/config"
	"khoomi-api-io/taxonomy/pkg/util"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	mongoURI   string
	dbName     string
	timeout    time.Duration
	jsonOutput bool

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "idxr",
	Short: "Category store maintenance",
	Long:  "idxr manages the category collection: indexes, data migrations, seeding and structural audits.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.LoadEnv()
		if mongoURI == "" {
			mongoURI = cfg.Mongo.URI
		}
		if dbName == "" {
			dbName = cfg.Mongo.Database
		}

		l, err := util.NewLogger(cfg.Server.AppEnv, cfg.Logger)
		if err != nil {
			return err
		}
		logger = l.Named("idxr")
		util.SetLogger(logger)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&mongoURI, "uri", "", "MongoDB URI (defaults to env DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&dbName, "db", "", "database name (defaults to env DB_NAME)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "operation timeout")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

// withDatabase connects to MongoDB for the duration of fn.
func withDatabase(ctx context.Context, fn func(ctx context.Context, client *mongo.Client, db *mongo.Database) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := util.ConnectDB(ctx, mongoURI)
	if err != nil {
		return errors.Wrap(err, "connect to MongoDB")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Warn("failed to disconnect", zap.Error(err))
		}
	}()

	return fn(ctx, client, client.Database(dbName))
}

func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
