package indexer

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const migrationCollection = "_index_migrations"

type MigrationManager struct {
	db         *mongo.Database
	migrations []Migration
	logger     *zap.Logger
}

func NewMigrationManager(db *mongo.Database, logger *zap.Logger) *MigrationManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MigrationManager{
		db:         db,
		migrations: []Migration{},
		logger:     logger,
	}
}

func (mm *MigrationManager) AddMigration(migrations ...Migration) *MigrationManager {
	mm.migrations = append(mm.migrations, migrations...)
	return mm
}

// Pending returns the registered migrations in version order.
func (mm *MigrationManager) Pending() []Migration {
	return sortedMigrations(mm.migrations, false)
}

// Run applies every migration that has not yet succeeded, oldest first, and
// stops at the first failure.
func (mm *MigrationManager) Run(ctx context.Context) error {
	coll := mm.db.Collection(migrationCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "version", Value: 1}},
		Options: options.Index().SetName("migration_version"),
	})
	if err != nil {
		return errors.Wrap(err, "create migration index")
	}

	for _, migration := range sortedMigrations(mm.migrations, false) {
		log := mm.logger.With(zap.String("version", migration.Version))

		applied, err := mm.isApplied(ctx, migration.Version)
		if err != nil {
			return errors.Wrapf(err, "check migration %s", migration.Version)
		}
		if applied {
			log.Info("migration already applied, skipping")
			continue
		}

		log.Info("running migration", zap.String("description", migration.Description))
		start := time.Now()
		err = migration.Up(ctx, mm.db)
		status := MigrationStatus{
			Version:   migration.Version,
			AppliedAt: time.Now().UTC(),
			Success:   err == nil,
		}

		if err != nil {
			log.Error("migration failed", zap.Duration("took", time.Since(start)), zap.Error(err))
			if _, saveErr := coll.InsertOne(ctx, status); saveErr != nil {
				log.Warn("failed to save migration status", zap.Error(saveErr))
			}
			return errors.Wrapf(err, "migration %s", migration.Version)
		}

		if _, err = coll.InsertOne(ctx, status); err != nil {
			return errors.Wrap(err, "save migration status")
		}
		log.Info("migration completed", zap.Duration("took", time.Since(start)))
	}

	return nil
}

// Rollback reverts applied migrations newer than targetVersion, newest first.
func (mm *MigrationManager) Rollback(ctx context.Context, targetVersion string) error {
	coll := mm.db.Collection(migrationCollection)

	for _, migration := range sortedMigrations(mm.migrations, true) {
		if migration.Version <= targetVersion {
			break
		}

		applied, err := mm.isApplied(ctx, migration.Version)
		if err != nil {
			return errors.Wrapf(err, "check migration %s", migration.Version)
		}
		if !applied {
			continue
		}
		if migration.Down == nil {
			return errors.Errorf("migration %s does not support rollback", migration.Version)
		}

		mm.logger.Info("rolling back migration", zap.String("version", migration.Version))
		if err := migration.Down(ctx, mm.db); err != nil {
			return errors.Wrapf(err, "rollback of migration %s", migration.Version)
		}
		if _, err := coll.DeleteMany(ctx, bson.M{"version": migration.Version}); err != nil {
			return errors.Wrap(err, "remove migration status")
		}
	}

	return nil
}

func (mm *MigrationManager) Status(ctx context.Context) ([]MigrationStatus, error) {
	cursor, err := mm.db.Collection(migrationCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "version", Value: 1}, {Key: "applied_at", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "query migration status")
	}
	defer cursor.Close(ctx)

	var statuses []MigrationStatus
	if err = cursor.All(ctx, &statuses); err != nil {
		return nil, errors.Wrap(err, "decode migration status")
	}
	return statuses, nil
}

func (mm *MigrationManager) isApplied(ctx context.Context, version string) (bool, error) {
	count, err := mm.db.Collection(migrationCollection).CountDocuments(ctx, bson.M{"version": version, "success": true})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func sortedMigrations(in []Migration, newestFirst bool) []Migration {
	out := make([]Migration, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if newestFirst {
			return out[i].Version > out[j].Version
		}
		return out[i].Version < out[j].Version
	})
	return out
}
