package indexer

import (
	"context"
	"strings"

	"khoomi-api-io/taxonomy/pkg/services"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Slugs are unique regardless of case, matching how the guard compares them.
var slugCollation = &options.Collation{Locale: "en", Strength: 2}

// CategoryIndexes are the indexes the category store relies on.
func CategoryIndexes() []IndexDefinition {
	coll := services.CategoryCollection
	return NewManager(nil, nil).
		AddIndex(coll, mongo.IndexModel{
			Keys: bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().
				SetName("category_slug_unique").
				SetUnique(true).
				SetCollation(slugCollation),
		}).
		AddCompoundIndex(coll, []string{"parent_id"}, options.Index().SetName("category_parent_id")).
		AddCompoundIndex(coll, []string{"created_at", "_id"}, options.Index().SetName("category_created_at")).
		Definitions()
}

// NewCategoryManager returns a manager loaded with CategoryIndexes.
func NewCategoryManager(db *mongo.Database, logger *zap.Logger, opts *Options) *Manager {
	return NewManager(db, logger, opts).LoadFromDefinitions(CategoryIndexes())
}

func NewCategoryMigrationManager(db *mongo.Database, logger *zap.Logger) *MigrationManager {
	return NewMigrationManager(db, logger).AddMigration(CategoryMigrations()...)
}

// CategoryMigrations clean up category documents written before the current
// store existed.
func CategoryMigrations() []Migration {
	return []Migration{
		{
			Version:     "20240601_001",
			Description: "unset empty parent_id on root categories",
			Up:          unsetEmptyRootParent,
		},
		{
			Version:     "20240601_002",
			Description: "backfill missing category slugs from _id",
			Up:          backfillCategorySlugs,
		},
	}
}

func unsetEmptyRootParent(ctx context.Context, db *mongo.Database) error {
	res, err := db.Collection(services.CategoryCollection).UpdateMany(ctx,
		bson.M{"parent_id": ""},
		bson.M{"$unset": bson.M{"parent_id": ""}})
	if err != nil {
		return errors.Wrap(err, "unset empty parent_id")
	}
	if res.ModifiedCount == 0 {
		return nil
	}
	return services.BumpCategoryRevision(ctx, db)
}

func backfillCategorySlugs(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(services.CategoryCollection)
	filter := bson.M{"$or": bson.A{
		bson.M{"slug": bson.M{"$exists": false}},
		bson.M{"slug": ""},
	}}

	cursor, err := coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return errors.Wrap(err, "find categories without slug")
	}
	var docs []struct {
		ID bson.RawValue `bson:"_id"`
	}
	if err = cursor.All(ctx, &docs); err != nil {
		return errors.Wrap(err, "decode categories without slug")
	}

	writes := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		if w, ok := slugBackfill(doc.ID); ok {
			writes = append(writes, w)
		}
	}
	if len(writes) == 0 {
		return nil
	}
	if _, err = coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return errors.Wrap(err, "backfill category slugs")
	}
	return services.BumpCategoryRevision(ctx, db)
}

// slugBackfill builds the update for one document. The filter matches the
// stored _id as-is, so documents keyed by ObjectID are found too.
func slugBackfill(id bson.RawValue) (*mongo.UpdateOneModel, bool) {
	s, ok := slugFromID(id)
	if !ok {
		return nil, false
	}
	return mongo.NewUpdateOneModel().
		SetFilter(bson.M{"_id": id}).
		SetUpdate(bson.M{"$set": bson.M{"slug": s}}), true
}

func slugFromID(id bson.RawValue) (string, bool) {
	if s, ok := id.StringValueOK(); ok {
		s = strings.ToLower(strings.TrimSpace(s))
		return s, s != ""
	}
	if oid, ok := id.ObjectIDOK(); ok {
		return oid.Hex(), true
	}
	return "", false
}
