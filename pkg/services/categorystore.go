package services

import (
	"context"
	"sort"
	"time"

	"khoomi-api-io/taxonomy/pkg/models"
	"khoomi-api-io/taxonomy/pkg/taxonomy"
	"khoomi-api-io/taxonomy/pkg/util"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	CategoryCollection         = "ListingCategory"
	CategoryRevisionCollection = "CategoryRevision"

	revisionDocID = "categories"
)

type revisionDoc struct {
	ID         string    `bson:"_id"`
	Revision   int64     `bson:"revision"`
	ModifiedAt time.Time `bson:"modified_at"`
}

// MongoCategoryStore keeps category records in one collection and the
// revision counter in a single document of another. Commits run in a
// transaction, so the deployment must be a replica set.
type MongoCategoryStore struct {
	client     *mongo.Client
	categories *mongo.Collection
	revisions  *mongo.Collection
}

func NewMongoCategoryStore(client *mongo.Client, database string) *MongoCategoryStore {
	return &MongoCategoryStore{
		client:     client,
		categories: util.GetCollection(client, database, CategoryCollection),
		revisions:  util.GetCollection(client, database, CategoryRevisionCollection),
	}
}

func (s *MongoCategoryStore) ListCategoryRecords(ctx context.Context) ([]models.CategoryRecord, error) {
	find := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.categories.Find(ctx, bson.D{}, find)
	if err != nil {
		return nil, errors.Wrap(err, "find categories")
	}

	records := []models.CategoryRecord{}
	if err = cursor.All(ctx, &records); err != nil {
		return nil, errors.Wrap(err, "decode categories")
	}
	sortCategoryRecords(records)
	return records, nil
}

func (s *MongoCategoryStore) GetCategoryRecord(ctx context.Context, id string) (models.CategoryRecord, error) {
	var rec models.CategoryRecord
	err := s.categories.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return rec, errors.Wrapf(taxonomy.ErrCategoryNotFound, "category %s", id)
	}
	if err != nil {
		return rec, errors.Wrapf(err, "find category %s", id)
	}
	return rec, nil
}

func (s *MongoCategoryStore) Revision(ctx context.Context) (int64, error) {
	var doc revisionDoc
	err := s.revisions.FindOne(ctx, bson.M{"_id": revisionDocID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "read category revision")
	}
	return doc.Revision, nil
}

// Commit bumps the revision document from expectedRevision inside the same
// transaction as fn's writes. A concurrent commit either fails that
// conditional update or conflicts on the document; in both cases nothing of
// this commit is applied.
func (s *MongoCategoryStore) Commit(ctx context.Context, expectedRevision int64, fn func(ctx context.Context, w CategoryWriter) error) (int64, error) {
	wc := writeconcern.New(writeconcern.WMajority())
	txnOptions := options.Transaction().SetWriteConcern(wc)
	session, err := s.client.StartSession()
	if err != nil {
		return 0, errors.Wrap(err, "start session")
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		filter := bson.M{"_id": revisionDocID, "revision": expectedRevision}
		update := bson.M{
			"$inc": bson.M{"revision": 1},
			"$set": bson.M{"modified_at": time.Now()},
		}
		opts := options.FindOneAndUpdate().
			SetUpsert(expectedRevision == 0).
			SetReturnDocument(options.After)

		var doc revisionDoc
		err := s.revisions.FindOneAndUpdate(sc, filter, update, opts).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) || mongo.IsDuplicateKeyError(err) {
			return nil, errors.Wrapf(ErrStaleSnapshot, "expected revision %d", expectedRevision)
		}
		if err != nil {
			return nil, errors.Wrap(err, "bump category revision")
		}

		if err := fn(sc, &mongoCategoryWriter{categories: s.categories}); err != nil {
			return nil, err
		}
		return doc.Revision, nil
	}, txnOptions)
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

// sortCategoryRecords puts records in insertion order: creation time at the
// millisecond precision BSON keeps, then id. Ids from newCategoryID grow
// monotonically, which orders records committed in the same millisecond.
func sortCategoryRecords(records []models.CategoryRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].CreatedAt.Truncate(time.Millisecond), records[j].CreatedAt.Truncate(time.Millisecond)
		if !a.Equal(b) {
			return a.Before(b)
		}
		return records[i].ID < records[j].ID
	})
}

type mongoCategoryWriter struct {
	categories *mongo.Collection
}

func (w *mongoCategoryWriter) InsertCategoryRecord(ctx context.Context, rec models.CategoryRecord) error {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.ModifiedAt = now

	_, err := w.categories.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return errors.Wrapf(taxonomy.ErrDuplicateSlug, "insert category %s", rec.ID)
	}
	return errors.Wrapf(err, "insert category %s", rec.ID)
}

func (w *mongoCategoryWriter) PatchCategoryRecord(ctx context.Context, id string, patch models.CategoryPatch) error {
	res, err := w.categories.UpdateOne(ctx, bson.M{"_id": id}, categoryPatchUpdate(patch, time.Now()))
	if mongo.IsDuplicateKeyError(err) {
		return errors.Wrapf(taxonomy.ErrDuplicateSlug, "patch category %s", id)
	}
	if err != nil {
		return errors.Wrapf(err, "patch category %s", id)
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(taxonomy.ErrCategoryNotFound, "category %s", id)
	}
	return nil
}

func (w *mongoCategoryWriter) DeleteCategoryRecord(ctx context.Context, id string) error {
	res, err := w.categories.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrapf(err, "delete category %s", id)
	}
	if res.DeletedCount == 0 {
		return errors.Wrapf(taxonomy.ErrCategoryNotFound, "category %s", id)
	}
	return nil
}

// categoryPatchUpdate turns a patch into an update document. Moving to the
// root and clearing the template unset their fields so stored roots never
// carry an empty parent_id.
func categoryPatchUpdate(patch models.CategoryPatch, now time.Time) bson.M {
	set := bson.M{"modified_at": now}
	unset := bson.M{}

	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Slug != nil {
		set["slug"] = *patch.Slug
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Image != nil {
		set["image"] = *patch.Image
	}
	if patch.ParentID != nil {
		if *patch.ParentID == "" {
			unset["parent_id"] = ""
		} else {
			set["parent_id"] = *patch.ParentID
		}
	}
	if patch.ClearTemplate {
		unset["template"] = ""
	} else if patch.Template != nil {
		set["template"] = patch.Template
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

// BumpCategoryRevision advances the revision outside a Commit. Maintenance
// jobs that rewrite records directly call it so that in-flight mutations
// retry against fresh data.
func BumpCategoryRevision(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(CategoryRevisionCollection).UpdateOne(ctx,
		bson.M{"_id": revisionDocID},
		bson.M{"$inc": bson.M{"revision": 1}, "$set": bson.M{"modified_at": time.Now()}},
		options.Update().SetUpsert(true))
	return errors.Wrap(err, "bump category revision")
}
