package services

import (
	"context"
	"testing"
	"time"

	"khoomi-api-io/taxonomy/pkg/models"
	"khoomi-api-io/taxonomy/pkg/taxonomy"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestCategoryPatchUpdate(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	root := ""
	name := "Phones"
	tmpl := &models.Template{Fields: []models.FieldDescriptor{{Key: "ram", Label: "RAM", Type: models.FieldTypeNumber}}}

	got := categoryPatchUpdate(models.CategoryPatch{Name: &name, ParentID: &root, Template: tmpl}, now)
	assert.Equal(t, bson.M{
		"$set":   bson.M{"modified_at": now, "name": "Phones", "template": tmpl},
		"$unset": bson.M{"parent_id": ""},
	}, got)

	parent := "1"
	got = categoryPatchUpdate(models.CategoryPatch{ParentID: &parent, ClearTemplate: true, Template: tmpl}, now)
	assert.Equal(t, bson.M{
		"$set":   bson.M{"modified_at": now, "parent_id": "1"},
		"$unset": bson.M{"template": ""},
	}, got)

	got = categoryPatchUpdate(models.CategoryPatch{}, now)
	assert.Equal(t, bson.M{"$set": bson.M{"modified_at": now}}, got)
}

func TestMemoryStoreCommitIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCategoryStore(models.CategoryRecord{ID: "1", Name: "Home", Slug: "home"})

	_, err := store.Commit(ctx, 0, func(ctx context.Context, w CategoryWriter) error {
		if err := w.InsertCategoryRecord(ctx, models.CategoryRecord{ID: "2", Name: "Garden", Slug: "garden"}); err != nil {
			return err
		}
		return w.DeleteCategoryRecord(ctx, "missing")
	})
	assert.True(t, errors.Is(err, taxonomy.ErrCategoryNotFound))

	records, err := store.ListCategoryRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	rev, err := store.Revision(ctx)
	require.NoError(t, err)
	assert.Zero(t, rev)

	rev, err = store.Commit(ctx, 0, func(ctx context.Context, w CategoryWriter) error {
		return w.InsertCategoryRecord(ctx, models.CategoryRecord{ID: "2", Name: "Garden", Slug: "garden"})
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)

	_, err = store.Commit(ctx, 0, func(context.Context, CategoryWriter) error { return nil })
	assert.True(t, errors.Is(err, ErrStaleSnapshot))

	rec, err := store.GetCategoryRecord(ctx, "2")
	require.NoError(t, err)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestSortCategoryRecordsKeepsInsertionOrder(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var want []string
	var stored []models.CategoryRecord
	for i := 0; i < 40; i++ {
		rec := models.CategoryRecord{
			ID:        newCategoryID(),
			Name:      "Category",
			Slug:      "category",
			CreatedAt: base.Add(time.Duration(i) * 300 * time.Microsecond),
		}
		want = append(want, rec.ID)

		// what a round trip through MongoDB leaves of the record
		raw, err := bson.Marshal(rec)
		require.NoError(t, err)
		var decoded models.CategoryRecord
		require.NoError(t, bson.Unmarshal(raw, &decoded))
		stored = append([]models.CategoryRecord{decoded}, stored...)
	}
	require.True(t, stored[0].CreatedAt.Equal(stored[1].CreatedAt) || stored[1].CreatedAt.Equal(stored[2].CreatedAt),
		"bson should drop sub-millisecond precision")

	sortCategoryRecords(stored)

	got := make([]string, 0, len(stored))
	for _, r := range stored {
		got = append(got, r.ID)
	}
	assert.Equal(t, want, got)
}

func TestNewCategoryIDIsMonotonic(t *testing.T) {
	prev := newCategoryID()
	for i := 0; i < 1000; i++ {
		next := newCategoryID()
		require.Less(t, prev, next)
		prev = next
	}
}
