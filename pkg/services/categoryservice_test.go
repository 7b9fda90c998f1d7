package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"khoomi-api-io/taxonomy/pkg/models"
	"khoomi-api-io/taxonomy/pkg/taxonomy"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingCache struct {
	mu  sync.Mutex
	ids []string
}

func (c *recordingCache) InvalidateCategories(_ context.Context, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, ids...)
	return nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("c%d", n)
	}
}

func newTestService(t *testing.T, store CategoryStore, cfg CategoryServiceConfig) (*CategoryServiceImpl, *recordingCache) {
	t.Helper()
	cache := &recordingCache{}
	svc := NewCategoryService(store, cache, zap.NewNop(), cfg)
	svc.newID = sequentialIDs()
	return svc, cache
}

func scenarioRecords() []models.CategoryRecord {
	return []models.CategoryRecord{
		{ID: "1", Name: "Electronics", Slug: "electronics"},
		{ID: "2", Name: "Phones", Slug: "phones", ParentID: "1", Template: &models.Template{Fields: []models.FieldDescriptor{
			{Key: "ram", Label: "RAM", Type: models.FieldTypeNumber},
		}}},
		{ID: "3", Name: "Smartphones", Slug: "smartphones", ParentID: "2"},
	}
}

func TestCreateAndResolve(t *testing.T) {
	ctx := context.Background()
	svc, cache := newTestService(t, NewMemoryCategoryStore(), CategoryServiceConfig{})

	vehicles, err := svc.CreateCategory(ctx, models.CategoryRequest{
		Name: "Vehicles",
		Template: &models.Template{Fields: []models.FieldDescriptor{
			{Key: "mileage", Label: "Mileage", Type: models.FieldTypeNumber, Required: true},
		}},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "c1", vehicles.ID)
	assert.Equal(t, "vehicles", vehicles.Slug)

	cars, err := svc.CreateCategory(ctx, models.CategoryRequest{Name: "Used Cars", ParentSlug: "VEHICLES"}, false)
	require.NoError(t, err)
	assert.Equal(t, "used-cars", cars.Slug)
	assert.Equal(t, vehicles.ID, cars.ParentID)

	res, err := svc.ResolveTemplate(ctx, cars.ID)
	require.NoError(t, err)
	assert.True(t, res.Inherited)
	assert.Equal(t, vehicles.ID, res.SourceID)
	assert.Equal(t, "mileage", res.Template.Fields[0].Key)

	_, err = svc.ValidateListingAttributes(ctx, cars.ID, map[string]any{"mileage": 12000})
	assert.NoError(t, err)
	_, err = svc.ValidateListingAttributes(ctx, cars.ID, map[string]any{})
	var attrErrs models.AttributeErrors
	require.True(t, errors.As(err, &attrErrs))
	assert.Equal(t, "mileage", attrErrs[0].Key)

	assert.Equal(t, []string{"c1", "c2"}, cache.ids)
}

func TestCreateRejections(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCategoryStore(scenarioRecords()...)
	svc, cache := newTestService(t, store, CategoryServiceConfig{})

	_, err := svc.CreateCategory(ctx, models.CategoryRequest{Name: "Phones again", Slug: "Phones"}, false)
	assert.True(t, errors.Is(err, taxonomy.ErrDuplicateSlug))

	_, err = svc.CreateCategory(ctx, models.CategoryRequest{Name: "Cameras", ParentID: "42"}, false)
	assert.True(t, errors.Is(err, taxonomy.ErrParentNotFound))

	_, err = svc.CreateCategory(ctx, models.CategoryRequest{Name: "Cameras", ParentSlug: "photo"}, false)
	assert.True(t, errors.Is(err, taxonomy.ErrParentNotFound))

	rev, err := store.Revision(ctx)
	require.NoError(t, err)
	assert.Zero(t, rev)
	assert.Empty(t, cache.ids)
}

func TestCreateCategoriesBatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCategoryStore()
	svc, _ := newTestService(t, store, CategoryServiceConfig{})

	created, err := svc.CreateCategories(ctx, models.CategoryRequestMulti{Categories: []models.CategoryRequest{
		{Name: "Home"},
		{Name: "Furniture", ParentSlug: "home"},
		{Name: "Sofas", ParentSlug: "furniture"},
	}}, false)
	require.NoError(t, err)
	require.Len(t, created, 3)
	assert.Equal(t, "c2", created[2].ParentID)

	forest, err := svc.GetForest(ctx)
	require.NoError(t, err)
	require.Len(t, forest, 1)
	assert.Equal(t, "sofas", forest[0].Children[0].Children[0].Slug)

	_, err = svc.CreateCategories(ctx, models.CategoryRequestMulti{Categories: []models.CategoryRequest{
		{Name: "Garden"},
		{Name: "Home"},
	}}, false)
	assert.True(t, errors.Is(err, taxonomy.ErrDuplicateSlug))
	assert.Contains(t, err.Error(), "categories[1]")

	records, err := store.ListCategoryRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3, "a rejected batch commits nothing")
}

func TestMoveCategory(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, NewMemoryCategoryStore(scenarioRecords()...), CategoryServiceConfig{})

	_, err := svc.MoveCategory(ctx, "1", "3", false)
	assert.True(t, errors.Is(err, taxonomy.ErrCyclicParent))

	moved, err := svc.MoveCategory(ctx, "3", "", false)
	require.NoError(t, err)
	assert.True(t, moved.IsRoot())

	forest, err := svc.GetForest(ctx)
	require.NoError(t, err)
	assert.Len(t, forest, 2)

	res, err := svc.ResolveTemplate(ctx, "3")
	require.NoError(t, err)
	assert.Empty(t, res.Template.Fields)
}

func TestUpdateCategory(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCategoryStore(scenarioRecords()...)
	svc, _ := newTestService(t, store, CategoryServiceConfig{})

	name := "  Mobile Phones "
	updated, err := svc.UpdateCategory(ctx, "2", models.CategoryUpdateRequest{Name: &name, ClearTemplate: true}, false)
	require.NoError(t, err)
	assert.Equal(t, "Mobile Phones", updated.Name)
	assert.Nil(t, updated.Template)

	stored, err := store.GetCategoryRecord(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "Mobile Phones", stored.Name)
	assert.Nil(t, stored.Template)

	taken := "electronics"
	_, err = svc.UpdateCategory(ctx, "2", models.CategoryUpdateRequest{Slug: &taken}, false)
	assert.True(t, errors.Is(err, taxonomy.ErrDuplicateSlug))

	_, err = svc.UpdateCategory(ctx, "42", models.CategoryUpdateRequest{Name: &name}, false)
	assert.True(t, errors.Is(err, taxonomy.ErrCategoryNotFound))
}

func TestDeleteCategoryReject(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, NewMemoryCategoryStore(scenarioRecords()...), CategoryServiceConfig{})

	_, err := svc.DeleteCategory(ctx, "2", false)
	assert.True(t, errors.Is(err, taxonomy.ErrHasDependents))

	plan, err := svc.DeleteCategory(ctx, "3", false)
	require.NoError(t, err)
	assert.Empty(t, plan.Reparents)

	_, err = svc.GetCategory(ctx, "3")
	assert.True(t, errors.Is(err, taxonomy.ErrCategoryNotFound))
}

func TestDeleteCategoryCascade(t *testing.T) {
	ctx := context.Background()
	svc, cache := newTestService(t, NewMemoryCategoryStore(scenarioRecords()...), CategoryServiceConfig{DeletePolicy: taxonomy.DeleteCascade})

	plan, err := svc.DeleteCategory(ctx, "2", false)
	require.NoError(t, err)
	assert.Equal(t, []taxonomy.Reparent{{CategoryID: "3", ParentID: "1"}}, plan.Reparents)

	node, err := svc.GetCategoryChildren(ctx, "1")
	require.NoError(t, err)
	require.Len(t, node.Children, 1)
	assert.Equal(t, "3", node.Children[0].ID)
	assert.ElementsMatch(t, []string{"2", "3"}, cache.ids)

	ancestors, err := svc.GetCategoryAncestors(ctx, "3")
	require.NoError(t, err)
	require.Len(t, ancestors, 1)
	assert.Equal(t, "1", ancestors[0].ID)
}

func TestDeleteRootCascadeInvalidatesSubtree(t *testing.T) {
	ctx := context.Background()
	svc, cache := newTestService(t, NewMemoryCategoryStore(scenarioRecords()...), CategoryServiceConfig{DeletePolicy: taxonomy.DeleteCascade})

	plan, err := svc.DeleteCategory(ctx, "1", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, plan.Affected)
	assert.ElementsMatch(t, []string{"1", "2", "3"}, cache.ids)
}

func TestDryRunCommitsNothing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCategoryStore(scenarioRecords()...)
	svc, cache := newTestService(t, store, CategoryServiceConfig{DeletePolicy: taxonomy.DeleteCascade})

	_, err := svc.CreateCategory(ctx, models.CategoryRequest{Name: "Tablets", ParentID: "1"}, true)
	require.NoError(t, err)
	_, err = svc.MoveCategory(ctx, "3", "1", true)
	require.NoError(t, err)
	_, err = svc.DeleteCategory(ctx, "2", true)
	require.NoError(t, err)
	_, err = svc.MoveCategory(ctx, "1", "3", true)
	assert.True(t, errors.Is(err, taxonomy.ErrCyclicParent))

	rev, err := store.Revision(ctx)
	require.NoError(t, err)
	assert.Zero(t, rev)
	records, err := store.ListCategoryRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, scenarioRecords(), records)
	assert.Empty(t, cache.ids)
}

// racingStore lets another writer commit right before each of the first
// `races` commits, making the caller's snapshot stale.
type racingStore struct {
	*MemoryCategoryStore
	races int
	n     int
}

func (s *racingStore) Commit(ctx context.Context, expected int64, fn func(context.Context, CategoryWriter) error) (int64, error) {
	if s.races > 0 {
		s.races--
		s.n++
		rev, _ := s.MemoryCategoryStore.Revision(ctx)
		_, err := s.MemoryCategoryStore.Commit(ctx, rev, func(ctx context.Context, w CategoryWriter) error {
			return w.InsertCategoryRecord(ctx, models.CategoryRecord{
				ID: fmt.Sprintf("other%d", s.n), Name: "Other", Slug: fmt.Sprintf("other-%d", s.n),
			})
		})
		if err != nil {
			return 0, err
		}
	}
	return s.MemoryCategoryStore.Commit(ctx, expected, fn)
}

func TestStaleSnapshotIsRetried(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{MemoryCategoryStore: NewMemoryCategoryStore(scenarioRecords()...), races: 2}
	svc, _ := newTestService(t, store, CategoryServiceConfig{CommitRetries: 3})

	rec, err := svc.CreateCategory(ctx, models.CategoryRequest{Name: "Tablets", ParentID: "1"}, false)
	require.NoError(t, err)

	stored, err := store.GetCategoryRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "tablets", stored.Slug)
	rev, err := store.Revision(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rev)
}

func TestStaleSnapshotGivesUp(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{MemoryCategoryStore: NewMemoryCategoryStore(scenarioRecords()...), races: 5}
	svc, _ := newTestService(t, store, CategoryServiceConfig{CommitRetries: 2})

	_, err := svc.CreateCategory(ctx, models.CategoryRequest{Name: "Tablets"}, false)
	assert.True(t, errors.Is(err, ErrStaleSnapshot))
}

func TestConcurrentMovesNeverFormCycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCategoryStore(
		models.CategoryRecord{ID: "a", Name: "A", Slug: "a"},
		models.CategoryRecord{ID: "b", Name: "B", Slug: "b"},
	)
	svc := NewCategoryService(store, nil, zap.NewNop(), CategoryServiceConfig{CommitRetries: 10})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	moves := [][2]string{{"a", "b"}, {"b", "a"}}
	for i, m := range moves {
		wg.Add(1)
		go func(i int, id, parent string) {
			defer wg.Done()
			_, errs[i] = svc.MoveCategory(ctx, id, parent, false)
		}(i, m[0], m[1])
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			assert.True(t, errors.Is(err, taxonomy.ErrCyclicParent), "unexpected error %v", err)
		}
	}
	assert.Equal(t, 1, failed)

	report, err := svc.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, report.Healthy(), "anomalies: %v", report.Anomalies)
}

func TestSearchCategories(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, NewMemoryCategoryStore(scenarioRecords()...), CategoryServiceConfig{})

	found, err := svc.SearchCategories(ctx, "PHONE")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "2", found[0].ID)
	assert.Equal(t, "3", found[1].ID)

	found, err = svc.SearchCategories(ctx, "  ")
	require.NoError(t, err)
	assert.Empty(t, found)
}
