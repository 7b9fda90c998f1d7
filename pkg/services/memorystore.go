package services

import (
	"context"
	"sync"
	"time"

	"khoomi-api-io/taxonomy/pkg/models"
	"khoomi-api-io/taxonomy/pkg/taxonomy"

	"github.com/pkg/errors"
)

// MemoryCategoryStore keeps records in insertion order. It backs the CLI's
// file based commands and the service tests.
type MemoryCategoryStore struct {
	mu       sync.RWMutex
	records  []models.CategoryRecord
	revision int64
	now      func() time.Time
}

func NewMemoryCategoryStore(records ...models.CategoryRecord) *MemoryCategoryStore {
	return &MemoryCategoryStore{
		records: append([]models.CategoryRecord(nil), records...),
		now:     time.Now,
	}
}

func (s *MemoryCategoryStore) ListCategoryRecords(_ context.Context) ([]models.CategoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.records), nil
}

func (s *MemoryCategoryStore) GetCategoryRecord(_ context.Context, id string) (models.CategoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == id {
			return cloneRecord(r), nil
		}
	}
	return models.CategoryRecord{}, errors.Wrapf(taxonomy.ErrCategoryNotFound, "category %s", id)
}

func (s *MemoryCategoryStore) Revision(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision, nil
}

func (s *MemoryCategoryStore) Commit(ctx context.Context, expectedRevision int64, fn func(ctx context.Context, w CategoryWriter) error) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.revision != expectedRevision {
		return s.revision, errors.Wrapf(ErrStaleSnapshot, "expected revision %d, store is at %d", expectedRevision, s.revision)
	}

	staged := &memoryWriter{records: cloneRecords(s.records), now: s.now()}
	if err := fn(ctx, staged); err != nil {
		return s.revision, err
	}
	s.records = staged.records
	s.revision++
	return s.revision, nil
}

type memoryWriter struct {
	records []models.CategoryRecord
	now     time.Time
}

func (w *memoryWriter) index(id string) int {
	for i, r := range w.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (w *memoryWriter) InsertCategoryRecord(_ context.Context, rec models.CategoryRecord) error {
	if w.index(rec.ID) >= 0 {
		return errors.Errorf("category %s already exists", rec.ID)
	}
	rec = cloneRecord(rec)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = w.now
	}
	rec.ModifiedAt = w.now
	w.records = append(w.records, rec)
	return nil
}

func (w *memoryWriter) PatchCategoryRecord(_ context.Context, id string, patch models.CategoryPatch) error {
	i := w.index(id)
	if i < 0 {
		return errors.Wrapf(taxonomy.ErrCategoryNotFound, "category %s", id)
	}
	rec := patch.Apply(w.records[i])
	rec.ModifiedAt = w.now
	w.records[i] = rec
	return nil
}

func (w *memoryWriter) DeleteCategoryRecord(_ context.Context, id string) error {
	i := w.index(id)
	if i < 0 {
		return errors.Wrapf(taxonomy.ErrCategoryNotFound, "category %s", id)
	}
	w.records = append(w.records[:i:i], w.records[i+1:]...)
	return nil
}

func cloneRecord(r models.CategoryRecord) models.CategoryRecord {
	r.Template = r.Template.Clone()
	return r
}

func cloneRecords(records []models.CategoryRecord) []models.CategoryRecord {
	out := make([]models.CategoryRecord, len(records))
	for i, r := range records {
		out[i] = cloneRecord(r)
	}
	return out
}
