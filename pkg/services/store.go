package services

import (
	"context"

	"khoomi-api-io/taxonomy/pkg/models"

	"github.com/pkg/errors"
)

// ErrStaleSnapshot means the category set changed between the read a mutation
// was validated against and its commit.
var ErrStaleSnapshot = errors.New("category snapshot is stale")

// CategoryWriter holds the single-record mutation primitives. It is only
// valid inside CategoryStore.Commit.
type CategoryWriter interface {
	InsertCategoryRecord(ctx context.Context, rec models.CategoryRecord) error
	PatchCategoryRecord(ctx context.Context, id string, patch models.CategoryPatch) error
	DeleteCategoryRecord(ctx context.Context, id string) error
}

// CategoryStore is the flat category record store.
//
// Revision counts committed mutations. Read it before ListCategoryRecords and
// pass it to Commit: the commit applies only if no other commit landed in
// between, and either every write inside fn applies or none does.
type CategoryStore interface {
	ListCategoryRecords(ctx context.Context) ([]models.CategoryRecord, error)
	GetCategoryRecord(ctx context.Context, id string) (models.CategoryRecord, error)
	Revision(ctx context.Context) (int64, error)
	Commit(ctx context.Context, expectedRevision int64, fn func(ctx context.Context, w CategoryWriter) error) (int64, error)
}
