package services

import (
	"context"

	"khoomi-api-io/taxonomy/pkg/models"
	"khoomi-api-io/taxonomy/pkg/taxonomy"
)

// CategoryService defines the interface for category-related operations.
// Mutations take dryRun: when set, the guard runs against a fresh snapshot
// and nothing is committed.
type CategoryService interface {
	GetForest(ctx context.Context) ([]*models.CategoryNode, error)
	GetCategory(ctx context.Context, id string) (models.CategoryRecord, error)
	GetCategoryChildren(ctx context.Context, id string) (*models.CategoryNode, error)
	GetCategoryAncestors(ctx context.Context, id string) ([]models.CategoryRecord, error)
	SearchCategories(ctx context.Context, query string) ([]models.CategoryRecord, error)

	ResolveTemplate(ctx context.Context, id string) (taxonomy.Resolution, error)
	ValidateListingAttributes(ctx context.Context, id string, values map[string]any) (taxonomy.Resolution, error)

	CreateCategory(ctx context.Context, req models.CategoryRequest, dryRun bool) (models.CategoryRecord, error)
	CreateCategories(ctx context.Context, req models.CategoryRequestMulti, dryRun bool) ([]models.CategoryRecord, error)
	UpdateCategory(ctx context.Context, id string, req models.CategoryUpdateRequest, dryRun bool) (models.CategoryRecord, error)
	MoveCategory(ctx context.Context, id, parentID string, dryRun bool) (models.CategoryRecord, error)
	DeleteCategory(ctx context.Context, id string, dryRun bool) (taxonomy.DeletePlan, error)
	UpdateCategoryImage(ctx context.Context, id, imageURL string) (models.CategoryRecord, error)

	Audit(ctx context.Context) (taxonomy.AuditReport, error)
}

// CategoryCacheInvalidator tells downstream caches which categories changed.
type CategoryCacheInvalidator interface {
	InvalidateCategories(ctx context.Context, ids ...string) error
}
