package services

import (
	"context"
	"fmt"
	"strings"

	"khoomi-api-io/taxonomy/pkg/models"
	"khoomi-api-io/taxonomy/pkg/taxonomy"

	"github.com/google/uuid"
	slug2 "github.com/gosimple/slug"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type CategoryServiceConfig struct {
	DeletePolicy  taxonomy.DeletePolicy
	MaxDepth      int
	MaxHops       int
	CommitRetries int
	// DefaultTemplate is what categories without any template in their
	// chain resolve to. Nil means the empty template.
	DefaultTemplate *models.Template
}

type CategoryServiceImpl struct {
	store  CategoryStore
	cache  CategoryCacheInvalidator
	logger *zap.Logger
	cfg    CategoryServiceConfig
	newID  func() string
}

func NewCategoryService(store CategoryStore, cache CategoryCacheInvalidator, logger *zap.Logger, cfg CategoryServiceConfig) *CategoryServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DeletePolicy == "" {
		cfg.DeletePolicy = taxonomy.DeleteReject
	}
	if cfg.CommitRetries < 1 {
		cfg.CommitRetries = 1
	}
	return &CategoryServiceImpl{
		store:  store,
		cache:  cache,
		logger: logger.Named("category"),
		cfg:    cfg,
		newID:  newCategoryID,
	}
}

// newCategoryID returns a time-ordered id. Stored timestamps only keep
// milliseconds, so ids break ties between siblings created together.
func newCategoryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// commitFunc is the write half of a mutation, run inside CategoryStore.Commit.
type commitFunc func(ctx context.Context, w CategoryWriter) error

// planFunc validates a mutation against snap and returns its writes plus the
// ids it touches. A nil commitFunc means there is nothing to write.
type planFunc func(snap *taxonomy.Snapshot) (commitFunc, []string, error)

// snapshot reads the revision before the records, so a commit that lands in
// between makes the later Commit fail instead of going unnoticed.
func (s *CategoryServiceImpl) snapshot(ctx context.Context) (*taxonomy.Snapshot, error) {
	rev, err := s.store.Revision(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListCategoryRecords(ctx)
	if err != nil {
		return nil, err
	}
	return taxonomy.NewSnapshot(records, rev), nil
}

func (s *CategoryServiceImpl) guard(snap *taxonomy.Snapshot) *taxonomy.Guard {
	return taxonomy.NewGuard(snap, taxonomy.WithMaxDepth(s.cfg.MaxDepth), taxonomy.WithGuardMaxHops(s.cfg.MaxHops))
}

func (s *CategoryServiceImpl) resolver(snap *taxonomy.Snapshot) *taxonomy.Resolver {
	opts := []taxonomy.ResolverOption{taxonomy.WithMaxHops(s.cfg.MaxHops)}
	if s.cfg.DefaultTemplate != nil {
		opts = append(opts, taxonomy.WithDefaultTemplate(*s.cfg.DefaultTemplate))
	}
	return taxonomy.NewResolver(snap, opts...)
}

// mutate validates plan against a fresh snapshot and commits it, starting
// over from a new read when another commit got there first.
func (s *CategoryServiceImpl) mutate(ctx context.Context, op string, dryRun bool, plan planFunc) error {
	for attempt := 1; ; attempt++ {
		snap, err := s.snapshot(ctx)
		if err != nil {
			return err
		}
		commit, touched, err := plan(snap)
		if err != nil {
			return err
		}
		if dryRun || commit == nil {
			return nil
		}

		rev, err := s.store.Commit(ctx, snap.Revision(), commit)
		if err == nil {
			s.logger.Info("category mutation committed",
				zap.String("op", op),
				zap.Int64("revision", rev),
				zap.Strings("categories", touched))
			s.invalidate(ctx, touched)
			return nil
		}
		if !errors.Is(err, ErrStaleSnapshot) || attempt >= s.cfg.CommitRetries {
			return err
		}
		s.logger.Warn("category snapshot went stale, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt))
	}
}

func (s *CategoryServiceImpl) invalidate(ctx context.Context, ids []string) {
	if s.cache == nil || len(ids) == 0 {
		return
	}
	if err := s.cache.InvalidateCategories(ctx, ids...); err != nil {
		s.logger.Warn("category cache invalidation failed", zap.Strings("categories", ids), zap.Error(err))
	}
}

func (s *CategoryServiceImpl) GetForest(ctx context.Context) ([]*models.CategoryNode, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return taxonomy.BuildForest(snap.Records()), nil
}

func (s *CategoryServiceImpl) GetCategory(ctx context.Context, id string) (models.CategoryRecord, error) {
	return s.store.GetCategoryRecord(ctx, id)
}

// GetCategoryChildren returns the category with its whole subtree.
func (s *CategoryServiceImpl) GetCategoryChildren(ctx context.Context, id string) (*models.CategoryNode, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	node, ok := taxonomy.NewForest(snap.Records()).Find(id)
	if !ok {
		return nil, errors.Wrapf(taxonomy.ErrCategoryNotFound, "category %s", id)
	}
	return node, nil
}

// GetCategoryAncestors returns the breadcrumb above id, root first.
func (s *CategoryServiceImpl) GetCategoryAncestors(ctx context.Context, id string) ([]models.CategoryRecord, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	path, err := snap.Path(id)
	if err != nil {
		return nil, err
	}
	return path[:len(path)-1], nil
}

func (s *CategoryServiceImpl) SearchCategories(ctx context.Context, query string) ([]models.CategoryRecord, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	results := []models.CategoryRecord{}
	if query == "" {
		return results, nil
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range snap.Records() {
		if strings.Contains(strings.ToLower(r.Name), query) || strings.Contains(taxonomy.SlugKey(r.Slug), query) {
			results = append(results, r)
		}
	}
	return results, nil
}

func (s *CategoryServiceImpl) ResolveTemplate(ctx context.Context, id string) (taxonomy.Resolution, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return taxonomy.Resolution{}, err
	}
	return s.resolver(snap).Resolve(id)
}

// ValidateListingAttributes checks listing attribute values against the
// category's effective template. Value problems come back as
// models.AttributeErrors alongside the resolution that was applied.
func (s *CategoryServiceImpl) ValidateListingAttributes(ctx context.Context, id string, values map[string]any) (taxonomy.Resolution, error) {
	res, err := s.ResolveTemplate(ctx, id)
	if err != nil {
		return res, err
	}
	return res, res.Template.ValidateValues(values)
}

func (s *CategoryServiceImpl) CreateCategory(ctx context.Context, req models.CategoryRequest, dryRun bool) (models.CategoryRecord, error) {
	id := s.newID()
	var created models.CategoryRecord

	err := s.mutate(ctx, "create", dryRun, func(snap *taxonomy.Snapshot) (commitFunc, []string, error) {
		rec, err := newCategoryRecord(snap, id, req)
		if err != nil {
			return nil, nil, err
		}
		if err := s.guard(snap).CheckCreate(rec); err != nil {
			return nil, nil, err
		}
		created = rec
		return func(ctx context.Context, w CategoryWriter) error {
			return w.InsertCategoryRecord(ctx, rec)
		}, []string{rec.ID}, nil
	})
	if err != nil {
		return models.CategoryRecord{}, err
	}
	return created, nil
}

// CreateCategories creates a batch in one commit. Entries are validated in
// order against the store plus the entries before them, so a parentSlug may
// name an earlier entry of the same batch.
func (s *CategoryServiceImpl) CreateCategories(ctx context.Context, req models.CategoryRequestMulti, dryRun bool) ([]models.CategoryRecord, error) {
	ids := make([]string, len(req.Categories))
	for i := range ids {
		ids[i] = s.newID()
	}
	var created []models.CategoryRecord

	err := s.mutate(ctx, "create_many", dryRun, func(snap *taxonomy.Snapshot) (commitFunc, []string, error) {
		working := snap.Records()
		batch := make([]models.CategoryRecord, 0, len(req.Categories))
		for i, r := range req.Categories {
			view := taxonomy.NewSnapshot(working, snap.Revision())
			rec, err := newCategoryRecord(view, ids[i], r)
			if err == nil {
				err = s.guard(view).CheckCreate(rec)
			}
			if err != nil {
				return nil, nil, errors.Wrapf(err, "categories[%d]", i)
			}
			working = append(working, rec)
			batch = append(batch, rec)
		}

		created = batch
		return func(ctx context.Context, w CategoryWriter) error {
			for _, rec := range batch {
				if err := w.InsertCategoryRecord(ctx, rec); err != nil {
					return err
				}
			}
			return nil
		}, ids, nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *CategoryServiceImpl) UpdateCategory(ctx context.Context, id string, req models.CategoryUpdateRequest, dryRun bool) (models.CategoryRecord, error) {
	patch := models.CategoryPatch{
		Name:          trimmed(req.Name),
		Slug:          normalizedSlug(req.Slug),
		Description:   trimmed(req.Description),
		Template:      req.Template,
		ClearTemplate: req.ClearTemplate,
	}
	return s.patch(ctx, "update", id, patch, dryRun)
}

func (s *CategoryServiceImpl) MoveCategory(ctx context.Context, id, parentID string, dryRun bool) (models.CategoryRecord, error) {
	parentID = strings.TrimSpace(parentID)
	return s.patch(ctx, "move", id, models.CategoryPatch{ParentID: &parentID}, dryRun)
}

func (s *CategoryServiceImpl) UpdateCategoryImage(ctx context.Context, id, imageURL string) (models.CategoryRecord, error) {
	return s.patch(ctx, "update_image", id, models.CategoryPatch{Image: &imageURL}, false)
}

func (s *CategoryServiceImpl) patch(ctx context.Context, op, id string, patch models.CategoryPatch, dryRun bool) (models.CategoryRecord, error) {
	var updated models.CategoryRecord

	err := s.mutate(ctx, op, dryRun, func(snap *taxonomy.Snapshot) (commitFunc, []string, error) {
		cur, ok := snap.Get(id)
		if !ok {
			return nil, nil, errors.Wrapf(taxonomy.ErrCategoryNotFound, "category %s", id)
		}
		if err := s.guard(snap).CheckUpdate(id, patch); err != nil {
			return nil, nil, err
		}
		updated = patch.Apply(cur)
		if patch.IsEmpty() {
			return nil, nil, nil
		}
		return func(ctx context.Context, w CategoryWriter) error {
			return w.PatchCategoryRecord(ctx, id, patch)
		}, []string{id}, nil
	})
	if err != nil {
		return models.CategoryRecord{}, err
	}
	return updated, nil
}

// DeleteCategory deletes id under the configured policy. Under cascade the
// children are reparented in the same commit as the delete.
func (s *CategoryServiceImpl) DeleteCategory(ctx context.Context, id string, dryRun bool) (taxonomy.DeletePlan, error) {
	var plan taxonomy.DeletePlan

	err := s.mutate(ctx, "delete", dryRun, func(snap *taxonomy.Snapshot) (commitFunc, []string, error) {
		p, err := s.guard(snap).CheckDelete(id, s.cfg.DeletePolicy)
		if err != nil {
			return nil, nil, err
		}
		plan = p

		touched := append([]string{id}, p.Affected...)
		return func(ctx context.Context, w CategoryWriter) error {
			for _, rp := range p.Reparents {
				parentID := rp.ParentID
				if err := w.PatchCategoryRecord(ctx, rp.CategoryID, models.CategoryPatch{ParentID: &parentID}); err != nil {
					return err
				}
			}
			return w.DeleteCategoryRecord(ctx, id)
		}, touched, nil
	})
	if err != nil {
		return taxonomy.DeletePlan{}, err
	}
	return plan, nil
}

func (s *CategoryServiceImpl) Audit(ctx context.Context) (taxonomy.AuditReport, error) {
	records, err := s.store.ListCategoryRecords(ctx)
	if err != nil {
		return taxonomy.AuditReport{}, err
	}
	return taxonomy.Audit(records), nil
}

// newCategoryRecord turns a create request into a record. A missing slug is
// derived from the name; a parent may be given by id or by slug.
func newCategoryRecord(snap *taxonomy.Snapshot, id string, req models.CategoryRequest) (models.CategoryRecord, error) {
	rec := models.CategoryRecord{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		Slug:        strings.ToLower(strings.TrimSpace(req.Slug)),
		Description: strings.TrimSpace(req.Description),
		ParentID:    strings.TrimSpace(req.ParentID),
		Template:    req.Template.Clone(),
		Image:       req.Image,
	}
	if rec.Slug == "" {
		rec.Slug = slug2.Make(rec.Name)
	}

	if rec.ParentID == "" && req.ParentSlug != "" {
		parent, ok := snap.BySlug(req.ParentSlug)
		if !ok {
			return rec, &taxonomy.ViolationError{
				Err:        taxonomy.ErrParentNotFound,
				CategoryID: id,
				Detail:     fmt.Sprintf("no category with slug %q", req.ParentSlug),
			}
		}
		rec.ParentID = parent.ID
	}
	return rec, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func normalizedSlug(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*s))
	return &v
}
