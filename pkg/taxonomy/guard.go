package taxonomy

import (
	"strings"

	"khoomi-api-io/taxonomy/pkg/models"

	"github.com/gosimple/slug"
)

type DeletePolicy string

const (
	// DeleteReject refuses to delete a category that still has children.
	DeleteReject DeletePolicy = "reject"
	// DeleteCascade moves the children up to the deleted category's parent.
	DeleteCascade DeletePolicy = "cascade"
)

func ParseDeletePolicy(policy string) (DeletePolicy, error) {
	switch DeletePolicy(strings.ToLower(strings.TrimSpace(policy))) {
	case DeleteReject:
		return DeleteReject, nil
	case DeleteCascade:
		return DeleteCascade, nil
	}
	return DeleteReject, violation(ErrUnknownDeletePolicy, "", "%q", policy)
}

// Reparent moves one category under ParentID; "" means root.
type Reparent struct {
	CategoryID string `json:"categoryId"`
	ParentID   string `json:"parentId"`
}

// DeletePlan is everything that must be committed, atomically, to delete a
// category under the given policy.
type DeletePlan struct {
	CategoryID string       `json:"categoryId"`
	Policy     DeletePolicy `json:"policy"`
	Reparents  []Reparent   `json:"reparents"`
	// Affected lists every category below the deleted one. Their parent
	// chain changes, and with it possibly their effective template.
	Affected []string `json:"affected"`
}

// Guard validates proposed mutations against a snapshot. It never mutates
// anything, so it is safe to call speculatively.
type Guard struct {
	snap     *Snapshot
	maxDepth int
	maxHops  int
}

type GuardOption func(*Guard)

// WithMaxDepth limits how many levels deep the tree may grow; a root is
// level 1. Zero means unlimited.
func WithMaxDepth(levels int) GuardOption {
	return func(g *Guard) {
		g.maxDepth = levels
	}
}

func WithGuardMaxHops(n int) GuardOption {
	return func(g *Guard) {
		if n > 0 {
			g.maxHops = n
		}
	}
}

func NewGuard(snap *Snapshot, opts ...GuardOption) *Guard {
	g := &Guard{snap: snap, maxHops: DefaultMaxHops}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckCreate validates a record about to be inserted.
func (g *Guard) CheckCreate(rec models.CategoryRecord) error {
	if strings.TrimSpace(rec.Name) == "" {
		return violation(ErrInvalidCategory, rec.ID, "name is required")
	}
	if err := g.checkSlug(rec.ID, rec.Slug); err != nil {
		return err
	}
	if rec.ID != "" && g.snap.Has(rec.ID) {
		return violation(ErrInvalidCategory, rec.ID, "id already in use")
	}
	if err := g.checkTemplate(rec.ID, rec.Template); err != nil {
		return err
	}
	if rec.ParentID == "" {
		return nil
	}
	if !g.snap.Has(rec.ParentID) {
		return violation(ErrParentNotFound, rec.ID, "parent %s does not exist", rec.ParentID)
	}
	if g.maxDepth > 0 {
		parentDepth, err := ancestorsLen(g.snap, rec.ParentID, g.maxHops)
		if err != nil {
			return err
		}
		if level := parentDepth + 2; level > g.maxDepth {
			return violation(ErrDepthExceeded, rec.ID, "would sit at level %d, limit is %d", level, g.maxDepth)
		}
	}
	return nil
}

// CheckUpdate validates a partial update, including a parent change.
func (g *Guard) CheckUpdate(id string, patch models.CategoryPatch) error {
	cur, ok := g.snap.Get(id)
	if !ok {
		return violation(ErrCategoryNotFound, id, "no such category")
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return violation(ErrInvalidCategory, id, "name is required")
	}
	if patch.Slug != nil {
		if err := g.checkSlug(id, *patch.Slug); err != nil {
			return err
		}
	}
	if !patch.ClearTemplate {
		if err := g.checkTemplate(id, patch.Template); err != nil {
			return err
		}
	}
	if patch.ParentID != nil && *patch.ParentID != cur.ParentID {
		return g.CheckMove(id, *patch.ParentID)
	}
	return nil
}

// CheckMove validates reparenting id under newParentID ("" for root). The
// new parent may be neither id itself nor anything below it.
func (g *Guard) CheckMove(id, newParentID string) error {
	if !g.snap.Has(id) {
		return violation(ErrCategoryNotFound, id, "no such category")
	}
	if newParentID == id {
		return violation(ErrCyclicParent, id, "a category cannot be its own parent")
	}

	newParentDepth := -1
	if newParentID != "" {
		if !g.snap.Has(newParentID) {
			return violation(ErrParentNotFound, id, "parent %s does not exist", newParentID)
		}
		chain, err := ancestors(g.snap, newParentID, g.maxHops)
		if err != nil {
			return err
		}
		for _, a := range chain {
			if a.ID == id {
				return violation(ErrCyclicParent, id, "%s is a descendant of %s", newParentID, id)
			}
		}
		newParentDepth = len(chain)
	}

	if g.maxDepth > 0 {
		if deepest := newParentDepth + 1 + g.subtreeHeight(id); deepest > g.maxDepth {
			return violation(ErrDepthExceeded, id, "subtree would reach level %d, limit is %d", deepest, g.maxDepth)
		}
	}
	return nil
}

// CheckDelete validates deleting id and returns what the delete entails.
// Under DeleteCascade the children move to id's former parent. When that
// parent is itself missing they become roots.
func (g *Guard) CheckDelete(id string, policy DeletePolicy) (DeletePlan, error) {
	rec, ok := g.snap.Get(id)
	if !ok {
		return DeletePlan{}, violation(ErrCategoryNotFound, id, "no such category")
	}
	if policy != DeleteReject && policy != DeleteCascade {
		return DeletePlan{}, violation(ErrUnknownDeletePolicy, id, "%q", policy)
	}

	plan := DeletePlan{CategoryID: id, Policy: policy, Reparents: []Reparent{}, Affected: []string{}}
	children := g.snap.ChildIDs(id)
	if len(children) == 0 {
		return plan, nil
	}
	if policy == DeleteReject {
		return DeletePlan{}, violation(ErrHasDependents, id, "%d subcategories must be moved or deleted first", len(children))
	}

	target := rec.ParentID
	if target != "" && !g.snap.Has(target) {
		target = ""
	}
	for _, child := range children {
		plan.Reparents = append(plan.Reparents, Reparent{CategoryID: child, ParentID: target})
	}
	plan.Affected = g.snap.DescendantIDs(id)
	return plan, nil
}

func (g *Guard) checkSlug(id, s string) error {
	if strings.TrimSpace(s) == "" {
		return violation(ErrInvalidSlug, id, "slug is required")
	}
	if owner, taken := g.snap.BySlug(s); taken && owner.ID != id {
		return violation(ErrDuplicateSlug, id, "%q is already used by %s", s, owner.ID)
	}
	if !slug.IsSlug(s) {
		return violation(ErrInvalidSlug, id, "%q is not a valid slug", s)
	}
	return nil
}

func (g *Guard) checkTemplate(id string, t *models.Template) error {
	if err := t.Validate(); err != nil {
		return &ViolationError{Err: ErrInvalidTemplate, CategoryID: id, Detail: err.Error()}
	}
	return nil
}

// subtreeHeight counts levels from id down to its deepest descendant; a leaf
// has height 1.
func (g *Guard) subtreeHeight(id string) int {
	height := 0
	level := []string{id}
	seen := map[string]bool{id: true}
	for len(level) > 0 {
		height++
		var next []string
		for _, n := range level {
			for _, c := range g.snap.ChildIDs(n) {
				if !seen[c] {
					seen[c] = true
					next = append(next, c)
				}
			}
		}
		level = next
	}
	return height
}

func ancestorsLen(lookup RecordLookup, id string, maxHops int) (int, error) {
	chain, err := ancestors(lookup, id, maxHops)
	return len(chain), err
}
