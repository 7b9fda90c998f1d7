// Package taxonomy builds and guards the category tree. Everything here is a
// pure function over an immutable snapshot of category records: no I/O, no
// shared mutable state.
package taxonomy

import (
	"strings"

	"khoomi-api-io/taxonomy/pkg/models"
)

// DefaultMaxHops caps every parent-chain walk. Real taxonomies are a handful
// of levels deep; hitting the cap means the stored parent chain loops.
const DefaultMaxHops = 32

// RecordLookup resolves a category record by id.
type RecordLookup interface {
	Get(id string) (models.CategoryRecord, bool)
}

// Snapshot is an id-indexed, read-only view of all category records as read
// at one store revision.
type Snapshot struct {
	records  []models.CategoryRecord
	byID     map[string]int
	bySlug   map[string]string
	children map[string][]string
	revision int64
}

// NewSnapshot indexes records. Input order is kept and defines sibling order.
// If an id repeats, the first occurrence wins.
func NewSnapshot(records []models.CategoryRecord, revision int64) *Snapshot {
	s := &Snapshot{
		records:  make([]models.CategoryRecord, 0, len(records)),
		byID:     make(map[string]int, len(records)),
		bySlug:   make(map[string]string, len(records)),
		children: make(map[string][]string),
		revision: revision,
	}
	for _, r := range records {
		if _, dup := s.byID[r.ID]; dup {
			continue
		}
		s.byID[r.ID] = len(s.records)
		s.records = append(s.records, r)
		key := SlugKey(r.Slug)
		if _, taken := s.bySlug[key]; !taken {
			s.bySlug[key] = r.ID
		}
	}
	for _, r := range s.records {
		if r.ParentID != "" {
			s.children[r.ParentID] = append(s.children[r.ParentID], r.ID)
		}
	}
	return s
}

// SlugKey normalizes a slug for uniqueness comparison.
func SlugKey(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

func (s *Snapshot) Revision() int64 {
	return s.revision
}

func (s *Snapshot) Len() int {
	return len(s.records)
}

// Records returns the records in input order. The slice is a copy.
func (s *Snapshot) Records() []models.CategoryRecord {
	return append([]models.CategoryRecord(nil), s.records...)
}

func (s *Snapshot) Get(id string) (models.CategoryRecord, bool) {
	i, ok := s.byID[id]
	if !ok {
		return models.CategoryRecord{}, false
	}
	return s.records[i], true
}

func (s *Snapshot) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// BySlug finds a record by slug, case-insensitively.
func (s *Snapshot) BySlug(slug string) (models.CategoryRecord, bool) {
	id, ok := s.bySlug[SlugKey(slug)]
	if !ok {
		return models.CategoryRecord{}, false
	}
	return s.Get(id)
}

// ChildIDs returns the ids of records whose ParentID is id, in input order.
func (s *Snapshot) ChildIDs(id string) []string {
	return append([]string(nil), s.children[id]...)
}

// Ancestors returns the parent chain of id, nearest parent first. The walk
// stops at a root or at a dangling parent reference.
func (s *Snapshot) Ancestors(id string) ([]models.CategoryRecord, error) {
	return ancestors(s, id, DefaultMaxHops)
}

// Path returns the breadcrumb for id: root first, id itself last.
func (s *Snapshot) Path(id string) ([]models.CategoryRecord, error) {
	self, ok := s.Get(id)
	if !ok {
		return nil, violation(ErrCategoryNotFound, id, "no such category")
	}
	chain, err := s.Ancestors(id)
	if err != nil {
		return nil, err
	}
	path := make([]models.CategoryRecord, 0, len(chain)+1)
	for i := len(chain) - 1; i >= 0; i-- {
		path = append(path, chain[i])
	}
	return append(path, self), nil
}

// DescendantIDs returns every id below id, breadth first. Cycles in corrupted
// data are tolerated; each id is reported once.
func (s *Snapshot) DescendantIDs(id string) []string {
	var out []string
	seen := map[string]bool{id: true}
	queue := s.children[id]
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, next)
		queue = append(queue, s.children[next]...)
	}
	return out
}

func ancestors(lookup RecordLookup, id string, maxHops int) ([]models.CategoryRecord, error) {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	cur, ok := lookup.Get(id)
	if !ok {
		return nil, violation(ErrCategoryNotFound, id, "no such category")
	}

	var chain []models.CategoryRecord
	for hops := 0; cur.ParentID != ""; hops++ {
		if hops >= maxHops {
			return nil, violation(ErrStructuralAnomaly, id, "parent chain longer than %d hops", maxHops)
		}
		parent, ok := lookup.Get(cur.ParentID)
		if !ok {
			break
		}
		chain = append(chain, parent)
		cur = parent
	}
	return chain, nil
}
