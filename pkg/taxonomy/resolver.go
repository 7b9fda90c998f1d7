package taxonomy

import "khoomi-api-io/taxonomy/pkg/models"

// Resolution is the effective template of a category and where it came from.
type Resolution struct {
	CategoryID string          `json:"categoryId"`
	SourceID   string          `json:"sourceId,omitempty"`
	Inherited  bool            `json:"inherited"`
	Template   models.Template `json:"template"`
}

// Resolver finds effective templates by nearest-ancestor-wins. Templates are
// never merged across levels.
type Resolver struct {
	lookup   RecordLookup
	fallback models.Template
	maxHops  int
}

type ResolverOption func(*Resolver)

// WithDefaultTemplate sets what categories without any usable template in
// their chain resolve to. The default is the empty template.
func WithDefaultTemplate(t models.Template) ResolverOption {
	return func(r *Resolver) {
		r.fallback = *t.Clone()
	}
}

func WithMaxHops(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.maxHops = n
		}
	}
}

func NewResolver(lookup RecordLookup, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		lookup:   lookup,
		fallback: models.Template{Fields: []models.FieldDescriptor{}},
		maxHops:  DefaultMaxHops,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveTemplate returns the effective template for node, walking parent ids
// through lookup. Only a parent chain longer than DefaultMaxHops is an error.
func ResolveTemplate(node *models.CategoryNode, lookup RecordLookup) (models.Template, error) {
	res, err := NewResolver(lookup).ResolveRecord(node.CategoryRecord)
	if err != nil {
		return models.Template{}, err
	}
	return res.Template, nil
}

// Resolve resolves the category with the given id.
func (r *Resolver) Resolve(id string) (Resolution, error) {
	rec, ok := r.lookup.Get(id)
	if !ok {
		return Resolution{}, violation(ErrCategoryNotFound, id, "no such category")
	}
	return r.ResolveRecord(rec)
}

// ResolveRecord resolves starting from rec itself, which need not be in the
// lookup. A dangling parent ends the walk as if rec's chain reached a root.
func (r *Resolver) ResolveRecord(rec models.CategoryRecord) (Resolution, error) {
	res := Resolution{CategoryID: rec.ID}
	cur := rec
	for hops := 0; ; hops++ {
		if !cur.Template.IsEmpty() {
			res.SourceID = cur.ID
			res.Inherited = cur.ID != rec.ID
			res.Template = *cur.Template.Clone()
			return res, nil
		}
		if cur.ParentID == "" {
			break
		}
		if hops >= r.maxHops {
			return Resolution{}, violation(ErrStructuralAnomaly, rec.ID, "parent chain longer than %d hops", r.maxHops)
		}
		parent, ok := r.lookup.Get(cur.ParentID)
		if !ok {
			break
		}
		cur = parent
	}

	res.Template = *r.fallback.Clone()
	return res, nil
}

// Ancestors is the capped parent walk used by resolution, nearest first.
func (r *Resolver) Ancestors(id string) ([]models.CategoryRecord, error) {
	return ancestors(r.lookup, id, r.maxHops)
}
