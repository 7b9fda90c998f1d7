package taxonomy

import "khoomi-api-io/taxonomy/pkg/models"

// Forest is the assembled category tree: every record exactly once, reachable
// from Roots.
type Forest struct {
	Roots []*models.CategoryNode
	index map[string]*models.CategoryNode
}

// BuildForest assembles flat records into root nodes with materialized
// children. Sibling order follows input order. A record whose parent does not
// exist is promoted to a root rather than dropped.
func BuildForest(records []models.CategoryRecord) []*models.CategoryNode {
	return NewForest(records).Roots
}

// NewForest is BuildForest keeping the id index for lookups.
func NewForest(records []models.CategoryRecord) *Forest {
	index := make(map[string]*models.CategoryNode, len(records))
	order := make([]*models.CategoryNode, 0, len(records))
	for _, r := range records {
		if _, dup := index[r.ID]; dup {
			continue
		}
		n := &models.CategoryNode{CategoryRecord: r, Children: []*models.CategoryNode{}}
		index[r.ID] = n
		order = append(order, n)
	}

	broken := breakCycles(order, index)

	f := &Forest{Roots: []*models.CategoryNode{}, index: index}
	for _, n := range order {
		parent, ok := index[n.ParentID]
		if n.ParentID == "" || !ok || broken[n.ID] {
			f.Roots = append(f.Roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
	}
	return f
}

// breakCycles finds parent-reference loops in corrupted data and returns the
// ids whose parent link must be ignored: for each loop, the member that comes
// first in input order.
func breakCycles(order []*models.CategoryNode, index map[string]*models.CategoryNode) map[string]bool {
	position := make(map[string]int, len(order))
	for i, n := range order {
		position[n.ID] = i
	}

	resolved := make(map[string]bool, len(order))
	broken := make(map[string]bool)
	for _, start := range order {
		var path []*models.CategoryNode
		onPath := make(map[string]int)
		cur := start
		for !resolved[cur.ID] {
			if at, looped := onPath[cur.ID]; looped {
				first := path[at]
				for _, member := range path[at+1:] {
					if position[member.ID] < position[first.ID] {
						first = member
					}
				}
				broken[first.ID] = true
				break
			}
			onPath[cur.ID] = len(path)
			path = append(path, cur)

			parent, ok := index[cur.ParentID]
			if cur.ParentID == "" || !ok {
				break
			}
			cur = parent
		}
		for _, n := range path {
			resolved[n.ID] = true
		}
	}
	return broken
}

// Find returns the node for id with its whole subtree.
func (f *Forest) Find(id string) (*models.CategoryNode, bool) {
	n, ok := f.index[id]
	return n, ok
}

func (f *Forest) Len() int {
	return len(f.index)
}

// Walk visits nodes depth first, parents before children, roots in order.
// Returning false from fn skips that node's children.
func (f *Forest) Walk(fn func(n *models.CategoryNode, depth int) bool) {
	var visit func(n *models.CategoryNode, depth int)
	visit = func(n *models.CategoryNode, depth int) {
		if !fn(n, depth) {
			return
		}
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	for _, r := range f.Roots {
		visit(r, 0)
	}
}
