package domain

import (
	"cmp"
	"slices"
)

// ProductStream is a saved search whose results populate a category.
type ProductStream struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	Criteria SearchCriteria `json:"criteria"`
}

// Category is a node of a shop's category tree. The parent link is for
// lookups only; children are owned by the node.
type Category struct {
	ID       int64          `json:"id"`
	ParentID *int64         `json:"parent_id,omitempty"`
	Name     string         `json:"name"`
	Position int            `json:"position"`
	Active   bool           `json:"active"`
	Stream   *ProductStream `json:"stream,omitempty"`
	Children []*Category    `json:"-"`
}

// IsLeaf reports whether the category has no children.
func (c *Category) IsLeaf() bool {
	return len(c.Children) == 0
}

// CategoryTree indexes a flat category list by id and links children.
type CategoryTree struct {
	byID  map[int64]*Category
	roots []*Category
}

// NewCategoryTree links categories into a forest. Children are ordered by
// Position, then id. Nodes whose parent is missing become roots. A node is
// never linked below one of its own descendants.
func NewCategoryTree(categories []Category) *CategoryTree {
	t := &CategoryTree{byID: make(map[int64]*Category, len(categories))}
	for i := range categories {
		c := categories[i]
		c.Children = nil
		t.byID[c.ID] = &c
	}

	ids := make([]int64, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		c := t.byID[id]
		parent, ok := t.parent(c)
		if !ok || t.isAncestor(c.ID, parent.ID) {
			t.roots = append(t.roots, c)
			continue
		}
		parent.Children = append(parent.Children, c)
	}

	order := func(a, b *Category) int {
		if a.Position != b.Position {
			return cmp.Compare(a.Position, b.Position)
		}
		return cmp.Compare(a.ID, b.ID)
	}
	slices.SortFunc(t.roots, order)
	for _, c := range t.byID {
		slices.SortFunc(c.Children, order)
	}
	return t
}

func (t *CategoryTree) parent(c *Category) (*Category, bool) {
	if c.ParentID == nil || *c.ParentID == c.ID {
		return nil, false
	}
	p, ok := t.byID[*c.ParentID]
	return p, ok
}

// isAncestor walks parent links from id and reports whether ancestor is met.
func (t *CategoryTree) isAncestor(ancestor, id int64) bool {
	seen := map[int64]bool{}
	for cur, ok := t.byID[id]; ok && !seen[cur.ID]; cur, ok = t.parent(cur) {
		if cur.ID == ancestor {
			return true
		}
		seen[cur.ID] = true
	}
	return false
}

// Get returns the category with the given id.
func (t *CategoryTree) Get(id int64) (*Category, bool) {
	c, ok := t.byID[id]
	return c, ok
}

// Roots returns the top-level categories.
func (t *CategoryTree) Roots() []*Category {
	return t.roots
}

// Children returns the direct children of id.
func (t *CategoryTree) Children(id int64) []*Category {
	if c, ok := t.byID[id]; ok {
		return c.Children
	}
	return nil
}

// IsChildOf reports whether id lies strictly below root.
func (t *CategoryTree) IsChildOf(id, root int64) bool {
	return id != root && t.isAncestor(root, id)
}

// Path returns the category names from just below root down to id.
func (t *CategoryTree) Path(id, root int64) []string {
	var names []string
	seen := map[int64]bool{}
	for cur, ok := t.byID[id]; ok && cur.ID != root && !seen[cur.ID]; cur, ok = t.parent(cur) {
		seen[cur.ID] = true
		names = append(names, cur.Name)
	}
	slices.Reverse(names)
	return names
}

// StreamMembership maps a product id to the ids of the categories whose
// product stream contains it.
type StreamMembership map[int64][]int64

// Add records that category contributes product. Duplicates are ignored.
func (m StreamMembership) Add(productID, categoryID int64) {
	if slices.Contains(m[productID], categoryID) {
		return
	}
	m[productID] = append(m[productID], categoryID)
}

// Merge returns a new membership containing both m and other.
func (m StreamMembership) Merge(other StreamMembership) StreamMembership {
	out := make(StreamMembership, len(m)+len(other))
	for pid, cats := range m {
		out[pid] = slices.Clone(cats)
	}
	for pid, cats := range other {
		for _, cid := range cats {
			out.Add(pid, cid)
		}
	}
	return out
}

// Categories returns the contributing categories of a product.
func (m StreamMembership) Categories(productID int64) []int64 {
	return m[productID]
}

// Has reports whether the product is in any stream.
func (m StreamMembership) Has(productID int64) bool {
	return len(m[productID]) > 0
}
