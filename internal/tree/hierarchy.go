package tree

// Hierarchy is a path-segment trie over items. A node holds either child
// nodes, a leaf value, or both when an item path is a prefix of another.
// Children keep the order in which their first item was inserted, so callers
// control ordering by sorting the input.
type Hierarchy[T any] struct {
	Name         string
	RelativePath string
	Parent       *Hierarchy[T]
	Value        T
	HasValue     bool

	children    map[string]*Hierarchy[T]
	order       []string
	descendants []T
}

// MakeHierarchical inserts every item at the path returned by split. With
// compact set, chains of single-child folders collapse into one folder whose
// name is the joined path. Duplicate paths keep the last inserted item;
// items with an empty path are skipped.
func MakeHierarchical[T any](items []T, split func(T) []string, join func(...string) string, compact bool) *Hierarchy[T] {
	root := &Hierarchy[T]{}
	for _, item := range items {
		node := root
		for _, segment := range split(item) {
			if segment == "" {
				continue
			}
			node = node.child(segment, join)
		}
		if node == root {
			continue
		}
		node.Value = item
		node.HasValue = true
	}
	if compact {
		root.compact(join, true)
	}
	root.collect()
	return root
}

func (h *Hierarchy[T]) child(segment string, join func(...string) string) *Hierarchy[T] {
	if c, ok := h.children[segment]; ok {
		return c
	}
	if h.children == nil {
		h.children = make(map[string]*Hierarchy[T])
	}
	rel := segment
	if h.RelativePath != "" {
		rel = join(h.RelativePath, segment)
	}
	c := &Hierarchy[T]{Name: segment, RelativePath: rel, Parent: h}
	h.children[segment] = c
	h.order = append(h.order, segment)
	return c
}

// compact runs bottom-up so a folder absorbing its only child sees that
// child already compacted.
func (h *Hierarchy[T]) compact(join func(...string) string, isRoot bool) {
	for _, c := range h.Children() {
		c.compact(join, false)
	}
	if isRoot || h.HasValue || len(h.order) != 1 {
		return
	}
	only := h.children[h.order[0]]
	if only.HasValue {
		return
	}
	h.Name = join(h.Name, only.Name)
	h.RelativePath = only.RelativePath
	h.children = only.children
	h.order = only.order
	for _, c := range h.children {
		c.Parent = h
	}
}

func (h *Hierarchy[T]) collect() []T {
	h.descendants = h.descendants[:0]
	if h.HasValue {
		h.descendants = append(h.descendants, h.Value)
	}
	for _, c := range h.Children() {
		h.descendants = append(h.descendants, c.collect()...)
	}
	return h.descendants
}

// Children returns the child nodes in insertion order.
func (h *Hierarchy[T]) Children() []*Hierarchy[T] {
	if len(h.order) == 0 {
		return nil
	}
	out := make([]*Hierarchy[T], 0, len(h.order))
	for _, name := range h.order {
		out = append(out, h.children[name])
	}
	return out
}

func (h *Hierarchy[T]) IsLeaf() bool {
	return len(h.order) == 0
}

func (h *Hierarchy[T]) IsEmpty() bool {
	return h.IsLeaf() && !h.HasValue
}

// Descendants returns every item at or below h, in tree order.
func (h *Hierarchy[T]) Descendants() []T {
	return h.descendants
}
