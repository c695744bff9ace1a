package tree

import "sync"

// Unbounded is the page bound meaning "no limit".
const Unbounded = 0

// PagingArgs carries the increment requested by a pager. MaxCount ==
// Unbounded asks for everything.
type PagingArgs struct {
	MaxCount int
}

// Paging is the page bound of a pageable node. Once set, the bound only
// grows; Unbounded is terminal.
type Paging struct {
	mu       sync.Mutex
	maxCount int
	set      bool
}

// MaxCount returns the effective bound, falling back to def while the node
// was never paged.
func (p *Paging) MaxCount(def int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.set {
		return def
	}
	return p.maxCount
}

func (p *Paging) IsUnbounded(def int) bool {
	return p.MaxCount(def) == Unbounded
}

// Grow raises the bound by increment starting from the effective bound and
// returns the new bound. An Unbounded increment removes the bound.
func (p *Paging) Grow(def, increment int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	current := def
	if p.set {
		current = p.maxCount
	}
	switch {
	case current == Unbounded:
		// already unbounded
	case increment == Unbounded:
		current = Unbounded
	case increment > 0:
		current += increment
	}
	p.maxCount = current
	p.set = true
	return current
}
