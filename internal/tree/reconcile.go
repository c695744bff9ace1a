package tree

import (
	"context"
	"log/slog"
)

// Reconciler merges a freshly fetched item set into a previous child list.
//
// Key must return, for an item, the ID the node built from it would report,
// so old nodes and new items can be matched without comparing contents.
type Reconciler[T any] struct {
	Key   func(T) string
	Build func(T) Node
	// Update brings a kept node up to date with its new item. When nil the
	// node is refreshed.
	Update func(ctx context.Context, node Node, item T)
	// Empty builds the placeholder shown when the fetch returned nothing.
	// When nil an empty fetch yields an empty child list.
	Empty func() Node
	// More builds the pager appended to a truncated page.
	More func() *PagerNode
}

type ReconcileStats struct {
	Kept     int
	Created  int
	Disposed int
}

// Apply returns the next child list, ordered like items. Matched nodes are
// reused and updated, unmatched items get new nodes and previous nodes
// absent from the result are disposed.
func (r Reconciler[T]) Apply(ctx context.Context, prev []Node, items []T) ([]Node, ReconcileStats) {
	return r.ApplyPage(ctx, prev, items, false)
}

// ApplyPage is Apply for a page of a bounded query. When truncated is set
// and More is not nil a single pager closes the list; a previous pager with
// the same identity is reused.
func (r Reconciler[T]) ApplyPage(ctx context.Context, prev []Node, items []T, truncated bool) ([]Node, ReconcileStats) {
	var stats ReconcileStats
	byKey := make(map[string]Node, len(prev))
	for _, n := range prev {
		if n != nil {
			byKey[n.ID()] = n
		}
	}

	next := make([]Node, 0, max(len(items), 1))
	if len(items) == 0 && r.Empty != nil {
		placeholder := r.Empty()
		if old, ok := byKey[placeholder.ID()]; ok {
			placeholder = old
			stats.Kept++
		} else {
			stats.Created++
		}
		next = append(next, placeholder)
	}
	for _, item := range items {
		key := r.Key(item)
		if old, ok := byKey[key]; ok {
			if r.Update != nil {
				r.Update(ctx, old, item)
			} else if err := old.Refresh(ctx); err != nil {
				slog.Debug("refresh kept node", slog.String("node", key), slog.Any("error", err))
			}
			next = append(next, old)
			delete(byKey, key)
			stats.Kept++
			continue
		}
		next = append(next, r.Build(item))
		stats.Created++
	}
	if truncated && r.More != nil {
		var pager Node = r.More()
		if old, ok := byKey[pager.ID()]; ok {
			pager = old
			stats.Kept++
		} else {
			stats.Created++
		}
		next = append(next, pager)
	}

	kept := make(map[Node]struct{}, len(next))
	for _, n := range next {
		kept[n] = struct{}{}
	}
	for _, n := range prev {
		if n == nil {
			continue
		}
		if _, ok := kept[n]; ok {
			continue
		}
		n.Dispose()
		stats.Disposed++
	}
	return next, stats
}

// Reconcile is the refresh routine of composite nodes: it fetches items,
// applies r against the memoized children of cache and commits the result.
// Children that were never materialized are only invalidated, so the next
// query fetches them lazily.
func Reconcile[T any](ctx context.Context, cache *ChildCache, r Reconciler[T], fetch func(ctx context.Context) ([]T, error)) (ReconcileStats, error) {
	return ReconcilePage(ctx, cache, r, func(ctx context.Context) ([]T, bool, error) {
		items, err := fetch(ctx)
		return items, false, err
	})
}

// ReconcilePage is Reconcile for bounded queries reporting truncation.
func ReconcilePage[T any](ctx context.Context, cache *ChildCache, r Reconciler[T], fetch func(ctx context.Context) ([]T, bool, error)) (ReconcileStats, error) {
	cache.reconcile.Lock()
	defer cache.reconcile.Unlock()

	prev, gen, valid := cache.Snapshot()
	if !valid {
		DisposeAll(cache.Invalidate())
		return ReconcileStats{}, nil
	}
	items, truncated, err := fetch(ctx)
	if err != nil {
		return ReconcileStats{}, err
	}
	next, stats := r.ApplyPage(ctx, prev, items, truncated)
	if err := cache.Commit(gen, next); err != nil {
		DisposeAll(created(prev, next))
		return stats, err
	}
	return stats, nil
}

// created returns the nodes of next that are not in prev.
func created(prev, next []Node) []Node {
	old := make(map[Node]struct{}, len(prev))
	for _, n := range prev {
		old[n] = struct{}{}
	}
	var out []Node
	for _, n := range next {
		if _, ok := old[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}
