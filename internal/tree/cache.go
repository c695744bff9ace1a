package tree

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// LoadFunc computes a fresh child list.
type LoadFunc func(ctx context.Context) ([]Node, error)

// ChildCache memoizes the children of a lazy node. Every invalidation bumps
// a generation counter; a load that started under an older generation is
// discarded instead of being stored.
type ChildCache struct {
	mu       sync.Mutex
	gen      uint64
	valid    bool
	children []Node

	flight singleflight.Group
	// serializes reconciliations against the memoized children
	reconcile sync.Mutex
}

// Load returns the memoized children, computing them with load when needed.
// Concurrent callers of the same generation share one load.
func (c *ChildCache) Load(ctx context.Context, load LoadFunc) ([]Node, error) {
	for {
		c.mu.Lock()
		if c.valid {
			children := c.children
			c.mu.Unlock()
			return children, nil
		}
		gen := c.gen
		c.mu.Unlock()

		v, err, shared := c.flight.Do(strconv.FormatUint(gen, 10), func() (any, error) {
			if c.Generation() != gen {
				return nil, ErrStaleGeneration
			}
			nodes, err := load(ctx)
			if err != nil {
				return nil, err
			}
			if err := c.Commit(gen, nodes); err != nil {
				return nil, err
			}
			return nodes, nil
		})
		if errors.Is(err, ErrStaleGeneration) {
			slog.Debug("discarding stale children", slog.Uint64("generation", gen), slog.Bool("shared", shared))
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return v.([]Node), nil
	}
}

// Snapshot returns the memoized children, the current generation and
// whether the children were ever materialized since the last invalidation.
func (c *ChildCache) Snapshot() ([]Node, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.children, c.gen, c.valid
}

// Commit stores children computed under generation gen. It fails with
// ErrStaleGeneration when the cache moved on in the meantime.
func (c *ChildCache) Commit(gen uint64, children []Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return ErrStaleGeneration
	}
	c.gen++
	c.children = children
	c.valid = true
	return nil
}

// Invalidate drops the memoized children and returns them so the owner can
// dispose the ones it no longer needs.
func (c *ChildCache) Invalidate() []Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	old := c.children
	c.children = nil
	c.valid = false
	return old
}

func (c *ChildCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}
