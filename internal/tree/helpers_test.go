package tree

import (
	"context"
	"sync"
	"sync/atomic"
)

// stubNode is a leaf recording refresh and dispose calls.
type stubNode struct {
	Base
	label     string
	refreshes atomic.Int32
	disposed  atomic.Int32
}

func newStub(id string) *stubNode {
	return &stubNode{Base: NewBase(id, Locator{RepoPath: "/repo", Path: id}), label: id}
}

func (s *stubNode) Children(context.Context) ([]Node, error) { return nil, nil }

func (s *stubNode) Describe(context.Context) (Item, error) {
	return Item{ID: s.ID(), Label: s.label}, nil
}

func (s *stubNode) Refresh(context.Context) error {
	s.refreshes.Add(1)
	return nil
}

func (s *stubNode) Dispose() { s.disposed.Add(1) }

// fakeHost is a Host whose liveness is toggled by the test.
type fakeHost struct {
	mu        sync.Mutex
	live      bool
	listeners map[int]func(bool)
	seq       int
	refreshed []string
	onRefresh func(Node)
}

func newFakeHost(live bool) *fakeHost {
	return &fakeHost{live: live, listeners: make(map[int]func(bool))}
}

func (h *fakeHost) Live() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live
}

func (h *fakeHost) RefreshNode(_ context.Context, node Node, _ *PagingArgs) error {
	h.mu.Lock()
	h.refreshed = append(h.refreshed, node.ID())
	fn := h.onRefresh
	h.mu.Unlock()
	if fn != nil {
		fn(node)
	}
	return nil
}

func (h *fakeHost) OnDidChangeLiveness(fn func(bool)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	id := h.seq
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
	}
}

func (h *fakeHost) Metrics() *Metrics { return nil }

func (h *fakeHost) setLive(live bool) {
	h.mu.Lock()
	h.live = live
	fns := make([]func(bool), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(live)
	}
}

func (h *fakeHost) refreshedIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.refreshed...)
}

func (h *fakeHost) listenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// countingSub counts Close calls.
type countingSub struct {
	closed atomic.Int32
}

func (c *countingSub) Close() error {
	c.closed.Add(1)
	return nil
}
