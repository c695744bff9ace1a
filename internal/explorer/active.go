package explorer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/thiagokokada/gitk-explorer/internal/debounce"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

const (
	activeRepositoryID = "gitk:repository:active"
	// ActivePathDelay collapses bursts of focus changes.
	ActivePathDelay = 500 * time.Millisecond
)

// ActiveRepositoryNode shows the repository of the path the host reports as
// active, swapping its content when that path moves to another repository.
type ActiveRepositoryNode struct {
	tree.Base
	env   env
	reg   Registry
	sub   *tree.Subscriber
	delay time.Duration

	mu       sync.Mutex
	path     string
	inner    *RepositoryNode
	pending  *debounce.Debouncer
	disposed bool
}

// NewActiveRepositoryNode returns the root of the active repository view.
func NewActiveRepositoryNode(host tree.Host, settings *Settings, reg Registry) *ActiveRepositoryNode {
	e := env{host: host, settings: settings}
	n := &ActiveRepositoryNode{
		Base:  tree.NewBase(activeRepositoryID, tree.Locator{}),
		env:   e,
		reg:   reg,
		delay: ActivePathDelay,
	}
	n.sub = e.subscriber(n, nil, func(context.Context) (tree.Subscription, error) {
		return reg.OnDidChangeRepositories(func() {
			n.sub.RequestRefresh("repositories changed")
		}), nil
	})
	return n
}

func (n *ActiveRepositoryNode) Subscription() *tree.Subscriber { return n.sub }

// SetActivePath records the path the user is working on. The view follows
// it once the path stopped changing for ActivePathDelay.
func (n *ActiveRepositoryNode) SetActivePath(p string) {
	n.mu.Lock()
	if n.disposed {
		n.mu.Unlock()
		return
	}
	n.path = p
	deb := debounce.Ensure(&n.pending, n.delay, n.activePathChanged)
	n.mu.Unlock()
	deb.Trigger()
}

// setActivePathNow sets the initial path without waiting or notifying.
func (n *ActiveRepositoryNode) setActivePathNow(p string) {
	n.mu.Lock()
	n.path = p
	n.mu.Unlock()
	n.swap()
}

func (n *ActiveRepositoryNode) activePathChanged() {
	if !n.swap() {
		return
	}
	if n.env.host == nil {
		return
	}
	if err := n.env.host.RefreshNode(context.Background(), n, nil); err != nil {
		slog.Error("refresh active repository", slog.Any("error", err))
	}
}

// swap resolves the active path and replaces the inner repository node
// when the repository changed. It reports whether it did.
func (n *ActiveRepositoryNode) swap() bool {
	n.mu.Lock()
	if n.disposed {
		n.mu.Unlock()
		return false
	}
	p := n.path
	n.mu.Unlock()

	var repo Repository
	if p != "" {
		repo, _ = n.reg.Resolve(p)
	}

	n.mu.Lock()
	old := n.inner
	if old == nil && repo == nil {
		n.mu.Unlock()
		return false
	}
	if old != nil && repo != nil && old.repo.Path() == repo.Path() {
		n.mu.Unlock()
		return false
	}
	if repo != nil {
		n.inner = newRepositoryNode(n.env, repo, n)
	} else {
		n.inner = nil
	}
	n.mu.Unlock()

	if old != nil {
		old.Dispose()
	}
	slog.Debug("active repository changed", slog.String("path", p))
	return true
}

func (n *ActiveRepositoryNode) current() *RepositoryNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.inner
}

// Repository returns the node of the active repository, if any.
func (n *ActiveRepositoryNode) Repository() *RepositoryNode {
	return n.current()
}

func (n *ActiveRepositoryNode) Children(ctx context.Context) ([]tree.Node, error) {
	n.sub.Ensure(ctx)
	inner := n.current()
	if inner == nil {
		return []tree.Node{tree.NewMessage(n.ID(), "No active repository")}, nil
	}
	return inner.Children(ctx)
}

func (n *ActiveRepositoryNode) Describe(ctx context.Context) (tree.Item, error) {
	n.sub.Ensure(ctx)
	inner := n.current()
	if inner == nil {
		return tree.Item{
			ID:       n.ID(),
			Label:    "No active repository",
			Kind:     KindActiveRepository,
			Collapse: tree.Expanded,
		}, nil
	}
	item, err := inner.Describe(ctx)
	if err != nil {
		return item, err
	}
	item.ID = n.ID()
	item.Kind = KindActiveRepository
	item.Collapse = tree.Expanded
	return item, nil
}

func (n *ActiveRepositoryNode) Refresh(ctx context.Context) error {
	n.swap()
	var err error
	if inner := n.current(); inner != nil {
		err = inner.Refresh(ctx)
	}
	n.sub.Settle(ctx)
	return err
}

func (n *ActiveRepositoryNode) Dispose() {
	n.mu.Lock()
	n.disposed = true
	inner := n.inner
	n.inner = nil
	pending := n.pending
	n.pending = nil
	n.mu.Unlock()
	if pending != nil {
		pending.Stop()
	}
	n.sub.Dispose()
	if inner != nil {
		inner.Dispose()
	}
}
