package explorer

import (
	"context"

	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

const repositoriesID = "gitk:repositories"

// RepositoriesNode is the root listing every open repository. It follows
// the registry while displayed, so opened and closed repositories show up.
type RepositoriesNode struct {
	tree.Base
	env  env
	reg  Registry
	sub  *tree.Subscriber
	kids keyed[Repository]
}

// NewRepositoriesNode returns the root of the repositories view.
func NewRepositoriesNode(host tree.Host, settings *Settings, reg Registry) *RepositoriesNode {
	e := env{host: host, settings: settings}
	n := &RepositoriesNode{
		Base: tree.NewBase(repositoriesID, tree.Locator{}),
		env:  e,
		reg:  reg,
	}
	n.sub = e.subscriber(n, nil, func(context.Context) (tree.Subscription, error) {
		return reg.OnDidChangeRepositories(func() {
			n.sub.RequestRefresh("repositories changed")
		}), nil
	})
	return n
}

func (n *RepositoriesNode) Subscription() *tree.Subscriber { return n.sub }

func (n *RepositoriesNode) reconciler() tree.Reconciler[Repository] {
	return tree.Reconciler[Repository]{
		Key: func(r Repository) string { return repositoryID(r.Path(), false) },
		Build: func(r Repository) tree.Node {
			return newRepositoryNode(n.env, r, nil)
		},
		Empty: func() tree.Node { return tree.NewMessage(n.ID(), "No repositories found") },
	}
}

func (n *RepositoriesNode) fetch(context.Context) ([]Repository, bool, error) {
	return n.reg.Repositories(), false, nil
}

func (n *RepositoriesNode) Children(ctx context.Context) ([]tree.Node, error) {
	n.sub.Ensure(ctx)
	return n.kids.load(ctx, n.env, n.reconciler(), n.fetch)
}

func (n *RepositoriesNode) Describe(ctx context.Context) (tree.Item, error) {
	n.sub.Ensure(ctx)
	return tree.Item{
		ID:       n.ID(),
		Label:    "Repositories",
		Icon:     "repo",
		Kind:     KindRepositories,
		Collapse: tree.Expanded,
	}, nil
}

func (n *RepositoriesNode) Refresh(ctx context.Context) error {
	err := n.kids.refresh(ctx, n.env, n.reconciler(), n.fetch)
	n.sub.Settle(ctx)
	return err
}

func (n *RepositoriesNode) Dispose() {
	n.sub.Dispose()
	n.kids.dispose()
}
