package explorer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiagokokada/gitk-explorer/internal/git"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

func newActiveDriver(t *testing.T, reg Registry) (*tree.Driver, *ActiveRepositoryNode) {
	t.Helper()
	var node *ActiveRepositoryNode
	d := newDriver(t, func(host tree.Host) tree.Node {
		node = NewActiveRepositoryNode(host, testSettings(), reg)
		node.delay = 0
		return node
	})
	d.Root()
	require.NotNil(t, node)
	return d, node
}

func TestActiveRepositoryFollowsPath(t *testing.T) {
	ctx := context.Background()
	a, b := newFakeRepo("/src/a"), newFakeRepo("/src/b")
	a.status = git.Status{Branch: "main"}
	d, node := newActiveDriver(t, newFakeRegistry(a, b))

	assert.Equal(t, []string{"No active repository"}, labels(ctx, d, d.Children(ctx, nil)))

	var notified int
	cancel := d.OnDidChangeTreeData(func(tree.Node) { notified++ })
	defer cancel()

	node.SetActivePath("/src/a/main.go")
	assert.Equal(t, 1, notified)
	item := d.Describe(ctx, node)
	assert.Equal(t, activeRepositoryID, item.ID)
	assert.Equal(t, "a", item.Label)
	assert.Equal(t, KindActiveRepository, item.Kind)
	assert.Equal(t, tree.Expanded, item.Collapse)
	assert.Equal(t, []string{"Branches", "Tags"}, labels(ctx, d, d.Children(ctx, nil)))
	assert.Equal(t, 1, a.listenerCount())

	node.SetActivePath("/src/a/docs/README.md")
	assert.Equal(t, 1, notified, "same repository does not swap")

	node.SetActivePath("/src/b/go.mod")
	assert.Equal(t, 2, notified)
	assert.Equal(t, 0, a.listenerCount(), "previous repository node is disposed")
	assert.Equal(t, "b", d.Describe(ctx, node).Label)

	node.SetActivePath("/elsewhere")
	assert.Equal(t, 3, notified)
	assert.Nil(t, node.Repository())
	assert.Equal(t, []string{"No active repository"}, labels(ctx, d, d.Children(ctx, nil)))
}

func TestActiveRepositoryChangeRefreshesView(t *testing.T) {
	ctx := context.Background()
	a := newFakeRepo("/src/a")
	d, node := newActiveDriver(t, newFakeRegistry(a))
	node.SetActivePath("/src/a")
	d.Describe(ctx, node)
	require.Len(t, d.Children(ctx, nil), 2)

	var scoped []tree.Node
	cancel := d.OnDidChangeTreeData(func(n tree.Node) { scoped = append(scoped, n) })
	defer cancel()

	a.update(func(r *fakeRepo) { r.remotes = []git.Remote{{Name: "origin"}} })
	a.emit(git.ChangeEvent{Changes: []git.Change{git.ChangeRepository, git.ChangeConfig}})
	require.Len(t, scoped, 1)
	assert.Nil(t, scoped[0], "the active node is the root")
	assert.Equal(t, []string{"Branches", "Remotes", "Tags"}, labels(ctx, d, d.Children(ctx, nil)))
}

func TestActiveRepositoryAppearsWhenOpened(t *testing.T) {
	ctx := context.Background()
	reg := newFakeRegistry()
	d, node := newActiveDriver(t, reg)
	node.SetActivePath("/src/a/main.go")
	assert.Equal(t, []string{"No active repository"}, labels(ctx, d, d.Children(ctx, nil)))

	reg.add(newFakeRepo("/src/a"))
	require.NotNil(t, node.Repository())
	assert.Equal(t, "a", d.Describe(ctx, node).Label)
}
