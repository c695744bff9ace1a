package explorer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiagokokada/gitk-explorer/internal/git"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

func TestRepositoriesFollowRegistry(t *testing.T) {
	ctx := context.Background()
	a, b := newFakeRepo("/src/a"), newFakeRepo("/src/b")
	reg := newFakeRegistry(a)
	d := newDriver(t, RepositoriesView(testSettings(), reg))

	first := d.Children(ctx, nil)
	require.Len(t, first, 1)
	assert.Equal(t, "a", d.Describe(ctx, first[0]).Label)
	assert.Equal(t, 1, a.listenerCount(), "described repository subscribes")

	reg.add(b)
	second := d.Children(ctx, nil)
	require.Len(t, second, 2)
	assert.Same(t, first[0], second[0], "kept repository node is reused")
	assert.Equal(t, []string{"a", "b"}, labels(ctx, d, second))

	reg.remove("/src/a")
	third := d.Children(ctx, nil)
	require.Len(t, third, 1)
	assert.Same(t, second[1], third[0])
	assert.Equal(t, 0, a.listenerCount(), "removed repository node is disposed")
}

func TestRepositoriesEmpty(t *testing.T) {
	ctx := context.Background()
	d := newDriver(t, RepositoriesView(testSettings(), newFakeRegistry()))

	children := d.Children(ctx, nil)
	require.Len(t, children, 1)
	assert.IsType(t, &tree.MessageNode{}, children[0])
	assert.Equal(t, "No repositories found", d.Describe(ctx, children[0]).Label)

	item := d.Describe(ctx, d.Root())
	assert.Equal(t, KindRepositories, item.Kind)
	assert.Equal(t, tree.Expanded, item.Collapse)
}

func TestRepositorySections(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo("/src/a")
	repo.status = git.Status{
		Branch:   "main",
		Upstream: "origin/main",
		Ahead:    1,
		Behind:   2,
		Files:    []git.StatusFile{{Path: "a.txt", Staging: git.Unmodified, Worktree: git.Modified}},
	}
	repo.remotes = []git.Remote{{Name: "origin", URLs: []string{"https://example.com/a.git"}}}
	unpushed := makeCommits("u", 1)
	repo.logs["HEAD^origin/main"] = unpushed
	repo.files[unpushed[0].Hash] = []git.CommitFile{{Path: "c.txt", Status: git.Added}}

	d := newDriver(t, RepositoriesView(testSettings(), newFakeRegistry(repo)))
	node := d.Children(ctx, nil)[0]

	item := d.Describe(ctx, node)
	assert.Equal(t, "a", item.Label)
	assert.Equal(t, "main • ↑1 ↓2 • +0 ~1 -0", item.Description)
	assert.Contains(t, item.Tooltip, "tracking origin/main")

	sections := d.Children(ctx, node)
	assert.Equal(t, []string{
		"2 commits behind",
		"1 commit ahead",
		"2 files changed",
		"Branches",
		"Remotes",
		"Tags",
	}, labels(ctx, d, sections))
	branches := sections[3]

	repo.update(func(r *fakeRepo) {
		r.status = git.Status{Branch: "main"}
		r.remotes = nil
	})
	repo.emit(git.ChangeEvent{Changes: []git.Change{git.ChangeRepository, git.ChangeHeads}})

	sections = d.Children(ctx, node)
	assert.Equal(t, []string{"Branches", "Tags"}, labels(ctx, d, sections))
	assert.Same(t, branches, sections[0])
	assert.Equal(t, "main", d.Describe(ctx, node).Description)
}

func TestRepositorySubscriptionFollowsVisibility(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo("/src/a")
	reg := newFakeRegistry(repo)
	d := newDriver(t, RepositoriesView(testSettings(), reg))

	node := d.Children(ctx, nil)[0]
	d.Describe(ctx, node)
	require.Equal(t, 1, repo.listenerCount())
	sub := node.(tree.Subscribable).Subscription()
	assert.Equal(t, tree.Subscribed, sub.State())

	d.SetVisible(ctx, false)
	assert.Equal(t, 0, repo.listenerCount())
	assert.Equal(t, tree.Unsubscribed, sub.State())

	d.SetVisible(ctx, true)
	assert.Equal(t, 1, repo.listenerCount())

	d.SetAutoRefresh(ctx, false)
	assert.Equal(t, 0, repo.listenerCount())
}

func TestRepositoryChangeNotifiesScopedNode(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo("/src/a")
	d := newDriver(t, RepositoriesView(testSettings(), newFakeRegistry(repo)))

	node := d.Children(ctx, nil)[0]
	d.Describe(ctx, node)

	var notified []string
	cancel := d.OnDidChangeTreeData(func(n tree.Node) {
		if n == nil {
			notified = append(notified, "<root>")
			return
		}
		notified = append(notified, n.ID())
	})
	defer cancel()

	repo.emit(git.ChangeEvent{Changes: []git.Change{git.ChangeRepository, git.ChangeIndex}})
	assert.Equal(t, []string{node.ID()}, notified)
}

func TestRepositoryStatusFailureDegrades(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo("/src/a")
	repo.setFail("Status", assert.AnError)
	d := newDriver(t, RepositoriesView(testSettings(), newFakeRegistry(repo)))

	node := d.Children(ctx, nil)[0]
	item := d.Describe(ctx, node)
	assert.Equal(t, "a", item.Label)
	assert.Equal(t, "unavailable", item.Description)

	children := d.Children(ctx, node)
	require.Len(t, children, 1)
	assert.Equal(t, "Unable to load items", d.Describe(ctx, children[0]).Label)

	repo.setFail("Status", nil)
	assert.Equal(t, []string{"Branches", "Tags"}, labels(ctx, d, d.Children(ctx, node)))
}
