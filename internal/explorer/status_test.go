package explorer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiagokokada/gitk-explorer/internal/config"
	"github.com/thiagokokada/gitk-explorer/internal/git"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

func statusFixture() (*fakeRepo, *git.Commit) {
	repo := newFakeRepo("/src/a")
	repo.status = git.Status{
		Branch:   "main",
		Upstream: "origin/main",
		Ahead:    1,
		Files: []git.StatusFile{
			{Path: "a.txt", Staging: git.Unmodified, Worktree: git.Modified},
			{Path: "dir/b.txt", Staging: git.Added, Worktree: git.Unmodified},
		},
	}
	unpushed := makeCommits("u", 1)
	repo.logs["HEAD^origin/main"] = unpushed
	repo.files[unpushed[0].Hash] = []git.CommitFile{
		{Path: "a.txt", Status: git.Modified},
		{Path: "c.txt", Status: git.Added},
	}
	return repo, unpushed[0]
}

func statusFilesNode(t *testing.T, ctx context.Context, d *tree.Driver) tree.Node {
	t.Helper()
	return childOfKind(t, ctx, d, d.Children(ctx, nil)[0], KindStatusFiles)
}

func TestStatusFiles(t *testing.T) {
	ctx := context.Background()
	repo, unpushed := statusFixture()
	d := newDriver(t, RepositoriesView(testSettings(), newFakeRegistry(repo)))

	files := statusFilesNode(t, ctx, d)
	assert.Equal(t, "3 files changed", d.Describe(ctx, files).Label)

	children := d.Children(ctx, files)
	require.Len(t, children, 3)
	assert.Equal(t, []string{"a.txt", "c.txt", "b.txt"}, labels(ctx, d, children))

	a := d.Describe(ctx, children[0])
	assert.Equal(t, tree.Collapsed, a.Collapse)
	assert.Equal(t, "2 changes", a.Description)
	args, ok := DiffArgsOf(a.Command)
	require.True(t, ok)
	assert.Equal(t, DiffArgs{RepoPath: "/src/a", Path: "a.txt"}, args)

	changes := d.Children(ctx, children[0])
	assert.Equal(t, []string{"Uncommitted changes", unpushed.Summary()}, labels(ctx, d, changes))

	c := d.Describe(ctx, children[1])
	assert.Equal(t, tree.CollapseNone, c.Collapse)
	assert.Equal(t, "diff-added", c.Icon)
	args, _ = DiffArgsOf(c.Command)
	assert.Equal(t, unpushed.Hash, args.Commit)

	b := d.Describe(ctx, children[2])
	assert.Equal(t, "dir", b.Description)
	args, _ = DiffArgsOf(b.Command)
	assert.True(t, args.Staged)
}

func TestStatusFilesDescribeReusesCount(t *testing.T) {
	ctx := context.Background()
	repo, _ := statusFixture()
	d := newDriver(t, RepositoriesView(testSettings(), newFakeRegistry(repo)))

	files := statusFilesNode(t, ctx, d)
	before := repo.logCalls.Load()
	for range 3 {
		assert.Equal(t, "3 files changed", d.Describe(ctx, files).Label)
	}
	assert.Equal(t, before, repo.logCalls.Load(), "describe must not query the unpushed log again")

	more := makeCommits("v", 1)
	repo.update(func(r *fakeRepo) {
		r.logs["HEAD^origin/main"] = append(r.logs["HEAD^origin/main"], more...)
		r.files[more[0].Hash] = []git.CommitFile{{Path: "d.txt", Status: git.Added}}
	})
	require.NoError(t, d.RefreshNode(ctx, files, nil))
	assert.Equal(t, "4 files changed", d.Describe(ctx, files).Label)
}

func TestStatusFilesTreeLayout(t *testing.T) {
	ctx := context.Background()
	repo, _ := statusFixture()
	settings := testSettings(func(c *config.Config) { c.FilesLayout = config.FilesTree })
	d := newDriver(t, RepositoriesView(settings, newFakeRegistry(repo)))

	children := d.Children(ctx, statusFilesNode(t, ctx, d))
	assert.Equal(t, []string{"a.txt", "c.txt", "dir"}, labels(ctx, d, children))
	dir := d.Describe(ctx, children[2])
	assert.Equal(t, tree.KindFolder, dir.Kind)
	assert.Equal(t, tree.Expanded, dir.Collapse)

	nested := d.Children(ctx, children[2])
	require.Len(t, nested, 1)
	item := d.Describe(ctx, nested[0])
	assert.Equal(t, "b.txt", item.Label)
	assert.Empty(t, item.Description)
}

func TestStatusFilesWithoutWorkingTree(t *testing.T) {
	ctx := context.Background()
	repo, _ := statusFixture()
	settings := testSettings(func(c *config.Config) { c.IncludeWorkingTree = false })
	d := newDriver(t, RepositoriesView(settings, newFakeRegistry(repo)))

	files := statusFilesNode(t, ctx, d)
	assert.Equal(t, "2 files changed", d.Describe(ctx, files).Label)
	children := d.Children(ctx, files)
	assert.Equal(t, []string{"a.txt", "c.txt"}, labels(ctx, d, children))
	assert.Equal(t, tree.CollapseNone, d.Describe(ctx, children[0]).Collapse)
}

func TestStatusUpstream(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo("/src/a")
	repo.status = git.Status{Branch: "main", Upstream: "origin/main", Behind: 3}
	repo.logs["origin/main^HEAD"] = makeCommits("b", 3)
	d := newDriver(t, RepositoriesView(testSettings(), newFakeRegistry(repo)))

	repoNode := d.Children(ctx, nil)[0]
	d.Describe(ctx, repoNode)
	behind := childOfKind(t, ctx, d, repoNode, KindStatusUpstream)
	item := d.Describe(ctx, behind)
	assert.Equal(t, "3 commits behind", item.Label)
	assert.Equal(t, "3 commits behind origin/main", item.Tooltip)
	assert.Equal(t, "arrow-down", item.Icon)
	assert.Len(t, d.Children(ctx, behind), 3)

	repo.update(func(r *fakeRepo) {
		r.status.Behind = 4
		r.logs["origin/main^HEAD"] = makeCommits("b", 4)
	})
	repo.emit(git.ChangeEvent{Changes: []git.Change{git.ChangeRepository, git.ChangeRemotes}})
	assert.Equal(t, "4 commits behind", d.Describe(ctx, behind).Label)
	assert.Len(t, d.Children(ctx, behind), 4)
}
