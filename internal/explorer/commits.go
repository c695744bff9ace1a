package explorer

import (
	"context"
	"sync"

	"github.com/thiagokokada/gitk-explorer/internal/git"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

// commitList is the pageable commit log behind branch, tag, upstream and
// search result nodes.
type commitList struct {
	env     env
	repo    Repository
	owner   tree.Node
	noun    string
	empty   string
	showAll bool
	query   func(ctx context.Context, maxCount int) (git.Log, error)

	paging tree.Paging
	kids   keyed[*git.Commit]
}

func (l *commitList) pageSize() int {
	return l.env.config(l.repo).DefaultItemLimit
}

func (l *commitList) fetch(ctx context.Context) ([]*git.Commit, bool, error) {
	log, err := l.query(ctx, l.paging.MaxCount(l.pageSize()))
	if err != nil {
		return nil, false, err
	}
	return log.Commits, log.Truncated, nil
}

func (l *commitList) reconciler() tree.Reconciler[*git.Commit] {
	increment := l.env.config(l.repo).PageIncrement
	r := tree.Reconciler[*git.Commit]{
		Key: func(c *git.Commit) string { return commitID(l.owner.ID(), c.Hash) },
		Build: func(c *git.Commit) tree.Node {
			return newCommitNode(l.env, l.repo, l.owner.ID(), c)
		},
		// commits are immutable; kept nodes keep their expanded files
		Update: func(context.Context, tree.Node, *git.Commit) {},
		More: func() *tree.PagerNode {
			if l.showAll {
				return tree.NewShowAll(l.owner, l.noun)
			}
			return tree.NewShowMore(l.owner, l.noun, increment)
		},
	}
	if l.empty != "" {
		r.Empty = func() tree.Node { return tree.NewMessage(l.owner.ID(), l.empty) }
	}
	return r
}

func (l *commitList) children(ctx context.Context) ([]tree.Node, error) {
	return l.kids.load(ctx, l.env, l.reconciler(), l.fetch)
}

func (l *commitList) refresh(ctx context.Context) error {
	return l.kids.refresh(ctx, l.env, l.reconciler(), l.fetch)
}

func (l *commitList) dispose() {
	l.kids.dispose()
}

// CommitNode is a commit whose children are the files it changed.
type CommitNode struct {
	tree.Base
	env    env
	repo   Repository
	commit *git.Commit
	kids   keyed[entry]
}

func newCommitNode(e env, repo Repository, ownerID string, c *git.Commit) *CommitNode {
	return &CommitNode{
		Base:   tree.NewBase(commitID(ownerID, c.Hash), tree.Locator{RepoPath: repo.Path(), Ref: c.Hash}),
		env:    e,
		repo:   repo,
		commit: c,
	}
}

func (n *CommitNode) Commit() *git.Commit { return n.commit }

func (n *CommitNode) Ref() string { return n.commit.Hash }

func (n *CommitNode) fetch(ctx context.Context) ([]entry, bool, error) {
	files, err := n.repo.CommitFiles(ctx, n.commit.Hash)
	if err != nil {
		return nil, false, err
	}
	leaves := make([]leaf, 0, len(files))
	for _, f := range files {
		leaves = append(leaves, n.fileLeaf(f))
	}
	return layoutFiles(n.env.config(n.repo), leaves), false, nil
}

func (n *CommitNode) fileLeaf(f git.CommitFile) leaf {
	return leaf{
		key:  fileID(n.ID(), f.Path),
		path: f.Path,
		build: func(nested bool) tree.Node {
			return newCommitFileNode(n.ID(), n.repo.Path(), n.commit, f, nested, false)
		},
		update: func(_ context.Context, node tree.Node, nested bool) {
			if fn, ok := node.(*CommitFileNode); ok {
				fn.setNested(nested)
			}
		},
	}
}

func (n *CommitNode) reconciler() tree.Reconciler[entry] {
	return entryReconciler(n.env, n.ID(), folderStyle{repoPath: n.repo.Path(), expanded: true}, func() tree.Node {
		return tree.NewMessage(n.ID(), "No file level changes")
	})
}

func (n *CommitNode) Children(ctx context.Context) ([]tree.Node, error) {
	return n.kids.load(ctx, n.env, n.reconciler(), n.fetch)
}

func (n *CommitNode) Describe(context.Context) (tree.Item, error) {
	return tree.Item{
		ID:          n.ID(),
		Label:       n.commit.Summary(),
		Description: commitDescription(n.commit),
		Tooltip:     git.FormatCommitHeader(n.commit),
		Icon:        "git-commit",
		Kind:        KindCommit,
		Collapse:    tree.Collapsed,
		Command:     showCommitCommand(n.repo.Path(), n.commit.Hash),
	}, nil
}

func (n *CommitNode) Refresh(ctx context.Context) error {
	return n.kids.refresh(ctx, n.env, n.reconciler(), n.fetch)
}

func (n *CommitNode) Dispose() {
	n.kids.dispose()
}

// CommitFileNode is a file as changed by one commit. In a file history it
// is labelled by the commit instead of the file.
type CommitFileNode struct {
	tree.Base
	repoPath string
	commit   *git.Commit
	file     git.CommitFile
	history  bool

	mu     sync.Mutex
	nested bool
}

func newCommitFileNode(id, repoPath string, c *git.Commit, f git.CommitFile, nested, history bool) *CommitFileNode {
	if !history {
		id = fileID(id, f.Path)
	}
	return &CommitFileNode{
		Base:     tree.NewBase(id, tree.Locator{RepoPath: repoPath, Path: f.Path, Ref: c.Hash}),
		repoPath: repoPath,
		commit:   c,
		file:     f,
		history:  history,
		nested:   nested,
	}
}

func (n *CommitFileNode) setNested(nested bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nested = nested
}

func (n *CommitFileNode) Ref() string { return n.commit.Hash }

func (n *CommitFileNode) Children(context.Context) ([]tree.Node, error) {
	return nil, nil
}

func (n *CommitFileNode) Describe(context.Context) (tree.Item, error) {
	n.mu.Lock()
	nested := n.nested
	n.mu.Unlock()

	item := tree.Item{
		ID:       n.ID(),
		Icon:     statusIcon(n.file.Status),
		Kind:     KindCommitFile,
		Collapse: tree.CollapseNone,
		Command: diffCommand("Compare with Previous", DiffArgs{
			RepoPath: n.repoPath,
			Path:     n.file.Path,
			Commit:   n.commit.Hash,
		}),
	}
	switch {
	case n.history:
		item.Label = n.commit.Summary()
		item.Description = commitDescription(n.commit)
		item.Tooltip = git.FormatCommitHeader(n.commit)
	case nested:
		item.Label = baseName(n.file.Path)
		item.Description = n.file.Status.String()
		item.Tooltip = n.file.Path
	default:
		item.Label = baseName(n.file.Path)
		item.Description = dirName(n.file.Path)
		item.Tooltip = n.file.Path + "\n" + n.file.Status.String()
	}
	if n.file.OldPath != "" && !n.history {
		item.Tooltip += "\nrenamed from " + n.file.OldPath
	}
	return item, nil
}
