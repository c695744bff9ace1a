package explorer

import (
	"context"
	"strings"
	"sync"

	"github.com/thiagokokada/gitk-explorer/internal/git"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

// BranchesNode lists the local branches, as a list or grouped into folders
// by their slash separated names.
type BranchesNode struct {
	tree.Base
	env    env
	repo   Repository
	repoID string
	kids   keyed[entry]
}

func newBranchesNode(e env, repo Repository, repoID string) *BranchesNode {
	return &BranchesNode{
		Base:   tree.NewBase(repoID+":branches", tree.Locator{RepoPath: repo.Path()}),
		env:    e,
		repo:   repo,
		repoID: repoID,
	}
}

func (n *BranchesNode) fetch(ctx context.Context) ([]entry, bool, error) {
	branches, err := n.repo.Branches(ctx)
	if err != nil {
		return nil, false, err
	}
	leaves := make([]leaf, 0, len(branches))
	for _, b := range branches {
		leaves = append(leaves, branchLeaf(n.env, n.repo, n.repoID, b))
	}
	return layoutRefs(n.env.config(n.repo), leaves), false, nil
}

func branchLeaf(e env, repo Repository, repoID string, b git.Branch) leaf {
	name := b.Name
	if b.Remote {
		_, name, _ = strings.Cut(b.Name, "/")
	}
	return leaf{
		key:    branchID(repoID, b.Name),
		path:   name,
		marked: b.Current,
		build: func(nested bool) tree.Node {
			return newBranchNode(e, repo, repoID, b, nested)
		},
		update: func(ctx context.Context, n tree.Node, nested bool) {
			if bn, ok := n.(*BranchNode); ok {
				bn.update(b, nested)
			}
			refreshKept(ctx, n)
		},
	}
}

func (n *BranchesNode) reconciler() tree.Reconciler[entry] {
	return entryReconciler(n.env, n.ID(), folderStyle{repoPath: n.repo.Path()}, func() tree.Node {
		return tree.NewMessage(n.ID(), "No branches")
	})
}

func (n *BranchesNode) Children(ctx context.Context) ([]tree.Node, error) {
	return n.kids.load(ctx, n.env, n.reconciler(), n.fetch)
}

func (n *BranchesNode) Describe(context.Context) (tree.Item, error) {
	return tree.Item{
		ID:       n.ID(),
		Label:    "Branches",
		Icon:     "git-branch",
		Kind:     KindBranches,
		Collapse: tree.Collapsed,
	}, nil
}

func (n *BranchesNode) Refresh(ctx context.Context) error {
	return n.kids.refresh(ctx, n.env, n.reconciler(), n.fetch)
}

func (n *BranchesNode) Dispose() {
	n.kids.dispose()
}

// BranchNode is a local or remote branch whose children are its commits.
type BranchNode struct {
	tree.Base
	log *commitList

	mu     sync.Mutex
	branch git.Branch
	nested bool
}

func newBranchNode(e env, repo Repository, repoID string, b git.Branch, nested bool) *BranchNode {
	n := &BranchNode{
		Base:   tree.NewBase(branchID(repoID, b.Name), tree.Locator{RepoPath: repo.Path(), Ref: b.Name}),
		branch: b,
		nested: nested,
	}
	n.log = &commitList{
		env:   e,
		repo:  repo,
		owner: n,
		noun:  "Commits",
		empty: "No commits",
		query: func(ctx context.Context, maxCount int) (git.Log, error) {
			return repo.Log(ctx, git.LogOptions{Ref: b.Name, MaxCount: maxCount})
		},
	}
	return n
}

func (n *BranchNode) update(b git.Branch, nested bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.branch = b
	n.nested = nested
}

func (n *BranchNode) Branch() git.Branch {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.branch
}

func (n *BranchNode) Ref() string { return n.Branch().Name }

func (n *BranchNode) Paging() *tree.Paging { return &n.log.paging }

func (n *BranchNode) PageSize() int { return n.log.pageSize() }

func (n *BranchNode) Children(ctx context.Context) ([]tree.Node, error) {
	return n.log.children(ctx)
}

func (n *BranchNode) Describe(context.Context) (tree.Item, error) {
	n.mu.Lock()
	b, nested := n.branch, n.nested
	n.mu.Unlock()

	label := b.Name
	if nested {
		label = refName(b.Name)
	} else if b.Remote {
		_, label, _ = strings.Cut(b.Name, "/")
	}
	icon := "git-branch"
	if b.Current {
		icon = "check"
	}
	tooltip := b.Name
	switch {
	case b.UpstreamMissing:
		tooltip += "\n" + b.Upstream + " (missing)"
	case b.Upstream != "":
		tooltip += "\ntracking " + b.Upstream
	}
	return tree.Item{
		ID:          n.ID(),
		Label:       label,
		Description: upstreamStatus(b.Upstream, b.Ahead, b.Behind),
		Tooltip:     tooltip,
		Icon:        icon,
		Kind:        KindBranch,
		Collapse:    tree.Collapsed,
	}, nil
}

func (n *BranchNode) Refresh(ctx context.Context) error {
	return n.log.refresh(ctx)
}

func (n *BranchNode) Dispose() {
	n.log.dispose()
}

// RemotesNode lists the configured remotes.
type RemotesNode struct {
	tree.Base
	env    env
	repo   Repository
	repoID string
	kids   keyed[git.Remote]
}

func newRemotesNode(e env, repo Repository, repoID string) *RemotesNode {
	return &RemotesNode{
		Base:   tree.NewBase(repoID+":remotes", tree.Locator{RepoPath: repo.Path()}),
		env:    e,
		repo:   repo,
		repoID: repoID,
	}
}

func (n *RemotesNode) reconciler() tree.Reconciler[git.Remote] {
	return tree.Reconciler[git.Remote]{
		Key: func(r git.Remote) string { return remoteID(n.repoID, r.Name) },
		Build: func(r git.Remote) tree.Node {
			return newRemoteNode(n.env, n.repo, n.repoID, r)
		},
		Update: func(ctx context.Context, node tree.Node, r git.Remote) {
			if rn, ok := node.(*RemoteNode); ok {
				rn.setRemote(r)
			}
			refreshKept(ctx, node)
		},
		Empty: func() tree.Node { return tree.NewMessage(n.ID(), "No remotes") },
	}
}

func (n *RemotesNode) Children(ctx context.Context) ([]tree.Node, error) {
	return n.kids.load(ctx, n.env, n.reconciler(), unpaged(n.repo.Remotes))
}

func (n *RemotesNode) Describe(context.Context) (tree.Item, error) {
	return tree.Item{
		ID:       n.ID(),
		Label:    "Remotes",
		Icon:     "cloud",
		Kind:     KindRemotes,
		Collapse: tree.Collapsed,
	}, nil
}

func (n *RemotesNode) Refresh(ctx context.Context) error {
	return n.kids.refresh(ctx, n.env, n.reconciler(), unpaged(n.repo.Remotes))
}

func (n *RemotesNode) Dispose() {
	n.kids.dispose()
}

// RemoteNode lists the branches of one remote.
type RemoteNode struct {
	tree.Base
	env    env
	repo   Repository
	repoID string
	kids   keyed[entry]

	mu     sync.Mutex
	remote git.Remote
}

func newRemoteNode(e env, repo Repository, repoID string, r git.Remote) *RemoteNode {
	return &RemoteNode{
		Base:   tree.NewBase(remoteID(repoID, r.Name), tree.Locator{RepoPath: repo.Path(), Ref: r.Name}),
		env:    e,
		repo:   repo,
		repoID: repoID,
		remote: r,
	}
}

func (n *RemoteNode) setRemote(r git.Remote) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.remote = r
}

func (n *RemoteNode) Remote() git.Remote {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.remote
}

func (n *RemoteNode) fetch(ctx context.Context) ([]entry, bool, error) {
	branches, err := n.repo.RemoteBranches(ctx, n.Remote().Name)
	if err != nil {
		return nil, false, err
	}
	leaves := make([]leaf, 0, len(branches))
	for _, b := range branches {
		leaves = append(leaves, branchLeaf(n.env, n.repo, n.repoID, b))
	}
	return layoutRefs(n.env.config(n.repo), leaves), false, nil
}

func (n *RemoteNode) reconciler() tree.Reconciler[entry] {
	return entryReconciler(n.env, n.ID(), folderStyle{repoPath: n.repo.Path()}, func() tree.Node {
		return tree.NewMessage(n.ID(), "No branches")
	})
}

func (n *RemoteNode) Children(ctx context.Context) ([]tree.Node, error) {
	return n.kids.load(ctx, n.env, n.reconciler(), n.fetch)
}

func (n *RemoteNode) Describe(context.Context) (tree.Item, error) {
	r := n.Remote()
	return tree.Item{
		ID:          n.ID(),
		Label:       r.Name,
		Description: strings.Join(r.URLs, ", "),
		Tooltip:     strings.Join(append([]string{r.Name}, r.URLs...), "\n"),
		Icon:        "cloud",
		Kind:        KindRemote,
		Collapse:    tree.Collapsed,
	}, nil
}

func (n *RemoteNode) Refresh(ctx context.Context) error {
	return n.kids.refresh(ctx, n.env, n.reconciler(), n.fetch)
}

func (n *RemoteNode) Dispose() {
	n.kids.dispose()
}

// TagsNode lists the tags, grouped like branches.
type TagsNode struct {
	tree.Base
	env    env
	repo   Repository
	repoID string
	kids   keyed[entry]
}

func newTagsNode(e env, repo Repository, repoID string) *TagsNode {
	return &TagsNode{
		Base:   tree.NewBase(repoID+":tags", tree.Locator{RepoPath: repo.Path()}),
		env:    e,
		repo:   repo,
		repoID: repoID,
	}
}

func (n *TagsNode) fetch(ctx context.Context) ([]entry, bool, error) {
	tags, err := n.repo.Tags(ctx)
	if err != nil {
		return nil, false, err
	}
	leaves := make([]leaf, 0, len(tags))
	for _, t := range tags {
		leaves = append(leaves, leaf{
			key:  tagID(n.repoID, t.Name),
			path: t.Name,
			build: func(nested bool) tree.Node {
				return newTagNode(n.env, n.repo, n.repoID, t, nested)
			},
			update: func(ctx context.Context, node tree.Node, nested bool) {
				if tn, ok := node.(*TagNode); ok {
					tn.update(t, nested)
				}
				refreshKept(ctx, node)
			},
		})
	}
	return layoutRefs(n.env.config(n.repo), leaves), false, nil
}

func (n *TagsNode) reconciler() tree.Reconciler[entry] {
	return entryReconciler(n.env, n.ID(), folderStyle{repoPath: n.repo.Path()}, func() tree.Node {
		return tree.NewMessage(n.ID(), "No tags")
	})
}

func (n *TagsNode) Children(ctx context.Context) ([]tree.Node, error) {
	return n.kids.load(ctx, n.env, n.reconciler(), n.fetch)
}

func (n *TagsNode) Describe(context.Context) (tree.Item, error) {
	return tree.Item{
		ID:       n.ID(),
		Label:    "Tags",
		Icon:     "tag",
		Kind:     KindTags,
		Collapse: tree.Collapsed,
	}, nil
}

func (n *TagsNode) Refresh(ctx context.Context) error {
	return n.kids.refresh(ctx, n.env, n.reconciler(), n.fetch)
}

func (n *TagsNode) Dispose() {
	n.kids.dispose()
}

// TagNode is a tag whose children are the commits reachable from it.
type TagNode struct {
	tree.Base
	log *commitList

	mu     sync.Mutex
	tag    git.Tag
	nested bool
}

func newTagNode(e env, repo Repository, repoID string, t git.Tag, nested bool) *TagNode {
	n := &TagNode{
		Base:   tree.NewBase(tagID(repoID, t.Name), tree.Locator{RepoPath: repo.Path(), Ref: t.Name}),
		tag:    t,
		nested: nested,
	}
	n.log = &commitList{
		env:   e,
		repo:  repo,
		owner: n,
		noun:  "Commits",
		empty: "No commits",
		query: func(ctx context.Context, maxCount int) (git.Log, error) {
			return repo.Log(ctx, git.LogOptions{Ref: "refs/tags/" + t.Name, MaxCount: maxCount})
		},
	}
	return n
}

func (n *TagNode) update(t git.Tag, nested bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tag = t
	n.nested = nested
}

func (n *TagNode) Tag() git.Tag {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tag
}

func (n *TagNode) Ref() string { return n.Tag().Name }

func (n *TagNode) Paging() *tree.Paging { return &n.log.paging }

func (n *TagNode) PageSize() int { return n.log.pageSize() }

func (n *TagNode) Children(ctx context.Context) ([]tree.Node, error) {
	return n.log.children(ctx)
}

func (n *TagNode) Describe(context.Context) (tree.Item, error) {
	n.mu.Lock()
	t, nested := n.tag, n.nested
	n.mu.Unlock()

	label := t.Name
	if nested {
		label = refName(t.Name)
	}
	tooltip := t.Name
	if t.Annotation != "" {
		tooltip += "\n" + t.Annotation
	}
	return tree.Item{
		ID:          n.ID(),
		Label:       label,
		Description: shortHash(t.Hash),
		Tooltip:     tooltip,
		Icon:        "tag",
		Kind:        KindTag,
		Collapse:    tree.Collapsed,
	}, nil
}

func (n *TagNode) Refresh(ctx context.Context) error {
	return n.log.refresh(ctx)
}

func (n *TagNode) Dispose() {
	n.log.dispose()
}
