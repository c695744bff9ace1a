package explorer

import (
	"context"
	"fmt"
	"sync"

	"github.com/thiagokokada/gitk-explorer/internal/git"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

// commitChange is a file as changed by one commit of an unpushed range.
type commitChange struct {
	commit *git.Commit
	file   git.CommitFile
}

// statusFile merges what happened to one path: uncommitted changes in the
// index and working tree, and the unpushed commits touching it, newest first.
type statusFile struct {
	path     string
	oldPath  string
	staging  git.StatusCode
	worktree git.StatusCode
	commits  []commitChange
}

func fromStatusFile(f git.StatusFile) statusFile {
	return statusFile{path: f.Path, oldPath: f.OldPath, staging: f.Staging, worktree: f.Worktree}
}

func (f statusFile) unstaged() bool {
	return f.worktree != 0 && f.worktree != git.Unmodified
}

func (f statusFile) staged() bool {
	return f.staging != 0 && f.staging != git.Unmodified && f.staging != git.Untracked
}

func (f statusFile) code() git.StatusCode {
	switch {
	case f.worktree == git.Untracked:
		return git.Untracked
	case f.unstaged():
		return f.worktree
	case f.staged():
		return f.staging
	case len(f.commits) > 0:
		return f.commits[0].file.Status
	default:
		return git.Modified
	}
}

// StatusFilesNode lists the files changed in the working tree and, when the
// branch is ahead of its upstream, by the unpushed commits.
type StatusFilesNode struct {
	tree.Base
	env  env
	repo Repository
	kids keyed[entry]

	mu     sync.Mutex
	status git.Status
	count  *int
}

func newStatusFilesNode(e env, repo Repository, repoID string, status git.Status) *StatusFilesNode {
	return &StatusFilesNode{
		Base:   tree.NewBase(repoID+":status:files", tree.Locator{RepoPath: repo.Path()}),
		env:    e,
		repo:   repo,
		status: status,
	}
}

func (n *StatusFilesNode) setStatus(status git.Status) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = status
	n.count = nil
}

func (n *StatusFilesNode) setCount(c int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count = &c
}

// fileCount returns the memoized number of changed files, collecting them
// when needed.
func (n *StatusFilesNode) fileCount(ctx context.Context) (int, error) {
	n.mu.Lock()
	if n.count != nil {
		c := *n.count
		n.mu.Unlock()
		return c, nil
	}
	n.mu.Unlock()

	files, err := n.files(ctx)
	if err != nil {
		return 0, err
	}
	n.setCount(len(files))
	return len(files), nil
}

func (n *StatusFilesNode) current() git.Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

// files collects the status entries by path, in first seen order.
func (n *StatusFilesNode) files(ctx context.Context) ([]statusFile, error) {
	status := n.current()
	cfg := n.env.config(n.repo)

	var order []string
	byPath := make(map[string]*statusFile)
	get := func(p string) *statusFile {
		if f, ok := byPath[p]; ok {
			return f
		}
		order = append(order, p)
		f := &statusFile{path: p}
		byPath[p] = f
		return f
	}

	if cfg.IncludeWorkingTree {
		for _, sf := range status.Files {
			f := get(sf.Path)
			f.oldPath = sf.OldPath
			f.staging = sf.Staging
			f.worktree = sf.Worktree
		}
	}
	if status.Upstream != "" && status.Ahead > 0 {
		log, err := n.repo.Log(ctx, git.LogOptions{Ref: "HEAD", Exclude: status.Upstream})
		if err != nil {
			return nil, fmt.Errorf("read unpushed commits: %w", err)
		}
		for _, c := range log.Commits {
			files, err := n.repo.CommitFiles(ctx, c.Hash)
			if err != nil {
				return nil, err
			}
			for _, cf := range files {
				f := get(cf.Path)
				f.commits = append(f.commits, commitChange{commit: c, file: cf})
			}
		}
	}

	out := make([]statusFile, 0, len(order))
	for _, p := range order {
		out = append(out, *byPath[p])
	}
	return out, nil
}

func (n *StatusFilesNode) fetch(ctx context.Context) ([]entry, bool, error) {
	files, err := n.files(ctx)
	if err != nil {
		return nil, false, err
	}
	n.setCount(len(files))
	leaves := make([]leaf, 0, len(files))
	for _, f := range files {
		leaves = append(leaves, leaf{
			key:  fileID(n.ID(), f.path),
			path: f.path,
			build: func(nested bool) tree.Node {
				return newStatusFileNode(fileID(n.ID(), f.path), n.env, n.repo, f, nested, false)
			},
			update: func(ctx context.Context, node tree.Node, nested bool) {
				if sn, ok := node.(*StatusFileNode); ok {
					sn.update(f, nested)
				}
				refreshKept(ctx, node)
			},
		})
	}
	return layoutFiles(n.env.config(n.repo), leaves), false, nil
}

func (n *StatusFilesNode) reconciler() tree.Reconciler[entry] {
	return entryReconciler(n.env, n.ID(), folderStyle{repoPath: n.repo.Path(), expanded: true}, func() tree.Node {
		return tree.NewMessage(n.ID(), "No changes")
	})
}

func (n *StatusFilesNode) Children(ctx context.Context) ([]tree.Node, error) {
	return n.kids.load(ctx, n.env, n.reconciler(), n.fetch)
}

func (n *StatusFilesNode) Describe(ctx context.Context) (tree.Item, error) {
	status := n.current()
	count, err := n.fileCount(ctx)
	if err != nil {
		return tree.Item{}, err
	}
	return tree.Item{
		ID:          n.ID(),
		Label:       pluralize("file", count) + " changed",
		Description: countFiles(status.Files).String(),
		Tooltip:     countFiles(status.Files).Expanded(),
		Icon:        "files",
		Kind:        KindStatusFiles,
		Collapse:    tree.Collapsed,
	}, nil
}

func (n *StatusFilesNode) Refresh(ctx context.Context) error {
	n.mu.Lock()
	n.count = nil
	n.mu.Unlock()
	return n.kids.refresh(ctx, n.env, n.reconciler(), n.fetch)
}

func (n *StatusFilesNode) Dispose() {
	n.kids.dispose()
}

// statusChange is one of the changes listed below a status file: the
// working tree change, the staged change or an unpushed commit.
type statusChange struct {
	key    string
	file   statusFile
	commit *commitChange
}

// StatusFileNode is a changed file. When more than one change applies to
// it the changes are its children. In a file history it stands for the
// uncommitted changes only and is labelled accordingly.
type StatusFileNode struct {
	tree.Base
	env     env
	repo    Repository
	history bool
	kids    keyed[statusChange]

	mu     sync.Mutex
	file   statusFile
	nested bool
}

func newStatusFileNode(id string, e env, repo Repository, f statusFile, nested, history bool) *StatusFileNode {
	return &StatusFileNode{
		Base:    tree.NewBase(id, tree.Locator{RepoPath: repo.Path(), Path: f.path}),
		env:     e,
		repo:    repo,
		history: history,
		file:    f,
		nested:  nested,
	}
}

func (n *StatusFileNode) update(f statusFile, nested bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.file = f
	n.nested = nested
}

func (n *StatusFileNode) state() (statusFile, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.file, n.nested
}

func (n *StatusFileNode) changes() []statusChange {
	f, _ := n.state()
	var out []statusChange
	if f.unstaged() {
		out = append(out, statusChange{
			key:  n.ID() + ":working",
			file: statusFile{path: f.path, oldPath: f.oldPath, worktree: f.worktree},
		})
	}
	if f.staged() {
		out = append(out, statusChange{
			key:  n.ID() + ":staged",
			file: statusFile{path: f.path, oldPath: f.oldPath, staging: f.staging},
		})
	}
	for i := range f.commits {
		out = append(out, statusChange{
			key:    commitID(n.ID(), f.commits[i].commit.Hash),
			commit: &f.commits[i],
		})
	}
	return out
}

func (n *StatusFileNode) fetch(context.Context) ([]statusChange, bool, error) {
	if n.history {
		return nil, false, nil
	}
	changes := n.changes()
	if len(changes) < 2 {
		return nil, false, nil
	}
	return changes, false, nil
}

func (n *StatusFileNode) reconciler() tree.Reconciler[statusChange] {
	return tree.Reconciler[statusChange]{
		Key: func(c statusChange) string { return c.key },
		Build: func(c statusChange) tree.Node {
			if c.commit != nil {
				return newCommitFileNode(c.key, n.repo.Path(), c.commit.commit, c.commit.file, false, true)
			}
			return newStatusFileNode(c.key, n.env, n.repo, c.file, false, true)
		},
		Update: func(_ context.Context, node tree.Node, c statusChange) {
			if sn, ok := node.(*StatusFileNode); ok {
				sn.update(c.file, false)
			}
		},
	}
}

func (n *StatusFileNode) Children(ctx context.Context) ([]tree.Node, error) {
	return n.kids.load(ctx, n.env, n.reconciler(), n.fetch)
}

// command opens the most recent change: the working tree, then the index,
// then the latest unpushed commit.
func (n *StatusFileNode) command(f statusFile) *tree.Command {
	args := DiffArgs{RepoPath: n.repo.Path(), Path: f.path}
	switch {
	case f.unstaged():
		return diffCommand("Open Changes", args)
	case f.staged():
		args.Staged = true
		return diffCommand("Open Staged Changes", args)
	case len(f.commits) > 0:
		args.Commit = f.commits[0].commit.Hash
		return diffCommand("Open Changes with Previous Revision", args)
	default:
		return nil
	}
}

func (n *StatusFileNode) Describe(context.Context) (tree.Item, error) {
	f, nested := n.state()
	item := tree.Item{
		ID:       n.ID(),
		Icon:     statusIcon(f.code()),
		Kind:     KindStatusFile,
		Collapse: tree.CollapseNone,
		Command:  n.command(f),
	}
	switch {
	case n.history && f.unstaged():
		item.Label = "Uncommitted changes"
		item.Description = f.code().String()
		item.Tooltip = f.path
	case n.history:
		item.Label = "Staged changes"
		item.Description = f.code().String()
		item.Tooltip = f.path
	default:
		item.Label = baseName(f.path)
		if !nested {
			item.Description = dirName(f.path)
		}
		item.Tooltip = f.path + "\n" + f.code().String()
		if f.oldPath != "" {
			item.Tooltip += "\nrenamed from " + f.oldPath
		}
		if len(n.changes()) > 1 {
			item.Collapse = tree.Collapsed
			item.Description = joinNonEmpty(item.Description, pluralize("change", len(n.changes())))
		}
	}
	return item, nil
}

func (n *StatusFileNode) Refresh(ctx context.Context) error {
	return n.kids.refresh(ctx, n.env, n.reconciler(), n.fetch)
}

func (n *StatusFileNode) Dispose() {
	n.kids.dispose()
}

type upstreamDirection uint8

const (
	ahead upstreamDirection = iota
	behind
)

func (d upstreamDirection) String() string {
	if d == behind {
		return "behind"
	}
	return "ahead"
}

// StatusUpstreamNode lists the commits the branch is ahead of or behind its
// upstream.
type StatusUpstreamNode struct {
	tree.Base
	direction upstreamDirection
	log       *commitList

	mu     sync.Mutex
	status git.Status
}

func newStatusUpstreamNode(e env, repo Repository, repoID string, status git.Status, direction upstreamDirection) *StatusUpstreamNode {
	n := &StatusUpstreamNode{
		Base:      tree.NewBase(repoID+":status:upstream:"+direction.String(), tree.Locator{RepoPath: repo.Path(), Ref: status.Upstream}),
		direction: direction,
		status:    status,
	}
	n.log = &commitList{
		env:   e,
		repo:  repo,
		owner: n,
		noun:  "Commits",
		empty: "No commits",
		query: func(ctx context.Context, maxCount int) (git.Log, error) {
			s := n.current()
			opts := git.LogOptions{Ref: "HEAD", Exclude: s.Upstream, MaxCount: maxCount}
			if n.direction == behind {
				opts.Ref, opts.Exclude = s.Upstream, "HEAD"
			}
			return repo.Log(ctx, opts)
		},
	}
	return n
}

func (n *StatusUpstreamNode) setStatus(status git.Status) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = status
}

func (n *StatusUpstreamNode) current() git.Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

func (n *StatusUpstreamNode) count(s git.Status) int {
	if n.direction == behind {
		return s.Behind
	}
	return s.Ahead
}

func (n *StatusUpstreamNode) tooltip(s git.Status) string {
	commits := pluralize("commit", n.count(s))
	if n.direction == behind {
		return fmt.Sprintf("%s behind %s", commits, s.Upstream)
	}
	return fmt.Sprintf("%s ahead of %s", commits, s.Upstream)
}

func (n *StatusUpstreamNode) Paging() *tree.Paging { return &n.log.paging }

func (n *StatusUpstreamNode) PageSize() int { return n.log.pageSize() }

func (n *StatusUpstreamNode) Children(ctx context.Context) ([]tree.Node, error) {
	return n.log.children(ctx)
}

func (n *StatusUpstreamNode) Describe(context.Context) (tree.Item, error) {
	s := n.current()
	label := pluralize("commit", n.count(s)) + " " + n.direction.String()
	icon := "arrow-up"
	if n.direction == behind {
		icon = "arrow-down"
	}
	return tree.Item{
		ID:          n.ID(),
		Label:       label,
		Description: s.Upstream,
		Tooltip:     n.tooltip(s),
		Icon:        icon,
		Kind:        KindStatusUpstream,
		Collapse:    tree.Collapsed,
	}, nil
}

func (n *StatusUpstreamNode) Refresh(ctx context.Context) error {
	return n.log.refresh(ctx)
}

func (n *StatusUpstreamNode) Dispose() {
	n.log.dispose()
}
