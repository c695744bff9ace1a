package explorer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/thiagokokada/gitk-explorer/internal/git"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

// historyItem is an entry of a file history: the uncommitted changes of the
// file or one commit touching it.
type historyItem struct {
	repo   Repository
	rel    string
	status *statusFile
	commit *git.Commit
}

// FileHistoryNode lists the commits that touched one file, newest first,
// preceded by its uncommitted changes. It follows both the repository and
// the file itself.
type FileHistoryNode struct {
	tree.Base
	env     env
	reg     Registry
	absPath string
	sub     *tree.Subscriber
	paging  tree.Paging
	kids    keyed[historyItem]

	mu   sync.Mutex
	repo Repository
	rel  string
	// watched is the repository the live subscription belongs to.
	watched Repository
}

// NewFileHistoryNode returns the root of the history view of absPath.
func NewFileHistoryNode(host tree.Host, settings *Settings, reg Registry, absPath string) *FileHistoryNode {
	e := env{host: host, settings: settings}
	n := &FileHistoryNode{
		Base:    tree.NewBase("gitk:file-history("+absPath+")", tree.Locator{Path: filepath.ToSlash(absPath)}),
		env:     e,
		reg:     reg,
		absPath: absPath,
	}
	n.sub = e.subscriber(n, nil, n.subscribe)
	return n
}

func (n *FileHistoryNode) Subscription() *tree.Subscriber { return n.sub }

// resolve finds the repository holding the file.
func (n *FileHistoryNode) resolve() (Repository, string, error) {
	n.mu.Lock()
	repo, rel := n.repo, n.rel
	n.mu.Unlock()
	if repo != nil {
		return repo, rel, nil
	}
	repo, ok := n.reg.Resolve(n.absPath)
	if !ok {
		return nil, "", fmt.Errorf("%w: no repository contains %s", tree.ErrResolutionFailed, n.absPath)
	}
	r, err := filepath.Rel(repo.Path(), n.absPath)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", tree.ErrResolutionFailed, err)
	}
	rel = filepath.ToSlash(r)
	n.mu.Lock()
	n.repo, n.rel = repo, rel
	n.mu.Unlock()
	return repo, rel, nil
}

func (n *FileHistoryNode) subscribe(context.Context) (tree.Subscription, error) {
	repo, rel, err := n.resolve()
	if err != nil {
		return nil, err
	}
	repoSub, err := repo.Subscribe(func(ev git.ChangeEvent) {
		switch {
		case ev.Changed(git.ChangeClosed):
			n.forget()
			n.sub.RequestRefresh("repository closed")
		case ev.Changed(git.ChangeRepository):
			n.sub.RequestRefresh("repository changed")
		case ev.ChangedPath(rel):
			n.sub.RequestRefresh("file changed")
		}
	})
	if err != nil {
		return nil, err
	}
	fileSub, err := repo.WatchPath(rel)
	if err != nil {
		return nil, errors.Join(err, repoSub.Close())
	}
	n.mu.Lock()
	n.watched = repo
	n.mu.Unlock()
	return tree.SubscriptionFunc(func() error {
		n.mu.Lock()
		if n.watched == repo {
			n.watched = nil
		}
		n.mu.Unlock()
		return errors.Join(fileSub.Close(), repoSub.Close())
	}), nil
}

// watchingStale reports whether the live subscription belongs to a
// repository other than the one the file currently resolves to.
func (n *FileHistoryNode) watchingStale() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.watched != nil && n.watched != n.repo
}

// forget drops the resolved repository so the next query resolves again.
func (n *FileHistoryNode) forget() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.repo, n.rel = nil, ""
}

func (n *FileHistoryNode) Paging() *tree.Paging { return &n.paging }

func (n *FileHistoryNode) PageSize() int {
	n.mu.Lock()
	repo := n.repo
	n.mu.Unlock()
	return n.env.config(repo).DefaultItemLimit
}

func (n *FileHistoryNode) fetch(ctx context.Context) ([]historyItem, bool, error) {
	repo, rel, err := n.resolve()
	if err != nil {
		return nil, false, err
	}
	var items []historyItem
	status, err := repo.Status(ctx)
	if err != nil {
		return nil, false, err
	}
	for _, f := range status.Files {
		if f.Path == rel {
			sf := fromStatusFile(f)
			items = append(items, historyItem{repo: repo, rel: rel, status: &sf})
			break
		}
	}
	log, err := repo.LogForFile(ctx, rel, git.LogOptions{MaxCount: n.paging.MaxCount(n.PageSize())})
	if err != nil {
		return nil, false, err
	}
	for _, c := range log.Commits {
		items = append(items, historyItem{repo: repo, rel: rel, commit: c})
	}
	return items, log.Truncated, nil
}

func (n *FileHistoryNode) reconciler() tree.Reconciler[historyItem] {
	increment := n.env.config(n.current()).PageIncrement
	return tree.Reconciler[historyItem]{
		Key: func(it historyItem) string {
			if it.status != nil {
				return n.ID() + ":uncommitted"
			}
			return commitID(n.ID(), it.commit.Hash)
		},
		Build: func(it historyItem) tree.Node {
			if it.status != nil {
				return newStatusFileNode(n.ID()+":uncommitted", n.env, it.repo, *it.status, false, true)
			}
			return newCommitFileNode(commitID(n.ID(), it.commit.Hash), it.repo.Path(), it.commit,
				git.CommitFile{Path: it.rel, Status: git.Modified}, false, true)
		},
		Update: func(_ context.Context, node tree.Node, it historyItem) {
			if sn, ok := node.(*StatusFileNode); ok && it.status != nil {
				sn.update(*it.status, false)
			}
		},
		Empty: func() tree.Node { return tree.NewMessage(n.ID(), "No file history") },
		More:  func() *tree.PagerNode { return tree.NewShowMore(n, "Commits", increment) },
	}
}

func (n *FileHistoryNode) current() Repository {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.repo
}

func (n *FileHistoryNode) Children(ctx context.Context) ([]tree.Node, error) {
	n.sub.Ensure(ctx)
	return n.kids.load(ctx, n.env, n.reconciler(), n.fetch)
}

func (n *FileHistoryNode) Describe(ctx context.Context) (tree.Item, error) {
	n.sub.Ensure(ctx)
	item := tree.Item{
		ID:       n.ID(),
		Label:    filepath.Base(n.absPath),
		Tooltip:  "History of " + n.absPath,
		Icon:     "history",
		Kind:     KindFileHistory,
		Collapse: tree.Expanded,
	}
	if _, rel, err := n.resolve(); err == nil {
		item.Label = baseName(rel)
		item.Description = dirName(rel)
		item.Tooltip = "History of " + baseName(rel)
		if dir := dirName(rel); dir != "" {
			item.Tooltip += "\n" + dir + "/"
		}
	}
	return item, nil
}

func (n *FileHistoryNode) Refresh(ctx context.Context) error {
	err := n.kids.refresh(ctx, n.env, n.reconciler(), n.fetch)
	if n.watchingStale() {
		n.sub.Resubscribe(ctx)
	} else {
		n.sub.Settle(ctx)
	}
	return err
}

func (n *FileHistoryNode) Dispose() {
	n.sub.Dispose()
	n.kids.dispose()
}
