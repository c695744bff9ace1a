package explorer

import (
	"context"
	"fmt"
	"sync"

	"github.com/thiagokokada/gitk-explorer/internal/git"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

// CommitsResultsNode lists the commits matching a search. The query result
// is kept until the node is refreshed, so describing and expanding the node
// runs the search once.
type CommitsResultsNode struct {
	tree.Base
	search string
	log    *commitList

	mu     sync.Mutex
	cached *git.Log
}

// NewCommitsResultsNode returns the root of the results of searching the
// commits of repo for text.
func NewCommitsResultsNode(host tree.Host, settings *Settings, repo Repository, text string) *CommitsResultsNode {
	e := env{host: host, settings: settings}
	n := &CommitsResultsNode{
		Base:   tree.NewBase(fmt.Sprintf("gitk:results(%s):search(%s)", repo.Path(), text), tree.Locator{RepoPath: repo.Path()}),
		search: text,
	}
	n.log = &commitList{
		env:     e,
		repo:    repo,
		owner:   n,
		noun:    "Results",
		showAll: true,
		query: func(ctx context.Context, maxCount int) (git.Log, error) {
			return n.query(ctx, repo, maxCount)
		},
	}
	return n
}

func (n *CommitsResultsNode) query(ctx context.Context, repo Repository, maxCount int) (git.Log, error) {
	n.mu.Lock()
	if n.cached != nil {
		log := *n.cached
		n.mu.Unlock()
		return log, nil
	}
	n.mu.Unlock()

	log, err := repo.Log(ctx, git.LogOptions{All: true, Search: n.search, MaxCount: maxCount})
	if err != nil {
		return git.Log{}, err
	}
	n.mu.Lock()
	n.cached = &log
	n.mu.Unlock()
	return log, nil
}

func (n *CommitsResultsNode) Search() string { return n.search }

func (n *CommitsResultsNode) Paging() *tree.Paging { return &n.log.paging }

func (n *CommitsResultsNode) PageSize() int { return n.log.pageSize() }

func (n *CommitsResultsNode) Children(ctx context.Context) ([]tree.Node, error) {
	return n.log.children(ctx)
}

func (n *CommitsResultsNode) Describe(ctx context.Context) (tree.Item, error) {
	log, err := n.log.query(ctx, n.log.paging.MaxCount(n.PageSize()))
	if err != nil {
		return tree.Item{}, err
	}
	item := tree.Item{
		ID:       n.ID(),
		Icon:     "search",
		Kind:     KindResults,
		Collapse: tree.Expanded,
	}
	count := len(log.Commits)
	switch {
	case count == 0:
		item.Label = fmt.Sprintf("No results for %q", n.search)
		item.Collapse = tree.CollapseNone
	case log.Truncated:
		item.Label = fmt.Sprintf("%d+ results for %q", count, n.search)
	case count == 1:
		item.Label = fmt.Sprintf("1 result for %q", n.search)
	default:
		item.Label = fmt.Sprintf("%d results for %q", count, n.search)
	}
	item.Tooltip = item.Label
	return item, nil
}

// Refresh drops the cached search result and runs it again.
func (n *CommitsResultsNode) Refresh(ctx context.Context) error {
	n.mu.Lock()
	n.cached = nil
	n.mu.Unlock()
	return n.log.refresh(ctx)
}

func (n *CommitsResultsNode) Dispose() {
	n.log.dispose()
}
