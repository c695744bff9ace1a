package explorer

import (
	"context"
	"strings"
	"sync"

	"github.com/thiagokokada/gitk-explorer/internal/git"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

type section uint8

const (
	sectionAhead section = iota
	sectionBehind
	sectionFiles
	sectionBranches
	sectionRemotes
	sectionTags
)

// RepositoryNode is one repository with its status, branches, remotes and
// tags below it. It follows the repository change feed while displayed.
type RepositoryNode struct {
	tree.Base
	env    env
	repo   Repository
	active bool
	sub    *tree.Subscriber
	kids   keyed[section]

	mu     sync.Mutex
	status *git.Status
}

// newRepositoryNode builds the node of repo. An embedding node passed as
// owner marks it as the active repository and is refreshed on changes in
// its place.
func newRepositoryNode(e env, repo Repository, owner tree.Node) *RepositoryNode {
	active := owner != nil
	n := &RepositoryNode{
		Base:   tree.NewBase(repositoryID(repo.Path(), active), tree.Locator{RepoPath: repo.Path()}),
		env:    e,
		repo:   repo,
		active: active,
	}
	if owner == nil {
		owner = n
	}
	n.sub = e.subscriber(owner, repo, n.subscribe)
	return n
}

func (n *RepositoryNode) Repository() Repository { return n.repo }

func (n *RepositoryNode) Subscription() *tree.Subscriber { return n.sub }

func (n *RepositoryNode) subscribe(context.Context) (tree.Subscription, error) {
	sub, err := n.repo.Subscribe(n.onChange)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (n *RepositoryNode) onChange(ev git.ChangeEvent) {
	if ev.Changed(git.ChangeConfig) && n.env.settings != nil {
		n.env.settings.Forget(n.repo.GitDir())
	}
	reasons := make([]string, 0, len(ev.Changes))
	for _, c := range ev.Changes {
		reasons = append(reasons, c.String())
	}
	n.sub.RequestRefresh(strings.Join(reasons, ","))
}

// currentStatus returns the memoized status, querying it when needed.
func (n *RepositoryNode) currentStatus(ctx context.Context) (git.Status, error) {
	n.mu.Lock()
	if n.status != nil {
		s := *n.status
		n.mu.Unlock()
		return s, nil
	}
	n.mu.Unlock()

	s, err := n.repo.Status(ctx)
	if err != nil {
		return git.Status{}, err
	}
	n.mu.Lock()
	n.status = &s
	n.mu.Unlock()
	return s, nil
}

func (n *RepositoryNode) sectionID(s section) string {
	switch s {
	case sectionAhead:
		return n.ID() + ":status:upstream:" + ahead.String()
	case sectionBehind:
		return n.ID() + ":status:upstream:" + behind.String()
	case sectionFiles:
		return n.ID() + ":status:files"
	case sectionBranches:
		return n.ID() + ":branches"
	case sectionRemotes:
		return n.ID() + ":remotes"
	default:
		return n.ID() + ":tags"
	}
}

func (n *RepositoryNode) fetch(ctx context.Context) ([]section, bool, error) {
	status, err := n.currentStatus(ctx)
	if err != nil {
		return nil, false, err
	}
	cfg := n.env.config(n.repo)
	var out []section
	if status.Upstream != "" {
		if status.Behind > 0 {
			out = append(out, sectionBehind)
		}
		if status.Ahead > 0 {
			out = append(out, sectionAhead)
		}
	}
	if (cfg.IncludeWorkingTree && status.HasChanges()) || (status.Upstream != "" && status.Ahead > 0) {
		out = append(out, sectionFiles)
	}
	out = append(out, sectionBranches)
	remotes, err := n.repo.Remotes(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(remotes) > 0 {
		out = append(out, sectionRemotes)
	}
	out = append(out, sectionTags)
	return out, false, nil
}

func (n *RepositoryNode) reconciler(ctx context.Context) tree.Reconciler[section] {
	return tree.Reconciler[section]{
		Key: n.sectionID,
		Build: func(s section) tree.Node {
			status, _ := n.currentStatus(ctx)
			switch s {
			case sectionAhead:
				return newStatusUpstreamNode(n.env, n.repo, n.ID(), status, ahead)
			case sectionBehind:
				return newStatusUpstreamNode(n.env, n.repo, n.ID(), status, behind)
			case sectionFiles:
				return newStatusFilesNode(n.env, n.repo, n.ID(), status)
			case sectionBranches:
				return newBranchesNode(n.env, n.repo, n.ID())
			case sectionRemotes:
				return newRemotesNode(n.env, n.repo, n.ID())
			default:
				return newTagsNode(n.env, n.repo, n.ID())
			}
		},
		Update: func(ctx context.Context, node tree.Node, _ section) {
			status, _ := n.currentStatus(ctx)
			switch sn := node.(type) {
			case *StatusFilesNode:
				sn.setStatus(status)
			case *StatusUpstreamNode:
				sn.setStatus(status)
			}
			refreshKept(ctx, node)
		},
	}
}

func (n *RepositoryNode) Children(ctx context.Context) ([]tree.Node, error) {
	return n.kids.load(ctx, n.env, n.reconciler(ctx), n.fetch)
}

func (n *RepositoryNode) Describe(ctx context.Context) (tree.Item, error) {
	n.sub.Ensure(ctx)

	item := tree.Item{
		ID:       n.ID(),
		Label:    n.repo.Name(),
		Tooltip:  n.repo.Path(),
		Icon:     "repo",
		Kind:     KindRepository,
		Collapse: tree.Collapsed,
	}
	if n.active {
		item.Kind = KindActiveRepository
		item.Collapse = tree.Expanded
	}
	status, err := n.currentStatus(ctx)
	if err != nil {
		item.Description = "unavailable"
		item.Tooltip += "\n" + err.Error()
		return item, nil
	}
	branch := status.Branch
	if status.Detached {
		branch = "(detached) " + shortHash(status.Branch)
	}
	counts := countFiles(status.Files)
	item.Description = joinNonEmpty(branch, upstreamStatus(status.Upstream, status.Ahead, status.Behind), counts.String())

	var tip []string
	tip = append(tip, n.repo.Path())
	if branch != "" {
		line := "on " + branch
		if status.Upstream != "" {
			line += ", tracking " + status.Upstream
		}
		tip = append(tip, line)
	}
	if s := counts.Expanded(); s != "" {
		tip = append(tip, s)
	}
	item.Tooltip = strings.Join(tip, "\n")
	return item, nil
}

func (n *RepositoryNode) Refresh(ctx context.Context) error {
	n.mu.Lock()
	n.status = nil
	n.mu.Unlock()

	err := n.kids.refresh(ctx, n.env, n.reconciler(ctx), n.fetch)
	n.sub.Settle(ctx)
	return err
}

func (n *RepositoryNode) Dispose() {
	n.sub.Dispose()
	n.kids.dispose()
}
