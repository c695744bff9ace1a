package explorer

import (
	"cmp"
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thiagokokada/gitk-explorer/internal/config"
	"github.com/thiagokokada/gitk-explorer/internal/git"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

// fakeRepo is an in-memory Repository. Log results are keyed by
// "ref" or "ref^exclude"; searches run over the "*" entry.
type fakeRepo struct {
	path string

	mu             sync.Mutex
	status         git.Status
	branches       []git.Branch
	remoteBranches map[string][]git.Branch
	remotes        []git.Remote
	tags           []git.Tag
	logs           map[string][]*git.Commit
	fileLogs       map[string][]*git.Commit
	files          map[string][]git.CommitFile
	fail           map[string]error
	listeners      map[int]func(git.ChangeEvent)
	watched        map[string]int
	seq            int

	logCalls atomic.Int32
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo(p string) *fakeRepo {
	return &fakeRepo{
		path:           p,
		remoteBranches: make(map[string][]git.Branch),
		logs:           make(map[string][]*git.Commit),
		fileLogs:       make(map[string][]*git.Commit),
		files:          make(map[string][]git.CommitFile),
		fail:           make(map[string]error),
		listeners:      make(map[int]func(git.ChangeEvent)),
		watched:        make(map[string]int),
	}
}

func (r *fakeRepo) Path() string   { return r.path }
func (r *fakeRepo) Name() string   { return path.Base(r.path) }
func (r *fakeRepo) GitDir() string { return "" }

func (r *fakeRepo) err(op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fail[op]
}

func (r *fakeRepo) setFail(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.fail, op)
		return
	}
	r.fail[op] = err
}

func (r *fakeRepo) update(fn func(r *fakeRepo)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

func (r *fakeRepo) Status(context.Context) (git.Status, error) {
	if err := r.err("Status"); err != nil {
		return git.Status{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, nil
}

func (r *fakeRepo) Branches(context.Context) ([]git.Branch, error) {
	if err := r.err("Branches"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.branches), nil
}

func (r *fakeRepo) RemoteBranches(_ context.Context, remote string) ([]git.Branch, error) {
	if err := r.err("RemoteBranches"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.remoteBranches[remote]), nil
}

func (r *fakeRepo) Remotes(context.Context) ([]git.Remote, error) {
	if err := r.err("Remotes"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.remotes), nil
}

func (r *fakeRepo) Tags(context.Context) ([]git.Tag, error) {
	if err := r.err("Tags"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.tags), nil
}

func (r *fakeRepo) Log(_ context.Context, opts git.LogOptions) (git.Log, error) {
	r.logCalls.Add(1)
	if err := r.err("Log"); err != nil {
		return git.Log{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if opts.Search != "" {
		var matched []*git.Commit
		for _, c := range r.logs["*"] {
			if strings.Contains(strings.ToLower(c.Message), strings.ToLower(opts.Search)) {
				matched = append(matched, c)
			}
		}
		return page(matched, opts.MaxCount), nil
	}
	key := opts.Ref
	if opts.Exclude != "" {
		key += "^" + opts.Exclude
	}
	return page(r.logs[key], opts.MaxCount), nil
}

func (r *fakeRepo) LogForFile(_ context.Context, relPath string, opts git.LogOptions) (git.Log, error) {
	if err := r.err("LogForFile"); err != nil {
		return git.Log{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return page(r.fileLogs[relPath], opts.MaxCount), nil
}

func (r *fakeRepo) CommitFiles(_ context.Context, hash string) ([]git.CommitFile, error) {
	if err := r.err("CommitFiles"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.files[hash]), nil
}

func (r *fakeRepo) Subscribe(fn func(git.ChangeEvent)) (git.Subscription, error) {
	if err := r.err("Subscribe"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	id := r.seq
	r.listeners[id] = fn
	return tree.SubscriptionFunc(func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
		return nil
	}), nil
}

func (r *fakeRepo) WatchPath(relPath string) (git.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watched[relPath]++
	return tree.SubscriptionFunc(func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.watched[relPath]--
		return nil
	}), nil
}

func (r *fakeRepo) listenerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

func (r *fakeRepo) watchCount(relPath string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.watched[relPath]
}

func (r *fakeRepo) emit(ev git.ChangeEvent) {
	r.mu.Lock()
	fns := make([]func(git.ChangeEvent), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	ev.RepoPath = r.path
	for _, fn := range fns {
		fn(ev)
	}
}

func page(commits []*git.Commit, maxCount int) git.Log {
	if maxCount <= 0 || len(commits) <= maxCount {
		return git.Log{Commits: slices.Clone(commits)}
	}
	return git.Log{Commits: slices.Clone(commits[:maxCount]), Truncated: true}
}

func makeCommits(prefix string, n int) []*git.Commit {
	out := make([]*git.Commit, 0, n)
	for i := range n {
		out = append(out, &git.Commit{
			Hash:    fmt.Sprintf("%s%02d", prefix, i),
			Message: fmt.Sprintf("%s commit %d", prefix, i),
			Author:  git.Signature{Name: "Alice"},
		})
	}
	return out
}

type fakeRegistry struct {
	mu        sync.Mutex
	repos     []Repository
	listeners map[int]func()
	seq       int
}

var _ Registry = (*fakeRegistry)(nil)

func newFakeRegistry(repos ...Repository) *fakeRegistry {
	return &fakeRegistry{repos: repos, listeners: make(map[int]func())}
}

func (g *fakeRegistry) Repositories() []Repository {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := slices.Clone(g.repos)
	slices.SortFunc(out, func(a, b Repository) int { return cmp.Compare(a.Path(), b.Path()) })
	return out
}

func (g *fakeRegistry) Resolve(p string) (Repository, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var best Repository
	for _, r := range g.repos {
		if p != r.Path() && !strings.HasPrefix(p, r.Path()+"/") {
			continue
		}
		if best == nil || len(r.Path()) > len(best.Path()) {
			best = r
		}
	}
	return best, best != nil
}

func (g *fakeRegistry) OnDidChangeRepositories(fn func()) git.Subscription {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := g.seq
	g.listeners[id] = fn
	return tree.SubscriptionFunc(func() error {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.listeners, id)
		return nil
	})
}

func (g *fakeRegistry) add(r Repository) {
	g.mu.Lock()
	g.repos = append(g.repos, r)
	g.mu.Unlock()
	g.notify()
}

func (g *fakeRegistry) remove(p string) {
	g.mu.Lock()
	g.repos = slices.DeleteFunc(g.repos, func(r Repository) bool { return r.Path() == p })
	g.mu.Unlock()
	g.notify()
}

func (g *fakeRegistry) notify() {
	g.mu.Lock()
	fns := make([]func(), 0, len(g.listeners))
	for _, fn := range g.listeners {
		fns = append(fns, fn)
	}
	g.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// testSettings disables the notification debounce so subscription
// callbacks refresh synchronously.
func testSettings(mutate ...func(*config.Config)) *Settings {
	cfg := config.Default()
	cfg.DebounceDelay = 0
	for _, fn := range mutate {
		fn(&cfg)
	}
	return NewSettings(cfg)
}

func newDriver(t *testing.T, root func(tree.Host) tree.Node) *tree.Driver {
	t.Helper()
	d := tree.New("test", root, tree.WithVisible(true))
	t.Cleanup(d.Dispose)
	return d
}

func labels(ctx context.Context, d *tree.Driver, nodes []tree.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.Describe(ctx, n).Label)
	}
	return out
}

func childOfKind(t *testing.T, ctx context.Context, d *tree.Driver, parent tree.Node, kind tree.Kind) tree.Node {
	t.Helper()
	for _, n := range d.Children(ctx, parent) {
		if d.Describe(ctx, n).Kind == kind {
			return n
		}
	}
	require.Failf(t, "child not found", "no %s below %s", kind, parent.ID())
	return nil
}
