package git

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Registry tracks the open repositories of a session.
type Registry struct {
	mu        sync.Mutex
	repos     map[string]*Repository
	listeners map[int]func()
	seq       int
}

func NewRegistry() *Registry {
	return &Registry{
		repos:     make(map[string]*Repository),
		listeners: make(map[int]func()),
	}
}

// Open opens the repositories containing each path. Paths that resolve to
// an already open repository are ignored.
func (g *Registry) Open(paths ...string) error {
	var errs []error
	added := 0
	for _, p := range paths {
		repo, err := Open(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		g.mu.Lock()
		if _, ok := g.repos[repo.Path()]; ok {
			g.mu.Unlock()
			_ = repo.Close()
			continue
		}
		g.repos[repo.Path()] = repo
		g.mu.Unlock()
		added++
	}
	if added > 0 {
		g.notify()
	}
	return errors.Join(errs...)
}

// Discover opens every repository found below root, descending at most
// depth directory levels.
func (g *Registry) Discover(ctx context.Context, root string, depth int) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	var found []string
	base := strings.Count(root, string(filepath.Separator))
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			found = append(found, filepath.Dir(path))
			return fs.SkipDir
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return fs.SkipDir
		}
		if strings.Count(path, string(filepath.Separator))-base > depth {
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Debug("discovered repositories", slog.String("root", root), slog.Int("count", len(found)))
	return g.Open(found...)
}

// Repositories returns the open repositories sorted by path.
func (g *Registry) Repositories() []*Repository {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Repository, 0, len(g.repos))
	for _, r := range g.repos {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *Repository) int { return cmp.Compare(a.Path(), b.Path()) })
	return out
}

// Resolve returns the open repository containing path, preferring the
// innermost one for nested repositories.
func (g *Registry) Resolve(path string) (*Repository, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	var best *Repository
	for root, r := range g.repos {
		if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
			continue
		}
		if best == nil || len(root) > len(best.Path()) {
			best = r
		}
	}
	return best, best != nil
}

// Close closes and forgets the repository at path.
func (g *Registry) Close(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	g.mu.Lock()
	r, ok := g.repos[abs]
	delete(g.repos, abs)
	g.mu.Unlock()
	if !ok {
		return nil
	}
	err = r.Close()
	g.notify()
	return err
}

// CloseAll closes every repository.
func (g *Registry) CloseAll() error {
	g.mu.Lock()
	repos := g.repos
	g.repos = make(map[string]*Repository)
	g.mu.Unlock()
	var errs []error
	for _, r := range repos {
		errs = append(errs, r.Close())
	}
	if len(repos) > 0 {
		g.notify()
	}
	return errors.Join(errs...)
}

// OnDidChangeRepositories registers fn for additions and removals.
func (g *Registry) OnDidChangeRepositories(fn func()) Subscription {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := g.seq
	g.listeners[id] = fn
	return subscriptionFunc(func() error {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.listeners, id)
		return nil
	})
}

func (g *Registry) notify() {
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
