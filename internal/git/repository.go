package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// ErrClosed is returned by queries on a closed repository.
var ErrClosed = errors.New("repository closed")

// Repository is an open git repository. Queries are serialized because
// go-git iterators share storage state.
type Repository struct {
	mu     sync.Mutex
	repo   *gitlib.Repository
	path   string
	gitDir string
	closed bool

	watch *watcher
}

// Open opens the repository containing repoPath.
func Open(repoPath string) (*Repository, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}
	repo, err := gitlib.PlainOpenWithOptions(abs, &gitlib.PlainOpenOptions{DetectDotGit: true, EnableDotGitCommonDir: true})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	root := abs
	if wt, err := repo.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}
	gitDir := filepath.Join(root, ".git")
	if fs, ok := repo.Storer.(*filesystem.Storage); ok {
		gitDir = fs.Filesystem().Root()
	}
	r := &Repository{repo: repo, path: filepath.Clean(root), gitDir: gitDir}
	r.watch = newWatcher(r.path, gitDir)
	slog.Debug("repository opened", slog.String("path", r.path), slog.String("git_dir", gitDir))
	return r, nil
}

func (r *Repository) Path() string { return r.path }

func (r *Repository) Name() string { return filepath.Base(r.path) }

// GitDir returns the directory holding the repository metadata.
func (r *Repository) GitDir() string { return r.gitDir }

// Head returns the short name of the checked out branch, or the abbreviated
// commit hash when HEAD is detached. An unborn branch yields "".
func (r *Repository) Head(ctx context.Context) (name string, detached bool, err error) {
	err = r.with(ctx, func(repo *gitlib.Repository) error {
		ref, err := repo.Head()
		if err != nil {
			if errors.Is(err, plumbing.ErrReferenceNotFound) {
				return nil
			}
			return fmt.Errorf("resolve HEAD: %w", err)
		}
		if ref.Name().IsBranch() {
			name = ref.Name().Short()
			return nil
		}
		detached = true
		name = ref.Hash().String()[:7]
		return nil
	})
	return name, detached, err
}

// Subscribe registers fn for change batches of this repository. The
// file-system watcher runs while at least one subscription is open.
func (r *Repository) Subscribe(fn func(ChangeEvent)) (Subscription, error) {
	return r.watch.subscribe(fn)
}

// WatchPath extends the change feed to a working tree path. Changes to it
// are reported in ChangeEvent.Paths.
func (r *Repository) WatchPath(relPath string) (Subscription, error) {
	return r.watch.watchPath(relPath)
}

// Close stops watching and releases the repository. Subscribers receive a
// final ChangeClosed event.
func (r *Repository) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	slog.Debug("repository closed", slog.String("path", r.path))
	return r.watch.close()
}

func (r *Repository) with(ctx context.Context, fn func(repo *gitlib.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	return fn(r.repo)
}

// ResolveRevision returns the full commit hash of rev, e.g. "HEAD~2",
// "v1.0" or an abbreviated hash.
func (r *Repository) ResolveRevision(ctx context.Context, rev string) (string, error) {
	var out string
	err := r.with(ctx, func(repo *gitlib.Repository) error {
		hash, err := r.resolve(repo, rev)
		if err != nil {
			return err
		}
		out = hash.String()
		return nil
	})
	return out, err
}

func (r *Repository) resolve(repo *gitlib.Repository, rev string) (plumbing.Hash, error) {
	if rev == "" || rev == "HEAD" {
		ref, err := repo.Head()
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return ref.Hash(), nil
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve %s: %w", rev, err)
	}
	return *hash, nil
}
