package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type testRepo struct {
	t    *testing.T
	dir  string
	repo *gitlib.Repository
	wt   *gitlib.Worktree
	when time.Time
}

func createTestRepo(t *testing.T) *testRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := gitlib.PlainInitWithOptions(dir, &gitlib.PlainInitOptions{
		InitOptions: gitlib.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	if err != nil {
		t.Fatalf("init repository: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	return &testRepo{t: t, dir: dir, repo: repo, wt: wt, when: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (r *testRepo) signature() *object.Signature {
	r.when = r.when.Add(time.Minute)
	return &object.Signature{Name: "Alice", Email: "alice@example.com", When: r.when}
}

func (r *testRepo) write(path, content string) {
	r.t.Helper()
	full := filepath.Join(r.dir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		r.t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		r.t.Fatalf("write %s: %v", path, err)
	}
}

// commit writes files (an empty content removes the file) and commits them.
func (r *testRepo) commit(msg string, files map[string]string) string {
	r.t.Helper()
	for path, content := range files {
		if content == "" {
			if _, err := r.wt.Remove(path); err != nil {
				r.t.Fatalf("remove %s: %v", path, err)
			}
			continue
		}
		r.write(path, content)
		if _, err := r.wt.Add(path); err != nil {
			r.t.Fatalf("add %s: %v", path, err)
		}
	}
	hash, err := r.wt.Commit(msg, &gitlib.CommitOptions{Author: r.signature(), AllowEmptyCommits: true})
	if err != nil {
		r.t.Fatalf("commit: %v", err)
	}
	return hash.String()
}

func (r *testRepo) setRef(name plumbing.ReferenceName, hash string) {
	r.t.Helper()
	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(name, plumbing.NewHash(hash))); err != nil {
		r.t.Fatalf("set reference %s: %v", name, err)
	}
}

func (r *testRepo) checkout(branch string) {
	r.t.Helper()
	if err := r.wt.Checkout(&gitlib.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(branch)}); err != nil {
		r.t.Fatalf("checkout %s: %v", branch, err)
	}
}

func (r *testRepo) addRemote(name string) {
	r.t.Helper()
	if _, err := r.repo.CreateRemote(&config.RemoteConfig{Name: name, URLs: []string{"https://example.com/" + name + ".git"}}); err != nil {
		r.t.Fatalf("create remote: %v", err)
	}
}

func (r *testRepo) track(branch, remote, merge string) {
	r.t.Helper()
	cfg, err := r.repo.Config()
	if err != nil {
		r.t.Fatalf("config: %v", err)
	}
	cfg.Branches[branch] = &config.Branch{Name: branch, Remote: remote, Merge: plumbing.NewBranchReferenceName(merge)}
	if err := r.repo.SetConfig(cfg); err != nil {
		r.t.Fatalf("set config: %v", err)
	}
}

func (r *testRepo) open() *Repository {
	r.t.Helper()
	repo, err := Open(r.dir)
	if err != nil {
		r.t.Fatalf("Open: %v", err)
	}
	r.t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func commitHashes(log Log) []string {
	out := make([]string, 0, len(log.Commits))
	for _, c := range log.Commits {
		out = append(out, c.Hash)
	}
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
