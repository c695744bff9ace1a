// Package explorer builds the git views (repositories, branches, tags,
// status, file history and search results) on top of the tree engine.
package explorer

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/thiagokokada/gitk-explorer/internal/config"
	"github.com/thiagokokada/gitk-explorer/internal/git"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

const (
	KindRepositories     tree.Kind = "gitk:repositories"
	KindRepository       tree.Kind = "gitk:repository"
	KindActiveRepository tree.Kind = "gitk:repository:active"
	KindBranches         tree.Kind = "gitk:branches"
	KindBranch           tree.Kind = "gitk:branch"
	KindRemotes          tree.Kind = "gitk:remotes"
	KindRemote           tree.Kind = "gitk:remote"
	KindTags             tree.Kind = "gitk:tags"
	KindTag              tree.Kind = "gitk:tag"
	KindCommit           tree.Kind = "gitk:commit"
	KindCommitFile       tree.Kind = "gitk:commit-file"
	KindStatusFiles      tree.Kind = "gitk:status:files"
	KindStatusFile       tree.Kind = "gitk:status:file"
	KindStatusUpstream   tree.Kind = "gitk:status:upstream"
	KindFileHistory      tree.Kind = "gitk:file-history"
	KindResults          tree.Kind = "gitk:results"
)

// Repository is the data provider view of one repository.
type Repository interface {
	Path() string
	Name() string
	GitDir() string
	Status(ctx context.Context) (git.Status, error)
	Branches(ctx context.Context) ([]git.Branch, error)
	RemoteBranches(ctx context.Context, remote string) ([]git.Branch, error)
	Remotes(ctx context.Context) ([]git.Remote, error)
	Tags(ctx context.Context) ([]git.Tag, error)
	Log(ctx context.Context, opts git.LogOptions) (git.Log, error)
	LogForFile(ctx context.Context, relPath string, opts git.LogOptions) (git.Log, error)
	CommitFiles(ctx context.Context, hash string) ([]git.CommitFile, error)
	Subscribe(fn func(git.ChangeEvent)) (git.Subscription, error)
	WatchPath(relPath string) (git.Subscription, error)
}

var _ Repository = (*git.Repository)(nil)

// Registry lists the open repositories.
type Registry interface {
	Repositories() []Repository
	// Resolve returns the repository containing path.
	Resolve(path string) (Repository, bool)
	OnDidChangeRepositories(fn func()) git.Subscription
}

// FromRegistry adapts a git.Registry.
func FromRegistry(reg *git.Registry) Registry {
	return registry{reg: reg}
}

type registry struct {
	reg *git.Registry
}

func (r registry) Repositories() []Repository {
	repos := r.reg.Repositories()
	out := make([]Repository, 0, len(repos))
	for _, repo := range repos {
		out = append(out, repo)
	}
	return out
}

func (r registry) Resolve(path string) (Repository, bool) {
	repo, ok := r.reg.Resolve(path)
	if !ok {
		return nil, false
	}
	return repo, true
}

func (r registry) OnDidChangeRepositories(fn func()) git.Subscription {
	return r.reg.OnDidChangeRepositories(fn)
}

// Settings hands configuration to the nodes of a view. Per-repository
// overrides from the git config are read once and kept until Forget or Set.
type Settings struct {
	mu    sync.RWMutex
	base  config.Config
	repos map[string]config.Config
}

func NewSettings(cfg config.Config) *Settings {
	return &Settings{base: cfg, repos: make(map[string]config.Config)}
}

func (s *Settings) Get() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base
}

// Set replaces the configuration. Callers refresh the view afterwards.
func (s *Settings) Set(cfg config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = cfg
	clear(s.repos)
}

// ForRepository returns the configuration with the overrides of the
// repository whose metadata lives in gitDir.
func (s *Settings) ForRepository(gitDir string) config.Config {
	if gitDir == "" {
		return s.Get()
	}
	s.mu.RLock()
	cfg, ok := s.repos[gitDir]
	base := s.base
	s.mu.RUnlock()
	if ok {
		return cfg
	}
	cfg, err := config.ForRepository(base, gitDir)
	if err != nil {
		slog.Error("repository config", slog.String("git_dir", gitDir), slog.Any("error", err))
		cfg = base
	}
	s.mu.Lock()
	s.repos[gitDir] = cfg
	s.mu.Unlock()
	return cfg
}

func (s *Settings) Forget(gitDir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.repos, gitDir)
}

// env is what every node of a view shares.
type env struct {
	host     tree.Host
	settings *Settings
}

func (e env) config(repo Repository) config.Config {
	if e.settings == nil {
		return config.Default()
	}
	if repo == nil {
		return e.settings.Get()
	}
	return e.settings.ForRepository(repo.GitDir())
}

func (e env) metrics() *tree.Metrics {
	if e.host == nil {
		return nil
	}
	return e.host.Metrics()
}

func (e env) subscriber(owner tree.Node, repo Repository, subscribe tree.SubscribeFunc) *tree.Subscriber {
	return tree.NewSubscriber(e.host, owner, subscribe).WithNotifyDelay(e.config(repo).DebounceDelay)
}

func repositoryID(repoPath string, active bool) string {
	id := "gitk:repository(" + repoPath + ")"
	if active {
		id += ":active"
	}
	return id
}

func branchID(repoID, name string) string   { return repoID + ":branch(" + name + ")" }
func tagID(repoID, name string) string      { return repoID + ":tag(" + name + ")" }
func remoteID(repoID, name string) string   { return repoID + ":remote(" + name + ")" }
func commitID(ownerID, hash string) string  { return ownerID + ":commit(" + hash + ")" }
func fileID(ownerID, p string) string       { return ownerID + ":file(" + p + ")" }
func folderID(sectionID, rel string) string { return sectionID + ":folder(" + rel + ")" }

func baseName(p string) string {
	return path.Base(p)
}

func dirName(p string) string {
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}

// refName is the last segment of a branch or tag name.
func refName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}
