package git

import (
	"path"
	"slices"
	"strings"
	"time"
)

type Signature struct {
	Name  string
	Email string
	When  time.Time
}

type Commit struct {
	Hash         string
	ParentHashes []string
	Author       Signature
	Committer    Signature
	Message      string
}

func (c *Commit) ShortHash() string {
	if len(c.Hash) > 7 {
		return c.Hash[:7]
	}
	return c.Hash
}

// Summary returns the first line of the commit message.
func (c *Commit) Summary() string {
	first, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
	return first
}

type Branch struct {
	Name    string // short name: main, origin/main
	Hash    string
	Current bool
	Remote  bool
	// Upstream is the short name of the tracked remote branch, if any.
	Upstream        string
	UpstreamMissing bool
	Ahead           int
	Behind          int
}

// RemoteName returns the remote part of a remote branch name.
func (b Branch) RemoteName() string {
	if !b.Remote {
		return ""
	}
	remote, _, _ := strings.Cut(b.Name, "/")
	return remote
}

type Tag struct {
	Name       string
	Hash       string // peeled commit hash
	Annotated  bool
	Annotation string
}

type Remote struct {
	Name string
	URLs []string
}

// StatusCode mirrors the porcelain status letters.
type StatusCode byte

const (
	Unmodified         StatusCode = ' '
	Untracked          StatusCode = '?'
	Modified           StatusCode = 'M'
	Added              StatusCode = 'A'
	Deleted            StatusCode = 'D'
	Renamed            StatusCode = 'R'
	Copied             StatusCode = 'C'
	UpdatedButUnmerged StatusCode = 'U'
)

func (c StatusCode) String() string {
	switch c {
	case Untracked:
		return "untracked"
	case Modified:
		return "modified"
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	case Copied:
		return "copied"
	case UpdatedButUnmerged:
		return "conflict"
	default:
		return "unmodified"
	}
}

type StatusFile struct {
	Path     string // repository-relative, slash separated
	OldPath  string
	Staging  StatusCode
	Worktree StatusCode
}

func (f StatusFile) Staged() bool {
	return f.Staging != Unmodified && f.Staging != Untracked
}

// Code returns the most relevant status letter of the file.
func (f StatusFile) Code() StatusCode {
	if f.Worktree == Untracked {
		return Untracked
	}
	if f.Worktree != Unmodified {
		return f.Worktree
	}
	return f.Staging
}

type Status struct {
	Branch   string
	Detached bool
	Upstream string
	Ahead    int
	Behind   int
	Files    []StatusFile
}

func (s Status) HasChanges() bool { return len(s.Files) > 0 }

// CommitFile is a file touched by a commit, relative to its first parent.
type CommitFile struct {
	Path    string
	OldPath string
	Status  StatusCode
}

type LogOptions struct {
	// Ref is a revision resolved against the repository. Empty means HEAD.
	Ref string
	// Exclude drops commits reachable from this revision (Ref ^Exclude).
	Exclude string
	// All walks every reference instead of Ref.
	All bool
	// MaxCount bounds the result; 0 means unbounded.
	MaxCount int
	// Search keeps commits whose hash, author or message contains the text,
	// compared case-insensitively.
	Search string
}

// Log is a bounded commit query result. Truncated reports that more
// commits matched than were returned.
type Log struct {
	Commits   []*Commit
	Truncated bool
}

type FileSection struct {
	Path string
	Line int
}

// Change is a category of repository mutation.
type Change uint8

const (
	ChangeRepository Change = iota
	ChangeConfig
	ChangeIndex
	ChangeHeads
	ChangeTags
	ChangeRemotes
	ChangeClosed
)

func (c Change) String() string {
	switch c {
	case ChangeConfig:
		return "config"
	case ChangeIndex:
		return "index"
	case ChangeHeads:
		return "heads"
	case ChangeTags:
		return "tags"
	case ChangeRemotes:
		return "remotes"
	case ChangeClosed:
		return "closed"
	default:
		return "repository"
	}
}

// ChangeEvent is a batch of changes observed on one repository. Paths lists
// repository-relative files changed in the working tree.
type ChangeEvent struct {
	RepoPath string
	Changes  []Change
	Paths    []string
}

func (e ChangeEvent) Changed(c Change) bool {
	return slices.Contains(e.Changes, c)
}

// ChangedPath reports whether p, or a file below it, changed.
func (e ChangeEvent) ChangedPath(p string) bool {
	p = path.Clean(p)
	for _, changed := range e.Paths {
		if changed == p || strings.HasPrefix(changed, p+"/") {
			return true
		}
	}
	return false
}

func (e ChangeEvent) IsEmpty() bool {
	return len(e.Changes) == 0 && len(e.Paths) == 0
}

// Subscription is an active registration on a change feed.
type Subscription interface {
	Close() error
}

type subscriptionFunc func() error

func (f subscriptionFunc) Close() error { return f() }
