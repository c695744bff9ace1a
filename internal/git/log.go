package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Log returns the commits selected by opts, newest first.
func (r *Repository) Log(ctx context.Context, opts LogOptions) (Log, error) {
	return r.log(ctx, opts, nil)
}

// LogForFile is Log restricted to commits touching relPath.
func (r *Repository) LogForFile(ctx context.Context, relPath string, opts LogOptions) (Log, error) {
	if relPath == "" {
		return Log{}, fmt.Errorf("file not specified")
	}
	return r.log(ctx, opts, &relPath)
}

func (r *Repository) log(ctx context.Context, opts LogOptions, fileName *string) (Log, error) {
	var res Log
	err := r.with(ctx, func(repo *gitlib.Repository) error {
		logOpts := &gitlib.LogOptions{Order: gitlib.LogOrderCommitterTime, FileName: fileName, All: opts.All}
		if !opts.All {
			from, err := r.resolve(repo, opts.Ref)
			if err != nil {
				if errors.Is(err, plumbing.ErrReferenceNotFound) {
					// unborn branch
					return nil
				}
				return err
			}
			logOpts.From = from
		}
		filter, err := r.logFilter(ctx, repo, opts)
		if err != nil {
			return err
		}
		iter, err := repo.Log(logOpts)
		if err != nil {
			return fmt.Errorf("read commits: %w", err)
		}
		cur := &logCursor{iter: iter, keep: filter}
		defer cur.close()

		for opts.MaxCount <= 0 || len(res.Commits) < opts.MaxCount {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := cur.next()
			if err != nil {
				if err == io.EOF {
					break
				}
				return fmt.Errorf("iterate commits: %w", err)
			}
			res.Commits = append(res.Commits, newCommit(c))
		}
		if opts.MaxCount > 0 {
			more, err := cur.hasMore()
			if err != nil {
				return err
			}
			res.Truncated = more
		}
		return nil
	})
	if err != nil {
		return Log{}, err
	}
	slog.Debug("log query",
		slog.String("repo", r.path),
		slog.String("ref", opts.Ref),
		slog.String("exclude", opts.Exclude),
		slog.Int("max_count", opts.MaxCount),
		slog.Int("returned", len(res.Commits)),
		slog.Bool("truncated", res.Truncated),
	)
	return res, nil
}

func (r *Repository) logFilter(ctx context.Context, repo *gitlib.Repository, opts LogOptions) (func(*object.Commit) bool, error) {
	var excluded map[plumbing.Hash]struct{}
	if opts.Exclude != "" {
		hash, err := r.resolve(repo, opts.Exclude)
		if err != nil {
			return nil, err
		}
		excluded, err = reachable(ctx, repo, hash)
		if err != nil {
			return nil, err
		}
	}
	search := strings.ToLower(strings.TrimSpace(opts.Search))
	if excluded == nil && search == "" {
		return nil, nil
	}
	return func(c *object.Commit) bool {
		if _, ok := excluded[c.Hash]; ok {
			return false
		}
		return search == "" || strings.Contains(searchText(c), search)
	}, nil
}

// reachable returns every commit reachable from hash.
func reachable(ctx context.Context, repo *gitlib.Repository, hash plumbing.Hash) (map[plumbing.Hash]struct{}, error) {
	iter, err := repo.Log(&gitlib.LogOptions{From: hash})
	if err != nil {
		return nil, fmt.Errorf("read commits: %w", err)
	}
	defer iter.Close()
	seen := make(map[plumbing.Hash]struct{})
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen[c.Hash] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seen, nil
}

// countExclusive counts commits reachable from a but not from b.
func countExclusive(ctx context.Context, repo *gitlib.Repository, a, b plumbing.Hash) (int, error) {
	if a == b {
		return 0, nil
	}
	excluded, err := reachable(ctx, repo, b)
	if err != nil {
		return 0, err
	}
	iter, err := repo.Log(&gitlib.LogOptions{From: a})
	if err != nil {
		return 0, fmt.Errorf("read commits: %w", err)
	}
	defer iter.Close()
	n := 0
	err = iter.ForEach(func(c *object.Commit) error {
		if _, ok := excluded[c.Hash]; !ok {
			n++
		}
		return nil
	})
	return n, err
}

// logCursor walks a commit iterator with a one-commit read-ahead, so a
// bounded query can tell whether more commits remain without guessing from
// the page size.
type logCursor struct {
	iter object.CommitIter
	keep func(*object.Commit) bool

	// buffered holds the commit read by hasMore so next returns it first.
	buffered  *object.Commit
	exhausted bool
}

func (c *logCursor) close() {
	if c.iter != nil {
		c.iter.Close()
	}
	c.iter = nil
	c.buffered = nil
	c.exhausted = true
}

func (c *logCursor) hasMore() (bool, error) {
	if c.exhausted {
		return false, nil
	}
	if c.buffered != nil {
		return true, nil
	}
	commit, err := c.read()
	if err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("iterate commits: %w", err)
	}
	c.buffered = commit
	return true, nil
}

func (c *logCursor) next() (*object.Commit, error) {
	if c.buffered != nil {
		commit := c.buffered
		c.buffered = nil
		return commit, nil
	}
	return c.read()
}

func (c *logCursor) read() (*object.Commit, error) {
	if c.exhausted {
		return nil, io.EOF
	}
	for {
		commit, err := c.iter.Next()
		if err != nil {
			if err == io.EOF {
				c.exhausted = true
			}
			return nil, err
		}
		if c.keep == nil || c.keep(commit) {
			return commit, nil
		}
	}
}

func newCommit(c *object.Commit) *Commit {
	parents := make([]string, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}
	return &Commit{
		Hash:         c.Hash.String(),
		ParentHashes: parents,
		Author:       Signature{Name: c.Author.Name, Email: c.Author.Email, When: c.Author.When},
		Committer:    Signature{Name: c.Committer.Name, Email: c.Committer.Email, When: c.Committer.When},
		Message:      c.Message,
	}
}

func searchText(c *object.Commit) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(c.Hash.String()))
	b.WriteByte(' ')
	b.WriteString(strings.ToLower(c.Author.Name))
	b.WriteByte(' ')
	b.WriteString(strings.ToLower(c.Author.Email))
	b.WriteByte(' ')
	b.WriteString(strings.ToLower(c.Message))
	return b.String()
}

// FormatCommitHeader renders a commit the way `git show` prints its header.
func FormatCommitHeader(c *Commit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "commit %s\n", c.Hash)
	appendSignatureLine(&b, "Author", c.Author)
	committer := c.Committer
	if committer.Name == "" && committer.Email == "" && committer.When.IsZero() {
		committer = c.Author
	}
	appendSignatureLine(&b, "Committer", committer)
	b.WriteString("\n")
	message := strings.TrimRight(c.Message, "\n")
	if message == "" {
		b.WriteString("    (no commit message)\n")
		return b.String()
	}
	for line := range strings.SplitSeq(message, "\n") {
		if line == "" {
			b.WriteString("\n")
			continue
		}
		fmt.Fprintf(&b, "    %s\n", line)
	}
	return b.String()
}

func appendSignatureLine(b *strings.Builder, label string, sig Signature) {
	fmt.Fprintf(b, "%s: %s <%s>", label, sig.Name, sig.Email)
	if !sig.When.IsZero() {
		fmt.Fprintf(b, "  %s", sig.When.Format("2006-01-02 15:04:05 -0700"))
	}
	b.WriteByte('\n')
}
