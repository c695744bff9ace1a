package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	diff "github.com/go-git/go-git/v5/plumbing/format/diff"
	gitindex "github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	"github.com/pmezard/go-difflib/difflib"
)

// CommitFiles returns the files changed by a commit against its first
// parent, sorted by path.
func (r *Repository) CommitFiles(ctx context.Context, hash string) ([]CommitFile, error) {
	var files []CommitFile
	err := r.with(ctx, func(repo *gitlib.Repository) error {
		changes, err := commitChanges(repo, hash)
		if err != nil {
			return err
		}
		for _, ch := range changes {
			files = append(files, commitFile(ch))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(files, func(a, b CommitFile) int { return strings.Compare(a.Path, b.Path) })
	return files, nil
}

// CommitDiff renders the commit header followed by its patch. When relPath
// is set only that file is included.
func (r *Repository) CommitDiff(ctx context.Context, hash, relPath string) (string, []FileSection, error) {
	var (
		text     string
		sections []FileSection
	)
	err := r.with(ctx, func(repo *gitlib.Repository) error {
		commit, err := repo.CommitObject(plumbing.NewHash(hash))
		if err != nil {
			return fmt.Errorf("read commit %s: %w", hash, err)
		}
		header := FormatCommitHeader(newCommit(commit))
		changes, err := commitChanges(repo, hash)
		if err != nil {
			return err
		}
		if relPath != "" {
			changes = slices.DeleteFunc(changes, func(ch *object.Change) bool {
				return ch.From.Name != relPath && ch.To.Name != relPath
			})
		}
		if len(changes) == 0 {
			text = header + "\nNo file level changes."
			return nil
		}
		patch, err := changes.Patch()
		if err != nil {
			return fmt.Errorf("build patch: %w", err)
		}
		text, sections, err = renderPatch(header, patch)
		return err
	})
	return text, sections, err
}

func commitChanges(repo *gitlib.Repository, hash string) (object.Changes, error) {
	commit, err := repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", hash, err)
	}
	currentTree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	var parentTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, err
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return nil, err
		}
	}
	changes, err := object.DiffTree(parentTree, currentTree)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}
	return changes, nil
}

func commitFile(ch *object.Change) CommitFile {
	action, err := ch.Action()
	if err != nil {
		return CommitFile{Path: ch.To.Name, Status: Modified}
	}
	switch action {
	case merkletrie.Insert:
		return CommitFile{Path: ch.To.Name, Status: Added}
	case merkletrie.Delete:
		return CommitFile{Path: ch.From.Name, Status: Deleted}
	default:
		if ch.From.Name != ch.To.Name {
			return CommitFile{Path: ch.To.Name, OldPath: ch.From.Name, Status: Renamed}
		}
		return CommitFile{Path: ch.To.Name, Status: Modified}
	}
}

type localChange struct {
	path string
	from *object.File
	to   *object.File
}

// FileDiff renders the uncommitted changes of one file. With staged set it
// compares HEAD against the index, otherwise HEAD against the working tree.
func (r *Repository) FileDiff(ctx context.Context, relPath string, staged bool) (string, []FileSection, error) {
	return r.WorktreeDiff(ctx, staged, relPath)
}

// WorktreeDiff renders the uncommitted changes of paths, or of every changed
// file when none are given.
func (r *Repository) WorktreeDiff(ctx context.Context, staged bool, paths ...string) (string, []FileSection, error) {
	var (
		text     string
		sections []FileSection
	)
	err := r.with(ctx, func(repo *gitlib.Repository) error {
		wt, err := repo.Worktree()
		if err != nil {
			return err
		}
		status, err := wt.Status()
		if err != nil {
			return err
		}
		headTree, err := headTree(repo)
		if err != nil && !errors.Is(err, plumbing.ErrReferenceNotFound) {
			return err
		}
		var idx *gitindex.Index
		if staged {
			idx, err = repo.Storer.Index()
			if err != nil {
				return err
			}
		}
		var selected []string
		for path, st := range status {
			if len(paths) > 0 && !slices.Contains(paths, path) {
				continue
			}
			include := false
			if staged {
				include = st.Staging != gitlib.Unmodified && st.Staging != gitlib.Untracked
			} else {
				include = st.Worktree != gitlib.Unmodified
			}
			if include {
				selected = append(selected, path)
			}
		}
		slices.Sort(selected)
		var diffs []localChange
		for _, path := range selected {
			fromFile, err := fileFromTree(headTree, path)
			if err != nil {
				return err
			}
			var toFile *object.File
			if staged {
				toFile, err = fileFromIndex(idx, repo, path)
			} else {
				toFile, err = fileFromDisk(r.path, path)
			}
			if err != nil {
				return err
			}
			if fromFile == nil && toFile == nil {
				continue
			}
			diffs = append(diffs, localChange{path: path, from: fromFile, to: toFile})
		}
		if len(diffs) == 0 {
			return nil
		}
		text, sections, err = renderLocalDiff(localDiffHeader(staged)+"\n", diffs)
		return err
	})
	return text, sections, err
}

func headTree(repo *gitlib.Repository) (*object.Tree, error) {
	ref, err := repo.Head()
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, err
	}
	return commit.Tree()
}

func localDiffHeader(staged bool) string {
	if staged {
		return "Local changes checked into index but not committed"
	}
	return "Local uncommitted changes, not checked in to index"
}

func fileFromTree(tree *object.Tree, path string) (*object.File, error) {
	if tree == nil {
		return nil, nil
	}
	f, err := tree.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func fileFromIndex(idx *gitindex.Index, repo *gitlib.Repository, path string) (*object.File, error) {
	if idx == nil || repo == nil {
		return nil, nil
	}
	entry, err := idx.Entry(path)
	if errors.Is(err, gitindex.ErrEntryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	blob, err := object.GetBlob(repo.Storer, entry.Hash)
	if err != nil {
		return nil, err
	}
	return object.NewFile(entry.Name, entry.Mode, blob), nil
}

func fileFromDisk(root, path string) (*object.File, error) {
	if root == "" {
		return nil, fmt.Errorf("repository root not set")
	}
	file, err := os.Open(filepath.Join(root, filepath.FromSlash(path)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	mem := &plumbing.MemoryObject{}
	mem.SetType(plumbing.BlobObject)
	if _, err := mem.Write(data); err != nil {
		return nil, err
	}
	blob, err := object.DecodeBlob(mem)
	if err != nil {
		return nil, err
	}
	mode := filemode.Regular
	if info, err := file.Stat(); err == nil {
		if m, err := filemode.NewFromOSFileMode(info.Mode()); err == nil {
			mode = m
		}
	}
	return object.NewFile(path, mode, blob), nil
}

func renderLocalDiff(header string, diffs []localChange) (string, []FileSection, error) {
	var b strings.Builder
	lineNo := 0
	if header != "" {
		b.WriteString(header)
		lineNo = strings.Count(header, "\n")
	}
	var sections []FileSection
	for _, item := range diffs {
		fileHeader := fmt.Sprintf("diff --git a/%s b/%s\n", item.path, item.path)
		sections = append(sections, FileSection{Path: item.path, Line: lineNo + 1})
		b.WriteString(fileHeader)
		lineNo += strings.Count(fileHeader, "\n")

		isBinary, err := binaryChange(item)
		if err != nil {
			return "", nil, err
		}
		if isBinary {
			b.WriteString("(binary files differ)\n")
			lineNo++
			continue
		}
		fromLines, err := fileLines(item.from)
		if err != nil {
			return "", nil, err
		}
		toLines, err := fileLines(item.to)
		if err != nil {
			return "", nil, err
		}
		ud := difflib.UnifiedDiff{
			A:        fromLines,
			B:        toLines,
			FromFile: "a/" + item.path,
			ToFile:   "b/" + item.path,
			Context:  3,
		}
		diffText, err := difflib.GetUnifiedDiffString(ud)
		if err != nil {
			return "", nil, err
		}
		if diffText == "" {
			b.WriteString("(no textual changes)\n")
			lineNo++
			continue
		}
		b.WriteString(diffText)
		lineNo += strings.Count(diffText, "\n")
		if !strings.HasSuffix(diffText, "\n") {
			b.WriteString("\n")
			lineNo++
		}
	}
	return b.String(), sections, nil
}

func binaryChange(ch localChange) (bool, error) {
	for _, f := range []*object.File{ch.from, ch.to} {
		if f == nil {
			continue
		}
		bin, err := f.IsBinary()
		if err != nil {
			return false, err
		}
		if bin {
			return true, nil
		}
	}
	return false, nil
}

func fileLines(f *object.File) ([]string, error) {
	if f == nil {
		return []string{}, nil
	}
	content, err := f.Contents()
	if err != nil {
		return nil, err
	}
	return difflib.SplitLines(content), nil
}

func renderPatch(header string, patch diff.Patch) (string, []FileSection, error) {
	var b strings.Builder
	if !strings.HasSuffix(header, "\n") {
		header += "\n"
	}
	b.WriteString(header)
	lineOffset := strings.Count(header, "\n")

	var buf bytes.Buffer
	enc := diff.NewUnifiedEncoder(&buf, diff.DefaultContextLines)
	if err := enc.Encode(patch); err != nil {
		return "", nil, fmt.Errorf("encode patch: %w", err)
	}
	b.WriteString(buf.String())
	return b.String(), parseGitDiffSections(buf.String(), lineOffset), nil
}
