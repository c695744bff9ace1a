package explorer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/thiagokokada/gitk-explorer/internal/config"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

type fetchFunc[T any] func(ctx context.Context) ([]T, bool, error)

// unpaged adapts a query without truncation.
func unpaged[T any](fetch func(ctx context.Context) ([]T, error)) fetchFunc[T] {
	return func(ctx context.Context) ([]T, bool, error) {
		items, err := fetch(ctx)
		return items, false, err
	}
}

// keyed holds the children of a node built from one keyed query.
type keyed[T any] struct {
	cache tree.ChildCache
}

func (k *keyed[T]) load(ctx context.Context, e env, r tree.Reconciler[T], fetch fetchFunc[T]) ([]tree.Node, error) {
	return k.cache.Load(ctx, func(ctx context.Context) ([]tree.Node, error) {
		items, truncated, err := fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", tree.ErrDataUnavailable, err)
		}
		nodes, stats := r.ApplyPage(ctx, nil, items, truncated)
		e.metrics().ObserveReconcile(stats)
		return nodes, nil
	})
}

// refresh reconciles the memoized children. A failing query drops them, so
// the next load reports the failure instead of showing stale nodes.
func (k *keyed[T]) refresh(ctx context.Context, e env, r tree.Reconciler[T], fetch fetchFunc[T]) error {
	stats, err := tree.ReconcilePage(ctx, &k.cache, r, fetch)
	if err != nil {
		if errors.Is(err, tree.ErrStaleGeneration) {
			return err
		}
		tree.DisposeAll(k.cache.Invalidate())
		return fmt.Errorf("%w: %w", tree.ErrDataUnavailable, err)
	}
	e.metrics().ObserveReconcile(stats)
	return nil
}

func (k *keyed[T]) dispose() {
	tree.DisposeAll(k.cache.Invalidate())
}

func refreshKept(ctx context.Context, n tree.Node) {
	if err := n.Refresh(ctx); err != nil && !errors.Is(err, tree.ErrStaleGeneration) {
		slog.Debug("refresh kept node", slog.String("node", n.ID()), slog.Any("error", err))
	}
}

// leaf is an item placed in a folder hierarchy: a branch, tag or file.
type leaf struct {
	key  string
	path string // slash separated
	// marked leaves expand the folders holding them
	marked bool
	build  func(nested bool) tree.Node
	update func(ctx context.Context, n tree.Node, nested bool)
}

// entry is one child of a section or folder: a folder over a subtree or a
// leaf. Nested leaves are shown inside folders and labelled by basename.
type entry struct {
	folder *tree.Hierarchy[leaf]
	leaf   leaf
	nested bool
}

func splitLeaf(l leaf) []string { return strings.Split(l.path, "/") }

func sortLeaves(leaves []leaf) {
	slices.SortStableFunc(leaves, func(a, b leaf) int { return cmp.Compare(a.path, b.path) })
}

func flat(leaves []leaf) []entry {
	out := make([]entry, 0, len(leaves))
	for _, l := range leaves {
		out = append(out, entry{leaf: l})
	}
	return out
}

// level lists the direct entries of h. A leaf whose path is also a folder
// yields both.
func level(h *tree.Hierarchy[leaf]) []entry {
	var out []entry
	for _, c := range h.Children() {
		if c.HasValue {
			out = append(out, entry{leaf: c.Value, nested: true})
		}
		if !c.IsLeaf() {
			out = append(out, entry{folder: c})
		}
	}
	return out
}

func grouped(leaves []leaf, compact bool) []entry {
	return level(tree.MakeHierarchical(leaves, splitLeaf, path.Join, compact))
}

// layoutRefs arranges branches and tags according to the branches layout.
func layoutRefs(cfg config.Config, leaves []leaf) []entry {
	sortLeaves(leaves)
	if cfg.BranchesLayout == config.BranchesList {
		return flat(leaves)
	}
	return grouped(leaves, cfg.Compact)
}

// layoutFiles arranges files according to the files layout.
func layoutFiles(cfg config.Config, leaves []leaf) []entry {
	sortLeaves(leaves)
	if !cfg.FilesAsTree(len(leaves)) {
		return flat(leaves)
	}
	return grouped(leaves, cfg.Compact)
}

type folderStyle struct {
	repoPath string
	// expanded folders start open; otherwise only folders holding a marked
	// leaf do
	expanded bool
}

func entryReconciler(e env, sectionID string, style folderStyle, empty func() tree.Node) tree.Reconciler[entry] {
	return tree.Reconciler[entry]{
		Key: func(en entry) string {
			if en.folder != nil {
				return folderID(sectionID, en.folder.RelativePath)
			}
			return en.leaf.key
		},
		Build: func(en entry) tree.Node {
			if en.folder != nil {
				return newFolderNode(e, sectionID, en.folder, style)
			}
			return en.leaf.build(en.nested)
		},
		Update: func(ctx context.Context, n tree.Node, en entry) {
			switch {
			case en.folder != nil:
				if f, ok := n.(*FolderNode); ok {
					f.setRoot(en.folder)
				}
				refreshKept(ctx, n)
			case en.leaf.update != nil:
				en.leaf.update(ctx, n, en.nested)
			default:
				refreshKept(ctx, n)
			}
		},
		Empty: empty,
	}
}

// FolderNode groups branches, tags or files sharing a path prefix.
type FolderNode struct {
	tree.Base
	env       env
	sectionID string
	style     folderStyle

	mu   sync.Mutex
	root *tree.Hierarchy[leaf]
	kids keyed[entry]
}

func newFolderNode(e env, sectionID string, h *tree.Hierarchy[leaf], style folderStyle) *FolderNode {
	return &FolderNode{
		Base:      tree.NewBase(folderID(sectionID, h.RelativePath), tree.Locator{RepoPath: style.repoPath, Path: h.RelativePath}),
		env:       e,
		sectionID: sectionID,
		style:     style,
		root:      h,
	}
}

func (f *FolderNode) hierarchy() *tree.Hierarchy[leaf] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.root
}

func (f *FolderNode) setRoot(h *tree.Hierarchy[leaf]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.root = h
}

func (f *FolderNode) reconciler() tree.Reconciler[entry] {
	return entryReconciler(f.env, f.sectionID, f.style, nil)
}

func (f *FolderNode) fetch(context.Context) ([]entry, bool, error) {
	return level(f.hierarchy()), false, nil
}

func (f *FolderNode) Children(ctx context.Context) ([]tree.Node, error) {
	return f.kids.load(ctx, f.env, f.reconciler(), f.fetch)
}

func (f *FolderNode) Describe(context.Context) (tree.Item, error) {
	h := f.hierarchy()
	collapse := tree.Collapsed
	if f.style.expanded || slices.ContainsFunc(h.Descendants(), func(l leaf) bool { return l.marked }) {
		collapse = tree.Expanded
	}
	return tree.Item{
		ID:       f.ID(),
		Label:    h.Name,
		Tooltip:  h.RelativePath,
		Icon:     "folder",
		Kind:     tree.KindFolder,
		Collapse: collapse,
	}, nil
}

func (f *FolderNode) Refresh(ctx context.Context) error {
	return f.kids.refresh(ctx, f.env, f.reconciler(), f.fetch)
}

func (f *FolderNode) Dispose() {
	f.kids.dispose()
}
