// Package render turns the nodes of a view into text, YAML or JSON, and
// renders highlighted diffs for the terminal.
package render

import (
	"context"

	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

// Node is the serializable form of a described node.
type Node struct {
	ID          string   `json:"id" yaml:"id"`
	Label       string   `json:"label" yaml:"label"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tooltip     string   `json:"tooltip,omitempty" yaml:"tooltip,omitempty"`
	Icon        string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	Kind        string   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Collapse    string   `json:"collapse" yaml:"collapse"`
	Command     *Command `json:"command,omitempty" yaml:"command,omitempty"`
	Children    []*Node  `json:"children,omitempty" yaml:"children,omitempty"`
}

type Command struct {
	Name  string   `json:"name" yaml:"name"`
	Title string   `json:"title,omitempty" yaml:"title,omitempty"`
	Args  []string `json:"args,omitempty" yaml:"args,omitempty"`
}

// Options controls how far a snapshot descends.
type Options struct {
	// Depth is the number of levels below the root list; 0 means no limit.
	Depth int
	// ExpandAll descends into collapsed nodes too. Otherwise only nodes
	// described as expanded are walked.
	ExpandAll bool
}

// Snapshot describes the visible part of the view driven by d.
func Snapshot(ctx context.Context, d *tree.Driver, opts Options) []*Node {
	return walk(ctx, d, nil, opts, 1)
}

func walk(ctx context.Context, d *tree.Driver, parent tree.Node, opts Options, level int) []*Node {
	children := d.Children(ctx, parent)
	out := make([]*Node, 0, len(children))
	for _, child := range children {
		if ctx.Err() != nil {
			break
		}
		item := d.Describe(ctx, child)
		n := fromItem(item)
		if descend(item.Collapse, opts, level) {
			n.Children = walk(ctx, d, child, opts, level+1)
		}
		out = append(out, n)
	}
	return out
}

func descend(c tree.CollapseState, opts Options, level int) bool {
	if opts.Depth > 0 && level >= opts.Depth {
		return false
	}
	switch c {
	case tree.Expanded:
		return true
	case tree.Collapsed:
		return opts.ExpandAll
	default:
		return false
	}
}

func fromItem(item tree.Item) *Node {
	n := &Node{
		ID:          item.ID,
		Label:       item.Label,
		Description: item.Description,
		Tooltip:     item.Tooltip,
		Icon:        item.Icon,
		Kind:        string(item.Kind),
		Collapse:    item.Collapse.String(),
	}
	if item.Command != nil {
		n.Command = &Command{Name: item.Command.Name, Title: item.Command.Title, Args: item.Command.Args}
	}
	return n
}

// Lookup finds the node with the given ID among the materialized nodes of
// the view, descending at most depth levels (0 means no limit). Children
// are loaded on the way if needed.
func Lookup(ctx context.Context, d *tree.Driver, id string, depth int) (tree.Node, bool) {
	if root := d.Root(); root != nil && root.ID() == id {
		return root, true
	}
	return lookup(ctx, d, nil, id, depth, 1)
}

func lookup(ctx context.Context, d *tree.Driver, parent tree.Node, id string, depth, level int) (tree.Node, bool) {
	children := d.Children(ctx, parent)
	for _, child := range children {
		if child.ID() == id {
			return child, true
		}
	}
	if depth > 0 && level >= depth {
		return nil, false
	}
	for _, child := range children {
		if ctx.Err() != nil {
			return nil, false
		}
		if d.Describe(ctx, child).Collapse == tree.CollapseNone {
			continue
		}
		if n, ok := lookup(ctx, d, child, id, depth, level+1); ok {
			return n, true
		}
	}
	return nil, false
}
