package tree

import (
	"context"
	"strings"
)

// Kind tags a node variant. Packages building on tree declare their own
// kinds next to the core ones.
type Kind string

const (
	KindMessage Kind = "gitk:message"
	KindPager   Kind = "gitk:pager"
	KindFolder  Kind = "gitk:folder"
)

type CollapseState uint8

const (
	CollapseNone CollapseState = iota
	Collapsed
	Expanded
)

func (c CollapseState) String() string {
	switch c {
	case Collapsed:
		return "collapsed"
	case Expanded:
		return "expanded"
	default:
		return "none"
	}
}

// Locator points at the entity a node is about. The zero value is the
// unknown locator used by synthetic and placeholder nodes.
type Locator struct {
	RepoPath string
	Path     string // repository-relative, slash separated
	Ref      string
}

func (l Locator) IsUnknown() bool {
	return l == Locator{}
}

func (l Locator) String() string {
	if l.IsUnknown() {
		return "unknown"
	}
	var b strings.Builder
	b.WriteString(l.RepoPath)
	if l.Path != "" {
		b.WriteByte(':')
		b.WriteString(l.Path)
	}
	if l.Ref != "" {
		b.WriteByte('@')
		b.WriteString(l.Ref)
	}
	return b.String()
}

// Command is an action the host may invoke on behalf of a node.
type Command struct {
	Name   string
	Title  string
	Target Node
	Paging *PagingArgs
	Args   []string
}

const (
	// CommandRefreshNode asks the driver to refresh Command.Target.
	CommandRefreshNode = "refreshNode"
)

// Item is the display descriptor of a node.
type Item struct {
	ID          string
	Label       string
	Description string
	Tooltip     string
	Icon        string
	Kind        Kind
	Collapse    CollapseState
	Command     *Command
}

// Node is the unit of the tree.
//
// Describe must be a projection of the current state. The only side effect
// it may have is lazy subscription setup. Dispose may only be called by the
// owner of the node and must be idempotent.
type Node interface {
	ID() string
	Locator() Locator
	Children(ctx context.Context) ([]Node, error)
	Describe(ctx context.Context) (Item, error)
	Refresh(ctx context.Context) error
	Dispose()
}

// Pageable is implemented by nodes whose child query takes a page bound.
// PageSize is the bound used until the node is paged for the first time.
type Pageable interface {
	Node
	Paging() *Paging
	PageSize() int
}

// Subscribable is implemented by nodes holding a live change feed.
type Subscribable interface {
	Node
	Subscription() *Subscriber
}

// RefNode is implemented by nodes that stand for a git reference.
type RefNode interface {
	Node
	Ref() string
}

// Base carries the identity of a node and default no-op lifecycle methods.
type Base struct {
	id      string
	locator Locator
}

func NewBase(id string, locator Locator) Base {
	return Base{id: id, locator: locator}
}

func (b *Base) ID() string                    { return b.id }
func (b *Base) Locator() Locator              { return b.locator }
func (b *Base) Refresh(context.Context) error { return nil }
func (b *Base) Dispose()                      {}

// DisposeAll disposes every node in nodes.
func DisposeAll(nodes []Node) {
	for _, n := range nodes {
		if n != nil {
			n.Dispose()
		}
	}
}
