package tree

import (
	"context"
	"fmt"
)

// PagerNode is the synthetic "more items available" leaf. Invoking its
// command refreshes the owning node with a larger page bound.
type PagerNode struct {
	Base
	label string
	owner Node
	args  PagingArgs
}

// NewShowMore builds a pager that grows the owner's bound by increment.
// An Unbounded increment makes it a "show all" pager.
func NewShowMore(owner Node, noun string, increment int) *PagerNode {
	label := fmt.Sprintf("Show More %s", noun)
	if increment == Unbounded {
		label = fmt.Sprintf("Show All %s - this may take a while", noun)
	}
	return &PagerNode{
		Base:  NewBase(PagerID(owner), Locator{}),
		label: label,
		owner: owner,
		args:  PagingArgs{MaxCount: increment},
	}
}

func NewShowAll(owner Node, noun string) *PagerNode {
	return NewShowMore(owner, noun, Unbounded)
}

func PagerID(owner Node) string {
	return owner.ID() + ":pager"
}

func (p *PagerNode) Owner() Node { return p.owner }

func (p *PagerNode) Args() PagingArgs { return p.args }

func (p *PagerNode) Children(context.Context) ([]Node, error) {
	return nil, nil
}

func (p *PagerNode) Describe(context.Context) (Item, error) {
	return Item{
		ID:       p.ID(),
		Label:    p.label,
		Icon:     "unfold",
		Kind:     KindPager,
		Collapse: CollapseNone,
		Command:  p.Command(),
	}, nil
}

func (p *PagerNode) Command() *Command {
	args := p.args
	return &Command{
		Name:   CommandRefreshNode,
		Title:  "Refresh",
		Target: p.owner,
		Paging: &args,
	}
}

// AppendPager appends exactly one pager when the backing query reported
// truncation. The item count never decides this.
func AppendPager(children []Node, truncated bool, pager func() *PagerNode) []Node {
	if !truncated || pager == nil {
		return children
	}
	return append(children, pager())
}
