package tree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// RefreshReason labels why a refresh was requested.
type RefreshReason string

const (
	ReasonCommand       RefreshReason = "command"
	ReasonNodeCommand   RefreshReason = "node-command"
	ReasonRepoChanged   RefreshReason = "repo-changed"
	ReasonConfiguration RefreshReason = "configuration"
	ReasonVisibility    RefreshReason = "visibility"
	ReasonAutoRefresh   RefreshReason = "auto-refresh-changed"
	ReasonActiveChanged RefreshReason = "active-changed"
)

type RevealOptions struct {
	Select bool
	Focus  bool
	Expand int
}

// Revealer is the toolkit hook used to scroll to and select a node.
type Revealer interface {
	Reveal(ctx context.Context, node Node, opts RevealOptions) error
}

type Option func(*Driver)

func WithMetrics(m *Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

func WithRevealer(r Revealer) Option {
	return func(d *Driver) { d.revealer = r }
}

// WithVisible sets the initial panel visibility. Drivers start hidden.
func WithVisible(visible bool) Option {
	return func(d *Driver) { d.visible = visible }
}

// WithAutoRefresh sets whether subscriptions may be established at all.
// It defaults to true.
func WithAutoRefresh(enabled bool) Option {
	return func(d *Driver) { d.autoRefresh = enabled }
}

// Driver owns the root of a view and brokers between the host and the node
// graph. It is safe for concurrent use.
type Driver struct {
	id          string
	rootFactory func(Host) Node
	metrics     *Metrics
	revealer    Revealer

	mu          sync.Mutex
	root        Node
	visible     bool
	autoRefresh bool
	disposed    bool

	listenerSeq int
	changed     map[int]func(Node)
	visibility  map[int]func(bool)
	liveness    map[int]func(bool)
	flights     singleflight.Group
}

var _ Host = (*Driver)(nil)

// New returns a driver whose root is built by rootFactory on first use.
func New(id string, rootFactory func(Host) Node, opts ...Option) *Driver {
	d := &Driver{
		id:          id,
		rootFactory: rootFactory,
		autoRefresh: true,
		changed:     make(map[int]func(Node)),
		visibility:  make(map[int]func(bool)),
		liveness:    make(map[int]func(bool)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) ID() string { return d.id }

// Root returns the root node, creating it on first call.
func (d *Driver) Root() Node {
	d.mu.Lock()
	root, disposed := d.root, d.disposed
	d.mu.Unlock()
	if root != nil || disposed || d.rootFactory == nil {
		return root
	}

	created := d.rootFactory(d)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.root == nil && !d.disposed {
		d.root = created
		return created
	}
	// lost the race
	created.Dispose()
	return d.root
}

// Children returns the children of node, or of the root when node is nil.
// A failing child query is rendered as a single message node.
func (d *Driver) Children(ctx context.Context, node Node) []Node {
	if node == nil {
		node = d.Root()
		if node == nil {
			return nil
		}
	}
	children, err := node.Children(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		slog.Error("load children", slog.String("node", node.ID()), slog.Any("error", err))
		return []Node{NewMessage(node.ID(), "Unable to load items").WithTooltip(err.Error())}
	}
	return children
}

// Describe returns the display descriptor of node. Errors degrade to a
// label-only item.
func (d *Driver) Describe(ctx context.Context, node Node) Item {
	item, err := node.Describe(ctx)
	if err != nil {
		slog.Debug("describe node", slog.String("node", node.ID()), slog.Any("error", err))
		return Item{ID: node.ID(), Label: node.Locator().String(), Tooltip: err.Error()}
	}
	return item
}

// Refresh refreshes the root and emits a global change notification.
func (d *Driver) Refresh(ctx context.Context, reason RefreshReason) error {
	d.mu.Lock()
	root := d.root
	d.mu.Unlock()

	start := time.Now()
	if root != nil {
		if err := d.refresh(ctx, root); err != nil {
			slog.Error("refresh root", slog.String("view", d.id), slog.String("reason", string(reason)), slog.Any("error", err))
		}
	}
	d.metrics.ObserveRefresh(reason, "root", time.Since(start))
	d.fire(nil)
	return ctx.Err()
}

// RefreshNode refreshes node and emits a change notification scoped to it,
// or a global one when node is the root. When args is set and node is
// pageable its bound grows first.
func (d *Driver) RefreshNode(ctx context.Context, node Node, args *PagingArgs) error {
	if node == nil {
		return d.Refresh(ctx, ReasonNodeCommand)
	}
	if p, ok := node.(Pageable); ok && args != nil {
		bound := p.Paging().Grow(p.PageSize(), args.MaxCount)
		slog.Debug("paging node", slog.String("node", node.ID()), slog.Int("max_count", bound))
	}

	d.mu.Lock()
	isRoot := node == d.root
	d.mu.Unlock()

	start := time.Now()
	if err := d.refresh(ctx, node); err != nil {
		slog.Error("refresh node", slog.String("node", node.ID()), slog.Any("error", err))
	}
	scope := "node"
	if isRoot {
		scope = "root"
	}
	d.metrics.ObserveRefresh(ReasonNodeCommand, scope, time.Since(start))
	if isRoot {
		d.fire(nil)
	} else {
		d.fire(node)
	}
	return ctx.Err()
}

// refresh coalesces concurrent refreshes of the same node at the same page
// bound.
func (d *Driver) refresh(ctx context.Context, node Node) error {
	key := node.ID()
	if p, ok := node.(Pageable); ok {
		key += "@" + strconv.Itoa(p.Paging().MaxCount(p.PageSize()))
	}
	_, err, _ := d.flights.Do(key, func() (any, error) {
		return nil, node.Refresh(ctx)
	})
	if errors.Is(err, ErrStaleGeneration) {
		return nil
	}
	return err
}

// Execute runs a node command. Only commands understood by the driver are
// handled; others are returned as errors for the host to dispatch.
func (d *Driver) Execute(ctx context.Context, cmd *Command) error {
	if cmd == nil {
		return nil
	}
	switch cmd.Name {
	case CommandRefreshNode:
		return d.RefreshNode(ctx, cmd.Target, cmd.Paging)
	default:
		return fmt.Errorf("unsupported command %q", cmd.Name)
	}
}

// OnDidChangeTreeData registers fn for change notifications. A nil node
// means the whole tree changed.
func (d *Driver) OnDidChangeTreeData(fn func(node Node)) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextListener()
	d.changed[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.changed, id)
	}
}

func (d *Driver) OnDidChangeVisibility(fn func(visible bool)) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextListener()
	d.visibility[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.visibility, id)
	}
}

func (d *Driver) OnDidChangeLiveness(fn func(live bool)) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextListener()
	d.liveness[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.liveness, id)
	}
}

func (d *Driver) nextListener() int {
	d.listenerSeq++
	return d.listenerSeq
}

func (d *Driver) Visible() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.visible
}

func (d *Driver) AutoRefresh() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.autoRefresh
}

func (d *Driver) Live() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.visible && d.autoRefresh
}

// SetVisible records a panel visibility change. Becoming visible refreshes
// the tree so changes missed while hidden show up.
func (d *Driver) SetVisible(ctx context.Context, visible bool) {
	d.mu.Lock()
	if d.visible == visible || d.disposed {
		d.mu.Unlock()
		return
	}
	wasLive := d.visible && d.autoRefresh
	d.visible = visible
	live := d.visible && d.autoRefresh
	listeners := collect(d.visibility)
	d.mu.Unlock()

	slog.Debug("view visibility changed", slog.String("view", d.id), slog.Bool("visible", visible))
	for _, fn := range listeners {
		fn(visible)
	}
	d.notifyLiveness(wasLive, live)
	if visible {
		_ = d.Refresh(ctx, ReasonVisibility)
	}
}

// SetAutoRefresh toggles live subscriptions for the whole view.
func (d *Driver) SetAutoRefresh(ctx context.Context, enabled bool) {
	d.mu.Lock()
	if d.autoRefresh == enabled || d.disposed {
		d.mu.Unlock()
		return
	}
	wasLive := d.visible && d.autoRefresh
	d.autoRefresh = enabled
	live := d.visible && d.autoRefresh
	d.mu.Unlock()

	slog.Debug("auto refresh changed", slog.String("view", d.id), slog.Bool("enabled", enabled))
	d.notifyLiveness(wasLive, live)
	if live {
		_ = d.Refresh(ctx, ReasonAutoRefresh)
	}
}

func (d *Driver) notifyLiveness(was, now bool) {
	if was == now {
		return
	}
	d.mu.Lock()
	listeners := collect(d.liveness)
	d.mu.Unlock()
	for _, fn := range listeners {
		fn(now)
	}
}

func (d *Driver) fire(node Node) {
	d.mu.Lock()
	listeners := make([]func(Node), 0, len(d.changed))
	for _, fn := range d.changed {
		listeners = append(listeners, fn)
	}
	d.mu.Unlock()
	d.metrics.Notified()
	for _, fn := range listeners {
		fn(node)
	}
}

func collect(m map[int]func(bool)) []func(bool) {
	out := make([]func(bool), 0, len(m))
	for _, fn := range m {
		out = append(out, fn)
	}
	return out
}

// Reveal asks the host to scroll to node. Failures are logged only.
func (d *Driver) Reveal(ctx context.Context, node Node, opts RevealOptions) {
	if d.revealer == nil || node == nil {
		return
	}
	if err := d.revealer.Reveal(ctx, node, opts); err != nil {
		slog.Error("reveal node",
			slog.String("node", node.ID()),
			slog.Any("error", fmt.Errorf("%w: %w", ErrRevealFailed, err)),
		)
	}
}

// Show focuses the view by revealing its first top-level node.
func (d *Driver) Show(ctx context.Context) {
	children := d.Children(ctx, nil)
	if len(children) == 0 {
		return
	}
	d.Reveal(ctx, children[0], RevealOptions{Focus: true})
}

func (d *Driver) Metrics() *Metrics { return d.metrics }

// Dispose tears down the node graph. The driver is unusable afterwards.
func (d *Driver) Dispose() {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return
	}
	d.disposed = true
	root := d.root
	d.root = nil
	clear(d.changed)
	clear(d.visibility)
	clear(d.liveness)
	d.mu.Unlock()
	if root != nil {
		root.Dispose()
	}
}
