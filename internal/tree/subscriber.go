package tree

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/thiagokokada/gitk-explorer/internal/debounce"
)

// DefaultNotifyDelay collapses bursts of change signals into one refresh.
const DefaultNotifyDelay = 250 * time.Millisecond

// Host is the non-owning view of the tree driver handed to nodes. Nodes use
// it to request refreshes and to learn whether live subscriptions are wanted.
//
// Live reports whether the panel is visible with auto refresh enabled;
// OnDidChangeLiveness fires whenever that value flips.
type Host interface {
	Live() bool
	RefreshNode(ctx context.Context, node Node, args *PagingArgs) error
	OnDidChangeLiveness(fn func(live bool)) (cancel func())
	Metrics() *Metrics
}

// Subscription is a live registration against an external change feed.
type Subscription interface {
	Close() error
}

// SubscriptionFunc adapts a plain function to Subscription.
type SubscriptionFunc func() error

func (f SubscriptionFunc) Close() error { return f() }

// SubscribeFunc resolves the backing entity and registers for its changes.
// Returning a nil Subscription (with or without error) leaves the node
// unsubscribed until the next externally triggered refresh.
type SubscribeFunc func(ctx context.Context) (Subscription, error)

type SubscriptionState uint8

const (
	Unsubscribed SubscriptionState = iota
	Subscribing
	Subscribed
)

func (s SubscriptionState) String() string {
	switch s {
	case Subscribing:
		return "subscribing"
	case Subscribed:
		return "subscribed"
	default:
		return "unsubscribed"
	}
}

// Subscriber owns the single live subscription of a node.
type Subscriber struct {
	host      Host
	owner     Node
	subscribe SubscribeFunc
	delay     time.Duration

	mu        sync.Mutex
	state     SubscriptionState
	sub       Subscription
	epoch     uint64
	queued    bool
	displayed bool
	disposed  bool
	unlisten  func()
	notify    *debounce.Debouncer
	reason    string
}

func NewSubscriber(host Host, owner Node, subscribe SubscribeFunc) *Subscriber {
	return &Subscriber{host: host, owner: owner, subscribe: subscribe, delay: DefaultNotifyDelay}
}

// WithNotifyDelay overrides the debounce window of RequestRefresh.
func (s *Subscriber) WithNotifyDelay(delay time.Duration) *Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = delay
	return s
}

func (s *Subscriber) State() SubscriptionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Subscriber) allowed() bool {
	if s.host == nil {
		return true
	}
	return s.host.Live()
}

// Ensure subscribes when the node is displayed, the host is visible and no
// subscription is active or in flight.
func (s *Subscriber) Ensure(ctx context.Context) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.displayed = true
	if s.unlisten == nil && s.host != nil {
		s.unlisten = s.host.OnDidChangeLiveness(s.onLivenessChanged)
	}
	if !s.allowed() {
		s.mu.Unlock()
		s.Unsubscribe()
		return
	}
	if s.state != Unsubscribed {
		s.mu.Unlock()
		return
	}
	s.state = Subscribing
	epoch := s.epoch
	s.mu.Unlock()
	s.run(ctx, epoch)
}

// Settle re-runs Ensure for a node that has already been displayed.
// Composite nodes call it after reconciling their children.
func (s *Subscriber) Settle(ctx context.Context) {
	s.mu.Lock()
	displayed := s.displayed && !s.disposed
	s.mu.Unlock()
	if displayed {
		s.Ensure(ctx)
	}
}

func (s *Subscriber) run(ctx context.Context, epoch uint64) {
	for {
		sub, err := s.subscribe(ctx)
		s.mu.Lock()
		if epoch != s.epoch {
			s.mu.Unlock()
			closeSubscription(sub)
			return
		}
		if err != nil || sub == nil {
			s.state = Unsubscribed
			s.queued = false
			s.mu.Unlock()
			slog.Debug("subscription not established",
				slog.String("node", s.ownerID()),
				slog.Any("error", err),
			)
			return
		}
		if s.queued {
			s.queued = false
			s.mu.Unlock()
			closeSubscription(sub)
			continue
		}
		s.sub = sub
		s.state = Subscribed
		s.mu.Unlock()
		s.metrics().SubscriptionOpened()
		slog.Debug("subscribed", slog.String("node", s.ownerID()))
		return
	}
}

// Resubscribe tears down the active subscription before creating the next
// one. While a subscription is being established the request is queued.
func (s *Subscriber) Resubscribe(ctx context.Context) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	switch s.state {
	case Subscribing:
		s.queued = true
		s.mu.Unlock()
		return
	case Subscribed:
		old := s.sub
		s.sub = nil
		s.state = Unsubscribed
		s.epoch++
		s.mu.Unlock()
		s.release(old)
	default:
		s.mu.Unlock()
	}
	s.Ensure(ctx)
}

// Unsubscribe drops the active subscription, abandons one in flight and
// cancels pending refresh requests.
func (s *Subscriber) Unsubscribe() {
	s.mu.Lock()
	old := s.sub
	s.sub = nil
	s.state = Unsubscribed
	s.queued = false
	s.epoch++
	notify := s.notify
	s.notify = nil
	s.mu.Unlock()
	if notify != nil {
		notify.Stop()
	}
	s.release(old)
}

// Dispose unsubscribes and stops listening for liveness changes.
func (s *Subscriber) Dispose() {
	s.mu.Lock()
	s.disposed = true
	unlisten := s.unlisten
	s.unlisten = nil
	s.mu.Unlock()
	if unlisten != nil {
		unlisten()
	}
	s.Unsubscribe()
}

// RequestRefresh is called from subscription callbacks. Bursts are
// debounced into a single Host.RefreshNode of the owner.
func (s *Subscriber) RequestRefresh(reason string) {
	s.mu.Lock()
	if s.disposed || s.state != Subscribed || s.host == nil {
		s.mu.Unlock()
		return
	}
	s.reason = reason
	deb := debounce.Ensure(&s.notify, s.delay, func() {
		slog.Debug("subscription triggered refresh",
			slog.String("node", s.ownerID()),
			slog.String("reason", s.lastReason()),
		)
		if err := s.host.RefreshNode(context.Background(), s.owner, nil); err != nil {
			slog.Error("refresh node", slog.String("node", s.ownerID()), slog.Any("error", err))
		}
	})
	s.mu.Unlock()
	deb.Trigger()
}

func (s *Subscriber) lastReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

func (s *Subscriber) onLivenessChanged(live bool) {
	if !live {
		s.Unsubscribe()
		return
	}
	s.mu.Lock()
	eligible := s.displayed && !s.disposed
	s.mu.Unlock()
	if !eligible {
		return
	}
	s.Ensure(context.Background())
}

func (s *Subscriber) release(sub Subscription) {
	if sub == nil {
		return
	}
	closeSubscription(sub)
	s.metrics().SubscriptionClosed()
	slog.Debug("unsubscribed", slog.String("node", s.ownerID()))
}

func (s *Subscriber) metrics() *Metrics {
	if s.host == nil {
		return nil
	}
	return s.host.Metrics()
}

func (s *Subscriber) ownerID() string {
	if s.owner == nil {
		return ""
	}
	return s.owner.ID()
}

func closeSubscription(sub Subscription) {
	if sub == nil {
		return
	}
	if err := sub.Close(); err != nil {
		slog.Debug("subscription close", slog.Any("error", err))
	}
}
