package tree

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts refresh, reconciliation and subscription activity of one
// driver. A nil *Metrics records nothing.
type Metrics struct {
	refreshes       *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	reconciled      *prometheus.CounterVec
	notifications   prometheus.Counter
	subscriptions   prometheus.Gauge
}

// NewMetrics registers the collectors of view on reg.
func NewMetrics(reg prometheus.Registerer, view string) (*Metrics, error) {
	labels := prometheus.Labels{"view": view}
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "gitk",
			Subsystem:   "tree",
			Name:        "refreshes_total",
			Help:        "Refresh requests handled by the tree driver.",
			ConstLabels: labels,
		}, []string{"reason"}),
		refreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "gitk",
			Subsystem:   "tree",
			Name:        "refresh_duration_seconds",
			Help:        "Time spent refreshing a node before notifying the host.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"scope"}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "gitk",
			Subsystem:   "tree",
			Name:        "reconciled_nodes_total",
			Help:        "Child nodes handled by reconciliation, by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "gitk",
			Subsystem:   "tree",
			Name:        "change_notifications_total",
			Help:        "Subtree change notifications emitted to the host.",
			ConstLabels: labels,
		}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "gitk",
			Subsystem:   "tree",
			Name:        "active_subscriptions",
			Help:        "Live node subscriptions.",
			ConstLabels: labels,
		}),
	}
	for _, c := range []prometheus.Collector{m.refreshes, m.refreshDuration, m.reconciled, m.notifications, m.subscriptions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveRefresh(reason RefreshReason, scope string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(string(reason)).Inc()
	m.refreshDuration.WithLabelValues(scope).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveReconcile(stats ReconcileStats) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues("kept").Add(float64(stats.Kept))
	m.reconciled.WithLabelValues("created").Add(float64(stats.Created))
	m.reconciled.WithLabelValues("disposed").Add(float64(stats.Disposed))
}

func (m *Metrics) Notified() {
	if m == nil {
		return
	}
	m.notifications.Inc()
}

func (m *Metrics) SubscriptionOpened() {
	if m == nil {
		return
	}
	m.subscriptions.Inc()
}

func (m *Metrics) SubscriptionClosed() {
	if m == nil {
		return
	}
	m.subscriptions.Dec()
}
