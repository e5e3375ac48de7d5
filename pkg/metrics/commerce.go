package metrics

import "github.com/prometheus/client_golang/prometheus"

// CommerceMetrics counts checkout, webhook and fulfillment outcomes.
type CommerceMetrics struct {
	checkouts   *prometheus.CounterVec
	webhooks    *prometheus.CounterVec
	fulfillment *prometheus.CounterVec
}

// NewCommerceMetrics registers the shop counters on reg. A nil registerer
// yields a no-op recorder.
func NewCommerceMetrics(reg prometheus.Registerer) *CommerceMetrics {
	if reg == nil {
		return &CommerceMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkouts_total",
		Help:      "Checkout attempts by result.",
	}, []string{"result"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Payment provider webhook events by event name and result.",
	}, []string{"event", "result"})
	fulfillment := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fulfillment_dispatch_total",
		Help:      "Orders handed to the game server by result.",
	}, []string{"result"})
	reg.MustRegister(checkouts, webhooks, fulfillment)
	return &CommerceMetrics{checkouts: checkouts, webhooks: webhooks, fulfillment: fulfillment}
}

func (m *CommerceMetrics) IncCheckout(result string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *CommerceMetrics) IncWebhook(event, result string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(event), normalizeLabel(result)).Inc()
}

func (m *CommerceMetrics) IncFulfillment(result string) {
	if m == nil || m.fulfillment == nil {
		return
	}
	m.fulfillment.WithLabelValues(normalizeLabel(result)).Inc()
}
