package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CommerceMetrics tracks the order and payment workflow.
// A nil receiver or one built without a registerer records nothing.
type CommerceMetrics struct {
	ordersPlaced     *prometheus.CounterVec
	stockRejections  prometheus.Counter
	webhookOutcomes  *prometheus.CounterVec
	reconcileLatency *prometheus.HistogramVec
}

// NewCommerceMetrics registers the workflow metrics on the provided registerer.
func NewCommerceMetrics(reg prometheus.Registerer) *CommerceMetrics {
	if reg == nil {
		return &CommerceMetrics{}
	}
	ordersPlaced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farmlink",
		Name:      "orders_placed_total",
		Help:      "Order placement attempts by outcome.",
	}, []string{"outcome"})
	stockRejections := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "farmlink",
		Name:      "stock_rejections_total",
		Help:      "Stock adjustments rejected because stock would go negative.",
	})
	webhookOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farmlink",
		Name:      "payment_webhooks_total",
		Help:      "Payment provider notifications by outcome.",
	}, []string{"outcome"})
	reconcileLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "farmlink",
		Name:      "payment_reconcile_duration_seconds",
		Help:      "Time spent reconciling a payment notification.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"payment_status"})
	reg.MustRegister(ordersPlaced, stockRejections, webhookOutcomes, reconcileLatency)
	return &CommerceMetrics{
		ordersPlaced:     ordersPlaced,
		stockRejections:  stockRejections,
		webhookOutcomes:  webhookOutcomes,
		reconcileLatency: reconcileLatency,
	}
}

// IncOrderPlaced counts an order placement attempt.
func (m *CommerceMetrics) IncOrderPlaced(outcome string) {
	if m == nil || m.ordersPlaced == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncStockRejection counts an adjustment refused for insufficient stock.
func (m *CommerceMetrics) IncStockRejection() {
	if m == nil || m.stockRejections == nil {
		return
	}
	m.stockRejections.Inc()
}

// IncWebhook counts a webhook delivery by outcome (applied, replayed, ignored, rejected, failed).
func (m *CommerceMetrics) IncWebhook(outcome string) {
	if m == nil || m.webhookOutcomes == nil {
		return
	}
	m.webhookOutcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveReconcile records how long a reconciliation took.
func (m *CommerceMetrics) ObserveReconcile(paymentStatus string, duration time.Duration) {
	if m == nil || m.reconcileLatency == nil {
		return
	}
	m.reconcileLatency.WithLabelValues(normalizeLabel(paymentStatus)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
