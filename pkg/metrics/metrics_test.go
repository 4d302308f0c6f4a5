package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCommerceMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCommerceMetrics(reg)
	m.IncOrderPlaced("success")
	m.IncOrderPlaced("success")
	m.IncOrderPlaced("")
	m.IncWebhook("replayed")
	m.IncStockRejection()
	m.ObserveReconcile("completed", 120*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "farmlink_orders_placed_total", "outcome", "success"); err != nil {
		t.Fatalf("fetch orders: %v", err)
	} else if got != 2 {
		t.Fatalf("expected orders=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "farmlink_orders_placed_total", "outcome", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected empty outcome to normalize to unknown, got %f %v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "farmlink_payment_webhooks_total", "outcome", "replayed"); err != nil || got != 1 {
		t.Fatalf("expected webhook replay counter, got %f %v", got, err)
	}
	if mf := findMetricFamily(mfs, "farmlink_stock_rejections_total"); mf == nil || mf.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected stock rejection counter")
	}
	if got, err := fetchHistogramSum(mfs, "farmlink_payment_reconcile_duration_seconds", "payment_status", "completed"); err != nil || got <= 0 {
		t.Fatalf("expected reconcile duration sum > 0, got %f %v", got, err)
	}
}

func TestOutboxMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncPublished("order_placed")
	m.IncFailed("order_placed")
	m.IncDeadLettered("max_attempts")
	m.ObserveBatch(10 * time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "farmlink_outbox_published_total", "event_type", "order_placed"); err != nil || got != 1 {
		t.Fatalf("expected published=1, got %f %v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "farmlink_outbox_dead_lettered_total", "reason", "max_attempts"); err != nil || got != 1 {
		t.Fatalf("expected dead lettered=1, got %f %v", got, err)
	}
}

func TestCronJobMetricsExportsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveRun("outbox-retention", 5*time.Millisecond, nil)
	m.ObserveRun("outbox-retention", 5*time.Millisecond, fmt.Errorf("boom"))
	m.AddPurged("outbox-retention", 12)
	m.AddPurged("outbox-retention", 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "farmlink_cron_job_runs_total", "outcome", "failure"); err != nil || got != 1 {
		t.Fatalf("expected one failed run, got %f %v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "farmlink_cron_rows_purged_total", "job", "outbox-retention"); err != nil || got != 12 {
		t.Fatalf("expected 12 purged rows, got %f %v", got, err)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var c *CommerceMetrics
	c.IncOrderPlaced("success")
	c.IncWebhook("applied")
	c.IncStockRejection()
	c.ObserveReconcile("completed", time.Second)

	var o *OutboxMetrics
	o.IncPublished("x")
	o.ObserveBatch(time.Second)

	var c2 *CronJobMetrics
	c2.ObserveRun("x", time.Second, nil)
	c2.AddPurged("x", 1)

	NewCommerceMetrics(nil).IncOrderPlaced("success")
	NewOutboxMetrics(nil).IncFailed("x")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
