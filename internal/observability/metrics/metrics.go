package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics exposes counters/histograms for the call-lifecycle webhooks.
type WebhookMetrics struct {
	inboundTotal   *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
	callsTotal     *prometheus.CounterVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "webhooks",
			Name:      "inbound_total",
			Help:      "Total inbound OpenMic webhooks",
		}, []string{"phase", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "webhooks",
			Name:      "latency_seconds",
			Help:      "Latency of webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "calls",
			Name:      "terminal_total",
			Help:      "Calls reaching a terminal status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.webhookLatency, m.callsTotal)
	return m
}

func (m *WebhookMetrics) ObserveInbound(phase, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(phase, status).Inc()
}

func (m *WebhookMetrics) ObserveLatency(phase string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(phase).Observe(seconds)
}

func (m *WebhookMetrics) ObserveCallTerminal(status string) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(status).Inc()
}
