package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReconcileMetrics exposes counters/histograms for webhook and sweep flows.
type ReconcileMetrics struct {
	webhookTotal       *prometheus.CounterVec
	leadLookupAttempts prometheus.Histogram
	sweepInvitees      *prometheus.CounterVec
	sweepDuration      prometheus.Histogram
}

func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	m := &ReconcileMetrics{
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookingsync",
			Subsystem: "webhook",
			Name:      "inbound_total",
			Help:      "Total inbound booking webhooks",
		}, []string{"outcome"}),
		leadLookupAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bookingsync",
			Subsystem: "crm",
			Name:      "lead_lookup_attempts",
			Help:      "Query attempts needed to resolve a lead",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		sweepInvitees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookingsync",
			Subsystem: "sweep",
			Name:      "invitees_total",
			Help:      "Sweep invitee outcomes",
		}, []string{"outcome"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bookingsync",
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Duration of full sweep runs",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookTotal, m.leadLookupAttempts, m.sweepInvitees, m.sweepDuration)
	return m
}

func (m *ReconcileMetrics) ObserveWebhook(outcome string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(outcome).Inc()
}

func (m *ReconcileMetrics) ObserveLeadLookupAttempts(attempts int) {
	if m == nil {
		return
	}
	m.leadLookupAttempts.Observe(float64(attempts))
}

func (m *ReconcileMetrics) ObserveSweepInvitee(outcome string) {
	if m == nil {
		return
	}
	m.sweepInvitees.WithLabelValues(outcome).Inc()
}

func (m *ReconcileMetrics) ObserveSweepDuration(seconds float64) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(seconds)
}
