package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReconciliationMetrics tracks webhook, ledger, transfer and payout outcomes.
// A nil receiver is a no-op so services can run without metrics in tests.
type ReconciliationMetrics struct {
	webhookEvents    *prometheus.CounterVec
	ledgerMutations  *prometheus.CounterVec
	transferResults  *prometheus.CounterVec
	payoutResults    *prometheus.CounterVec
	reconcileGaps    *prometheus.GaugeVec
	gatewayLatencies *prometheus.HistogramVec
}

// NewReconciliationMetrics registers the collectors on reg.
func NewReconciliationMetrics(reg prometheus.Registerer) *ReconciliationMetrics {
	if reg == nil {
		return nil
	}
	m := &ReconciliationMetrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Gateway webhook deliveries by outcome.",
		}, []string{"outcome"}),
		ledgerMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_mutations_total",
			Help:      "Ledger guard invocations by kind and result.",
		}, []string{"kind", "result"}),
		transferResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_results_total",
			Help:      "Disbursement transfer outcomes.",
		}, []string{"status"}),
		payoutResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_results_total",
			Help:      "Payout state machine final statuses.",
		}, []string{"status"}),
		reconcileGaps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconciliation_gaps",
			Help:      "Paid bookings whose upstream transfer is failed or stuck.",
		}, []string{"kind"}),
		gatewayLatencies: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of payment gateway calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "result"}),
	}
	reg.MustRegister(m.webhookEvents, m.ledgerMutations, m.transferResults, m.payoutResults, m.reconcileGaps, m.gatewayLatencies)
	return m
}

func (m *ReconciliationMetrics) WebhookEvent(outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *ReconciliationMetrics) LedgerMutation(kind, result string) {
	if m == nil {
		return
	}
	m.ledgerMutations.WithLabelValues(normalizeLabel(kind), normalizeLabel(result)).Inc()
}

func (m *ReconciliationMetrics) TransferResult(status string) {
	if m == nil {
		return
	}
	m.transferResults.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *ReconciliationMetrics) PayoutResult(status string) {
	if m == nil {
		return
	}
	m.payoutResults.WithLabelValues(normalizeLabel(status)).Inc()
}

// SetGaps overwrites the current gap count for kind.
func (m *ReconciliationMetrics) SetGaps(kind string, count int64) {
	if m == nil {
		return
	}
	m.reconcileGaps.WithLabelValues(normalizeLabel(kind)).Set(float64(count))
}

// ObserveGateway records one gateway call.
func (m *ReconciliationMetrics) ObserveGateway(operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.gatewayLatencies.WithLabelValues(normalizeLabel(operation), result).Observe(seconds)
}
