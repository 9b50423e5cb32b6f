package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// AllowanceMetrics tracks the financial counters of the allowance ledger.
type AllowanceMetrics struct {
	allowanceEvents  *prometheus.CounterVec
	insufficientHits prometheus.Counter
	cyclesRolledOver prometheus.Counter
	webhookEvents    *prometheus.CounterVec
	ledgerDrift      *prometheus.GaugeVec
}

var (
	allowanceMetricsOnce sync.Once
	allowanceMetrics     *AllowanceMetrics
)

// Allowance returns the process-wide allowance metrics.
func Allowance() *AllowanceMetrics {
	return AllowanceWithConfig(Config{})
}

// AllowanceWithConfig returns the process-wide allowance metrics with labels
// from the given config.
func AllowanceWithConfig(cfg Config) *AllowanceMetrics {
	allowanceMetricsOnce.Do(func() {
		allowanceMetrics = newAllowanceMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return allowanceMetrics
}

// ResetAllowanceMetricsForTest clears the singleton between tests.
func ResetAllowanceMetricsForTest() {
	allowanceMetricsOnce = sync.Once{}
	allowanceMetrics = nil
}

func newAllowanceMetrics(registerer prometheus.Registerer, cfg Config) *AllowanceMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "membership"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	allowanceEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "membership_allowance_events_total",
			Help:        "Allowance ledger events appended, by event type.",
			ConstLabels: constLabels,
		},
		[]string{"event_type"},
	)

	insufficientHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "membership_insufficient_allowance_total",
			Help:        "Consume attempts rejected because the cycle balance was exhausted.",
			ConstLabels: constLabels,
		},
	)

	cyclesRolledOver := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "membership_cycles_rolled_over_total",
			Help:        "Billing cycles closed and reopened by renewal processing.",
			ConstLabels: constLabels,
		},
	)

	webhookEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "membership_billing_webhook_events_total",
			Help:        "Billing provider webhook deliveries, by processing result.",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)

	ledgerDrift := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "membership_ledger_drift",
			Help:        "Difference between the replayed ledger balance and the stored cycle balance. Non-zero is an invariant violation.",
			ConstLabels: constLabels,
		},
		[]string{"cycle_id"},
	)

	for _, collector := range []prometheus.Collector{
		allowanceEvents,
		insufficientHits,
		cyclesRolledOver,
		webhookEvents,
		ledgerDrift,
	} {
		if err := registerer.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				_ = already
				continue
			}
		}
	}

	return &AllowanceMetrics{
		allowanceEvents:  allowanceEvents,
		insufficientHits: insufficientHits,
		cyclesRolledOver: cyclesRolledOver,
		webhookEvents:    webhookEvents,
		ledgerDrift:      ledgerDrift,
	}
}

// IncAllowanceEvent counts one appended ledger event.
func (m *AllowanceMetrics) IncAllowanceEvent(eventType string) {
	if m == nil {
		return
	}
	m.allowanceEvents.WithLabelValues(eventType).Inc()
}

// IncInsufficientAllowance counts one exhausted-balance rejection.
func (m *AllowanceMetrics) IncInsufficientAllowance() {
	if m == nil {
		return
	}
	m.insufficientHits.Inc()
}

// IncCycleRollover counts one completed rollover.
func (m *AllowanceMetrics) IncCycleRollover() {
	if m == nil {
		return
	}
	m.cyclesRolledOver.Inc()
}

// IncWebhookEvent counts one webhook delivery by result
// (processed, duplicate, unmatched, rejected).
func (m *AllowanceMetrics) IncWebhookEvent(result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(result).Inc()
}

// SetLedgerDrift records the replay-vs-stored delta for a cycle.
func (m *AllowanceMetrics) SetLedgerDrift(cycleID string, drift float64) {
	if m == nil {
		return
	}
	m.ledgerDrift.WithLabelValues(cycleID).Set(drift)
}
