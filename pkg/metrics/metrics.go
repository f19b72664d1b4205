package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics counts ledger writes by kind.
type LedgerMetrics struct {
	transfers    *prometheus.CounterVec
	transactions prometheus.Counter
	fines        *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger counters on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transfers_total",
		Help: "Transfers recorded, by reason.",
	}, []string{"reason"})
	transactions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_transactions_total",
		Help: "Purchase transactions recorded.",
	})
	fines := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fines_total",
		Help: "Fine engine operations, by operation.",
	}, []string{"op"})
	reg.MustRegister(transfers, transactions, fines)
	return &LedgerMetrics{
		transfers:    transfers,
		transactions: transactions,
		fines:        fines,
	}
}

// IncTransfer counts a recorded transfer for the given reason label.
func (m *LedgerMetrics) IncTransfer(reason string) {
	if m == nil || m.transfers == nil {
		return
	}
	m.transfers.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncTransaction counts a recorded purchase transaction.
func (m *LedgerMetrics) IncTransaction() {
	if m == nil || m.transactions == nil {
		return
	}
	m.transactions.Inc()
}

// IncFineOp counts a fine engine operation (handout, waive, delete, warn).
func (m *LedgerMetrics) IncFineOp(op string) {
	if m == nil || m.fines == nil {
		return
	}
	m.fines.WithLabelValues(normalizeLabel(op)).Inc()
}

// CronJobMetrics records metadata for scheduled jobs.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewCronJobMetrics registers the cron job metrics on the provided registerer.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of cron jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Successful cron job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Failed cron job executions.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure)
	return &CronJobMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records the duration for the named job.
func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (c *CronJobMetrics) IncSuccess(job string) {
	if c == nil || c.success == nil {
		return
	}
	c.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (c *CronJobMetrics) IncFailure(job string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
