package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Submissions    *prometheus.CounterVec
	DebtCreates    *prometheus.CounterVec
	CreateDuration prometheus.Histogram
	LedgerBuilds   *prometheus.CounterVec
}

// New registers the installment metrics on reg. Pass prometheus.NewRegistry()
// in tests to keep them isolated.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "installments_submissions_total",
			Help: "Installment schedule submissions by outcome.",
		}, []string{"outcome"}),
		DebtCreates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "installments_debt_creates_total",
			Help: "Per-row debt create calls by result.",
		}, []string{"result"}),
		CreateDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "installments_debt_create_duration_seconds",
			Help:    "Latency of a single debt create call.",
			Buckets: prometheus.DefBuckets,
		}),
		LedgerBuilds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "installments_ledger_builds_total",
			Help: "Ledger views built by payments state.",
		}, []string{"state"}),
	}
}

func (m *Metrics) ObserveCreate(start time.Time, err error) {
	if m == nil {
		return
	}
	m.CreateDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.DebtCreates.WithLabelValues("error").Inc()
		return
	}
	m.DebtCreates.WithLabelValues("ok").Inc()
}

func (m *Metrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLedger(state string) {
	if m == nil {
		return
	}
	m.LedgerBuilds.WithLabelValues(state).Inc()
}
