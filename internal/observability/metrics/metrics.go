package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds the counters exported on /metrics. A single instance
// is shared through fx.
type Registry struct {
	BillingRunsTotal     *prometheus.CounterVec
	ChargesIssuedTotal   prometheus.Counter
	CreditAppliedVES     prometheus.Counter
	PayrollConfirmsTotal *prometheus.CounterVec
	RunDuration          *prometheus.HistogramVec
}

func New() *Registry {
	return &Registry{
		BillingRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aula",
			Name:      "billing_runs_total",
			Help:      "Recurring billing runs by outcome.",
		}, []string{"outcome"}),
		ChargesIssuedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "aula",
			Name:      "charges_issued_total",
			Help:      "Applied charges created by the billing engine.",
		}),
		CreditAppliedVES: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "aula",
			Name:      "credit_applied_ves_total",
			Help:      "Total VES credit drained into charges.",
		}),
		PayrollConfirmsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aula",
			Name:      "payroll_confirms_total",
			Help:      "Payroll run confirmations by outcome.",
		}, []string{"outcome"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aula",
			Name:      "engine_run_duration_seconds",
			Help:      "Duration of batch engine runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"engine"}),
	}
}
