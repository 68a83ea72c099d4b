package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type SweepMetrics struct {
	RunsTotal     *prometheus.CounterVec
	EMIsProcessed *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
}

type BusinessMetrics struct {
	PenaltyAccruedTotal prometheus.Counter
	PenaltyWaivedTotal  prometheus.Counter
	PaymentsTotal       *prometheus.CounterVec
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lending_engine_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Sweep = SweepMetrics{
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lending_engine_sweep_runs_total",
				Help: "Total number of accrual sweep runs by kind and outcome.",
			},
			[]string{"kind", "status"},
		),
		EMIsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lending_engine_sweep_emis_processed_total",
				Help: "Total number of installments mutated by sweeps.",
			},
			[]string{"kind"},
		),
		Duration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lending_engine_sweep_duration_seconds",
				Help:    "Histogram of sweep run durations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}

	Business = BusinessMetrics{
		PenaltyAccruedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lending_engine_penalty_accrued_units_total",
				Help: "Total penalty currency units accrued on overdue installments.",
			},
		),
		PenaltyWaivedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lending_engine_penalty_waived_units_total",
				Help: "Total penalty currency units waived by administrators.",
			},
		),
		PaymentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lending_engine_payments_total",
				Help: "Total number of installment payments by outcome.",
			},
			[]string{"status"},
		),
	}
)

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordSweep(kind, status string, processed int, duration time.Duration) {
	Sweep.RunsTotal.WithLabelValues(kind, status).Inc()
	Sweep.EMIsProcessed.WithLabelValues(kind).Add(float64(processed))
	Sweep.Duration.WithLabelValues(kind).Observe(duration.Seconds())
}

func RecordPenaltyAccrued(units int64) {
	if units > 0 {
		Business.PenaltyAccruedTotal.Add(float64(units))
	}
}

func RecordPenaltyWaived(units int64) {
	if units > 0 {
		Business.PenaltyWaivedTotal.Add(float64(units))
	}
}

func RecordPayment(status string) {
	Business.PaymentsTotal.WithLabelValues(status).Inc()
}
