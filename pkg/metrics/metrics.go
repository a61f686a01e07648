package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all dispatch engine metrics
type Metrics struct {
	EmailsSent      prometheus.Counter
	EmailsFailed    prometheus.Counter
	EmailsSkipped   prometheus.Counter
	BatchLatency    prometheus.Histogram
	WindowRuns      *prometheus.CounterVec
	SchedulesDue    prometheus.Histogram
	QuotaDenials    prometheus.Counter
	TokenRefreshes  *prometheus.CounterVec
	DatabaseOps     *prometheus.CounterVec
	BrokerPublishes *prometheus.CounterVec
}

// NewMetrics creates and registers all dispatch engine metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		EmailsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "emails_sent_total",
			Help:      "Total number of emails dispatched successfully",
		}),
		EmailsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "emails_failed_total",
			Help:      "Total number of dispatch attempts that failed",
		}),
		EmailsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "emails_skipped_total",
			Help:      "Total number of recipients skipped by the duplicate window",
		}),
		BatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batch_duration_seconds",
			Help:      "Time spent fanning one schedule out to its recipients",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		WindowRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "window_runs_total",
			Help:      "Total number of window trigger firings",
		}, []string{"window", "status"}),
		SchedulesDue: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "schedules_due",
			Help:      "Number of due schedules selected per window firing",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		QuotaDenials: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "quota_denials_total",
			Help:      "Total number of sends denied by the quota tracker",
		}),
		TokenRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "token_refreshes_total",
			Help:      "Total number of OAuth token refresh exchanges",
		}, []string{"status"}),
		DatabaseOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		BrokerPublishes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "broker_publishes_total",
			Help:      "Total number of event publishes to the broker",
		}, []string{"channel", "status"}),
	}
}

// NewNopMetrics registers nothing; for tests.
func NewNopMetrics() *Metrics {
	return &Metrics{
		EmailsSent:    prometheus.NewCounter(prometheus.CounterOpts{Name: "test_emails_sent_total"}),
		EmailsFailed:  prometheus.NewCounter(prometheus.CounterOpts{Name: "test_emails_failed_total"}),
		EmailsSkipped: prometheus.NewCounter(prometheus.CounterOpts{Name: "test_emails_skipped_total"}),
		BatchLatency:  prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_batch_duration_seconds"}),
		WindowRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_window_runs_total",
		}, []string{"window", "status"}),
		SchedulesDue: prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_schedules_due"}),
		QuotaDenials: prometheus.NewCounter(prometheus.CounterOpts{Name: "test_quota_denials_total"}),
		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_token_refreshes_total",
		}, []string{"status"}),
		DatabaseOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_database_operations_total",
		}, []string{"operation", "status"}),
		BrokerPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_broker_publishes_total",
		}, []string{"channel", "status"}),
	}
}
