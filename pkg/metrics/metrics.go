package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "meeting_agent"

// Metrics groups the collectors touched by the reconciliation loop.
type Metrics struct {
	ReconcilePasses   prometheus.Counter
	SkippedTicks      prometheus.Counter
	PassDuration      prometheus.Histogram
	AccountSyncErrors prometheus.Counter
	EventUpserts      *prometheus.CounterVec
	Dispatches        *prometheus.CounterVec
	MatchedJobs       prometheus.Counter
	MatchFailures     prometheus.Counter
	HighWaterMark     prometheus.Gauge
}

// New builds the collectors and registers them on reg. A nil registerer
// leaves them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReconcilePasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_passes_total",
			Help:      "Completed reconciliation passes.",
		}),
		SkippedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_skipped_ticks_total",
			Help:      "Scheduler ticks skipped because a pass was already running.",
		}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_pass_duration_seconds",
			Help:      "Wall time of one reconciliation pass.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		AccountSyncErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_sync_errors_total",
			Help:      "Calendar accounts whose upstream fetch failed.",
		}),
		EventUpserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_upserts_total",
			Help:      "Synchronized events by upsert outcome.",
		}, []string{"outcome"}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_dispatches_total",
			Help:      "Recording bot dispatch attempts by result.",
		}, []string{"result"}),
		MatchedJobs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_matches_total",
			Help:      "Transcription jobs attached to calendar events.",
		}),
		MatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_match_failures_total",
			Help:      "Pairings that failed to fetch or index a transcript.",
		}),
		HighWaterMark: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transcription_high_water_mark",
			Help:      "Last transcription order id consumed by matching.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ReconcilePasses,
			m.SkippedTicks,
			m.PassDuration,
			m.AccountSyncErrors,
			m.EventUpserts,
			m.Dispatches,
			m.MatchedJobs,
			m.MatchFailures,
			m.HighWaterMark,
		)
	}
	return m
}
