package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "ow_engine"

// Pipeline metrics, incremented by the orchestrator.
var (
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Transcription runs by delivering provider and outcome.",
	}, []string{"provider", "outcome"})

	FallbackAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fallback_attempts_total",
		Help:      "Fallback attempts by classified primary-failure reason.",
	}, []string{"reason"})

	AttemptDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "attempt_duration_seconds",
		Help:      "Duration of one provider attempt.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})

	RecordingFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recording_failures_total",
		Help:      "Recording sessions that failed to start.",
	})

	DeliveriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deliveries_total",
		Help:      "Transcripts handed to the delivery sink.",
	})
)

// Register registers all collectors with the default registry. Call once at
// startup.
func Register() {
	prometheus.MustRegister(
		RunsTotal,
		FallbackAttempts,
		AttemptDuration,
		RecordingFailures,
		DeliveriesTotal,
	)
}
