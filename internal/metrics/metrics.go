// Package metrics exposes Prometheus instrumentation for the voice
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskvoice_sessions_active",
		Help: "Number of open voice sessions.",
	})

	AdmissionRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskvoice_admission_rejections_total",
		Help: "Session requests rejected for capacity.",
	})

	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskvoice_commands_total",
		Help: "Processed voice commands by final status and intent.",
	}, []string{"status", "intent"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskvoice_stage_duration_seconds",
		Help:    "Duration of each pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	StageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskvoice_stage_errors_total",
		Help: "Pipeline failures by stage.",
	}, []string{"stage"})
)
