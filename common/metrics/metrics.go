package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessor_provider_requests_total",
			Help: "Total number of text-generation provider calls",
		},
		[]string{"provider", "outcome"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assessor_provider_request_duration_seconds",
			Help:    "Duration of text-generation provider calls in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 90, 120},
		},
		[]string{"provider"},
	)

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessor_pipeline_runs_total",
			Help: "Total number of assessment pipeline runs by terminal state",
		},
		[]string{"outcome"},
	)

	PipelinePhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assessor_pipeline_phase_duration_seconds",
			Help:    "Duration of each pipeline transition in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"state"},
	)

	ExtractionItemsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessor_extraction_items_dropped_total",
			Help: "Total number of list items dropped during structured extraction",
		},
		[]string{"agent"},
	)

	Guides = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessor_guides_total",
			Help: "Total number of implementation guide generations",
		},
		[]string{"outcome"},
	)

	Jobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessor_jobs_total",
			Help: "Total number of assessment jobs handled by the worker",
		},
		[]string{"outcome"},
	)
)

// ObserveProviderRequest records one provider call.
func ObserveProviderRequest(provider string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	ProviderRequests.WithLabelValues(provider, outcome).Inc()
	ProviderRequestDuration.WithLabelValues(provider).Observe(d.Seconds())
}
