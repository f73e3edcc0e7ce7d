package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the profile reconciliation module.
// All methods are safe on a nil receiver.
type Metrics struct {
	// Duration of each pipeline stage by stage name and result
	StageLatency *prometheus.HistogramVec

	// Pipeline outcomes by mode, status and rejection kind
	Outcomes *prometheus.CounterVec

	// Calls to the OCR collaborator by task and result
	ExtractionCalls *prometheus.CounterVec

	// Model replies that could not be parsed and were degraded to defaults
	ExtractionDegraded *prometheus.CounterVec

	// Profile cache lookups by result (hit, miss, error)
	CacheLookups *prometheus.CounterVec
}

// New registers the module metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "profilegate_pipeline_stage_duration_seconds",
			Help:    "Duration of reconciliation pipeline stages",
			Buckets: []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage", "result"}),

		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profilegate_pipeline_outcomes_total",
			Help: "Pipeline outcomes by mode, status and rejection kind",
		}, []string{"mode", "status", "kind"}),

		ExtractionCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profilegate_extraction_calls_total",
			Help: "Calls to the document extraction service by task and result",
		}, []string{"task", "result"}),

		ExtractionDegraded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profilegate_extraction_degraded_total",
			Help: "Extraction replies that were unparseable and fell back to defaults",
		}, []string{"task"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profilegate_profile_cache_lookups_total",
			Help: "Profile cache lookups by result",
		}, []string{"result"}),
	}
}

// ObserveStage records how long a stage took. result is "ok" or a rejection kind.
func (m *Metrics) ObserveStage(stage, result string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage, result).Observe(d.Seconds())
	}
}

// IncrementOutcome records a pipeline outcome. kind is empty for acceptances.
func (m *Metrics) IncrementOutcome(mode, status, kind string) {
	if m != nil {
		m.Outcomes.WithLabelValues(mode, status, kind).Inc()
	}
}

// IncrementExtractionCall records a collaborator call.
func (m *Metrics) IncrementExtractionCall(task, result string) {
	if m != nil {
		m.ExtractionCalls.WithLabelValues(task, result).Inc()
	}
}

// IncrementExtractionDegraded records a reply that fell back to defaults.
func (m *Metrics) IncrementExtractionDegraded(task string) {
	if m != nil {
		m.ExtractionDegraded.WithLabelValues(task).Inc()
	}
}

// IncrementCacheLookup records a cache lookup result.
func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}
