// Package metrics exposes Prometheus collectors for ingestion runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "channel_ingestion"

// Outcome labels for RunsTotal.
const (
	OutcomeSuccess     = "success"
	OutcomeInvalid     = "invalid_request"
	OutcomeUnavailable = "extractor_unavailable"
	OutcomeFailed      = "extraction_failed"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	ExtractorStates   *prometheus.CounterVec
	VideosTotal       prometheus.Counter
	SkippedLinesTotal prometheus.Counter
	TranscriptsTotal  *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Ingestion requests by outcome.",
		}, []string{"outcome"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock time of an ingestion request, extraction and enrichment included.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		ExtractorStates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractor_runs_total",
			Help:      "Extractor processes by terminal state.",
		}, []string{"state"}),
		VideosTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "videos_total",
			Help:      "Videos returned across all ingestion results.",
		}),
		SkippedLinesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_lines_total",
			Help:      "Extractor output lines that did not decode to a record.",
		}),
		TranscriptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_total",
			Help:      "Transcript lookups by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveRun(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveExtractor(state string) {
	if m == nil {
		return
	}
	m.ExtractorStates.WithLabelValues(state).Inc()
}

func (m *Metrics) ObserveParse(videos, skipped int) {
	if m == nil {
		return
	}
	m.VideosTotal.Add(float64(videos))
	m.SkippedLinesTotal.Add(float64(skipped))
}

func (m *Metrics) ObserveTranscript(found bool) {
	if m == nil {
		return
	}
	result := "missing"
	if found {
		result = "found"
	}
	m.TranscriptsTotal.WithLabelValues(result).Inc()
}
