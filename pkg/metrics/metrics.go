// Package metrics provides Prometheus metrics for export runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/climatekit/ascraster/pkg/domain"
)

// Labels stay low-cardinality: no job keys, datasets or paths.

// Metrics holds the collectors of one run on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// JobsTotal counts finished jobs by family and status.
	JobsTotal *prometheus.CounterVec

	// JobDuration observes the wall time of converted jobs by family.
	JobDuration *prometheus.HistogramVec

	// RastersWrittenTotal counts raster files written by output format.
	RastersWrittenTotal *prometheus.CounterVec

	// CacheLookupsTotal counts intermediate cache lookups by result (hit/miss).
	CacheLookupsTotal *prometheus.CounterVec

	// ConvertRetriesTotal counts converter retries after retryable errors.
	ConvertRetriesTotal prometheus.Counter

	// LastRunTimestamp is the unix time at which the last run finished.
	LastRunTimestamp prometheus.Gauge
}

// New creates the run metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		JobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ascraster_jobs_total",
			Help: "Total number of export jobs processed, by family and status.",
		}, []string{"family", "status"}),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ascraster_job_duration_seconds",
			Help:    "Wall time of converted export jobs, by family.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"family"}),
		RastersWrittenTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ascraster_rasters_written_total",
			Help: "Total number of raster files written, by output format.",
		}, []string{"format"}),
		CacheLookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ascraster_cache_lookups_total",
			Help: "Total number of intermediate cache lookups, by result.",
		}, []string{"result"}),
		ConvertRetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ascraster_convert_retries_total",
			Help: "Total number of converter retries after retryable errors.",
		}),
		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ascraster_last_run_timestamp_seconds",
			Help: "Unix time at which the last export run finished.",
		}),
	}
}

// Registry returns the registry holding the run metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordJob counts a finished job; the duration is observed for converted jobs only.
func (m *Metrics) RecordJob(family domain.Family, status domain.JobStatus, d time.Duration) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(string(family), string(status)).Inc()
	if status == domain.JobStatusDone {
		m.JobDuration.WithLabelValues(string(family)).Observe(d.Seconds())
	}
}

// RecordRasters counts raster files written in a format.
func (m *Metrics) RecordRasters(format string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RastersWrittenTotal.WithLabelValues(format).Add(float64(n))
}

// RecordCacheLookup counts an intermediate cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordRetry counts one converter retry.
func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.ConvertRetriesTotal.Inc()
}

// MarkRunFinished sets the last run timestamp.
func (m *Metrics) MarkRunFinished(t time.Time) {
	if m == nil {
		return
	}
	m.LastRunTimestamp.Set(float64(t.Unix()))
}

// WriteTextfile writes the metrics in the text exposition format for the
// node exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
