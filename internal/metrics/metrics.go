// Package metrics counts loads, reconciliations and staged updates with
// Prometheus collectors on a private registry. The CLI exports them in the
// node_exporter textfile format for CI jobs to pick up.
//
// All methods are safe on a nil *Recorder, which records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "intercase"

// Recorder owns the collectors.
type Recorder struct {
	registry   *prometheus.Registry
	cases      *prometheus.GaugeVec
	duplicates *prometheus.CounterVec
	updates    *prometheus.CounterVec
	orphans    *prometheus.CounterVec
	staged     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cases: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cases",
				Help:      "Number of cases in the last loaded collection",
			},
			[]string{"service"},
		),
		duplicates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "duplicate_cases_total",
				Help:      "Identical duplicate cases dropped while loading",
			},
			[]string{"service"},
		),
		updates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "augmentation_updates_total",
				Help:      "Update entries reconciled into the compact store, by outcome",
			},
			[]string{"service", "outcome"},
		),
		orphans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orphan_updates_total",
				Help:      "Update entries that matched no known case",
			},
			[]string{"service"},
		),
		staged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "staged_updates_total",
				Help:      "Augmentation entries staged after successful executions",
			},
			[]string{"service"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of load, commit and merge operations",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"service", "operation"},
		),
	}
	r.registry.MustRegister(r.cases, r.duplicates, r.updates, r.orphans, r.staged, r.duration)
	return r
}

// Registry returns the registry holding every collector.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveLoad records a loaded collection.
func (r *Recorder) ObserveLoad(service string, cases, duplicates int) {
	if r == nil {
		return
	}
	r.cases.WithLabelValues(service).Set(float64(cases))
	r.duplicates.WithLabelValues(service).Add(float64(duplicates))
}

// ObserveReconcile records the outcome counts of a reconciliation.
func (r *Recorder) ObserveReconcile(service string, inserted, updated, unchanged, orphans int) {
	if r == nil {
		return
	}
	r.updates.WithLabelValues(service, "inserted").Add(float64(inserted))
	r.updates.WithLabelValues(service, "updated").Add(float64(updated))
	r.updates.WithLabelValues(service, "unchanged").Add(float64(unchanged))
	r.orphans.WithLabelValues(service).Add(float64(orphans))
}

// ObserveStaged records n staged entries.
func (r *Recorder) ObserveStaged(service string, n int) {
	if r == nil {
		return
	}
	r.staged.WithLabelValues(service).Add(float64(n))
}

// ObserveDuration records how long an operation took.
func (r *Recorder) ObserveDuration(service, operation string, d time.Duration) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(service, operation).Observe(d.Seconds())
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
