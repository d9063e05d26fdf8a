// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the ingestion pipeline.
//
// It exposes a narrow interface (Backend) focused on counters and timing
// data, and a global, pluggable backend that defaults to a no-op, so metrics
// are always safe to call even when nothing is configured. Concrete systems
// live in subpackages (prompush, datadog).
package metrics

import (
	"strconv"
	"time"
)

// Metric names emitted by the helpers below.
const (
	StepTotal          = "ingest_step_total"
	StepDuration       = "ingest_step_duration_seconds"
	RecordsTotal       = "ingest_records_total"
	SchemaCommitsTotal = "ingest_schema_commits_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
// It is intentionally generic so we can plug in Prometheus, Datadog, etc.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
// Call it once at startup, before any ingestion runs.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep measures latency and success/failure of one pipeline step
// (normalize, infer, commit, validate, store).
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow increments a record-level counter for the given job and kind.
//
// Kinds used by the pipeline:
//   - "processed"
//   - "valid"
//   - "with_issues"
//   - "ingest_errors"
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordSchemaCommit counts one schema commit; changed tells whether the
// field set differed from the previous version.
func RecordSchemaCommit(job string, changed bool) {
	backend.IncCounter(SchemaCommitsTotal, 1, Labels{
		"job":     job,
		"changed": strconv.FormatBool(changed),
	})
}
