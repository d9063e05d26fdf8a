// Package datadog ships ingestion metrics to a DogStatsD agent.
//
// Metric names are rewritten to Datadog's dotted style: step counters and
// durations become "step.count" and the "step.duration" distribution. Record
// counters become one metric per kind ("records.valid" and so on) and schema
// commits become "schema.commits". A commit whose field set changed also posts
// a Datadog event.
package datadog

import (
	"fmt"
	"sort"

	"dynetl/internal/metrics"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// Config holds Datadog backend configuration.
type Config struct {
	// Addr is the DogStatsD address, e.g. "127.0.0.1:8125" or "unix:///path/to/socket".
	Addr string

	// Namespace is an optional prefix added to all metric names, e.g. "dynetl.".
	Namespace string

	// GlobalTags are tags applied to every metric and event,
	// e.g. []string{"env:prod","job:orders"}.
	GlobalTags []string
}

// client is the part of statsd.ClientInterface the backend uses.
type client interface {
	Count(name string, value int64, tags []string, rate float64) error
	Distribution(name string, value float64, tags []string, rate float64) error
	Event(e *statsd.Event) error
	Close() error
}

// Backend is a Datadog implementation of metrics.Backend. The zero value
// drops everything.
type Backend struct {
	client client
}

// NewBackend dials DogStatsD. Addr is required.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}

	opts := []statsd.Option{}
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.GlobalTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.GlobalTags))
	}
	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: create client: %w", err)
	}
	return &Backend{client: c}, nil
}

// IncCounter implements metrics.Backend. Fractional deltas are truncated.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	dn, lbls := datadogName(name, labels)
	tags := labelsToTags(lbls)
	_ = b.client.Count(dn, int64(delta), tags, 1)

	if name == metrics.SchemaCommitsTotal && labels["changed"] == "true" {
		ev := statsd.NewEvent("dynetl schema changed",
			fmt.Sprintf("A new schema version was committed for job %q.", labels["job"]))
		ev.AlertType = statsd.Info
		ev.AggregationKey = "dynetl-schema-" + labels["job"]
		ev.Tags = tags
		_ = b.client.Event(ev)
	}
}

// ObserveHistogram implements metrics.Backend as a Datadog distribution.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	dn, lbls := datadogName(name, labels)
	_ = b.client.Distribution(dn, value, labelsToTags(lbls), 1)
}

// Flush closes the client, which drains its buffers. Call it once at exit.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

// datadogName maps a metrics package name to its Datadog name. Labels folded
// into the name are removed from the returned set; the input is not modified.
func datadogName(name string, labels metrics.Labels) (string, metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		return "step.count", labels
	case metrics.StepDuration:
		return "step.duration", labels
	case metrics.SchemaCommitsTotal:
		return "schema.commits", labels
	case metrics.RecordsTotal:
		kind, ok := labels["kind"]
		if !ok {
			return "records", labels
		}
		rest := make(metrics.Labels, len(labels)-1)
		for k, v := range labels {
			if k != "kind" {
				rest[k] = v
			}
		}
		return "records." + kind, rest
	}
	return name, labels
}

// labelsToTags converts labels into sorted "key:value" tags.
func labelsToTags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		out = append(out, k+":"+v)
	}
	sort.Strings(out)
	return out
}
