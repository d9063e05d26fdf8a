// Package events publishes schema-change notifications so downstream
// consumers learn when the field set of ingested data shifts.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrPublisherClosed is returned when publishing on a closed publisher.
var ErrPublisherClosed = errors.New("events: publisher is closed")

// SchemaChanged is emitted after every schema commit. OldVersion is 0 for
// the first one.
type SchemaChanged struct {
	BatchID    string    `json:"batch_id"`
	Source     string    `json:"source"`
	OldVersion int       `json:"old_version"`
	NewVersion int       `json:"new_version"`
	Added      []string  `json:"added_fields"`
	Removed    []string  `json:"removed_fields"`
	At         time.Time `json:"at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishSchemaChange(ctx context.Context, ev SchemaChanged) error
	Close() error
}

// Config selects a publisher.
type Config struct {
	Kind    string   // "none" (default) or "kafka"
	Brokers []string // kafka only
	Topic   string   // kafka only
}

// New builds the publisher named by cfg.Kind.
func New(cfg Config) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", "none", "nop":
		return Nop{}, nil
	case "kafka":
		return NewKafka(KafkaConfig{Brokers: cfg.Brokers, Topic: cfg.Topic})
	default:
		return nil, fmt.Errorf("events: unknown kind %q", cfg.Kind)
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) PublishSchemaChange(context.Context, SchemaChanged) error { return nil }
func (Nop) Close() error                                             { return nil }

// Recorder keeps published events in memory. Useful in tests and for
// embedding callers that poll instead of subscribing.
type Recorder struct {
	mu     sync.Mutex
	events []SchemaChanged
	closed bool
}

// PublishSchemaChange implements Publisher.
func (r *Recorder) PublishSchemaChange(_ context.Context, ev SchemaChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrPublisherClosed
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []SchemaChanged {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SchemaChanged(nil), r.events...)
}

// Close implements Publisher.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
