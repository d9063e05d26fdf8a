package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds configuration for the Kafka publisher.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
	RequiredAcks int // 1 (leader) or -1 (all); 0 defaults to all
}

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events as JSON messages keyed by the new schema version.
type Kafka struct {
	mu     sync.RWMutex
	w      messageWriter
	topic  string
	closed bool
}

// NewKafka creates a synchronous Kafka producer for cfg.Topic.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("events: at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("events: Kafka topic is required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.RequiredAcks == 0 {
		cfg.RequiredAcks = int(kafka.RequireAll)
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		MaxAttempts:  3,
		Async:        false,
	}
	return &Kafka{w: w, topic: cfg.Topic}, nil
}

// PublishSchemaChange implements Publisher.
func (k *Kafka) PublishSchemaChange(ctx context.Context, ev SchemaChanged) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return ErrPublisherClosed
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.Itoa(ev.NewVersion)),
		Value: body,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte("schema_changed")},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: write to %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes and closes the writer. Further publishes fail with
// ErrPublisherClosed.
func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	return k.w.Close()
}
