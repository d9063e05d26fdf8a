package events

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, kind := range []string{"", "none", "NOP"} {
		p, err := New(Config{Kind: kind})
		if err != nil {
			t.Fatalf("New(%q): %v", kind, err)
		}
		if _, ok := p.(Nop); !ok {
			t.Fatalf("New(%q)=%T; want Nop", kind, p)
		}
	}
	if _, err := New(Config{Kind: "kafka"}); err == nil {
		t.Fatal("kafka without brokers should fail")
	}
	if _, err := New(Config{Kind: "kafka", Brokers: []string{"b:9092"}}); err == nil {
		t.Fatal("kafka without topic should fail")
	}
	if _, err := New(Config{Kind: "carrier-pigeon"}); err == nil {
		t.Fatal("unknown kind should fail")
	}
	p, err := New(Config{Kind: "kafka", Brokers: []string{"b:9092"}, Topic: "schema-changes"})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestKafka_Publish(t *testing.T) {
	t.Parallel()

	fw := &fakeWriter{}
	k := &Kafka{w: fw, topic: "t"}
	ev := SchemaChanged{
		BatchID:    "b1",
		Source:     "people.csv",
		OldVersion: 1,
		NewVersion: 2,
		Added:      []string{"email"},
		Removed:    []string{},
		At:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := k.PublishSchemaChange(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if len(fw.msgs) != 1 {
		t.Fatalf("wrote %d messages; want 1", len(fw.msgs))
	}
	m := fw.msgs[0]
	if string(m.Key) != "2" {
		t.Fatalf("key=%q; want 2", m.Key)
	}
	var back SchemaChanged
	if err := json.Unmarshal(m.Value, &back); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back, ev) {
		t.Fatalf("payload=%+v; want %+v", back, ev)
	}

	if err := k.Close(); err != nil || !fw.closed {
		t.Fatalf("Close err=%v closed=%v", err, fw.closed)
	}
	if err := k.PublishSchemaChange(context.Background(), ev); !errors.Is(err, ErrPublisherClosed) {
		t.Fatalf("publish after close: %v", err)
	}
}

func TestKafka_WriteError(t *testing.T) {
	t.Parallel()

	boom := errors.New("broker down")
	k := &Kafka{w: &fakeWriter{err: boom}, topic: "t"}
	if err := k.PublishSchemaChange(context.Background(), SchemaChanged{}); !errors.Is(err, boom) {
		t.Fatalf("err=%v; want wrapping %v", err, boom)
	}
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder
	_ = r.PublishSchemaChange(context.Background(), SchemaChanged{NewVersion: 1})
	_ = r.PublishSchemaChange(context.Background(), SchemaChanged{NewVersion: 2})
	if got := r.Events(); len(got) != 2 || got[1].NewVersion != 2 {
		t.Fatalf("Events=%+v", got)
	}
	_ = r.Close()
	if err := r.PublishSchemaChange(context.Background(), SchemaChanged{}); !errors.Is(err, ErrPublisherClosed) {
		t.Fatalf("err=%v", err)
	}
}
