package kafkaclient

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

type mockWriter struct {
	written []kafka.Message
	err     error
	closed  bool
}

func (mw *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if mw.err != nil {
		return mw.err
	}
	mw.written = append(mw.written, msgs...)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.closed = true
	return nil
}

func TestKafkaProducer_WriteMessages(t *testing.T) {
	mw := &mockWriter{}
	producer := &KafkaProducer{writer: mw}

	msgs := []kafka.Message{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}
	if err := producer.WriteMessages(context.Background(), msgs...); err != nil {
		t.Fatalf("WriteMessages() failed: %v", err)
	}
	if len(mw.written) != 2 {
		t.Fatalf("Expected 2 written messages, got %d", len(mw.written))
	}
	if string(mw.written[1].Key) != "b" {
		t.Errorf("Expected key %q, got %q", "b", mw.written[1].Key)
	}

	if err := producer.WriteMessages(context.Background()); err != nil {
		t.Errorf("Empty write should be a no-op, got %v", err)
	}

	if err := producer.Close(); err != nil || !mw.closed {
		t.Errorf("Close() = %v, closed = %v", err, mw.closed)
	}
}

func TestKafkaProducer_WriteError(t *testing.T) {
	want := errors.New("no brokers")
	producer := &KafkaProducer{writer: &mockWriter{err: want}}

	err := producer.WriteMessages(context.Background(), kafka.Message{Key: []byte("a")})
	if !errors.Is(err, want) {
		t.Errorf("Expected %v, got %v", want, err)
	}
}
