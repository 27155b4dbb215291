package service

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// MessageIterator defines the contract for consuming messages from a Kafka topic.
// It is used by the service's Iterator to abstract away the details of the
// underlying Kafka consumer.
//
// Implementations are responsible for the lifecycle of the consumer connection.
type MessageIterator interface {
	// Messages returns a receive-only channel of Kafka messages. The channel
	// is closed by the implementation when the consumer is stopped or the
	// underlying source is exhausted.
	Messages() <-chan kafka.Message

	// CommitOffset acknowledges that a message has been successfully processed.
	CommitOffset(ctx context.Context, msg kafka.Message) error
}

// DecodeFunc turns a raw message into a T. Returning an error skips the
// message.
type DecodeFunc[T any] func(ctx context.Context, msg kafka.Message) (T, error)

// Fetched pairs a decoded value with the message it came from. The message is
// needed to commit its offset once the value has been handled.
type Fetched[T any] struct {
	Data    T
	Message kafka.Message
}
