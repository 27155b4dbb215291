// Package service contains helpers used by application services.
// In particular, it provides an Iterator that consumes messages from a
// message source (e.g., Kafka via pkg/kafkaclient) and decodes each one with
// a pluggable DecodeFunc.
package service

import (
	"context"
	"log"

	"github.com/segmentio/kafka-go"
)

// Iterator decodes messages from a MessageIterator and yields them on a
// channel. It does not manage the lifecycle of the message source; callers
// start and stop their consumer outside.
type Iterator[T any] struct {
	msgIterator MessageIterator
	decode      DecodeFunc[T]
}

func NewIterator[T any](iterator MessageIterator, decode DecodeFunc[T]) *Iterator[T] {
	return &Iterator[T]{
		msgIterator: iterator,
		decode:      decode,
	}
}

// Objects starts a goroutine that decodes each message and emits it on the
// returned channel. Messages that fail to decode are logged and skipped
// without a commit: group offsets are positional, so committing one would also
// acknowledge an earlier message the caller may still be handling. The next
// Commit covers their offset. The channel is closed when the source's
// Messages() channel is closed or ctx is canceled.
//
// Offsets of yielded values are not committed here; call Commit once the value
// has been handled.
func (it *Iterator[T]) Objects(ctx context.Context) <-chan *Fetched[T] {
	out := make(chan *Fetched[T])
	go func() {
		defer close(out)

		for {
			var (
				msg kafka.Message
				ok  bool
			)
			select {
			case msg, ok = <-it.msgIterator.Messages():
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}

			data, err := it.decode(ctx, msg)
			if err != nil {
				log.Printf("Skipping message at partition=%d offset=%d: %v", msg.Partition, msg.Offset, err)
				continue
			}

			select {
			case out <- &Fetched[T]{Data: data, Message: msg}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Commit acknowledges f's message.
func (it *Iterator[T]) Commit(ctx context.Context, f *Fetched[T]) error {
	return it.msgIterator.CommitOffset(ctx, f.Message)
}
