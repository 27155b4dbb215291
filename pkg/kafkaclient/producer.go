package kafkaclient

import (
	"context"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter is the subset of *kafka.Writer the producer needs.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer writes keyed messages to a single topic. Messages with the
// same key are hashed to the same partition.
type KafkaProducer struct {
	writer KafkaWriter
}

// NewKafkaProducer creates a producer for topic on broker.
func NewKafkaProducer(topic, broker string) *KafkaProducer {
	return &KafkaProducer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}}
}

func (kp *KafkaProducer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := kp.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	log.Printf("Produced %d message(s), first key=%s", len(msgs), msgs[0].Key)
	return nil
}

func (kp *KafkaProducer) Close() error {
	return kp.writer.Close()
}
