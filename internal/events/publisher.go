package events

import (
	"context"
	"fmt"
	"log"
	"time"

	"geospatial/internal/models"
	"geospatial/internal/repository"

	"github.com/segmentio/kafka-go"
)

// Publisher delivers events somewhere durable.
type Publisher interface {
	Publish(ctx context.Context, events ...NodeEvent) error
}

// MessageWriter is satisfied by *kafka.Writer and kafkaclient.KafkaProducer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher encodes events as JSON messages keyed by node ID, so all
// events for one node land in the same partition and stay ordered.
type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...NodeEvent) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := Encode(e)
		if err != nil {
			return fmt.Errorf("encode %s event for %s: %w", e.Type, e.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(e.ID),
			Value:   value,
			Time:    e.At,
			Headers: []kafka.Header{{Key: "event-type", Value: []byte(e.Type)}},
		})
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Publishing forwards to the wrapped repository and publishes an event after
// each successful mutation. A failed publish is logged; the mutation stands.
type Publishing struct {
	repository.Repository
	publisher Publisher
	now       func() time.Time
}

func NewPublishing(next repository.Repository, p Publisher) *Publishing {
	return &Publishing{Repository: next, publisher: p, now: time.Now}
}

func (r *Publishing) Upsert(ctx context.Context, node models.Node) (models.Node, error) {
	n, err := r.Repository.Upsert(ctx, node)
	if err != nil {
		return n, err
	}
	r.publish(ctx, NewUpserted(n, r.now()))
	return n, nil
}

func (r *Publishing) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := r.Repository.Delete(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	r.publish(ctx, NewDeleted(id, r.now()))
	return true, nil
}

func (r *Publishing) publish(ctx context.Context, e NodeEvent) {
	if err := r.publisher.Publish(ctx, e); err != nil {
		log.Printf("Failed to publish %s event for node %s: %v", e.Type, e.ID, err)
	}
}
