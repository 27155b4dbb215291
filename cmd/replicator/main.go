package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"geospatial/internal/backend"
	"geospatial/internal/env"
	"geospatial/internal/events"
	"geospatial/internal/repository"
	"geospatial/internal/service"
	"geospatial/pkg/graceful"
	"geospatial/pkg/kafkaclient"

	"github.com/segmentio/kafka-go"
)

func main() {
	env.LoadEnv()
	cfg, err := env.Load()
	if err != nil {
		log.Fatal(err)
	}
	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	// The broker is mandatory here; the other Kafka settings have defaults.
	kafkaBroker := env.MustGetEnv("KAFKA_BROKER")
	log.Printf("Connecting to Kafka broker: %s on topic: %s with group ID: %s", kafkaBroker, cfg.KafkaTopic, cfg.KafkaGroupID)

	repo, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s backend: %v", cfg.Backend, err)
	}

	consumer := kafkaclient.NewKafkaConsumer(cfg.KafkaTopic, cfg.KafkaGroupID, kafkaBroker)
	consumer.StartConsuming(ctx)

	applied, err := replicate(ctx, consumer, repo)

	consumer.Stop()
	if err := graceful.Shutdown(10*time.Second, repo.Close); err != nil {
		log.Printf("Failed to close repository: %v", err)
	}
	if err != nil {
		log.Printf("Replicator stopped after applying %d events: %v", applied, err)
		cancel()
		os.Exit(1)
	}
	log.Printf("Replicator finished after applying %d events.", applied)
}

func decodeEvent(_ context.Context, msg kafka.Message) (events.NodeEvent, error) {
	return events.Decode(msg.Value)
}

// retryDelay is the wait between attempts to apply an event while the
// repository is unavailable.
var retryDelay = time.Second

// replicate applies every event from source to repo in order until the source
// is drained or ctx is canceled. An event is committed only once applied.
// Group offsets are positional, so replicate never moves past an event it
// could not apply: it retries while repo is unavailable and otherwise stops
// with the error, leaving the offset for redelivery after a restart.
func replicate(ctx context.Context, source service.MessageIterator, repo repository.Repository) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	iterator := service.NewIterator[events.NodeEvent](source, decodeEvent)
	applied := 0
	for obj := range iterator.Objects(ctx) {
		if err := applyWithRetry(ctx, repo, obj.Data); err != nil {
			return applied, fmt.Errorf("apply %s event for node %s at partition=%d offset=%d: %w",
				obj.Data.Type, obj.Data.ID, obj.Message.Partition, obj.Message.Offset, err)
		}
		applied++
		if err := iterator.Commit(ctx, obj); err != nil {
			log.Printf("Failed to commit offset: %v", err)
		}
	}
	return applied, nil
}

func applyWithRetry(ctx context.Context, repo repository.Repository, e events.NodeEvent) error {
	for {
		err := events.Apply(ctx, repo, e)
		if err == nil || !errors.Is(err, repository.ErrUnavailable) {
			return err
		}
		log.Printf("Repository unavailable applying %s event for node %s, retrying in %s: %v", e.Type, e.ID, retryDelay, err)
		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
