package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"geospatial/internal/backend"
	"geospatial/internal/env"
	"geospatial/internal/events"
	"geospatial/internal/handler"
	"geospatial/internal/observability"
	"geospatial/internal/repository"
	"geospatial/pkg/graceful"
	"geospatial/pkg/kafkaclient"
	"geospatial/pkg/location"

	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 10 * time.Second

func main() {
	env.LoadEnv()
	cfg, err := env.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	store, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s backend: %v", cfg.Backend, err)
	}

	collector, err := observability.NewRepositoryCollector(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}
	var repo repository.Repository = observability.Instrument(store, collector)

	var producer *kafkaclient.KafkaProducer
	if cfg.KafkaEnabled() {
		log.Printf("Publishing node events to Kafka broker: %s on topic: %s", cfg.KafkaBroker, cfg.KafkaTopic)
		producer = kafkaclient.NewKafkaProducer(cfg.KafkaTopic, cfg.KafkaBroker)
		repo = events.NewPublishing(repo, events.NewKafkaPublisher(producer))
	}

	router := handler.NewRouter(
		handler.New(repo, location.NewClient(cfg.NominatimURL)),
		handler.Options{JWTSecret: []byte(cfg.JWTSecret), Metrics: collector.Handler()},
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server failed: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()

	if err := graceful.Shutdown(shutdownTimeout, srv.Shutdown); err != nil {
		log.Printf("HTTP server shutdown: %v", err)
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Printf("Failed to close Kafka producer: %v", err)
		}
	}
	if err := graceful.Shutdown(shutdownTimeout, repo.Close); err != nil {
		log.Printf("Failed to close repository: %v", err)
	}
	log.Println("Server stopped.")
}
