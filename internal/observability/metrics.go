// Package observability exposes Prometheus metrics for repository traffic.
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"geospatial/internal/models"
	"geospatial/internal/repository"
	"geospatial/pkg/geo"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// RepositoryCollector bundles the repository metrics.
type RepositoryCollector struct {
	gatherer prometheus.Gatherer

	Operations *prometheus.CounterVec
	Durations  *prometheus.HistogramVec
	Results    prometheus.Histogram
}

// NewRepositoryCollector registers the metrics against reg, defaulting to the
// global registry when reg is nil.
func NewRepositoryCollector(reg prometheus.Registerer) (*RepositoryCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geo_repository_operations_total",
		Help: "Repository operations, labeled by operation and outcome.",
	}, []string{"op", "outcome"})
	ops, err := register(reg, ops)
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geo_repository_operation_duration_seconds",
		Help:    "Repository operation latency in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"op"})
	durations, err = register(reg, durations)
	if err != nil {
		return nil, err
	}

	results := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geo_repository_search_results",
		Help:    "Number of nodes returned per search.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})
	results, err = register(reg, results)
	if err != nil {
		return nil, err
	}

	return &RepositoryCollector{gatherer: gatherer, Operations: ops, Durations: durations, Results: results}, nil
}

// register returns the collector already registered under the same
// descriptor when there is one, so building a second collector is harmless.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

// Handler serves the gathered metrics.
func (c *RepositoryCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, repository.ErrInvalidIdentifier), errors.Is(err, geo.ErrInvalidUnit):
		return OutcomeInvalid
	case errors.Is(err, repository.ErrUnavailable):
		return OutcomeUnavailable
	default:
		return OutcomeError
	}
}

func (c *RepositoryCollector) observe(op string, start time.Time, err error) {
	c.Operations.WithLabelValues(op, outcome(err)).Inc()
	c.Durations.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Instrumented records every call made through it and forwards to the wrapped repository.
type Instrumented struct {
	next      repository.Repository
	collector *RepositoryCollector
}

var _ repository.Repository = (*Instrumented)(nil)

func Instrument(next repository.Repository, c *RepositoryCollector) *Instrumented {
	return &Instrumented{next: next, collector: c}
}

func (r *Instrumented) Search(ctx context.Context, center geo.Coordinates, radius geo.Distance) (repository.Cursor, error) {
	start := time.Now()
	cur, err := r.next.Search(ctx, center, radius)
	r.collector.observe("search", start, err)
	if err != nil {
		return nil, err
	}
	return &countingCursor{Cursor: cur, results: r.collector.Results}, nil
}

func (r *Instrumented) Upsert(ctx context.Context, node models.Node) (models.Node, error) {
	start := time.Now()
	n, err := r.next.Upsert(ctx, node)
	r.collector.observe("upsert", start, err)
	return n, err
}

func (r *Instrumented) Get(ctx context.Context, id string) (models.Node, bool, error) {
	start := time.Now()
	n, ok, err := r.next.Get(ctx, id)
	r.collector.observe("get", start, err)
	return n, ok, err
}

func (r *Instrumented) Contains(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	ok, err := r.next.Contains(ctx, id)
	r.collector.observe("contains", start, err)
	return ok, err
}

func (r *Instrumented) Delete(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	ok, err := r.next.Delete(ctx, id)
	r.collector.observe("delete", start, err)
	return ok, err
}

func (r *Instrumented) Len(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := r.next.Len(ctx)
	r.collector.observe("len", start, err)
	return n, err
}

func (r *Instrumented) Close(ctx context.Context) error {
	return r.next.Close(ctx)
}

// countingCursor observes the number of nodes yielded once the cursor is closed.
type countingCursor struct {
	repository.Cursor
	results  prometheus.Histogram
	n        int
	observed bool
}

func (c *countingCursor) Next(ctx context.Context) bool {
	if c.Cursor.Next(ctx) {
		c.n++
		return true
	}
	return false
}

func (c *countingCursor) Close(ctx context.Context) error {
	if !c.observed {
		c.observed = true
		c.results.Observe(float64(c.n))
	}
	return c.Cursor.Close(ctx)
}
