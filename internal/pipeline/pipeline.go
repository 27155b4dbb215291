package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
)

// Stats counts what happened to the items of one Process call.
type Stats struct {
	Processed int
	Dropped   int
	Failed    int
}

// Pipeline applies a sequence of stages to each item read from a channel.
// Steps within a stage run in parallel; stages run in order.
type Pipeline[T any] struct {
	stages []Stage[T]
}

func NewPipeline[T any](stages ...Stage[T]) *Pipeline[T] {
	return &Pipeline[T]{stages: stages}
}

// Process consumes items until in is closed or ctx is canceled. For each item:
//   - All steps in a stage are started concurrently and must complete before
//     moving to the next stage.
//   - A step returning ErrDrop ends the item's run after its stage.
//   - Other step errors are logged; the item continues through the remaining
//     stages and is counted as failed.
func (p *Pipeline[T]) Process(ctx context.Context, in <-chan *T) Stats {
	var stats Stats
	for {
		var (
			item *T
			ok   bool
		)
		select {
		case item, ok = <-in:
			if !ok {
				return stats
			}
		case <-ctx.Done():
			return stats
		}

		switch p.run(ctx, item) {
		case outcomeDropped:
			stats.Dropped++
		case outcomeFailed:
			stats.Failed++
		default:
			stats.Processed++
		}
	}
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeFailed
	outcomeDropped
)

func (p *Pipeline[T]) run(ctx context.Context, item *T) outcome {
	result := outcomeOK
	for _, stage := range p.stages {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			dropped bool
		)
		for _, step := range stage.steps {
			wg.Add(1)
			go func(step Step[T]) {
				defer wg.Done()
				err := step(ctx, item)
				if err == nil {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				if errors.Is(err, ErrDrop) {
					dropped = true
					return
				}
				log.Printf("Step failed: %v", err)
				result = outcomeFailed
			}(step)
		}
		wg.Wait()
		if dropped {
			return outcomeDropped
		}
	}
	return result
}
