// Package pipeline provides a small, generic pipeline abstraction that runs
// independent steps in parallel within a stage, while enforcing sequential
// execution between stages.
package pipeline

import (
	"context"
	"errors"
)

// ErrDrop is returned by a step to stop an item's run. Later stages are
// skipped and the item is counted as dropped, not failed.
var ErrDrop = errors.New("pipeline: drop item")

// Step is a single operation that may mutate the given item. Steps in the same
// stage run concurrently on the same item and must not write the same fields.
//
//	func trim(ctx context.Context, n *models.Node) error { n.Value = strings.TrimSpace(n.Value); return nil }
type Step[T any] func(ctx context.Context, item *T) error

// Stage groups a set of steps that are safe to execute in parallel for a
// single item. The pipeline waits for all of them before the next stage.
type Stage[T any] struct {
	steps []Step[T]
}

func NewStage[T any](steps ...Step[T]) Stage[T] {
	return Stage[T]{steps: steps}
}
