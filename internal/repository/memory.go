package repository

import (
	"context"
	"strconv"
	"sync"

	"geospatial/internal/models"
	"geospatial/pkg/geo"
)

// InMemory is the reference backend. Search scans every stored node, which is
// O(n) per call; there is no spatial index.
//
// All operations share one RWMutex: mutations take the write lock, reads take
// the read lock. Search copies matching nodes while holding the lock, so the
// returned cursor is a snapshot and does not observe later mutations.
//
// Minted identifiers come from a counter that only grows, skipping values
// already taken by caller-chosen IDs, so an ID is never handed out twice even
// after deletes.
type InMemory struct {
	mu     sync.RWMutex
	nodes  map[string]models.Node
	nextID uint64
}

var _ Repository = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{nodes: make(map[string]models.Node)}
}

func (r *InMemory) Search(ctx context.Context, center geo.Coordinates, radius geo.Distance) (Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := radius.Meters()
	if limit <= 0 {
		return NewSliceCursor(nil), nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []models.Node
	for _, n := range r.nodes {
		if geo.HaversineMeters(center, n.Coordinates) <= limit {
			matches = append(matches, n)
		}
	}
	return NewSliceCursor(matches), nil
}

func (r *InMemory) Upsert(ctx context.Context, node models.Node) (models.Node, error) {
	if err := ctx.Err(); err != nil {
		return models.Node{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !node.Persisted() {
		node.ID = r.mintLocked()
	}
	r.nodes[node.ID] = node
	return node, nil
}

func (r *InMemory) mintLocked() string {
	for {
		r.nextID++
		id := strconv.FormatUint(r.nextID, 10)
		if _, taken := r.nodes[id]; !taken {
			return id
		}
	}
}

func (r *InMemory) Get(ctx context.Context, id string) (models.Node, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Node{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[id]
	return n, ok, nil
}

func (r *InMemory) Contains(ctx context.Context, id string) (bool, error) {
	_, ok, err := r.Get(ctx, id)
	return ok, err
}

func (r *InMemory) Delete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, ErrInvalidIdentifier
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[id]; !ok {
		return false, nil
	}
	delete(r.nodes, id)
	return true, nil
}

func (r *InMemory) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes), nil
}

func (r *InMemory) Close(context.Context) error { return nil }
