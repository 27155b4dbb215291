// Package repository defines the contract every geospatial backend satisfies,
// together with the in-memory reference implementation.
package repository

import (
	"context"
	"errors"

	"geospatial/internal/models"
	"geospatial/pkg/geo"
)

var (
	// ErrInvalidIdentifier is returned by Delete when called with an empty id.
	// No other operation rejects identifiers this way.
	ErrInvalidIdentifier = errors.New("repository: invalid node identifier")

	// ErrUnavailable wraps failures talking to an external store, so callers can
	// tell a backend outage apart from a node that does not exist.
	ErrUnavailable = errors.New("repository: backend unavailable")

	// ErrCursorClosed is reported by a cursor used after Close.
	ErrCursorClosed = errors.New("repository: cursor closed")
)

// Repository stores nodes keyed by identifier and answers radius searches.
type Repository interface {
	// Search returns every stored node whose great-circle distance from center
	// is at most radius. A non-positive radius yields an empty cursor. Result
	// order is unspecified.
	Search(ctx context.Context, center geo.Coordinates, radius geo.Distance) (Cursor, error)

	// Upsert stores node under its ID, replacing any previous node with that
	// ID, or under a freshly minted ID when node.ID is empty. The persisted
	// node is returned.
	Upsert(ctx context.Context, node models.Node) (models.Node, error)

	// Get returns the node stored under id. A missing node is reported with
	// ok == false and a nil error.
	Get(ctx context.Context, id string) (node models.Node, ok bool, err error)

	// Contains reports whether Get would find a node.
	Contains(ctx context.Context, id string) (bool, error)

	// Delete removes the node stored under id and reports whether one existed.
	// An empty id fails with ErrInvalidIdentifier.
	Delete(ctx context.Context, id string) (bool, error)

	// Len returns the number of stored nodes.
	Len(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// Cursor is a forward-only, single pass sequence of search results.
//
//	for cur.Next(ctx) {
//		n := cur.Node()
//	}
//	if err := cur.Err(); err != nil { ... }
type Cursor interface {
	Next(ctx context.Context) bool
	Node() models.Node
	Err() error
	Close(ctx context.Context) error
}
