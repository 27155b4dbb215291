package repository

import (
	"context"

	"geospatial/internal/models"
)

// SliceCursor walks a slice that was materialised up front.
type SliceCursor struct {
	nodes   []models.Node
	pos     int
	current models.Node
	closed  bool
	err     error
}

// NewSliceCursor returns a cursor over nodes. The slice is owned by the cursor.
func NewSliceCursor(nodes []models.Node) *SliceCursor {
	return &SliceCursor{nodes: nodes}
}

func (c *SliceCursor) Next(ctx context.Context) bool {
	if c.closed {
		c.err = ErrCursorClosed
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.pos >= len(c.nodes) {
		return false
	}
	c.current = c.nodes[c.pos]
	c.pos++
	return true
}

func (c *SliceCursor) Node() models.Node { return c.current }

func (c *SliceCursor) Err() error { return c.err }

func (c *SliceCursor) Close(context.Context) error {
	c.closed = true
	c.nodes = nil
	return nil
}

// Collect drains cur into a slice and closes it.
func Collect(ctx context.Context, cur Cursor) ([]models.Node, error) {
	defer cur.Close(ctx)

	var out []models.Node
	for cur.Next(ctx) {
		out = append(out, cur.Node())
	}
	if err := cur.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// Each calls fn for every node of cur, stopping at the first error, and closes cur.
func Each(ctx context.Context, cur Cursor, fn func(models.Node) error) error {
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		if err := fn(cur.Node()); err != nil {
			return err
		}
	}
	return cur.Err()
}
