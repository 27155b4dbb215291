package pipeline

import (
	"context"
	"fmt"
	"strings"

	"geospatial/internal/models"
	"geospatial/internal/repository"
)

// ValidCoordinates drops nodes whose coordinates are out of range.
func ValidCoordinates(_ context.Context, n *models.Node) error {
	if err := n.Coordinates.Validate(); err != nil {
		return fmt.Errorf("%w: node %q: %v", ErrDrop, n.ID, err)
	}
	return nil
}

// TrimValue strips surrounding whitespace from the node's value.
func TrimValue(_ context.Context, n *models.Node) error {
	n.Value = strings.TrimSpace(n.Value)
	return nil
}

// Store upserts the node into repo and records the stored ID on it.
func Store(repo repository.Repository) Step[models.Node] {
	return func(ctx context.Context, n *models.Node) error {
		stored, err := repo.Upsert(ctx, *n)
		if err != nil {
			return fmt.Errorf("store node %q: %w", n.ID, err)
		}
		n.ID = stored.ID
		return nil
	}
}

// Import validates, normalizes and stores nodes.
func Import(repo repository.Repository) *Pipeline[models.Node] {
	return NewPipeline(
		NewStage(ValidCoordinates, TrimValue),
		NewStage(Store(repo)),
	)
}
