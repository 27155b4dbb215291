// Package events describes repository changes as messages so they can be
// published to Kafka and replayed onto another repository.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"geospatial/internal/models"
	"geospatial/internal/repository"
)

type Type string

const (
	Upserted Type = "upsert"
	Deleted  Type = "delete"
)

// ErrMalformed is returned when a message does not decode to a usable event.
var ErrMalformed = errors.New("events: malformed node event")

// NodeEvent is one change to a repository. Node is set for Upserted only.
type NodeEvent struct {
	Type Type         `json:"type"`
	ID   string       `json:"id"`
	Node *models.Node `json:"node,omitempty"`
	At   time.Time    `json:"at"`
}

func NewUpserted(n models.Node, at time.Time) NodeEvent {
	return NodeEvent{Type: Upserted, ID: n.ID, Node: &n, At: at}
}

func NewDeleted(id string, at time.Time) NodeEvent {
	return NodeEvent{Type: Deleted, ID: id, At: at}
}

func (e NodeEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrMalformed)
	}
	switch e.Type {
	case Upserted:
		if e.Node == nil {
			return fmt.Errorf("%w: upsert %s without node", ErrMalformed, e.ID)
		}
	case Deleted:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformed, e.Type)
	}
	return nil
}

func Encode(e NodeEvent) ([]byte, error) {
	return json.Marshal(e)
}

func Decode(data []byte) (NodeEvent, error) {
	var e NodeEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return NodeEvent{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if err := e.Validate(); err != nil {
		return NodeEvent{}, err
	}
	return e, nil
}

// Apply replays e onto repo. Replaying a delete for a node that is already
// gone is not an error, so events can be delivered more than once.
func Apply(ctx context.Context, repo repository.Repository, e NodeEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	switch e.Type {
	case Upserted:
		_, err := repo.Upsert(ctx, e.Node.WithID(e.ID))
		return err
	case Deleted:
		_, err := repo.Delete(ctx, e.ID)
		return err
	}
	return nil
}
