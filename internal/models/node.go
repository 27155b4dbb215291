package models

import (
	"fmt"

	"geospatial/pkg/geo"
)

// Node is a point of interest as stored and returned by a repository.
// An empty ID marks a node that has not been persisted yet; once persisted the
// ID is an opaque string chosen by the backend.
//
// Equality between nodes is defined by Value alone. ID and Coordinates are
// ignored, so a node read back from any backend compares equal to the node it
// was created from as long as it carries the same value. Code that
// de-duplicates nodes must go through Equal or Key, never ==.
type Node struct {
	ID          string          `json:"id,omitempty"`
	Coordinates geo.Coordinates `json:"coordinates"`
	Value       string          `json:"value"`
}

// NewNode returns a transient node.
func NewNode(coordinates geo.Coordinates, value string) Node {
	return Node{Coordinates: coordinates, Value: value}
}

// Equal compares only the carried values.
func (n Node) Equal(other Node) bool {
	return n.Value == other.Value
}

// Key is the map key consistent with Equal.
func (n Node) Key() string {
	return n.Value
}

// Persisted reports whether the node has an identifier.
func (n Node) Persisted() bool {
	return n.ID != ""
}

// WithID returns a copy of n carrying id.
func (n Node) WithID(id string) Node {
	n.ID = id
	return n
}

func (n Node) String() string {
	return fmt.Sprintf("{id:%q coordinates:(%v, %v) value:%q}", n.ID, n.Coordinates.Lat, n.Coordinates.Lon, n.Value)
}
