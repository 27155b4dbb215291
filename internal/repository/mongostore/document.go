package mongostore

import (
	"geospatial/internal/models"
	"geospatial/pkg/geo"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// document is the stored shape of a node. MongoDB wants GeoJSON positions,
// longitude first, so the location is reordered on the way in and out.
type document struct {
	ID       primitive.ObjectID `bson:"_id"`
	Value    string             `bson:"value"`
	Location point              `bson:"location"`
}

type point struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

func newPoint(c geo.Coordinates) point {
	return point{Type: "Point", Coordinates: c.LonLat()}
}

func toDocument(id primitive.ObjectID, n models.Node) document {
	return document{ID: id, Value: n.Value, Location: newPoint(n.Coordinates)}
}

func (d document) node() (models.Node, error) {
	c, err := geo.FromLonLat(d.Location.Coordinates)
	if err != nil {
		return models.Node{}, err
	}
	return models.Node{ID: d.ID.Hex(), Coordinates: c, Value: d.Value}, nil
}

// nearFilter is a $near query around center bounded by maxMeters.
func nearFilter(center geo.Coordinates, maxMeters float64) bson.M {
	return bson.M{
		"location": bson.M{
			"$near": bson.M{
				"$geometry":    newPoint(center),
				"$maxDistance": maxMeters,
			},
		},
	}
}

func idFilter(id primitive.ObjectID) bson.M {
	return bson.M{"_id": id}
}
