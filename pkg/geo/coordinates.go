package geo

import (
	"fmt"
	"math"
)

// Coordinates is a point in degrees, latitude first. Stores that speak GeoJSON
// want (longitude, latitude); use LonLat and FromLonLat at that boundary only.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks that c lies within the ranges the distance math is meaningful for.
// The repositories never call it; outer surfaces do.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", c.Lat)
	}
	if math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", c.Lon)
	}
	return nil
}

// LonLat returns c in GeoJSON order.
func (c Coordinates) LonLat() []float64 {
	return []float64{c.Lon, c.Lat}
}

// FromLonLat reads a GeoJSON-ordered position.
func FromLonLat(p []float64) (Coordinates, error) {
	if len(p) < 2 {
		return Coordinates{}, fmt.Errorf("position needs 2 elements, got %d", len(p))
	}
	return Coordinates{Lat: p[1], Lon: p[0]}, nil
}
