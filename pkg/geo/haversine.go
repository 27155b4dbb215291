package geo

import "math"

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Haversine returns the great-circle distance between a and b on a sphere the
// size of EarthsRadius, expressed in unit.
func Haversine(a, b Coordinates, unit Unit) (float64, error) {
	radius, err := EarthsRadius.ConvertTo(unit)
	if err != nil {
		return 0, err
	}
	return radius * centralAngle(a, b), nil
}

// HaversineMeters is Haversine in meters, which cannot fail.
func HaversineMeters(a, b Coordinates) float64 {
	return EarthsRadius.Meters() * centralAngle(a, b)
}

// centralAngle is the angle in radians subtended at the centre of the sphere.
func centralAngle(a, b Coordinates) float64 {
	phiA := radians(a.Lat)
	phiB := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2.0)
	sinLon := math.Sin(dLon / 2.0)
	h := sinLat*sinLat + math.Cos(phiA)*math.Cos(phiB)*sinLon*sinLon
	if h > 1 {
		// rounding near antipodal points
		h = 1
	}

	return 2.0 * math.Atan2(math.Sqrt(h), math.Sqrt(1.0-h))
}
