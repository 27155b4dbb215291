package geo

import (
	"math"
	"strconv"
)

// Distance is a length stored canonically in meters. It is a comparable value,
// so two distances with the same meter value are == and interchangeable as map keys.
type Distance struct {
	meters float64
}

// EarthsRadius is the mean radius of the Earth.
var EarthsRadius = FromMeters(6371000)

// Everywhere is longer than any great-circle path on the Earth, so a search
// with it as the radius matches every stored node.
var Everywhere = FromMeters(math.Pi*EarthsRadius.Meters() + 1)

func FromMeters(m float64) Distance { return Distance{meters: m} }

func FromKilometers(km float64) Distance { return Distance{meters: km * metersPerKilometer} }

func FromMiles(mi float64) Distance { return Distance{meters: mi * metersPerMile} }

// From builds a Distance of v expressed in unit.
func From(v float64, unit Unit) (Distance, error) {
	factor, err := metersPer(unit)
	if err != nil {
		return Distance{}, err
	}
	return Distance{meters: v * factor}, nil
}

func (d Distance) Meters() float64 { return d.meters }

func (d Distance) Kilometers() float64 { return d.meters / metersPerKilometer }

func (d Distance) Miles() float64 { return d.meters / metersPerMile }

// ConvertTo expresses d in unit. It fails with ErrInvalidUnit for anything
// that is not Meters, Kilometers or Miles.
func (d Distance) ConvertTo(unit Unit) (float64, error) {
	switch unit {
	case Meters:
		return d.Meters(), nil
	case Kilometers:
		return d.Kilometers(), nil
	case Miles:
		return d.Miles(), nil
	}
	_, err := metersPer(unit)
	return 0, err
}

func (d Distance) String() string {
	return strconv.FormatFloat(d.meters, 'f', -1, 64) + "m"
}
