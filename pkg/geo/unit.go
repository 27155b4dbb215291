// Package geo holds the distance model and great-circle math used by every
// repository backend. Everything in here is pure and safe for concurrent use.
package geo

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidUnit is returned when a conversion receives a Unit outside of
// Meters, Kilometers and Miles. The zero Unit is not a unit.
var ErrInvalidUnit = errors.New("geo: invalid unit")

// Unit is the closed set of length units a Distance can be expressed in.
type Unit int

const (
	Meters Unit = iota + 1
	Kilometers
	Miles
)

const (
	metersPerKilometer = 1000.0
	metersPerMile      = 1609.344
)

// Valid reports whether u is one of the enumerated units.
func (u Unit) Valid() bool {
	return u == Meters || u == Kilometers || u == Miles
}

func (u Unit) String() string {
	switch u {
	case Meters:
		return "METERS"
	case Kilometers:
		return "KILOMETERS"
	case Miles:
		return "MILES"
	default:
		return fmt.Sprintf("Unit(%d)", int(u))
	}
}

// ParseUnit maps the spellings accepted on the HTTP API onto a Unit.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "meter", "meters":
		return Meters, nil
	case "km", "kilometer", "kilometers":
		return Kilometers, nil
	case "mi", "mile", "miles":
		return Miles, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidUnit, s)
}

// metersPer returns how many meters make up one u.
func metersPer(u Unit) (float64, error) {
	switch u {
	case Meters:
		return 1, nil
	case Kilometers:
		return metersPerKilometer, nil
	case Miles:
		return metersPerMile, nil
	}
	return 0, fmt.Errorf("%w: expected one of %s, %s, %s, got %s", ErrInvalidUnit, Meters, Kilometers, Miles, u)
}
