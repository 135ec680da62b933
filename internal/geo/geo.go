// Package geo provides the geometric primitives used by the canvassing core.
//
// Coordinates are WGS84 degrees. Distances use the great-circle formula;
// polygon area and overlap work on a local tangent plane, which is accurate
// at the scale of a sales territory (a few kilometers) and not beyond.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean earth radius.
const EarthRadiusMeters = 6371000.0

var (
	// ErrInvalidPoint is returned for NaN, infinite or out of range coordinates.
	ErrInvalidPoint = errors.New("invalid point")
	// ErrInvalidPolygon is returned for rings with fewer than 3 distinct points
	// or with invalid coordinates.
	ErrInvalidPolygon = errors.New("invalid polygon")
)

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the point is finite and within WGS84 range.
func (p Point) Validate() error {
	if !finite(p.Lat) || !finite(p.Lng) {
		return fmt.Errorf("%w: non-finite coordinate (%v, %v)", ErrInvalidPoint, p.Lat, p.Lng)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidPoint, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidPoint, p.Lng)
	}
	return nil
}

// String formats the point with five decimals (about a meter).
func (p Point) String() string {
	return fmt.Sprintf("%.5f, %.5f", p.Lat, p.Lng)
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lng)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// Bearing returns the initial bearing from a to b in degrees, 0 = north,
// normalized to [0, 360).
func Bearing(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	deg := math.Atan2(y, x) * 180 / math.Pi
	deg = math.Mod(deg+360, 360)
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// Destination returns the point reached by travelling distance meters from
// p along the given bearing.
func Destination(p Point, bearing, distance float64) Point {
	brng := bearing * math.Pi / 180
	ang := distance / EarthRadiusMeters
	lat := p.Lat * math.Pi / 180
	lng := p.Lng * math.Pi / 180

	lat2 := math.Asin(math.Sin(lat)*math.Cos(ang) + math.Cos(lat)*math.Sin(ang)*math.Cos(brng))
	lng2 := lng + math.Atan2(
		math.Sin(brng)*math.Sin(ang)*math.Cos(lat),
		math.Cos(ang)-math.Sin(lat)*math.Sin(lat2))

	out := Point{Lat: lat2 * 180 / math.Pi, Lng: lng2 * 180 / math.Pi}
	// wrap longitude into [-180, 180]
	out.Lng = math.Mod(out.Lng+540, 360) - 180
	return out
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
