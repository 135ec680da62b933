package geo

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// boundaryEpsilon is the tolerance, in degrees, for treating a point as
// lying on a ring edge. Roughly 0.1 mm at the equator.
const boundaryEpsilon = 1e-9

// Ring is a closed polygon boundary. A valid ring has at least three distinct
// points and repeats its first point at the end.
type Ring []Point

// BoundingBox is an axis-aligned box in degrees.
type BoundingBox struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// Contains reports whether p lies inside or on the box.
func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.Min.Lat && p.Lat <= b.Max.Lat &&
		p.Lng >= b.Min.Lng && p.Lng <= b.Max.Lng
}

// Expand grows the box by meters on every side.
func (b BoundingBox) Expand(meters float64) BoundingBox {
	dLat := meters / EarthRadiusMeters * 180 / math.Pi
	midLat := (b.Min.Lat + b.Max.Lat) / 2 * math.Pi / 180
	dLng := dLat
	if c := math.Cos(midLat); c > 1e-6 {
		dLng = dLat / c
	}
	return BoundingBox{
		Min: Point{Lat: math.Max(-90, b.Min.Lat-dLat), Lng: math.Max(-180, b.Min.Lng-dLng)},
		Max: Point{Lat: math.Min(90, b.Max.Lat+dLat), Lng: math.Min(180, b.Max.Lng+dLng)},
	}
}

// BoundingBoxOf returns the box enclosing all points.
func BoundingBoxOf(points []Point) (BoundingBox, error) {
	if len(points) == 0 {
		return BoundingBox{}, fmt.Errorf("%w: no points", ErrInvalidPoint)
	}
	b := BoundingBox{Min: points[0], Max: points[0]}
	for _, p := range points {
		if err := p.Validate(); err != nil {
			return BoundingBox{}, err
		}
		b.Min.Lat = math.Min(b.Min.Lat, p.Lat)
		b.Min.Lng = math.Min(b.Min.Lng, p.Lng)
		b.Max.Lat = math.Max(b.Max.Lat, p.Lat)
		b.Max.Lng = math.Max(b.Max.Lng, p.Lng)
	}
	return b, nil
}

// ValidateRing checks ring coordinates and returns the ring closed. It never
// alters points: an open ring gains its closing point, nothing else.
func ValidateRing(r Ring) (Ring, error) {
	if len(r) < 3 {
		return nil, fmt.Errorf("%w: need at least 3 points, got %d", ErrInvalidPolygon, len(r))
	}
	for i, p := range r {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: point %d: %v", ErrInvalidPolygon, i, err)
		}
	}

	distinct := make(map[Point]struct{}, len(r))
	for _, p := range r {
		distinct[p] = struct{}{}
	}
	if len(distinct) < 3 {
		return nil, fmt.Errorf("%w: need at least 3 distinct points, got %d", ErrInvalidPolygon, len(distinct))
	}

	out := make(Ring, len(r), len(r)+1)
	copy(out, r)
	if out[0] != out[len(out)-1] {
		out = append(out, out[0])
	}

	if doubleArea(out) == 0 {
		return nil, fmt.Errorf("%w: points are collinear", ErrInvalidPolygon)
	}
	return out, nil
}

// PolygonArea returns the ring's area in square meters on a local tangent
// plane. The result does not depend on winding order.
func PolygonArea(r Ring) (float64, error) {
	ring, err := ValidateRing(r)
	if err != nil {
		return 0, err
	}

	origin := meanPoint(ring)
	coords := make([]geom.Coord, len(ring))
	for i, p := range ring {
		x, y := project(origin, p)
		coords[i] = geom.Coord{x, y}
	}

	poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{coords})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPolygon, err)
	}
	return math.Abs(poly.Area()), nil
}

// Centroid returns the area-weighted centroid of the ring.
func Centroid(r Ring) (Point, error) {
	ring, err := ValidateRing(r)
	if err != nil {
		return Point{}, err
	}

	poly, err := toPolygon(ring)
	if err != nil {
		return Point{}, err
	}
	c, err := xy.Centroid(poly)
	if err != nil {
		return Point{}, fmt.Errorf("computing centroid: %w", err)
	}

	out := Point{Lat: c[1], Lng: c[0]}
	if !finite(out.Lat) || !finite(out.Lng) {
		return Point{}, fmt.Errorf("%w: degenerate centroid", ErrInvalidPolygon)
	}
	return out, nil
}

// PointInPolygon reports whether p is inside the ring using even-odd ray
// casting. Points exactly on an edge get whichever answer the ray produces,
// always the same one for the same inputs.
func PointInPolygon(p Point, r Ring) bool {
	n := len(r)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		yi, xi := r[i].Lat, r[i].Lng
		yj, xj := r[j].Lat, r[j].Lng
		if (yi > p.Lat) != (yj > p.Lat) &&
			p.Lng < (xj-xi)*(p.Lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// PolygonsOverlap reports whether the interiors of a and b share a region of
// non-zero area. Rings that only touch along an edge or at a vertex do not
// overlap.
func PolygonsOverlap(a, b Ring) (bool, error) {
	ra, err := ValidateRing(a)
	if err != nil {
		return false, err
	}
	rb, err := ValidateRing(b)
	if err != nil {
		return false, err
	}

	pa, err := toPolygon(ra)
	if err != nil {
		return false, err
	}
	pb, err := toPolygon(rb)
	if err != nil {
		return false, err
	}
	if !pa.Bounds().Overlaps(geom.XY, pb.Bounds()) {
		return false, nil
	}

	for i := 0; i+1 < len(ra); i++ {
		for j := 0; j+1 < len(rb); j++ {
			if properlyCross(ra[i], ra[i+1], rb[j], rb[j+1]) {
				return true, nil
			}
		}
	}

	// No transversal crossing: either disjoint, touching, or one boundary
	// runs inside the other polygon.
	for _, p := range probes(ra) {
		if strictlyInside(p, rb) {
			return true, nil
		}
	}
	for _, p := range probes(rb) {
		if strictlyInside(p, ra) {
			return true, nil
		}
	}
	return false, nil
}

// Buffer returns a closed ring approximating a circle of radius meters
// around center.
func Buffer(center Point, radius float64, segments int) (Ring, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if !finite(radius) || radius <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive, got %v", ErrInvalidPolygon, radius)
	}
	if segments < 3 {
		segments = 32
	}

	ring := make(Ring, 0, segments+1)
	for i := 0; i < segments; i++ {
		ring = append(ring, Destination(center, float64(i)*360/float64(segments), radius))
	}
	ring = append(ring, ring[0])
	return ring, nil
}

func toPolygon(r Ring) (*geom.Polygon, error) {
	coords := make([]geom.Coord, len(r))
	for i, p := range r {
		coords[i] = geom.Coord{p.Lng, p.Lat}
	}
	poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{coords})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolygon, err)
	}
	return poly, nil
}

// project maps p onto a plane tangent at origin, in meters.
func project(origin, p Point) (float64, float64) {
	k := EarthRadiusMeters * math.Pi / 180
	x := (p.Lng - origin.Lng) * k * math.Cos(origin.Lat*math.Pi/180)
	y := (p.Lat - origin.Lat) * k
	return x, y
}

func meanPoint(r Ring) Point {
	var lat, lng float64
	n := len(r) - 1 // skip the closing point
	for _, p := range r[:n] {
		lat += p.Lat
		lng += p.Lng
	}
	return Point{Lat: lat / float64(n), Lng: lng / float64(n)}
}

func doubleArea(r Ring) float64 {
	var sum float64
	for i := 0; i+1 < len(r); i++ {
		sum += r[i].Lng*r[i+1].Lat - r[i+1].Lng*r[i].Lat
	}
	return math.Abs(sum)
}

// orientation is positive for a counter-clockwise turn a→b→c, negative for
// clockwise and zero when collinear.
func orientation(a, b, c Point) int {
	v := (b.Lng-a.Lng)*(c.Lat-a.Lat) - (b.Lat-a.Lat)*(c.Lng-a.Lng)
	switch {
	case v > boundaryEpsilon*boundaryEpsilon:
		return 1
	case v < -boundaryEpsilon*boundaryEpsilon:
		return -1
	}
	return 0
}

func properlyCross(a1, a2, b1, b2 Point) bool {
	o1 := orientation(a1, a2, b1)
	o2 := orientation(a1, a2, b2)
	o3 := orientation(b1, b2, a1)
	o4 := orientation(b1, b2, a2)
	return o1*o2 < 0 && o3*o4 < 0
}

// probes returns the points used to detect containment without crossings:
// vertices, edge midpoints and the centroid.
func probes(r Ring) []Point {
	pts := make([]Point, 0, 2*len(r)+1)
	for i := 0; i+1 < len(r); i++ {
		pts = append(pts, r[i], Point{
			Lat: (r[i].Lat + r[i+1].Lat) / 2,
			Lng: (r[i].Lng + r[i+1].Lng) / 2,
		})
	}
	if c, err := Centroid(r); err == nil {
		pts = append(pts, c)
	}
	return pts
}

func strictlyInside(p Point, r Ring) bool {
	return !onBoundary(p, r) && PointInPolygon(p, r)
}

func onBoundary(p Point, r Ring) bool {
	for i := 0; i+1 < len(r); i++ {
		if segmentDistance(p, r[i], r[i+1]) <= boundaryEpsilon {
			return true
		}
	}
	return false
}

// segmentDistance is the planar distance in degrees from p to segment ab.
func segmentDistance(p, a, b Point) float64 {
	dx, dy := b.Lng-a.Lng, b.Lat-a.Lat
	if dx == 0 && dy == 0 {
		return math.Hypot(p.Lng-a.Lng, p.Lat-a.Lat)
	}
	t := ((p.Lng-a.Lng)*dx + (p.Lat-a.Lat)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.Lng-(a.Lng+t*dx), p.Lat-(a.Lat+t*dy))
}
