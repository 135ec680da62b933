// Package territory provides the registry of hand-drawn sales territories,
// their overlap bookkeeping, and per-territory canvassing statistics.
package territory

import (
	"time"

	"github.com/evcraddock/canvasser/internal/geo"
)

// DefaultColor is used when a territory is drawn without a fill color.
const DefaultColor = "#3388ff"

// Territory is a user-drawn sales region.
type Territory struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"` // creation order, never reused
	Name      string    `json:"name"`
	Ring      geo.Ring  `json:"ring"`
	Color     string    `json:"color"`
	Area      float64   `json:"area"` // square meters
	Centroid  geo.Point `json:"centroid"`
	Overlaps  []string  `json:"overlaps"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Contains reports whether p lies inside the territory.
func (t *Territory) Contains(p geo.Point) bool {
	return geo.PointInPolygon(p, t.Ring)
}

func (t *Territory) clone() *Territory {
	c := *t
	c.Ring = append(geo.Ring(nil), t.Ring...)
	c.Overlaps = append([]string{}, t.Overlaps...)
	return &c
}

// Stats summarizes canvassing progress inside a territory.
type Stats struct {
	TotalProperties int     `json:"totalProperties"`
	Contacted       int     `json:"contacted"`
	Interested      int     `json:"interested"`
	Appointments    int     `json:"appointments"`
	Sold            int     `json:"sold"`
	DNC             int     `json:"dnc"`
	ConversionRate  float64 `json:"conversionRate"`
}
