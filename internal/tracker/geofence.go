package tracker

import (
	"sync"

	"github.com/evcraddock/canvasser/internal/geo"
	"github.com/evcraddock/canvasser/internal/metrics"
)

// Zone is a named ring to watch, normally a territory.
type Zone struct {
	ID   string
	Name string
	Ring geo.Ring
}

// EventKind is the direction of a boundary crossing.
type EventKind string

const (
	EventEnter EventKind = "enter"
	EventExit  EventKind = "exit"
)

// Event reports a boundary crossing.
type Event struct {
	Kind     EventKind `json:"kind"`
	ZoneID   string    `json:"zoneId"`
	ZoneName string    `json:"zoneName"`
	Fix      Fix       `json:"fix"`
}

// Geofence remembers which zones the device is inside and reports only the
// transitions. A zone starts out as outside, so the first fix inside it is an
// enter.
type Geofence struct {
	mu     sync.Mutex
	inside map[string]bool
}

// NewGeofence creates a geofence with no memory.
func NewGeofence() *Geofence {
	return &Geofence{inside: make(map[string]bool)}
}

// Check tests f against zones and returns enter and exit events in zone
// order. Zones missing from the list are forgotten without an exit event.
func (g *Geofence) Check(f Fix, zones []Zone) []Event {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := f.Point()
	seen := make(map[string]bool, len(zones))
	var events []Event
	for _, z := range zones {
		seen[z.ID] = true
		now := geo.PointInPolygon(p, z.Ring)
		was := g.inside[z.ID]
		switch {
		case now && !was:
			events = append(events, Event{Kind: EventEnter, ZoneID: z.ID, ZoneName: z.Name, Fix: f})
		case !now && was:
			events = append(events, Event{Kind: EventExit, ZoneID: z.ID, ZoneName: z.Name, Fix: f})
		}
		if now {
			g.inside[z.ID] = true
		} else {
			delete(g.inside, z.ID)
		}
	}
	for id := range g.inside {
		if !seen[id] {
			delete(g.inside, id)
		}
	}

	for _, e := range events {
		metrics.GeofenceEventsTotal.WithLabelValues(string(e.Kind)).Inc()
	}
	return events
}

// Inside returns the IDs of zones the last fix was inside.
func (g *Geofence) Inside() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, 0, len(g.inside))
	for id := range g.inside {
		ids = append(ids, id)
	}
	return ids
}

// Reset forgets every zone.
func (g *Geofence) Reset() {
	g.mu.Lock()
	g.inside = make(map[string]bool)
	g.mu.Unlock()
}
