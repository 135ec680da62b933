// Package route orders knock lists with a greedy nearest-neighbor walk and
// keeps the reps' saved routes.
package route

import (
	"time"

	"github.com/evcraddock/canvasser/internal/geo"
	"github.com/evcraddock/canvasser/internal/property"
)

// Plan is an ordered visiting sequence.
type Plan struct {
	Stops         []*property.Property `json:"stops"`
	TotalDistance float64              `json:"totalDistance"` // meters, including the leg from start
}

// IDs returns the stop IDs in visiting order.
func (p Plan) IDs() []string {
	ids := make([]string, len(p.Stops))
	for i, s := range p.Stops {
		ids[i] = s.ID
	}
	return ids
}

// Optimize orders candidates by repeatedly stepping to the nearest unvisited
// one, starting from start. Ties go to the candidate listed first. This is a
// heuristic: every candidate is visited exactly once, but the total distance
// is not guaranteed minimal.
func Optimize(start geo.Point, candidates []*property.Property) Plan {
	remaining := make([]*property.Property, 0, len(candidates))
	for _, c := range candidates {
		if c != nil {
			remaining = append(remaining, c)
		}
	}

	plan := Plan{Stops: make([]*property.Property, 0, len(remaining))}
	current := start
	for len(remaining) > 0 {
		best := 0
		bestDist := geo.Distance(current, remaining[0].Point())
		for i := 1; i < len(remaining); i++ {
			if d := geo.Distance(current, remaining[i].Point()); d < bestDist {
				best, bestDist = i, d
			}
		}

		next := remaining[best]
		plan.Stops = append(plan.Stops, next)
		plan.TotalDistance += bestDist
		current = next.Point()

		// Remove while keeping input order for tie-breaking.
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return plan
}

// Pace describes how fast a rep works a route.
type Pace struct {
	MetersPerSecond float64
	PerStop         time.Duration
}

// DefaultPace is a walking rep spending three minutes at each door.
var DefaultPace = Pace{MetersPerSecond: 1.3, PerStop: 3 * time.Minute}

// EstimateDuration returns walking time plus time spent at each stop.
func EstimateDuration(plan Plan, pace Pace) time.Duration {
	if pace.MetersPerSecond <= 0 {
		pace.MetersPerSecond = DefaultPace.MetersPerSecond
	}
	walk := time.Duration(plan.TotalDistance / pace.MetersPerSecond * float64(time.Second))
	return walk + time.Duration(len(plan.Stops))*pace.PerStop
}
