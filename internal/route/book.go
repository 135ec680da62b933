package route

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/canvasser/internal/property"
)

var (
	ErrNotFound  = errors.New("route not found")
	ErrEmptyName = errors.New("route name is required")
)

// Status is where a saved route is in its lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
)

// Route is a saved visiting plan.
type Route struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	PropertyIDs   []string      `json:"propertyIds"`
	Distance      float64       `json:"distance"`
	EstimatedTime time.Duration `json:"estimatedTime"`
	Status        Status        `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
}

func (r *Route) clone() *Route {
	c := *r
	c.PropertyIDs = append([]string{}, r.PropertyIDs...)
	return &c
}

// Book holds saved routes. At most one route is active at a time.
type Book struct {
	mu     sync.RWMutex
	routes map[string]*Route
	pace   Pace
	now    func() time.Time
}

// NewBook creates an empty route book estimating durations at pace.
func NewBook(pace Pace) *Book {
	return &Book{
		routes: make(map[string]*Route),
		pace:   pace,
		now:    time.Now,
	}
}

// SetClock overrides time.Now.
func (b *Book) SetClock(now func() time.Time) {
	b.now = now
}

// Estimate returns the time to work plan at the book's pace.
func (b *Book) Estimate(plan Plan) time.Duration {
	return EstimateDuration(plan, b.pace)
}

// Save stores the plan as a pending route.
func (b *Book) Save(name string, plan Plan) (*Route, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	r := &Route{
		ID:            uuid.NewString(),
		Name:          name,
		PropertyIDs:   plan.IDs(),
		Distance:      plan.TotalDistance,
		EstimatedTime: b.Estimate(plan),
		Status:        StatusPending,
		CreatedAt:     b.now(),
	}

	b.mu.Lock()
	b.routes[r.ID] = r
	b.mu.Unlock()

	return r.clone(), nil
}

// Get returns a route by ID.
func (b *Book) Get(id string) (*Route, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.routes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.clone(), nil
}

// List returns every route, newest first.
func (b *Book) List() []*Route {
	b.mu.RLock()
	out := make([]*Route, 0, len(b.routes))
	for _, r := range b.routes {
		out = append(out, r.clone())
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Active returns the active route, if any.
func (b *Book) Active() (*Route, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, r := range b.routes {
		if r.Status == StatusActive {
			return r.clone(), true
		}
	}
	return nil, false
}

// Activate makes id the active route. A previously active route goes back
// to pending.
func (b *Book) Activate(id string) (*Route, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.routes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for _, other := range b.routes {
		if other.Status == StatusActive {
			other.Status = StatusPending
		}
	}
	r.Status = StatusActive
	return r.clone(), nil
}

// Complete marks a route finished.
func (b *Book) Complete(id string) (*Route, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.routes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.Status = StatusComplete
	return r.clone(), nil
}

// Delete removes a saved route.
func (b *Book) Delete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.routes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(b.routes, id)
	return nil
}

// Restore replaces the book contents from a snapshot. If the snapshot holds
// more than one active route only the newest stays active.
func (b *Book) Restore(routes []*Route) int {
	m := make(map[string]*Route, len(routes))
	var active *Route
	for _, r := range routes {
		if r == nil || r.ID == "" {
			continue
		}
		c := r.clone()
		switch c.Status {
		case StatusPending, StatusComplete:
		case StatusActive:
			if active == nil || c.CreatedAt.After(active.CreatedAt) {
				if active != nil {
					active.Status = StatusPending
				}
				active = c
			} else {
				c.Status = StatusPending
			}
		default:
			c.Status = StatusPending
		}
		m[c.ID] = c
	}

	b.mu.Lock()
	b.routes = m
	b.mu.Unlock()

	return len(m)
}

// Snapshot returns a copy of every route for persistence.
func (b *Book) Snapshot() []*Route {
	return b.List()
}

// Lookup fetches a property by ID.
type Lookup func(id string) (*property.Property, error)

// Resolve returns the route's stops that still exist, in route order, and
// the IDs of properties deleted since the route was saved.
func Resolve(r *Route, lookup Lookup) ([]*property.Property, []string) {
	var stops []*property.Property
	var missing []string
	for _, id := range r.PropertyIDs {
		p, err := lookup(id)
		if err != nil {
			missing = append(missing, id)
			continue
		}
		stops = append(stops, p)
	}
	return stops, missing
}
