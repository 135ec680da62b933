package territory

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/canvasser/internal/geo"
	"github.com/evcraddock/canvasser/internal/property"
)

var (
	ErrNotFound  = errors.New("territory not found")
	ErrEmptyName = errors.New("territory name is required")
)

// PropertyQuerier is the read side of the property ledger.
type PropertyQuerier interface {
	Query(f property.Filter) []*property.Property
}

// Registry owns every territory. Overlap sets are kept symmetric: if A lists
// B then B lists A.
type Registry struct {
	mu          sync.RWMutex
	territories map[string]*Territory
	seq         int64

	props PropertyQuerier
	now   func() time.Time
}

// NewRegistry creates an empty registry reading statistics from props.
func NewRegistry(props PropertyQuerier) *Registry {
	return &Registry{
		territories: make(map[string]*Territory),
		props:       props,
		now:         time.Now,
	}
}

// SetClock overrides time.Now.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// Create validates the ring, computes area, centroid and overlaps, and stores
// the territory.
func (r *Registry) Create(name string, ring geo.Ring, color string) (*Territory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if color == "" {
		color = DefaultColor
	}

	closed, area, centroid, err := measure(ring)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	t := &Territory{
		ID:        uuid.NewString(),
		Name:      name,
		Ring:      closed,
		Color:     color,
		Area:      area,
		Centroid:  centroid,
		Overlaps:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.seq++
	t.Seq = r.seq
	r.territories[t.ID] = t
	r.recomputeOverlaps(t)

	return t.clone(), nil
}

// Update replaces the ring and recomputes everything derived from it.
func (r *Registry) Update(id string, ring geo.Ring) (*Territory, error) {
	closed, area, centroid, err := measure(ring)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.territories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t.Ring = closed
	t.Area = area
	t.Centroid = centroid
	t.UpdatedAt = r.now()
	r.recomputeOverlaps(t)

	return t.clone(), nil
}

// Rename changes the display name and, when non-empty, the color.
func (r *Registry) Rename(id, name, color string) (*Territory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.territories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t.Name = name
	if color != "" {
		t.Color = color
	}
	t.UpdatedAt = r.now()
	return t.clone(), nil
}

// Delete removes a territory and every overlap reference to it. Clearing
// property back-references is the caller's job.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.territories[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.territories, id)
	for _, other := range r.territories {
		other.Overlaps = removeID(other.Overlaps, id)
	}
	return nil
}

// Get returns a territory by ID.
func (r *Registry) Get(id string) (*Territory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.territories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t.clone(), nil
}

// List returns all territories ordered by creation time.
func (r *Registry) List() []*Territory {
	r.mu.RLock()
	out := make([]*Territory, 0, len(r.territories))
	for _, t := range r.territories {
		out = append(out, t.clone())
	}
	r.mu.RUnlock()

	sortTerritories(out)
	return out
}

// Locate returns the territories containing p, oldest first.
func (r *Registry) Locate(p geo.Point) []*Territory {
	var out []*Territory
	for _, t := range r.List() {
		if t.Contains(p) {
			out = append(out, t)
		}
	}
	return out
}

// FindOverlapping re-tests the territory against every current ring, so the
// answer reflects edits made to other territories since it was created. The
// stored overlap sets are refreshed as a side effect.
func (r *Registry) FindOverlapping(id string) ([]*Territory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.territories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.recomputeOverlaps(t)

	out := make([]*Territory, 0, len(t.Overlaps))
	for _, oid := range t.Overlaps {
		out = append(out, r.territories[oid].clone())
	}
	sortTerritories(out)
	return out, nil
}

// Stats counts the properties assigned to the territory.
func (r *Registry) Stats(id string) (Stats, error) {
	if _, err := r.Get(id); err != nil {
		return Stats{}, err
	}

	var s Stats
	for _, p := range r.props.Query(property.Filter{TerritoryID: id}) {
		s.TotalProperties++
		if p.Status != property.StatusNotContacted {
			s.Contacted++
		}
		switch p.Status {
		case property.StatusInterested:
			s.Interested++
		case property.StatusAppointment:
			s.Appointments++
		case property.StatusSold:
			s.Sold++
		case property.StatusDoNotContact:
			s.DNC++
		}
	}
	if s.Contacted > 0 {
		s.ConversionRate = float64(s.Sold) / float64(s.Contacted)
	}
	return s, nil
}

// Restore replaces the registry contents from a snapshot. Territories with
// invalid rings are skipped; area, centroid and overlaps are recomputed
// rather than trusted.
func (r *Registry) Restore(ts []*Territory) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.territories = make(map[string]*Territory, len(ts))
	for _, t := range ts {
		if t == nil || t.ID == "" {
			continue
		}
		closed, area, centroid, err := measure(t.Ring)
		if err != nil {
			slog.Warn("skipping restored territory", "id", t.ID, "error", err)
			continue
		}
		c := t.clone()
		c.Ring, c.Area, c.Centroid = closed, area, centroid
		c.Overlaps = []string{}
		if c.Color == "" {
			c.Color = DefaultColor
		}
		r.territories[c.ID] = c
	}
	r.seq = renumber(r.territories)
	for _, t := range r.territories {
		r.recomputeOverlaps(t)
	}
	return len(r.territories)
}

// Snapshot returns a copy of every territory for persistence.
func (r *Registry) Snapshot() []*Territory {
	return r.List()
}

// recomputeOverlaps tests t against every other territory and fixes both
// sides of each overlap set. Callers hold the write lock.
func (r *Registry) recomputeOverlaps(t *Territory) {
	overlaps := []string{}
	for _, other := range r.territories {
		if other.ID == t.ID {
			continue
		}
		hit, err := geo.PolygonsOverlap(t.Ring, other.Ring)
		if err != nil {
			slog.Warn("overlap test failed", "a", t.ID, "b", other.ID, "error", err)
			hit = false
		}
		if hit {
			overlaps = addID(overlaps, other.ID)
			other.Overlaps = addID(other.Overlaps, t.ID)
		} else {
			other.Overlaps = removeID(other.Overlaps, t.ID)
		}
	}
	t.Overlaps = overlaps
}

func measure(ring geo.Ring) (geo.Ring, float64, geo.Point, error) {
	closed, err := geo.ValidateRing(ring)
	if err != nil {
		return nil, 0, geo.Point{}, err
	}
	area, err := geo.PolygonArea(closed)
	if err != nil {
		return nil, 0, geo.Point{}, err
	}
	centroid, err := geo.Centroid(closed)
	if err != nil {
		return nil, 0, geo.Point{}, err
	}
	return closed, area, centroid, nil
}

func addID(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		return ids
	}
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func removeID(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		return append(ids[:i], ids[i+1:]...)
	}
	return ids
}

func sortTerritories(ts []*Territory) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Seq != ts[j].Seq {
			return ts[i].Seq < ts[j].Seq
		}
		if !ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].CreatedAt.Before(ts[j].CreatedAt)
		}
		return ts[i].ID < ts[j].ID
	})
}

// renumber gives restored territories without a sequence number (Seq 0)
// numbers after the highest existing one, in creation-time order, and
// returns the new high-water mark.
func renumber(m map[string]*Territory) int64 {
	var top int64
	var unnumbered []*Territory
	for _, t := range m {
		if t.Seq > top {
			top = t.Seq
		}
		if t.Seq <= 0 {
			t.Seq = 0
			unnumbered = append(unnumbered, t)
		}
	}
	sortTerritories(unnumbered)
	for _, t := range unnumbered {
		top++
		t.Seq = top
	}
	return top
}
