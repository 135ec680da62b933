package property

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/canvasser/internal/geo"
)

var (
	ErrNotFound           = errors.New("property not found")
	ErrEmptyNote          = errors.New("note is empty")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidQuality     = errors.New("invalid quality")
	ErrInvalidPriority    = errors.New("invalid priority")
	ErrGeocodeUnavailable = errors.New("geocode unavailable")
	ErrNoGeocoder         = errors.New("no geocoder configured")
)

// Geocoder resolves a coordinate to a street address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, p geo.Point) (string, error)
}

// Ledger owns every property and its visit log. Each mutation of a property
// runs in a single critical section, so a status update and its audit entry
// are never observed apart.
type Ledger struct {
	mu         sync.RWMutex
	properties map[string]*Property
	seq        int64

	now      func() time.Time
	geocoder Geocoder
	policy   TransitionPolicy
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithGeocoder enables reverse geocoding for drafts without an address.
func WithGeocoder(g Geocoder) Option {
	return func(l *Ledger) { l.geocoder = g }
}

// WithPolicy sets the status transition policy. The default allows any
// transition.
func WithPolicy(p TransitionPolicy) Option {
	return func(l *Ledger) { l.policy = p }
}

// NewLedger creates an empty ledger.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		properties: make(map[string]*Property),
		now:        time.Now,
		policy:     Permissive{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create validates the draft and stores a new property in the
// not_contacted state.
func (l *Ledger) Create(ctx context.Context, d Draft) (*Property, error) {
	pt := geo.Point{Lat: d.Lat, Lng: d.Lng}
	if err := pt.Validate(); err != nil {
		return nil, err
	}
	if !d.Quality.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidQuality, d.Quality)
	}
	if d.Priority == "" {
		d.Priority = PriorityNormal
	}
	if !d.Priority.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, d.Priority)
	}

	address := strings.TrimSpace(d.Address)
	if address == "" {
		var err error
		if address, err = l.resolveAddress(ctx, pt); err != nil {
			slog.Warn("reverse geocode failed, using coordinates",
				"lat", pt.Lat, "lng", pt.Lng, "error", err)
		}
	}

	now := l.now()
	p := &Property{
		ID:        uuid.NewString(),
		Address:   address,
		Lat:       d.Lat,
		Lng:       d.Lng,
		Status:    StatusNotContacted,
		Quality:   d.Quality,
		Priority:  d.Priority,
		Visits:    []Visit{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	l.mu.Lock()
	l.seq++
	p.Seq = l.seq
	l.properties[p.ID] = p
	l.mu.Unlock()

	return p.clone(), nil
}

// resolveAddress asks the geocoder for an address. On failure it returns the
// coordinates themselves and an error wrapping both ErrGeocodeUnavailable and
// the geocoder's own error. Without a geocoder it returns the coordinates and
// no error.
func (l *Ledger) resolveAddress(ctx context.Context, pt geo.Point) (string, error) {
	if l.geocoder == nil {
		return pt.String(), nil
	}
	addr, err := l.geocoder.ReverseGeocode(ctx, pt)
	if err == nil && strings.TrimSpace(addr) == "" {
		err = errors.New("empty address")
	}
	if err != nil {
		return pt.String(), fmt.Errorf("%w: %w", ErrGeocodeUnavailable, err)
	}
	return strings.TrimSpace(addr), nil
}

// HasGeocoder reports whether addresses can be looked up.
func (l *Ledger) HasGeocoder() bool {
	return l.geocoder != nil
}

// RefreshAddress reverse-geocodes the property again and stores the result.
// The lookup runs outside the lock.
func (l *Ledger) RefreshAddress(ctx context.Context, id string) (*Property, error) {
	if l.geocoder == nil {
		return nil, ErrNoGeocoder
	}
	p, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	addr, err := l.resolveAddress(ctx, p.Point())
	if err != nil {
		return nil, err
	}
	if err := l.SetAddress(id, addr); err != nil {
		return nil, err
	}
	return l.Get(id)
}

// Get returns a property by ID.
func (l *Ledger) Get(id string) (*Property, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.properties[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p.clone(), nil
}

// List returns every property ordered by creation time.
func (l *Ledger) List() []*Property {
	return l.Query(Filter{})
}

// Query returns the properties matching every set field of f in creation
// order.
func (l *Ledger) Query(f Filter) []*Property {
	l.mu.RLock()
	out := make([]*Property, 0, len(l.properties))
	for _, p := range l.properties {
		if f.matches(p) {
			out = append(out, p.clone())
		}
	}
	l.mu.RUnlock()

	sortProperties(out)
	return out
}

// SetStatus changes the status and appends a status_change visit.
func (l *Ledger) SetStatus(id string, status Status, note string) (*Property, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.properties[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := l.policy.Allow(p.Status, status); err != nil {
		return nil, err
	}

	now := l.now()
	p.Visits = append(p.Visits, Visit{
		ID:             uuid.NewString(),
		Type:           VisitStatusChange,
		Status:         status,
		PreviousStatus: p.Status,
		Notes:          strings.TrimSpace(note),
		Timestamp:      now,
	})
	p.Status = status
	p.UpdatedAt = now
	p.LastVisitAt = &now

	return p.clone(), nil
}

// AppendNote records a note without changing the status.
func (l *Ledger) AppendNote(id, text string) (*Visit, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyNote
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.properties[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	now := l.now()
	v := Visit{
		ID:        uuid.NewString(),
		Type:      VisitNote,
		Notes:     text,
		Timestamp: now,
	}
	p.Visits = append(p.Visits, v)
	p.UpdatedAt = now
	p.LastVisitAt = &now

	return &v, nil
}

// SetQuality changes the lead temperature and logs a manual visit.
func (l *Ledger) SetQuality(id string, q Quality) (*Property, error) {
	if !q.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidQuality, q)
	}
	return l.mutate(id, func(p *Property) string {
		p.Quality = q
		if q == QualityUnset {
			return "quality cleared"
		}
		return "quality set to " + string(q)
	})
}

// SetPriority changes the knock priority and logs a manual visit.
func (l *Ledger) SetPriority(id string, pr Priority) (*Property, error) {
	if !pr.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, pr)
	}
	return l.mutate(id, func(p *Property) string {
		p.Priority = pr
		return "priority set to " + string(pr)
	})
}

// Relocate corrects a mis-placed pin. The territory reference is cleared
// because the property may now sit elsewhere.
func (l *Ledger) Relocate(id string, pt geo.Point) (*Property, error) {
	if err := pt.Validate(); err != nil {
		return nil, err
	}
	return l.mutate(id, func(p *Property) string {
		from := p.Point()
		p.Lat, p.Lng = pt.Lat, pt.Lng
		p.TerritoryID = ""
		return fmt.Sprintf("location corrected from %s to %s", from, pt)
	})
}

// mutate applies fn under the lock and appends a manual visit with the
// description fn returns.
func (l *Ledger) mutate(id string, fn func(*Property) string) (*Property, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.properties[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	now := l.now()
	desc := fn(p)
	p.Visits = append(p.Visits, Visit{
		ID:        uuid.NewString(),
		Type:      VisitManual,
		Notes:     desc,
		Timestamp: now,
	})
	p.UpdatedAt = now

	return p.clone(), nil
}

// SetAddress replaces the address, e.g. once a late reverse geocode returns.
func (l *Ledger) SetAddress(id, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return fmt.Errorf("address is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.properties[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	p.Address = address
	p.UpdatedAt = l.now()
	return nil
}

// AssignTerritory sets the territory reference. An empty territoryID clears it.
func (l *Ledger) AssignTerritory(id, territoryID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.properties[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	p.TerritoryID = territoryID
	return nil
}

// DetachTerritory clears every reference to territoryID and returns how many
// properties were affected.
func (l *Ledger) DetachTerritory(territoryID string) int {
	if territoryID == "" {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, p := range l.properties {
		if p.TerritoryID == territoryID {
			p.TerritoryID = ""
			n++
		}
	}
	return n
}

// Delete removes a property. Saved routes that reference it are left alone
// and skip the missing ID when resolved.
func (l *Ledger) Delete(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.properties[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(l.properties, id)
	return nil
}

// Restore replaces the ledger contents, e.g. from a persisted snapshot.
// Properties with invalid coordinates or statuses are skipped.
func (l *Ledger) Restore(props []*Property) int {
	m := make(map[string]*Property, len(props))
	for _, p := range props {
		if p == nil || p.ID == "" {
			continue
		}
		if err := p.Point().Validate(); err != nil {
			slog.Warn("skipping restored property", "id", p.ID, "error", err)
			continue
		}
		c := p.clone()
		if c.Status == "" {
			c.Status = StatusNotContacted
		}
		if !c.Status.IsValid() {
			slog.Warn("skipping restored property", "id", p.ID, "status", c.Status)
			continue
		}
		if c.Priority == "" {
			c.Priority = PriorityNormal
		}
		m[c.ID] = c
	}

	l.mu.Lock()
	l.properties = m
	l.seq = renumber(m)
	l.mu.Unlock()

	return len(m)
}

// Snapshot returns a copy of every property for persistence.
func (l *Ledger) Snapshot() []*Property {
	return l.List()
}

func sortProperties(props []*Property) {
	sort.Slice(props, func(i, j int) bool {
		if props[i].Seq != props[j].Seq {
			return props[i].Seq < props[j].Seq
		}
		if !props[i].CreatedAt.Equal(props[j].CreatedAt) {
			return props[i].CreatedAt.Before(props[j].CreatedAt)
		}
		return props[i].ID < props[j].ID
	})
}

// renumber gives restored properties that predate sequence numbers (Seq 0)
// numbers after the highest existing one, in creation-time order, and
// returns the new high-water mark.
func renumber(m map[string]*Property) int64 {
	var top int64
	var unnumbered []*Property
	for _, p := range m {
		if p.Seq > top {
			top = p.Seq
		}
		if p.Seq <= 0 {
			p.Seq = 0
			unnumbered = append(unnumbered, p)
		}
	}
	sortProperties(unnumbered)
	for _, p := range unnumbered {
		top++
		p.Seq = top
	}
	return top
}
