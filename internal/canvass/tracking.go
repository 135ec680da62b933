package canvass

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/evcraddock/canvasser/internal/geo"
	"github.com/evcraddock/canvasser/internal/store"
	"github.com/evcraddock/canvasser/internal/territory"
	"github.com/evcraddock/canvasser/internal/tracker"
)

// UpdateKind tags a live location update.
type UpdateKind string

const (
	UpdateFix   UpdateKind = "fix"
	UpdateEnter UpdateKind = "enter"
	UpdateExit  UpdateKind = "exit"
)

// Update is one message on the live location feed.
type Update struct {
	Kind             UpdateKind  `json:"type"`
	Fix              tracker.Fix `json:"fix"`
	TerritoryID      string      `json:"territoryId,omitempty"`
	TerritoryName    string      `json:"territoryName,omitempty"`
	DistanceTraveled float64     `json:"distanceTraveled"`
}

// StartTracking starts the location tracker.
func (s *Service) StartTracking(ctx context.Context) error {
	return s.Tracker.Start(ctx)
}

// StopTracking stops the tracker and saves the distance walked so far. The
// geofence forgets where the device was, so the first fix after a restart
// reports the territory it lands in.
func (s *Service) StopTracking(ctx context.Context) error {
	s.Tracker.Stop()
	s.fence.Reset()
	s.commit(ctx)
	return nil
}

// PushFix feeds a device fix into the tracker. It only works with the
// default push source.
func (s *Service) PushFix(f tracker.Fix) error {
	if s.push == nil {
		return fmt.Errorf("%w: source does not accept pushed fixes", tracker.ErrUnsupported)
	}
	return s.push.Push(f)
}

// CurrentFix asks the source for one position without touching the filter.
func (s *Service) CurrentFix(ctx context.Context) (tracker.Fix, error) {
	return s.Tracker.CurrentFixOnce(ctx)
}

// LocationStatus is the tracker state plus the territories the last fix
// landed in.
type LocationStatus struct {
	tracker.Status
	InsideTerritories []string `json:"insideTerritories"`
}

// LocationStatus reports the tracker state.
func (s *Service) LocationStatus() LocationStatus {
	inside := s.fence.Inside()
	sort.Strings(inside)
	return LocationStatus{Status: s.Tracker.Status(), InsideTerritories: inside}
}

// Subscribe registers for live updates. Slow subscribers miss updates rather
// than stall the feed.
func (s *Service) Subscribe(buffer int) (<-chan Update, func()) {
	return s.hub.subscribe(buffer)
}

func (s *Service) watch(ctx context.Context, fixes <-chan tracker.Fix, unsubscribe func(), done chan struct{}) {
	defer close(done)
	defer unsubscribe()

	var prev *tracker.Fix
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-fixes:
			if !ok {
				return
			}
			s.onFix(f, prev)
			prev = &f
		}
	}
}

func (s *Service) onFix(f tracker.Fix, prev *tracker.Fix) {
	if prev != nil {
		d := geo.Distance(prev.Point(), f.Point())
		s.count(func(a *store.Analytics) { a.MetersTraveled += d })
	}

	traveled := s.Tracker.DistanceTraveled()
	s.hub.publish(Update{Kind: UpdateFix, Fix: f, DistanceTraveled: traveled})

	for _, e := range s.fence.Check(f, zonesOf(s.Territories.List())) {
		kind := UpdateEnter
		if e.Kind == tracker.EventExit {
			kind = UpdateExit
		}
		slog.Info("territory boundary crossed", "kind", e.Kind, "territory", e.ZoneName, "id", e.ZoneID)
		s.hub.publish(Update{
			Kind:             kind,
			Fix:              f,
			TerritoryID:      e.ZoneID,
			TerritoryName:    e.ZoneName,
			DistanceTraveled: traveled,
		})
	}
}

func zonesOf(ts []*territory.Territory) []tracker.Zone {
	out := make([]tracker.Zone, len(ts))
	for i, t := range ts {
		out[i] = tracker.Zone{ID: t.ID, Name: t.Name, Ring: t.Ring}
	}
	return out
}

// hub fans updates out to subscribers without blocking the watcher.
type hub struct {
	mu     sync.Mutex
	subs   map[int]chan Update
	next   int
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Update)}
}

func (h *hub) subscribe(buffer int) (<-chan Update, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Update, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

func (h *hub) publish(u Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
	h.closed = true
}
