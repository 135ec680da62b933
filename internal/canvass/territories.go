package canvass

import (
	"context"
	"log/slog"

	"github.com/evcraddock/canvasser/internal/geo"
	"github.com/evcraddock/canvasser/internal/store"
	"github.com/evcraddock/canvasser/internal/territory"
)

// circleSegments is the vertex count used when a territory is drawn as a
// radius around a point.
const circleSegments = 32

// CreateTerritory stores a new territory and claims unassigned properties
// inside it.
func (s *Service) CreateTerritory(ctx context.Context, name string, ring geo.Ring, color string) (*territory.Territory, error) {
	t, err := s.Territories.Create(name, ring, color)
	if err != nil {
		return nil, err
	}
	s.reconcile()
	s.count(func(a *store.Analytics) { a.TerritoriesCreated++ })
	s.commit(ctx)
	return s.Territories.Get(t.ID)
}

// CreateTerritoryAround stores a territory approximating a circle of radius
// meters around center.
func (s *Service) CreateTerritoryAround(ctx context.Context, name string, center geo.Point, radius float64, color string) (*territory.Territory, error) {
	ring, err := geo.Buffer(center, radius, circleSegments)
	if err != nil {
		return nil, err
	}
	return s.CreateTerritory(ctx, name, ring, color)
}

// UpdateTerritory replaces the ring. Properties that fall outside it move to
// another containing territory or become unassigned.
func (s *Service) UpdateTerritory(ctx context.Context, id string, ring geo.Ring) (*territory.Territory, error) {
	if _, err := s.Territories.Update(id, ring); err != nil {
		return nil, err
	}
	s.reconcile()
	s.commit(ctx)
	return s.Territories.Get(id)
}

// RenameTerritory changes the name and, when non-empty, the color.
func (s *Service) RenameTerritory(ctx context.Context, id, name, color string) (*territory.Territory, error) {
	t, err := s.Territories.Rename(id, name, color)
	if err != nil {
		return nil, err
	}
	s.commit(ctx)
	return t, nil
}

// DeleteTerritory removes a territory and releases its properties.
func (s *Service) DeleteTerritory(ctx context.Context, id string) error {
	if err := s.Territories.Delete(id); err != nil {
		return err
	}
	s.Ledger.DetachTerritory(id)
	s.reconcile()
	s.commit(ctx)
	return nil
}

// TerritoryStats counts the properties in a territory.
func (s *Service) TerritoryStats(id string) (territory.Stats, error) {
	return s.Territories.Stats(id)
}

// Overlapping returns the territories currently overlapping id.
func (s *Service) Overlapping(id string) ([]*territory.Territory, error) {
	return s.Territories.FindOverlapping(id)
}

// reconcile makes every property point at a territory that contains it. A
// property keeps its current territory while that still contains it;
// otherwise it takes the oldest containing one, or none.
func (s *Service) reconcile() {
	territories := s.Territories.List()
	byID := make(map[string]*territory.Territory, len(territories))
	for _, t := range territories {
		byID[t.ID] = t
	}

	for _, p := range s.Ledger.List() {
		if t, ok := byID[p.TerritoryID]; ok && t.Contains(p.Point()) {
			continue
		}
		want := ""
		for _, t := range territories {
			if t.Contains(p.Point()) {
				want = t.ID
				break
			}
		}
		if want == p.TerritoryID {
			continue
		}
		if err := s.Ledger.AssignTerritory(p.ID, want); err != nil {
			slog.Debug("reassigning territory", "property", p.ID, "error", err)
		}
	}
}
