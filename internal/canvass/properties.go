package canvass

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/evcraddock/canvasser/internal/geo"
	"github.com/evcraddock/canvasser/internal/metrics"
	"github.com/evcraddock/canvasser/internal/property"
	"github.com/evcraddock/canvasser/internal/store"
)

// CreateProperty adds a property and assigns it to the oldest territory that
// contains it.
func (s *Service) CreateProperty(ctx context.Context, d property.Draft) (*property.Property, error) {
	p, err := s.Ledger.Create(ctx, d)
	if err != nil {
		return nil, err
	}

	if ts := s.Territories.Locate(p.Point()); len(ts) > 0 {
		if err := s.Ledger.AssignTerritory(p.ID, ts[0].ID); err != nil {
			return nil, err
		}
	}

	s.count(func(a *store.Analytics) { a.PropertiesCreated++ })
	s.commit(ctx)
	if p.NeedsAddress() && s.Ledger.HasGeocoder() {
		s.retryAddress(p.ID)
	}
	return s.Ledger.Get(p.ID)
}

// RelocateProperty moves a mis-placed pin and reassigns it to the oldest
// territory at its new position.
func (s *Service) RelocateProperty(ctx context.Context, id string, pt geo.Point) (*property.Property, error) {
	if _, err := s.Ledger.Relocate(id, pt); err != nil {
		return nil, err
	}
	s.reconcile()
	s.commit(ctx)
	return s.Ledger.Get(id)
}

// RefreshAddress looks the property's address up again.
func (s *Service) RefreshAddress(ctx context.Context, id string) (*property.Property, error) {
	p, err := s.Ledger.RefreshAddress(ctx, id)
	if err != nil {
		return nil, err
	}
	s.commit(ctx)
	return p, nil
}

// retryAddress keeps trying to replace a coordinate placeholder with a street
// address, waiting each of the configured delays in turn. Close stops it.
func (s *Service) retryAddress(id string) {
	if len(s.geocodeRetry) == 0 || s.retryCtx.Err() != nil {
		return
	}
	s.retries.Add(1)
	go func() {
		defer s.retries.Done()
		for _, d := range s.geocodeRetry {
			timer := time.NewTimer(d)
			select {
			case <-s.retryCtx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			p, err := s.Ledger.Get(id)
			if err != nil || !p.NeedsAddress() {
				return
			}
			p, err = s.RefreshAddress(s.retryCtx, id)
			if err == nil {
				slog.Info("resolved address", "id", id, "address", p.Address)
				return
			}
			if errors.Is(err, property.ErrNotFound) {
				return
			}
			slog.Debug("address retry failed", "id", id, "error", err)
		}
		slog.Warn("giving up on address lookup", "id", id, "attempts", len(s.geocodeRetry))
	}()
}

// Nearby is a property with its distance from a search center.
type Nearby struct {
	Property *property.Property `json:"property"`
	Distance float64            `json:"distance"`
}

// MaxNearbyRadius caps PropertiesNear searches, in meters.
const MaxNearbyRadius = 50_000

// ErrInvalidRadius rejects a search radius outside (0, MaxNearbyRadius].
var ErrInvalidRadius = errors.New("invalid radius")

// PropertiesNear returns the properties within radius meters of center,
// closest first.
func (s *Service) PropertiesNear(center geo.Point, radius float64) ([]Nearby, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if !(radius > 0 && radius <= MaxNearbyRadius) {
		return nil, fmt.Errorf("%w: %v must be in (0, %d] meters", ErrInvalidRadius, radius, MaxNearbyRadius)
	}

	box := geo.BoundingBox{Min: center, Max: center}.Expand(radius)
	out := []Nearby{}
	for _, p := range s.Ledger.List() {
		pt := p.Point()
		if !box.Contains(pt) {
			continue
		}
		if d := geo.Distance(center, pt); d <= radius {
			out = append(out, Nearby{Property: p, Distance: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// SetStatus records a status change on the property's visit log.
func (s *Service) SetStatus(ctx context.Context, id string, status property.Status, note string) (*property.Property, error) {
	p, err := s.Ledger.SetStatus(id, status, note)
	if err != nil {
		return nil, err
	}
	metrics.StatusChangesTotal.WithLabelValues(string(status)).Inc()
	s.count(func(a *store.Analytics) { a.StatusChanges++ })
	s.commit(ctx)
	return p, nil
}

// AddNote appends a note to the property's visit log.
func (s *Service) AddNote(ctx context.Context, id, text string) (*property.Visit, error) {
	v, err := s.Ledger.AppendNote(id, text)
	if err != nil {
		return nil, err
	}
	s.count(func(a *store.Analytics) { a.NotesAdded++ })
	s.commit(ctx)
	return v, nil
}

// SetQuality sets the lead temperature.
func (s *Service) SetQuality(ctx context.Context, id string, q property.Quality) (*property.Property, error) {
	p, err := s.Ledger.SetQuality(id, q)
	if err != nil {
		return nil, err
	}
	s.commit(ctx)
	return p, nil
}

// SetPriority marks a property to knock first.
func (s *Service) SetPriority(ctx context.Context, id string, pr property.Priority) (*property.Property, error) {
	p, err := s.Ledger.SetPriority(id, pr)
	if err != nil {
		return nil, err
	}
	s.commit(ctx)
	return p, nil
}

// DeleteProperty removes a property.
func (s *Service) DeleteProperty(ctx context.Context, id string) error {
	if err := s.Ledger.Delete(id); err != nil {
		return err
	}
	s.commit(ctx)
	return nil
}

// Property returns one property.
func (s *Service) Property(id string) (*property.Property, error) {
	return s.Ledger.Get(id)
}

// Properties returns the properties matching f.
func (s *Service) Properties(f property.Filter) []*property.Property {
	return s.Ledger.Query(f)
}
