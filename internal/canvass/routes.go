package canvass

import (
	"context"
	"time"

	"github.com/evcraddock/canvasser/internal/geo"
	"github.com/evcraddock/canvasser/internal/metrics"
	"github.com/evcraddock/canvasser/internal/property"
	"github.com/evcraddock/canvasser/internal/route"
	"github.com/evcraddock/canvasser/internal/store"
)

// RouteDetail is a saved route with its stops resolved against the ledger.
type RouteDetail struct {
	*route.Route
	Stops   []*property.Property `json:"stops"`
	Missing []string             `json:"missing,omitempty"`
}

// OptimizeRoute orders the properties matching f from start. Do-not-contact
// properties are always left out.
func (s *Service) OptimizeRoute(start geo.Point, f property.Filter) (route.Plan, error) {
	if err := start.Validate(); err != nil {
		return route.Plan{}, err
	}

	var candidates []*property.Property
	for _, p := range s.Ledger.Query(f) {
		if p.Status == property.StatusDoNotContact {
			continue
		}
		candidates = append(candidates, p)
	}

	began := time.Now()
	plan := route.Optimize(start, candidates)
	metrics.RouteOptimizeDurationMs.Observe(float64(time.Since(began).Microseconds()) / 1000)
	return plan, nil
}

// SaveRoute stores plan under name.
func (s *Service) SaveRoute(ctx context.Context, name string, plan route.Plan) (*route.Route, error) {
	r, err := s.Routes.Save(name, plan)
	if err != nil {
		return nil, err
	}
	s.count(func(a *store.Analytics) { a.RoutesSaved++ })
	s.commit(ctx)
	return r, nil
}

// Route returns a saved route with its current stops.
func (s *Service) Route(id string) (*RouteDetail, error) {
	r, err := s.Routes.Get(id)
	if err != nil {
		return nil, err
	}
	stops, missing := route.Resolve(r, s.Ledger.Get)
	if stops == nil {
		stops = []*property.Property{}
	}
	return &RouteDetail{Route: r, Stops: stops, Missing: missing}, nil
}

// ActivateRoute makes id the one active route.
func (s *Service) ActivateRoute(ctx context.Context, id string) (*route.Route, error) {
	r, err := s.Routes.Activate(id)
	if err != nil {
		return nil, err
	}
	s.commit(ctx)
	return r, nil
}

// CompleteRoute marks a route finished.
func (s *Service) CompleteRoute(ctx context.Context, id string) (*route.Route, error) {
	r, err := s.Routes.Complete(id)
	if err != nil {
		return nil, err
	}
	s.commit(ctx)
	return r, nil
}

// DeleteRoute removes a saved route.
func (s *Service) DeleteRoute(ctx context.Context, id string) error {
	if err := s.Routes.Delete(id); err != nil {
		return err
	}
	s.commit(ctx)
	return nil
}
