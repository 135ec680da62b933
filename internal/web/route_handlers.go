package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/evcraddock/canvasser/internal/geo"
	"github.com/evcraddock/canvasser/internal/property"
	"github.com/evcraddock/canvasser/internal/route"
)

// optimizeRequest selects candidates and a start point. An empty status
// filter means every status except do-not-contact.
type optimizeRequest struct {
	Name        string           `json:"name,omitempty"`
	Start       geo.Point        `json:"start"`
	Status      string           `json:"status,omitempty"`
	Quality     property.Quality `json:"quality,omitempty"`
	TerritoryID string           `json:"territoryId,omitempty"`
}

func (req optimizeRequest) filter() (property.Filter, error) {
	f := property.Filter{Quality: req.Quality, TerritoryID: req.TerritoryID}
	if req.Status != "" {
		st, ok := property.ParseStatus(req.Status)
		if !ok {
			return f, property.ErrInvalidStatus
		}
		f.Status = st
	}
	if !f.Quality.IsValid() {
		return f, property.ErrInvalidQuality
	}
	return f, nil
}

// planResponse is an unsaved plan with its walking estimate.
type planResponse struct {
	route.Plan
	EstimatedTime time.Duration `json:"estimatedTime"`
}

func (s *Server) plan(w http.ResponseWriter, req optimizeRequest) (route.Plan, bool) {
	f, err := req.filter()
	if err != nil {
		apiFail(w, err)
		return route.Plan{}, false
	}
	plan, err := s.svc.OptimizeRoute(req.Start, f)
	if err != nil {
		apiFail(w, err)
		return route.Plan{}, false
	}
	return plan, true
}

// apiOptimizeRoute returns an ordered plan without saving it.
func (s *Server) apiOptimizeRoute(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	plan, ok := s.plan(w, req)
	if !ok {
		return
	}
	apiJSON(w, planResponse{
		Plan:          plan,
		EstimatedTime: s.svc.Routes.Estimate(plan),
	}, http.StatusOK)
}

// apiSaveRoute optimizes and saves in one step.
func (s *Server) apiSaveRoute(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	plan, ok := s.plan(w, req)
	if !ok {
		return
	}
	saved, err := s.svc.SaveRoute(r.Context(), req.Name, plan)
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, saved, http.StatusCreated)
}

func (s *Server) apiListRoutes(w http.ResponseWriter, r *http.Request) {
	routes := s.svc.Routes.List()
	if routes == nil {
		routes = []*route.Route{}
	}
	apiJSON(w, routes, http.StatusOK)
}

func (s *Server) apiGetRoute(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.Route(chi.URLParam(r, "id"))
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, detail, http.StatusOK)
}

func (s *Server) apiDeleteRoute(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteRoute(r.Context(), chi.URLParam(r, "id")); err != nil {
		apiFail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) apiActivateRoute(w http.ResponseWriter, r *http.Request) {
	rt, err := s.svc.ActivateRoute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, rt, http.StatusOK)
}

func (s *Server) apiCompleteRoute(w http.ResponseWriter, r *http.Request) {
	rt, err := s.svc.CompleteRoute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, rt, http.StatusOK)
}
