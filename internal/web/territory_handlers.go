package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/evcraddock/canvasser/internal/geo"
	"github.com/evcraddock/canvasser/internal/territory"
)

// territoryRequest creates a territory from a ring or from a center and
// radius in meters.
type territoryRequest struct {
	Name   string     `json:"name"`
	Color  string     `json:"color"`
	Ring   geo.Ring   `json:"ring,omitempty"`
	Center *geo.Point `json:"center,omitempty"`
	Radius float64    `json:"radius,omitempty"`
}

func (s *Server) apiListTerritories(w http.ResponseWriter, r *http.Request) {
	ts := s.svc.Territories.List()
	if ts == nil {
		ts = []*territory.Territory{}
	}
	apiJSON(w, ts, http.StatusOK)
}

func (s *Server) apiCreateTerritory(w http.ResponseWriter, r *http.Request) {
	var req territoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		t   *territory.Territory
		err error
	)
	switch {
	case len(req.Ring) > 0 && req.Center != nil:
		apiError(w, "give either ring or center and radius, not both", http.StatusBadRequest)
		return
	case len(req.Ring) > 0:
		t, err = s.svc.CreateTerritory(r.Context(), req.Name, req.Ring, req.Color)
	case req.Center != nil:
		t, err = s.svc.CreateTerritoryAround(r.Context(), req.Name, *req.Center, req.Radius, req.Color)
	default:
		apiError(w, "ring or center and radius is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, t, http.StatusCreated)
}

func (s *Server) apiGetTerritory(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Territories.Get(chi.URLParam(r, "id"))
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, t, http.StatusOK)
}

// apiUpdateTerritory applies a new ring, name or color. Absent fields are
// left unchanged.
func (s *Server) apiUpdateTerritory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Name  string   `json:"name"`
		Color string   `json:"color"`
		Ring  geo.Ring `json:"ring,omitempty"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Ring) == 0 && req.Name == "" && req.Color == "" {
		apiError(w, "nothing to update", http.StatusBadRequest)
		return
	}

	t, err := s.svc.Territories.Get(id)
	if err != nil {
		apiFail(w, err)
		return
	}
	if len(req.Ring) > 0 {
		if t, err = s.svc.UpdateTerritory(r.Context(), id, req.Ring); err != nil {
			apiFail(w, err)
			return
		}
	}
	if req.Name != "" || req.Color != "" {
		name := req.Name
		if name == "" {
			name = t.Name
		}
		if t, err = s.svc.RenameTerritory(r.Context(), id, name, req.Color); err != nil {
			apiFail(w, err)
			return
		}
	}
	apiJSON(w, t, http.StatusOK)
}

func (s *Server) apiDeleteTerritory(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteTerritory(r.Context(), chi.URLParam(r, "id")); err != nil {
		apiFail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) apiTerritoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.TerritoryStats(chi.URLParam(r, "id"))
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, stats, http.StatusOK)
}

func (s *Server) apiTerritoryOverlaps(w http.ResponseWriter, r *http.Request) {
	ts, err := s.svc.Overlapping(chi.URLParam(r, "id"))
	if err != nil {
		apiFail(w, err)
		return
	}
	if ts == nil {
		ts = []*territory.Territory{}
	}
	apiJSON(w, ts, http.StatusOK)
}

// apiTerritoriesGeoJSON serves every territory as a GeoJSON
// FeatureCollection for map layers.
func (s *Server) apiTerritoriesGeoJSON(w http.ResponseWriter, r *http.Request) {
	data, err := s.svc.Territories.FeatureCollection()
	if err != nil {
		apiFail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if _, err := w.Write(data); err != nil {
		return
	}
}
