package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/evcraddock/canvasser/internal/geo"
	"github.com/evcraddock/canvasser/internal/property"
)

// propertyFilter reads status, quality and territory_id query parameters.
func propertyFilter(r *http.Request) (property.Filter, error) {
	q := r.URL.Query()
	f := property.Filter{
		Quality:     property.Quality(q.Get("quality")),
		TerritoryID: q.Get("territory_id"),
	}
	if v := q.Get("status"); v != "" {
		st, ok := property.ParseStatus(v)
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

// apiListProperties returns the properties matching the query filter.
func (s *Server) apiListProperties(w http.ResponseWriter, r *http.Request) {
	f, err := propertyFilter(r)
	if err != nil {
		apiFail(w, err)
		return
	}
	props := s.svc.Properties(f)
	if props == nil {
		props = []*property.Property{}
	}
	apiJSON(w, props, http.StatusOK)
}

// apiCreateProperty adds a property from a JSON draft.
func (s *Server) apiCreateProperty(w http.ResponseWriter, r *http.Request) {
	var d property.Draft
	if !decodeJSON(w, r, &d) {
		return
	}
	p, err := s.svc.CreateProperty(r.Context(), d)
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, p, http.StatusCreated)
}

// apiImportProperties bulk-creates properties from a CSV body.
func (s *Server) apiImportProperties(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10*maxBodyBytes)
	res, err := s.svc.ImportCSV(r.Context(), r.Body)
	if err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}
	apiJSON(w, res, http.StatusCreated)
}

// apiGetProperty returns one property with its visit log.
func (s *Server) apiGetProperty(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Property(chi.URLParam(r, "id"))
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, p, http.StatusOK)
}

// apiDeleteProperty removes a property.
func (s *Server) apiDeleteProperty(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteProperty(r.Context(), chi.URLParam(r, "id")); err != nil {
		apiFail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiSetStatus changes a property's status.
func (s *Server) apiSetStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
		Note   string `json:"note"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	st, ok := property.ParseStatus(body.Status)
	if !ok {
		apiError(w, "invalid status: "+body.Status, http.StatusBadRequest)
		return
	}
	p, err := s.svc.SetStatus(r.Context(), chi.URLParam(r, "id"), st, body.Note)
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, p, http.StatusOK)
}

// apiAddNote appends a note to a property's visit log.
func (s *Server) apiAddNote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	v, err := s.svc.AddNote(r.Context(), chi.URLParam(r, "id"), body.Text)
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, v, http.StatusCreated)
}

// apiSetQuality sets the lead temperature.
func (s *Server) apiSetQuality(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quality property.Quality `json:"quality"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	p, err := s.svc.SetQuality(r.Context(), chi.URLParam(r, "id"), body.Quality)
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, p, http.StatusOK)
}

// apiSetPriority sets the knock priority.
func (s *Server) apiSetPriority(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Priority property.Priority `json:"priority"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	p, err := s.svc.SetPriority(r.Context(), chi.URLParam(r, "id"), body.Priority)
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, p, http.StatusOK)
}

// apiRelocateProperty moves a property's pin.
func (s *Server) apiRelocateProperty(w http.ResponseWriter, r *http.Request) {
	var pt geo.Point
	if !decodeJSON(w, r, &pt) {
		return
	}
	p, err := s.svc.RelocateProperty(r.Context(), chi.URLParam(r, "id"), pt)
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, p, http.StatusOK)
}

// apiRefreshAddress looks a property's address up again.
func (s *Server) apiRefreshAddress(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.RefreshAddress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, p, http.StatusOK)
}

// apiPropertiesNear lists properties within radius meters of lat,lng.
func (s *Server) apiPropertiesNear(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var vals [3]float64
	for i, key := range []string{"lat", "lng", "radius"} {
		v, err := strconv.ParseFloat(q.Get(key), 64)
		if err != nil {
			apiError(w, "invalid "+key+": "+q.Get(key), http.StatusBadRequest)
			return
		}
		vals[i] = v
	}
	near, err := s.svc.PropertiesNear(geo.Point{Lat: vals[0], Lng: vals[1]}, vals[2])
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, near, http.StatusOK)
}

// apiHistory lists recent saves, newest first.
func (s *Server) apiHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			apiError(w, "invalid limit: "+v, http.StatusBadRequest)
			return
		}
		limit = n
	}
	states, err := s.svc.History(r.Context(), limit)
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, states, http.StatusOK)
}
