package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/evcraddock/canvasser/internal/store"
	"github.com/evcraddock/canvasser/internal/summary"
)

// summaryDate reads ?date=YYYY-MM-DD in the service time zone. No date
// means today.
func (s *Server) summaryDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	v := r.URL.Query().Get("date")
	if v == "" {
		return time.Now().In(s.svc.Location()), true
	}
	d, err := time.ParseInLocation(time.DateOnly, v, s.svc.Location())
	if err != nil {
		apiError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return time.Time{}, false
	}
	return d, true
}

func (s *Server) apiSummary(w http.ResponseWriter, r *http.Request) {
	date, ok := s.summaryDate(w, r)
	if !ok {
		return
	}
	apiJSON(w, s.svc.DaySummary(date), http.StatusOK)
}

// apiSummaryCSV downloads the day summary as CSV.
func (s *Server) apiSummaryCSV(w http.ResponseWriter, r *http.Request) {
	date, ok := s.summaryDate(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", summary.Filename(date)))
	if err := summary.WriteCSV(w, s.svc.DaySummary(date)); err != nil {
		slog.Error("writing summary csv", "error", err)
	}
}

func (s *Server) apiGetMapView(w http.ResponseWriter, r *http.Request) {
	apiJSON(w, s.svc.MapView(), http.StatusOK)
}

func (s *Server) apiSetMapView(w http.ResponseWriter, r *http.Request) {
	var mv store.MapView
	if !decodeJSON(w, r, &mv) {
		return
	}
	if err := s.svc.SetMapView(r.Context(), mv); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}
	apiJSON(w, mv, http.StatusOK)
}

func (s *Server) apiAnalytics(w http.ResponseWriter, r *http.Request) {
	apiJSON(w, s.svc.Analytics(), http.StatusOK)
}
