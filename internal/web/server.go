// Package web provides the HTTP API for the canvassing service.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/evcraddock/canvasser/internal/canvass"
	"github.com/evcraddock/canvasser/internal/logging"
	"github.com/evcraddock/canvasser/internal/metrics"
)

// Server is the API HTTP server.
type Server struct {
	svc      *canvass.Service
	router   chi.Router
	upgrader websocket.Upgrader
}

// NewServer creates a server backed by svc.
func NewServer(svc *canvass.Service) *Server {
	s := &Server{
		svc:    svc,
		router: chi.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Field devices connect from the app origin or from localhost
			// during development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(logging.RequestLogger)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/properties", func(r chi.Router) {
			r.Get("/", s.apiListProperties)
			r.Post("/", s.apiCreateProperty)
			r.Post("/import", s.apiImportProperties)
			r.Get("/near", s.apiPropertiesNear)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.apiGetProperty)
				r.Delete("/", s.apiDeleteProperty)
				r.Put("/status", s.apiSetStatus)
				r.Post("/notes", s.apiAddNote)
				r.Put("/quality", s.apiSetQuality)
				r.Put("/priority", s.apiSetPriority)
				r.Put("/location", s.apiRelocateProperty)
				r.Post("/geocode", s.apiRefreshAddress)
			})
		})

		r.Get("/territories.geojson", s.apiTerritoriesGeoJSON)
		r.Route("/territories", func(r chi.Router) {
			r.Get("/", s.apiListTerritories)
			r.Post("/", s.apiCreateTerritory)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.apiGetTerritory)
				r.Put("/", s.apiUpdateTerritory)
				r.Delete("/", s.apiDeleteTerritory)
				r.Get("/stats", s.apiTerritoryStats)
				r.Get("/overlaps", s.apiTerritoryOverlaps)
			})
		})

		r.Route("/routes", func(r chi.Router) {
			r.Get("/", s.apiListRoutes)
			r.Post("/", s.apiSaveRoute)
			r.Post("/optimize", s.apiOptimizeRoute)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.apiGetRoute)
				r.Delete("/", s.apiDeleteRoute)
				r.Post("/activate", s.apiActivateRoute)
				r.Post("/complete", s.apiCompleteRoute)
			})
		})

		r.Route("/location", func(r chi.Router) {
			r.Get("/", s.apiLocationStatus)
			r.Post("/start", s.apiStartTracking)
			r.Post("/stop", s.apiStopTracking)
			r.Post("/fixes", s.apiPushFix)
			r.Get("/current", s.apiCurrentFix)
			r.Get("/stream", s.handleLocationStream)
		})

		r.Get("/summary", s.apiSummary)
		r.Get("/summary.csv", s.apiSummaryCSV)

		r.Get("/mapview", s.apiGetMapView)
		r.Put("/mapview", s.apiSetMapView)
		r.Get("/analytics", s.apiAnalytics)
		r.Get("/history", s.apiHistory)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", "http://localhost"+srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleHealth reports 503 while saves are failing. Changes made meanwhile
// are held in memory and written by the next successful save.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.SaveError(); err != nil {
		apiJSON(w, map[string]string{"status": "degraded", "error": err.Error()}, http.StatusServiceUnavailable)
		return
	}
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
