package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/evcraddock/canvasser/internal/canvass"
	"github.com/evcraddock/canvasser/internal/geo"
	"github.com/evcraddock/canvasser/internal/property"
	"github.com/evcraddock/canvasser/internal/route"
	"github.com/evcraddock/canvasser/internal/territory"
	"github.com/evcraddock/canvasser/internal/tracker"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := map[string]string{"error": msg}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// decodeJSON reads a JSON body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		apiError(w, fmt.Sprintf("invalid JSON body: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

// apiFail maps a service error to a status code.
func apiFail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= 500 {
		slog.Error("request failed", "error", err)
	}
	apiError(w, err.Error(), code)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, property.ErrNotFound),
		errors.Is(err, territory.ErrNotFound),
		errors.Is(err, route.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, property.ErrEmptyNote),
		errors.Is(err, property.ErrInvalidStatus),
		errors.Is(err, property.ErrInvalidQuality),
		errors.Is(err, property.ErrInvalidPriority),
		errors.Is(err, territory.ErrEmptyName),
		errors.Is(err, route.ErrEmptyName),
		errors.Is(err, geo.ErrInvalidPoint),
		errors.Is(err, geo.ErrInvalidPolygon),
		errors.Is(err, canvass.ErrInvalidRadius):
		return http.StatusBadRequest
	case errors.Is(err, property.ErrTransitionDenied):
		return http.StatusConflict
	case errors.Is(err, tracker.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, tracker.ErrUnsupported),
		errors.Is(err, property.ErrNoGeocoder),
		errors.Is(err, canvass.ErrNoHistory):
		return http.StatusNotImplemented
	case errors.Is(err, tracker.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, tracker.ErrPositionUnavailable),
		errors.Is(err, property.ErrGeocodeUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
