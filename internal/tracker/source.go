// Package tracker turns a raw stream of device fixes into a filtered,
// publishable location feed with distance accounting and territory geofencing.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evcraddock/canvasser/internal/geo"
)

var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("location request timed out")
	ErrUnsupported         = errors.New("location not supported")
)

// Fix is one sampled device location.
type Fix struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy,omitempty"` // meters
	Heading   float64   `json:"heading,omitempty"`  // degrees
	Speed     float64   `json:"speed,omitempty"`    // m/s
	Timestamp time.Time `json:"timestamp"`
}

// Point returns the fix position.
func (f Fix) Point() geo.Point {
	return geo.Point{Lat: f.Lat, Lng: f.Lng}
}

// Validate reports whether the fix has usable coordinates.
func (f Fix) Validate() error {
	if err := f.Point().Validate(); err != nil {
		return fmt.Errorf("invalid fix: %w", err)
	}
	return nil
}

// Options are passed to the position source when acquiring a stream or a
// one-shot fix.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// DefaultOptions favors accuracy with a 10s timeout and 5s staleness.
var DefaultOptions = Options{
	HighAccuracy: true,
	Timeout:      10 * time.Second,
	MaximumAge:   5 * time.Second,
}

// Stream is a live feed of fixes. Fixes is closed when the source ends.
type Stream interface {
	Fixes() <-chan Fix
	Close() error
}

// Source provides device positions.
type Source interface {
	Watch(ctx context.Context, opts Options) (Stream, error)
	Current(ctx context.Context, opts Options) (Fix, error)
}

// classify maps arbitrary source failures onto the tracker error set.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrPositionUnavailable),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrUnsupported):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
	}
}
