// Package canvass ties the property ledger, territory registry, route book and
// location tracker together behind one service object, and persists their
// combined state after every change.
package canvass

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/evcraddock/canvasser/internal/metrics"
	"github.com/evcraddock/canvasser/internal/property"
	"github.com/evcraddock/canvasser/internal/route"
	"github.com/evcraddock/canvasser/internal/store"
	"github.com/evcraddock/canvasser/internal/summary"
	"github.com/evcraddock/canvasser/internal/territory"
	"github.com/evcraddock/canvasser/internal/tracker"
)

// Service is constructed once and shared by the web layer and the CLI.
type Service struct {
	Ledger      *property.Ledger
	Territories *territory.Registry
	Routes      *route.Book
	Tracker     *tracker.Tracker

	store store.Store
	push  *tracker.PushSource
	fence *tracker.Geofence
	loc   *time.Location
	now   func() time.Time

	// mu guards analytics, mapView and saveErr and serializes saves.
	mu        sync.Mutex
	analytics store.Analytics
	mapView   store.MapView
	saveErr   error

	hub *hub

	watchCancel context.CancelFunc
	watchDone   chan struct{}

	geocodeRetry []time.Duration
	retryCtx     context.Context
	retryCancel  context.CancelFunc
	retries      sync.WaitGroup
}

// DefaultGeocodeRetry is how long to wait before each new address lookup
// for a property created while the geocoder was failing.
var DefaultGeocodeRetry = []time.Duration{30 * time.Second, 2 * time.Minute, 10 * time.Minute}

type settings struct {
	ledgerOpts  []property.Option
	trackerOpts []tracker.Option
	source      tracker.Source
	loc         *time.Location
	now         func() time.Time
	pace        route.Pace
	retry       []time.Duration
}

// Option configures a Service.
type Option func(*settings)

// WithGeocoder enables reverse geocoding of new properties.
func WithGeocoder(g property.Geocoder) Option {
	return func(s *settings) { s.ledgerOpts = append(s.ledgerOpts, property.WithGeocoder(g)) }
}

// WithTransitionPolicy restricts status changes.
func WithTransitionPolicy(p property.TransitionPolicy) Option {
	return func(s *settings) { s.ledgerOpts = append(s.ledgerOpts, property.WithPolicy(p)) }
}

// WithMinDisplacement sets the tracker's displacement threshold in meters.
func WithMinDisplacement(meters float64) Option {
	return func(s *settings) { s.trackerOpts = append(s.trackerOpts, tracker.WithMinDisplacement(meters)) }
}

// WithSource replaces the default push source.
func WithSource(src tracker.Source) Option {
	return func(s *settings) { s.source = src }
}

// WithLocation sets the time zone that defines a calendar day.
func WithLocation(loc *time.Location) Option {
	return func(s *settings) { s.loc = loc }
}

// WithClock overrides time.Now for every component.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithPace sets the pace used to estimate route durations.
func WithPace(p route.Pace) Option {
	return func(s *settings) { s.pace = p }
}

// WithGeocodeRetry sets the delays between address lookups retried in the
// background. No delays disables retrying.
func WithGeocodeRetry(delays ...time.Duration) Option {
	return func(s *settings) { s.retry = delays }
}

// New wires the components on top of st. Call Open before use.
func New(st store.Store, opts ...Option) *Service {
	cfg := settings{loc: time.Local, now: time.Now, pace: route.DefaultPace, retry: DefaultGeocodeRetry}
	for _, o := range opts {
		o(&cfg)
	}

	ledger := property.NewLedger(append([]property.Option{property.WithClock(cfg.now)}, cfg.ledgerOpts...)...)
	registry := territory.NewRegistry(ledger)
	registry.SetClock(cfg.now)
	book := route.NewBook(cfg.pace)
	book.SetClock(cfg.now)

	s := &Service{
		Ledger:      ledger,
		Territories: registry,
		Routes:      book,
		store:       st,
		fence:       tracker.NewGeofence(),
		loc:         cfg.loc,
		now:         cfg.now,
		hub:         newHub(),

		geocodeRetry: cfg.retry,
	}
	s.retryCtx, s.retryCancel = context.WithCancel(context.Background())

	src := cfg.source
	if src == nil {
		s.push = tracker.NewPushSource()
		src = s.push
	} else if p, ok := src.(*tracker.PushSource); ok {
		s.push = p
	}
	s.Tracker = tracker.New(src, cfg.trackerOpts...)

	return s
}

// Open restores the persisted snapshot, if there is one, and starts
// watching the tracker.
func (s *Service) Open(ctx context.Context) error {
	snap, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNoSnapshot):
		slog.Info("no saved state, starting empty")
	case err != nil:
		return fmt.Errorf("loading state: %w", err)
	default:
		s.restore(snap)
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	fixes, unsubscribe := s.Tracker.Subscribe(64)
	s.watchCancel = cancel
	s.watchDone = make(chan struct{})
	go s.watch(watchCtx, fixes, unsubscribe, s.watchDone)
	return nil
}

func (s *Service) restore(snap *store.Snapshot) {
	props := s.Ledger.Restore(snap.Properties)
	territories := s.Territories.Restore(snap.Territories)
	routes := s.Routes.Restore(snap.Routes)

	s.mu.Lock()
	s.analytics = snap.Analytics
	s.mapView = snap.MapView
	s.mu.Unlock()

	// Drop references to territories that did not survive the restore.
	s.reconcile()

	slog.Info("restored state",
		"properties", props,
		"territories", territories,
		"routes", routes,
		"saved_at", snap.SavedAt)
}

// Close stops tracking and address retries, waits for the watcher and saves a
// final snapshot.
func (s *Service) Close(ctx context.Context) error {
	s.retryCancel()
	s.retries.Wait()
	s.Tracker.Stop()
	if s.watchCancel != nil {
		s.watchCancel()
		<-s.watchDone
		s.watchCancel = nil
	}
	s.hub.closeAll()
	return s.persist(ctx)
}

// Snapshot captures the full state.
func (s *Service) Snapshot() *store.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Service) snapshotLocked() *store.Snapshot {
	return &store.Snapshot{
		Version:     store.SchemaVersion,
		Territories: s.Territories.Snapshot(),
		Properties:  s.Ledger.Snapshot(),
		Routes:      s.Routes.Snapshot(),
		Analytics:   s.analytics,
		MapView:     s.mapView,
		SavedAt:     s.now(),
	}
}

// persist writes a fresh snapshot and records the outcome for SaveError.
func (s *Service) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(ctx, s.snapshotLocked()); err != nil {
		metrics.SnapshotSavesTotal.WithLabelValues("error").Inc()
		slog.Error("saving state", "error", err)
		s.saveErr = fmt.Errorf("saving state: %w", err)
		return s.saveErr
	}
	metrics.SnapshotSavesTotal.WithLabelValues("ok").Inc()
	s.saveErr = nil
	return nil
}

// commit saves after a mutation. The mutation has already happened in
// memory and is reported as done even if the save fails, so a client retry
// cannot apply it twice. Every snapshot holds the full state, so the next
// successful save catches up; until then SaveError reports the failure.
func (s *Service) commit(ctx context.Context) {
	_ = s.persist(ctx)
}

// SaveError returns the error from the most recent save, or nil.
func (s *Service) SaveError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveErr
}

// count bumps an analytics counter.
func (s *Service) count(fn func(a *store.Analytics)) {
	s.mu.Lock()
	fn(&s.analytics)
	s.mu.Unlock()
}

// Analytics returns the running counters.
func (s *Service) Analytics() store.Analytics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analytics
}

// MapView returns the last saved map position.
func (s *Service) MapView() store.MapView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapView
}

// SetMapView records the map position.
func (s *Service) SetMapView(ctx context.Context, mv store.MapView) error {
	if err := mv.Center.Validate(); err != nil {
		return err
	}
	if mv.Zoom < 0 || mv.Zoom > 22 {
		return fmt.Errorf("zoom %d out of range 0-22", mv.Zoom)
	}
	s.mu.Lock()
	s.mapView = mv
	s.mu.Unlock()
	s.commit(ctx)
	return nil
}

// DaySummary reports the properties created or visited on date.
func (s *Service) DaySummary(date time.Time) *summary.Summary {
	return summary.Summarize(date, s.Ledger.List(), s.loc)
}

// Location returns the time zone that defines a calendar day.
func (s *Service) Location() *time.Location {
	return s.loc
}
