package tracker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/evcraddock/canvasser/internal/geo"
	"github.com/evcraddock/canvasser/internal/metrics"
)

// DefaultMinDisplacement is the movement, in meters, below which a fix is
// treated as noise.
const DefaultMinDisplacement = 10.0

// State is the tracker lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateTracking State = "tracking"
	StateError    State = "error"
)

// Status is a point-in-time view of the tracker for the API.
type Status struct {
	State            State   `json:"state"`
	Error            string  `json:"error,omitempty"`
	Latest           *Fix    `json:"latest,omitempty"`
	DistanceTraveled float64 `json:"distanceTraveled"`
}

// Tracker filters a Source through a displacement threshold and fans the
// accepted fixes out to subscribers.
type Tracker struct {
	src             Source
	opts            Options
	minDisplacement float64

	// ctrl serializes Start and Stop.
	ctrl   sync.Mutex
	cancel context.CancelFunc
	stream Stream
	done   chan struct{}

	mu       sync.Mutex
	state    State
	lastErr  error
	last     *Fix
	distance float64
	subs     map[int]chan Fix
	nextSub  int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMinDisplacement sets the displacement threshold in meters.
func WithMinDisplacement(meters float64) Option {
	return func(t *Tracker) {
		if meters >= 0 {
			t.minDisplacement = meters
		}
	}
}

// WithOptions sets the options passed to the source.
func WithOptions(opts Options) Option {
	return func(t *Tracker) { t.opts = opts }
}

// New creates an idle tracker reading from src.
func New(src Source, opts ...Option) *Tracker {
	t := &Tracker{
		src:             src,
		opts:            DefaultOptions,
		minDisplacement: DefaultMinDisplacement,
		state:           StateIdle,
		subs:            make(map[int]chan Fix),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Start acquires a stream from the source and begins delivering fixes. It is
// a no-op while already tracking. On failure the tracker moves to the error
// state and Start may be called again.
func (t *Tracker) Start(ctx context.Context) error {
	t.ctrl.Lock()
	defer t.ctrl.Unlock()

	if t.State() == StateTracking {
		return nil
	}
	// A stream that ended on its own still needs releasing.
	t.release()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := t.src.Watch(runCtx, t.opts)
	if err != nil {
		cancel()
		err = classify(err)
		t.mu.Lock()
		t.state = StateError
		t.lastErr = err
		t.mu.Unlock()
		slog.Warn("location tracking failed to start", "error", err)
		return err
	}

	t.cancel = cancel
	t.stream = stream
	t.done = make(chan struct{})

	t.mu.Lock()
	t.state = StateTracking
	t.lastErr = nil
	t.mu.Unlock()

	go t.run(runCtx, stream, t.done)
	slog.Info("location tracking started", "min_displacement", t.minDisplacement)
	return nil
}

// Stop releases the source. It is safe to call at any time, including
// repeatedly. The distance accumulator is kept.
func (t *Tracker) Stop() {
	t.ctrl.Lock()
	defer t.ctrl.Unlock()

	if t.release() {
		slog.Info("location tracking stopped")
	}

	t.mu.Lock()
	t.state = StateIdle
	t.mu.Unlock()
}

// release cancels the delivery goroutine and closes the stream. Callers hold
// ctrl.
func (t *Tracker) release() bool {
	if t.cancel == nil {
		return false
	}
	t.cancel()
	if err := t.stream.Close(); err != nil {
		slog.Debug("closing location stream", "error", err)
	}
	<-t.done
	t.cancel, t.stream, t.done = nil, nil, nil
	return true
}

func (t *Tracker) run(ctx context.Context, stream Stream, done chan struct{}) {
	defer close(done)

	fixes := stream.Fixes()
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-fixes:
			if !ok {
				if ctx.Err() == nil {
					t.mu.Lock()
					t.state = StateError
					t.lastErr = ErrPositionUnavailable
					t.mu.Unlock()
					slog.Warn("location stream ended")
				}
				return
			}
			t.handle(f)
		}
	}
}

// handle applies the displacement filter and publishes accepted fixes.
// Re-delivering the last accepted fix is a zero-distance move and is
// discarded whenever the threshold is positive.
func (t *Tracker) handle(f Fix) bool {
	if err := f.Validate(); err != nil {
		slog.Debug("dropping fix", "error", err)
		metrics.FixesDiscardedTotal.Inc()
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.last != nil {
		d := geo.Distance(t.last.Point(), f.Point())
		if d < t.minDisplacement {
			metrics.FixesDiscardedTotal.Inc()
			return false
		}
		t.distance += d
	}
	accepted := f
	t.last = &accepted
	metrics.FixesAcceptedTotal.Inc()

	for _, ch := range t.subs {
		select {
		case ch <- f:
		default:
			metrics.FixesDroppedTotal.Inc()
		}
	}
	return true
}

// CurrentFixOnce asks the source for a single position. It does not touch
// the displacement filter or the distance accumulator.
func (t *Tracker) CurrentFixOnce(ctx context.Context) (Fix, error) {
	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}
	f, err := t.src.Current(ctx, t.opts)
	if err != nil {
		return Fix{}, classify(err)
	}
	return f, nil
}

// Subscribe registers for accepted fixes. Delivery never blocks the tracker:
// when the channel buffer is full the fix is dropped for this subscriber.
// The returned func unsubscribes and closes the channel.
func (t *Tracker) Subscribe(buffer int) (<-chan Fix, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Fix, buffer)

	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			close(ch)
			t.mu.Unlock()
		})
	}
}

// Latest returns the last accepted fix.
func (t *Tracker) Latest() (Fix, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return Fix{}, false
	}
	return *t.last, true
}

// DistanceTraveled returns the meters accumulated between accepted fixes.
func (t *Tracker) DistanceTraveled() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.distance
}

// ResetDistance zeroes the accumulator. The next fix is measured from the
// last accepted one as before.
func (t *Tracker) ResetDistance() {
	t.mu.Lock()
	t.distance = 0
	t.mu.Unlock()
}

// State returns the lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// LastError returns the error that moved the tracker into the error state.
func (t *Tracker) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Status returns a snapshot of the tracker.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Status{State: t.state, DistanceTraveled: t.distance}
	if t.lastErr != nil {
		s.Error = t.lastErr.Error()
	}
	if t.last != nil {
		f := *t.last
		s.Latest = &f
	}
	return s
}
