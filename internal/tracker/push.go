package tracker

import (
	"context"
	"sync"
	"time"
)

const pushBuffer = 64

// PushSource is a Source fed from outside, typically a phone posting fixes
// to the API. Push never blocks; a stream whose buffer is full misses the
// fix.
type PushSource struct {
	mu      sync.Mutex
	streams map[*pushStream]struct{}
	waiters []chan Fix
	latest  *Fix
	now     func() time.Time
}

// NewPushSource creates an empty push source.
func NewPushSource() *PushSource {
	return &PushSource{
		streams: make(map[*pushStream]struct{}),
		now:     time.Now,
	}
}

// Push validates f and hands it to every open stream and pending one-shot
// request. A zero timestamp is filled with the current time.
func (s *PushSource) Push(f Fix) error {
	if err := f.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if f.Timestamp.IsZero() {
		f.Timestamp = s.now()
	}
	latest := f
	s.latest = &latest

	for st := range s.streams {
		select {
		case st.ch <- f:
		default:
		}
	}
	for _, w := range s.waiters {
		w <- f // buffered by one, never reused
	}
	s.waiters = nil
	return nil
}

// Watch opens a stream of pushed fixes.
func (s *PushSource) Watch(ctx context.Context, opts Options) (Stream, error) {
	st := &pushStream{src: s, ch: make(chan Fix, pushBuffer)}

	s.mu.Lock()
	s.streams[st] = struct{}{}
	s.mu.Unlock()

	return st, nil
}

// Current returns the latest pushed fix if it is no older than
// opts.MaximumAge, otherwise waits for the next push until ctx ends.
func (s *PushSource) Current(ctx context.Context, opts Options) (Fix, error) {
	s.mu.Lock()
	if s.latest != nil && (opts.MaximumAge <= 0 || s.now().Sub(s.latest.Timestamp) <= opts.MaximumAge) {
		f := *s.latest
		s.mu.Unlock()
		return f, nil
	}
	w := make(chan Fix, 1)
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	select {
	case f := <-w:
		return f, nil
	case <-ctx.Done():
		s.dropWaiter(w)
		return Fix{}, ErrTimeout
	}
}

func (s *PushSource) dropWaiter(w chan Fix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, x := range s.waiters {
		if x == w {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}

type pushStream struct {
	src  *PushSource
	ch   chan Fix
	once sync.Once
}

func (st *pushStream) Fixes() <-chan Fix { return st.ch }

func (st *pushStream) Close() error {
	st.once.Do(func() {
		st.src.mu.Lock()
		delete(st.src.streams, st)
		close(st.ch)
		st.src.mu.Unlock()
	})
	return nil
}
