package tracker

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/evcraddock/canvasser/internal/geo"
)

// flakySource fails Watch until watchErr is cleared.
type flakySource struct {
	*PushSource
	mu       sync.Mutex
	watchErr error
}

func (f *flakySource) Watch(ctx context.Context, opts Options) (Stream, error) {
	f.mu.Lock()
	err := f.watchErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.PushSource.Watch(ctx, opts)
}

func (f *flakySource) setErr(err error) {
	f.mu.Lock()
	f.watchErr = err
	f.mu.Unlock()
}

func fixAt(lat, lng float64) Fix {
	return Fix{Lat: lat, Lng: lng, Timestamp: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func recv(t *testing.T, ch <-chan Fix) Fix {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fix")
		return Fix{}
	}
}

func startTracker(t *testing.T, src Source, opts ...Option) *Tracker {
	t.Helper()
	tr := New(src, opts...)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(tr.Stop)
	return tr
}

func TestDisplacementFilter(t *testing.T) {
	src := NewPushSource()
	tr := startTracker(t, src)
	ch, unsub := tr.Subscribe(16)
	defer unsub()

	first := fixAt(39.74, -104.99)
	jitter := []Fix{
		fixAt(39.74004, -104.99), // ~4 m
		fixAt(39.74008, -104.99), // ~9 m
		fixAt(39.74, -104.99),    // redelivery
	}
	far := fixAt(39.7405, -104.99) // ~55 m

	for _, f := range append(append([]Fix{first}, jitter...), far) {
		if err := src.Push(f); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	if got := recv(t, ch); got.Lat != first.Lat {
		t.Errorf("first published lat = %v, want %v", got.Lat, first.Lat)
	}
	if got := recv(t, ch); got.Lat != far.Lat {
		t.Errorf("second published lat = %v, want %v (jitter should be discarded)", got.Lat, far.Lat)
	}

	want := geo.Distance(first.Point(), far.Point())
	if got := tr.DistanceTraveled(); math.Abs(got-want) > 1e-6 {
		t.Errorf("distance traveled = %f, want %f", got, want)
	}
	latest, ok := tr.Latest()
	if !ok || latest.Lat != far.Lat {
		t.Errorf("latest = %+v, want the far fix", latest)
	}

	tr.ResetDistance()
	if tr.DistanceTraveled() != 0 {
		t.Error("expected distance reset to zero")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	src := NewPushSource()
	tr := startTracker(t, src, WithMinDisplacement(1))

	slow, unsubSlow := tr.Subscribe(1)
	defer unsubSlow()
	fast, unsubFast := tr.Subscribe(8)
	defer unsubFast()

	for i := 0; i < 3; i++ {
		if err := src.Push(fixAt(39.74+float64(i)*0.001, -104.99)); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		recv(t, fast)
	}

	if got := len(slow); got != 1 {
		t.Errorf("slow subscriber buffered %d fixes, want 1", got)
	}
}

func TestStartFailureIsRetryable(t *testing.T) {
	src := &flakySource{PushSource: NewPushSource(), watchErr: ErrPermissionDenied}
	tr := New(src)

	err := tr.Start(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("start error = %v, want ErrPermissionDenied", err)
	}
	if tr.State() != StateError {
		t.Errorf("state = %q, want error", tr.State())
	}
	if !errors.Is(tr.LastError(), ErrPermissionDenied) {
		t.Errorf("last error = %v", tr.LastError())
	}

	src.setErr(nil)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("retry start: %v", err)
	}
	defer tr.Stop()
	if tr.State() != StateTracking {
		t.Errorf("state = %q, want tracking", tr.State())
	}
	if tr.LastError() != nil {
		t.Errorf("last error = %v, want nil after successful start", tr.LastError())
	}
}

func TestStartClassifiesUnknownErrors(t *testing.T) {
	src := &flakySource{PushSource: NewPushSource(), watchErr: errors.New("gps chip on fire")}
	tr := New(src)

	if err := tr.Start(context.Background()); !errors.Is(err, ErrPositionUnavailable) {
		t.Errorf("start error = %v, want ErrPositionUnavailable", err)
	}
}

func TestStopIsSafe(t *testing.T) {
	src := NewPushSource()
	tr := New(src)

	// Stop before start and twice after.
	tr.Stop()
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("second start: %v", err)
	}

	ch, unsub := tr.Subscribe(4)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = src.Push(fixAt(39.74+float64(i)*0.001, -104.99))
		}
	}()
	tr.Stop()
	tr.Stop()
	wg.Wait()

	if tr.State() != StateIdle {
		t.Errorf("state = %q, want idle", tr.State())
	}

	// Drain whatever was delivered before the stop; nothing arrives after.
	for len(ch) > 0 {
		<-ch
	}
	_ = src.Push(fixAt(10, 10))
	select {
	case f := <-ch:
		t.Errorf("received fix after stop: %+v", f)
	case <-time.After(50 * time.Millisecond):
	}

	unsub()
	unsub()
	if _, open := <-ch; open {
		t.Error("expected channel closed after unsubscribe")
	}
}

func TestCurrentFixOnceLeavesFilterAlone(t *testing.T) {
	src := NewPushSource()
	tr := New(src)

	if err := src.Push(Fix{Lat: 39.74, Lng: -104.99}); err != nil {
		t.Fatalf("push: %v", err)
	}

	f, err := tr.CurrentFixOnce(context.Background())
	if err != nil {
		t.Fatalf("current fix: %v", err)
	}
	if f.Lat != 39.74 {
		t.Errorf("lat = %v, want 39.74", f.Lat)
	}
	if _, ok := tr.Latest(); ok {
		t.Error("one-shot fix should not become the filter reference")
	}
	if tr.DistanceTraveled() != 0 {
		t.Error("one-shot fix should not add distance")
	}
}

func TestCurrentFixOnceTimeout(t *testing.T) {
	tr := New(NewPushSource(), WithOptions(Options{Timeout: 20 * time.Millisecond}))

	if _, err := tr.CurrentFixOnce(context.Background()); !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestCurrentWaitsForNextPush(t *testing.T) {
	src := NewPushSource()
	done := make(chan Fix, 1)
	go func() {
		f, _ := src.Current(context.Background(), Options{})
		done <- f
	}()

	// Keep pushing until the waiter has registered and been served.
	deadline := time.After(2 * time.Second)
	for {
		_ = src.Push(fixAt(1, 2))
		select {
		case f := <-done:
			if f.Lat != 1 || f.Lng != 2 {
				t.Errorf("got %+v", f)
			}
			return
		case <-deadline:
			t.Fatal("timed out")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPushRejectsInvalidFix(t *testing.T) {
	src := NewPushSource()
	if err := src.Push(Fix{Lat: 120, Lng: 0}); err == nil {
		t.Error("expected error for latitude out of range")
	}
	if err := src.Push(Fix{Lat: math.NaN(), Lng: 0}); err == nil {
		t.Error("expected error for NaN latitude")
	}
}
