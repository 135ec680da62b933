package tracker

import (
	"testing"

	"github.com/evcraddock/canvasser/internal/geo"
)

var square = geo.Ring{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 1}, {Lat: 1, Lng: 0}, {Lat: 0, Lng: 0}}

func TestGeofenceEdgeTriggered(t *testing.T) {
	g := NewGeofence()
	zones := []Zone{{ID: "t1", Name: "North", Ring: square}}

	steps := []struct {
		name string
		fix  Fix
		want []EventKind
	}{
		{"start outside", Fix{Lat: 2, Lng: 2}, nil},
		{"still outside", Fix{Lat: 2, Lng: 3}, nil},
		{"cross in", Fix{Lat: 0.5, Lng: 0.5}, []EventKind{EventEnter}},
		{"stationary inside", Fix{Lat: 0.5, Lng: 0.5}, nil},
		{"move inside", Fix{Lat: 0.6, Lng: 0.4}, nil},
		{"cross out", Fix{Lat: -1, Lng: 0.5}, []EventKind{EventExit}},
		{"stationary outside", Fix{Lat: -1, Lng: 0.5}, nil},
		{"back in", Fix{Lat: 0.2, Lng: 0.2}, []EventKind{EventEnter}},
	}

	for _, s := range steps {
		events := g.Check(s.fix, zones)
		if len(events) != len(s.want) {
			t.Fatalf("%s: got %d events, want %d", s.name, len(events), len(s.want))
		}
		for i, e := range events {
			if e.Kind != s.want[i] || e.ZoneID != "t1" || e.ZoneName != "North" {
				t.Errorf("%s: event %d = %+v", s.name, i, e)
			}
		}
	}
}

func TestGeofenceFirstFixInsideEnters(t *testing.T) {
	g := NewGeofence()
	events := g.Check(Fix{Lat: 0.5, Lng: 0.5}, []Zone{{ID: "t1", Ring: square}})
	if len(events) != 1 || events[0].Kind != EventEnter {
		t.Errorf("events = %+v, want one enter", events)
	}
}

func TestGeofenceForgetsRemovedZones(t *testing.T) {
	g := NewGeofence()
	zones := []Zone{{ID: "t1", Ring: square}}

	g.Check(Fix{Lat: 0.5, Lng: 0.5}, zones)

	// Zone deleted while inside: no exit.
	if events := g.Check(Fix{Lat: 0.5, Lng: 0.5}, nil); len(events) != 0 {
		t.Errorf("events after zone removal = %+v, want none", events)
	}
	if ids := g.Inside(); len(ids) != 0 {
		t.Errorf("inside = %v, want none", ids)
	}

	// Zone comes back: counts as a fresh enter.
	events := g.Check(Fix{Lat: 0.5, Lng: 0.5}, zones)
	if len(events) != 1 || events[0].Kind != EventEnter {
		t.Errorf("events after zone restored = %+v, want one enter", events)
	}
}

func TestGeofenceMultipleZones(t *testing.T) {
	g := NewGeofence()
	east := geo.Ring{{Lat: 0, Lng: 1}, {Lat: 0, Lng: 2}, {Lat: 1, Lng: 2}, {Lat: 1, Lng: 1}, {Lat: 0, Lng: 1}}
	zones := []Zone{{ID: "west", Ring: square}, {ID: "east", Ring: east}}

	g.Check(Fix{Lat: 0.5, Lng: 0.5}, zones)
	events := g.Check(Fix{Lat: 0.5, Lng: 1.5}, zones)

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Kind != EventExit || events[0].ZoneID != "west" {
		t.Errorf("first event = %+v, want exit west", events[0])
	}
	if events[1].Kind != EventEnter || events[1].ZoneID != "east" {
		t.Errorf("second event = %+v, want enter east", events[1])
	}

	g.Reset()
	if len(g.Inside()) != 0 {
		t.Error("expected empty after reset")
	}
}
