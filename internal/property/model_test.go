package property

import (
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   Status
		wantOK bool
	}{
		{"not_contacted", StatusNotContacted, true},
		{"NOT_CONTACTED", StatusNotContacted, true},
		{"do-not-contact", StatusDoNotContact, true},
		{" Sold ", StatusSold, true},
		{"door_hanger", StatusDoorHanger, true},
		{"maybe", "maybe", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseStatus(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseStatus(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestStatusesComplete(t *testing.T) {
	if len(Statuses) != 12 {
		t.Fatalf("got %d statuses, want 12", len(Statuses))
	}
	seen := make(map[Status]bool)
	for _, s := range Statuses {
		if seen[s] {
			t.Errorf("duplicate status %q", s)
		}
		seen[s] = true
	}
}

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		s    Status
		want string
	}{
		{StatusDoNotContact, "Do Not Contact"},
		{StatusSold, "Sold"},
		{StatusFollowUpNeeded, "Follow Up Needed"},
	}
	for _, tt := range tests {
		if got := tt.s.Label(); got != tt.want {
			t.Errorf("Label(%q) = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestQualityAndPriorityValid(t *testing.T) {
	for _, q := range []Quality{QualityUnset, QualityHot, QualityWarm, QualityCold} {
		if !q.IsValid() {
			t.Errorf("Quality(%q).IsValid() = false", q)
		}
	}
	if Quality("lukewarm").IsValid() {
		t.Error("lukewarm should be invalid")
	}
	if !PriorityHigh.IsValid() || !PriorityNormal.IsValid() || Priority("urgent").IsValid() {
		t.Error("priority validation wrong")
	}
}

func TestLatestNote(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	p := &Property{Visits: []Visit{
		{Type: VisitNote, Notes: "yesterday", Timestamp: day.Add(-2 * time.Hour)},
		{Type: VisitNote, Notes: "morning", Timestamp: day.Add(9 * time.Hour)},
		{Type: VisitStatusChange, Status: StatusSold, Timestamp: day.Add(10 * time.Hour)},
		{Type: VisitNote, Notes: "tomorrow", Timestamp: day.Add(26 * time.Hour)},
	}}

	if got := p.LatestNote(day, day.Add(24*time.Hour)); got != "morning" {
		t.Errorf("LatestNote = %q, want %q", got, "morning")
	}
	if got := p.LatestNote(day.Add(48*time.Hour), day.Add(72*time.Hour)); got != "" {
		t.Errorf("LatestNote = %q, want empty", got)
	}
}

func TestTransitionTable(t *testing.T) {
	table := LockedTerminal()

	if err := table.Allow(StatusNotContacted, StatusSold); err != nil {
		t.Errorf("not_contacted -> sold: %v", err)
	}
	if err := table.Allow(StatusSold, StatusNotHome); err == nil {
		t.Error("expected sold -> not_home to be denied")
	}
	if err := table.Allow(StatusSold, StatusDoNotContact); err != nil {
		t.Errorf("sold -> do_not_contact: %v", err)
	}
	if err := (Permissive{}).Allow(StatusSold, StatusNotHome); err != nil {
		t.Errorf("permissive denied: %v", err)
	}
}
