// Package property provides the property ledger: canvassed addresses, their
// status workflow, and the append-only visit log attached to each one.
package property

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/evcraddock/canvasser/internal/geo"
)

// Status represents where a property is in the canvassing workflow.
type Status string

const (
	StatusNotContacted    Status = "not_contacted"
	StatusInterested      Status = "interested"
	StatusNotInterested   Status = "not_interested"
	StatusCallback        Status = "callback"
	StatusAppointment     Status = "appointment"
	StatusSold            Status = "sold"
	StatusDoNotContact    Status = "do_not_contact"
	StatusNotHome         Status = "not_home"
	StatusNeedsInspection Status = "needs_inspection"
	StatusKnockNotHome    Status = "knock_not_home"
	StatusFollowUpNeeded  Status = "follow_up_needed"
	StatusDoorHanger      Status = "door_hanger"
)

// Statuses lists every status in display order.
var Statuses = []Status{
	StatusNotContacted,
	StatusInterested,
	StatusNotInterested,
	StatusCallback,
	StatusAppointment,
	StatusSold,
	StatusDoNotContact,
	StatusNotHome,
	StatusNeedsInspection,
	StatusKnockNotHome,
	StatusFollowUpNeeded,
	StatusDoorHanger,
}

// IsValid checks if a status is recognized.
func (s Status) IsValid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

var titleCaser = cases.Title(language.English)

// Label returns a human-readable label, e.g. "Do Not Contact".
func (s Status) Label() string {
	return titleCaser.String(strings.ReplaceAll(string(s), "_", " "))
}

// ParseStatus accepts "do_not_contact", "DO_NOT_CONTACT" or "do-not-contact".
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	return st, st.IsValid()
}

// Quality is the rep's lead temperature.
type Quality string

const (
	QualityUnset Quality = ""
	QualityHot   Quality = "hot"
	QualityWarm  Quality = "warm"
	QualityCold  Quality = "cold"
)

// IsValid checks if a quality tier is recognized. Unset is valid.
func (q Quality) IsValid() bool {
	switch q {
	case QualityUnset, QualityHot, QualityWarm, QualityCold:
		return true
	}
	return false
}

// Priority marks properties to knock first.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// IsValid checks if a priority is recognized.
func (p Priority) IsValid() bool {
	return p == PriorityNormal || p == PriorityHigh
}

// VisitType is the kind of audit entry.
type VisitType string

const (
	VisitStatusChange VisitType = "status_change"
	VisitNote         VisitType = "note"
	VisitManual       VisitType = "manual"
)

// Visit is an immutable audit entry attached to one property.
type Visit struct {
	ID             string    `json:"id"`
	Type           VisitType `json:"type"`
	Status         Status    `json:"status,omitempty"`
	PreviousStatus Status    `json:"previous_status,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Property is a physical address that has been canvassed or pinned.
type Property struct {
	ID          string     `json:"id"`
	Seq         int64      `json:"seq"` // creation order, never reused
	Address     string     `json:"address"`
	Lat         float64    `json:"lat"`
	Lng         float64    `json:"lng"`
	Status      Status     `json:"status"`
	Quality     Quality    `json:"quality"`
	Priority    Priority   `json:"priority"`
	TerritoryID string     `json:"territoryId,omitempty"`
	Visits      []Visit    `json:"visits"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	LastVisitAt *time.Time `json:"lastVisitDate,omitempty"`
}

// Point returns the property's location.
func (p *Property) Point() geo.Point {
	return geo.Point{Lat: p.Lat, Lng: p.Lng}
}

// LatestNote returns the newest non-empty note recorded in [from, to).
func (p *Property) LatestNote(from, to time.Time) string {
	for i := len(p.Visits) - 1; i >= 0; i-- {
		v := p.Visits[i]
		if v.Notes == "" || v.Timestamp.Before(from) || !v.Timestamp.Before(to) {
			continue
		}
		return v.Notes
	}
	return ""
}

// clone returns a deep copy so callers can never reach the ledger's visit log.
func (p *Property) clone() *Property {
	c := *p
	c.Visits = make([]Visit, len(p.Visits))
	copy(c.Visits, p.Visits)
	if p.LastVisitAt != nil {
		t := *p.LastVisitAt
		c.LastVisitAt = &t
	}
	return &c
}

// Draft holds the caller-supplied fields for a new property.
type Draft struct {
	Address  string   `json:"address"`
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Quality  Quality  `json:"quality"`
	Priority Priority `json:"priority"`
}

// Filter selects properties in Query. Zero-valued fields do not constrain.
type Filter struct {
	Status      Status
	Quality     Quality
	TerritoryID string
}

func (f Filter) matches(p *Property) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Quality != "" && p.Quality != f.Quality {
		return false
	}
	if f.TerritoryID != "" && p.TerritoryID != f.TerritoryID {
		return false
	}
	return true
}

// NeedsAddress reports whether the property still carries the coordinate
// placeholder instead of a street address.
func (p *Property) NeedsAddress() bool {
	return p.Address == p.Point().String()
}
