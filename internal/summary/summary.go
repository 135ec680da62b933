// Package summary builds the end-of-day canvassing report and its CSV export.
package summary

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/evcraddock/canvasser/internal/property"
)

// Entry is one property in the report with the visits logged that day.
type Entry struct {
	Property *property.Property `json:"property"`
	Visits   []property.Visit   `json:"visits"`
}

// Group is every reported property currently in one status.
type Group struct {
	Status  property.Status `json:"status"`
	Label   string          `json:"label"`
	Count   int             `json:"count"`
	Entries []Entry         `json:"entries"`
}

// Summary is the report for one calendar day.
type Summary struct {
	Date   string    `json:"date"` // YYYY-MM-DD
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Total  int       `json:"total"`
	Groups []Group   `json:"groups"`
}

// Window returns [start of day, start of next day) for date in loc.
func Window(date time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	d := date.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Summarize selects the properties created or visited on date and groups
// them by current status. Groups follow the status display order and
// empty groups are omitted.
func Summarize(date time.Time, props []*property.Property, loc *time.Location) *Summary {
	start, end := Window(date, loc)
	s := &Summary{
		Date:   start.Format(time.DateOnly),
		Start:  start,
		End:    end,
		Groups: []Group{},
	}

	byStatus := make(map[property.Status][]Entry)
	for _, p := range props {
		if p == nil {
			continue
		}
		visits := visitsIn(p, start, end)
		if !inWindow(p.CreatedAt, start, end) && len(visits) == 0 {
			continue
		}
		byStatus[p.Status] = append(byStatus[p.Status], Entry{Property: p, Visits: visits})
		s.Total++
	}

	for _, st := range property.Statuses {
		entries := byStatus[st]
		if len(entries) == 0 {
			continue
		}
		sortEntries(entries)
		s.Groups = append(s.Groups, Group{
			Status:  st,
			Label:   st.Label(),
			Count:   len(entries),
			Entries: entries,
		})
	}
	return s
}

// Row is one flattened export line.
type Row struct {
	Address string
	Status  string
	Notes   string
	Time    string
}

// Header is the CSV column order.
var Header = []string{"address", "status", "notes", "time"}

// Rows flattens the summary in group order. Notes is the newest note logged
// that day; time is the property's creation time.
func Rows(s *Summary) []Row {
	var rows []Row
	for _, g := range s.Groups {
		for _, e := range g.Entries {
			p := e.Property
			rows = append(rows, Row{
				Address: sanitize(p.Address),
				Status:  sanitize(string(p.Status)),
				Notes:   sanitize(p.LatestNote(s.Start, s.End)),
				Time:    p.CreatedAt.In(s.Start.Location()).Format(time.RFC3339),
			})
		}
	}
	return rows
}

// WriteCSV writes the header and one line per reported property.
func WriteCSV(w io.Writer, s *Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range Rows(s) {
		if err := cw.Write([]string{r.Address, r.Status, r.Notes, r.Time}); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// Filename is the download name for the report on date.
func Filename(date time.Time) string {
	return fmt.Sprintf("canvass-summary-%s.csv", date.Format(time.DateOnly))
}

var sanitizer = strings.NewReplacer(",", " ", "\r\n", " ", "\n", " ", "\r", " ")

// sanitize strips separators so every value stays in one unquoted field.
func sanitize(v string) string {
	return strings.Join(strings.Fields(sanitizer.Replace(v)), " ")
}

func visitsIn(p *property.Property, start, end time.Time) []property.Visit {
	var out []property.Visit
	for _, v := range p.Visits {
		if inWindow(v.Timestamp, start, end) {
			out = append(out, v)
		}
	}
	return out
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Property, entries[j].Property
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
