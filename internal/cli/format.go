package cli

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/evcraddock/canvasser/internal/client"
	"github.com/evcraddock/canvasser/internal/property"
	"github.com/evcraddock/canvasser/internal/summary"
)

// printJSON marshals v as indented JSON and writes it to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printPropertySummary prints a single property summary in text format.
func printPropertySummary(p *property.Property) {
	fmt.Printf("Property %s\n", p.ID)
	fmt.Printf("  Address:   %s\n", p.Address)
	fmt.Printf("  Location:  %.5f, %.5f\n", p.Lat, p.Lng)
	fmt.Printf("  Status:    %s\n", p.Status.Label())
	if p.Quality != property.QualityUnset {
		fmt.Printf("  Quality:   %s\n", p.Quality)
	}
	if p.Priority == property.PriorityHigh {
		fmt.Println("  Priority:  high")
	}
	if p.TerritoryID != "" {
		fmt.Printf("  Territory: %s\n", shortID(p.TerritoryID))
	}
	if p.LastVisitAt != nil {
		fmt.Printf("  Last seen: %s\n", p.LastVisitAt.Local().Format("2006-01-02 15:04"))
	}
}

// printPropertyTable prints a list of properties as a formatted table.
func printPropertyTable(props []*property.Property) error {
	if len(props) == 0 {
		fmt.Println("No properties found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tADDRESS\tSTATUS\tQUALITY\tVISITS"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "--\t-------\t------\t-------\t------"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for _, p := range props {
		quality := "-"
		if p.Quality != property.QualityUnset {
			quality = string(p.Quality)
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			shortID(p.ID), truncate(p.Address, 40), p.Status.Label(), quality, len(p.Visits)); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Printf("\nTotal: %d properties\n", len(props))
	return nil
}

// printVisits prints a visit log in text format.
func printVisits(visits []property.Visit) {
	if len(visits) == 0 {
		fmt.Println("No visits recorded.")
		return
	}

	for _, v := range visits {
		label := strings.ReplaceAll(string(v.Type), "_", " ")
		if v.Type == property.VisitStatusChange {
			label = fmt.Sprintf("%s → %s", v.PreviousStatus.Label(), v.Status.Label())
		}
		fmt.Printf("[%s] %s\n", v.Timestamp.Local().Format("2006-01-02 15:04"), label)
		if v.Notes != "" {
			fmt.Printf("  %s\n", v.Notes)
		}
	}
}

// printPlan prints an optimized route as numbered stops.
func printPlan(plan *client.PlanResponse) {
	if len(plan.Stops) == 0 {
		fmt.Println("No properties to visit.")
		return
	}
	for i, p := range plan.Stops {
		fmt.Printf("%3d. %s  %s\n", i+1, truncate(p.Address, 50), p.Status.Label())
	}
	fmt.Printf("\n%d stops, %s, about %s\n",
		len(plan.Stops), formatDistance(plan.TotalDistance), formatDuration(plan.EstimatedTime))
}

// printDaySummary prints the day summary grouped by status.
func printDaySummary(s *summary.Summary) {
	fmt.Printf("Summary for %s: %d properties\n", s.Date, s.Total)
	for _, g := range s.Groups {
		fmt.Printf("\n%s (%d)\n", g.Label, g.Count)
		for _, e := range g.Entries {
			note := e.Property.LatestNote(s.Start, s.End)
			if note != "" {
				fmt.Printf("  %s: %s\n", truncate(e.Property.Address, 40), truncate(note, 60))
			} else {
				fmt.Printf("  %s\n", truncate(e.Property.Address, 40))
			}
		}
	}
}

// formatDistance renders meters as m below one kilometer and km above.
func formatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// formatDuration renders a duration as hours and minutes.
func formatDuration(d time.Duration) string {
	m := int(d.Round(time.Minute).Minutes())
	if m < 60 {
		return fmt.Sprintf("%d min", m)
	}
	return fmt.Sprintf("%dh %02dm", m/60, m%60)
}

// shortID returns the first eight characters of a UUID.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
