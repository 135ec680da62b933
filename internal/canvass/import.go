package canvass

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/evcraddock/canvasser/internal/property"
	"github.com/evcraddock/canvasser/internal/store"
)

// ImportResult reports a bulk import.
type ImportResult struct {
	Created []*property.Property `json:"created"`
	Errors  []string             `json:"errors,omitempty"`
}

// ImportCSV creates a property per row. The header must name lat and lng
// columns; address, quality and priority are optional. Bad rows are reported
// and skipped. State is saved once at the end.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) < 2 {
		return nil, errors.New("csv has no data rows")
	}

	header := records[0]
	// Handle BOM on first header cell
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"lat", "lng"} {
		if _, ok := col[k]; !ok {
			return nil, fmt.Errorf("missing required column: %s", k)
		}
	}

	res := &ImportResult{Created: []*property.Property{}}
	for rowIdx := 1; rowIdx < len(records); rowIdx++ {
		rec := records[rowIdx]
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		lat, err := strconv.ParseFloat(get("lat"), 64)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: invalid lat %q", rowIdx+1, get("lat")))
			continue
		}
		lng, err := strconv.ParseFloat(get("lng"), 64)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: invalid lng %q", rowIdx+1, get("lng")))
			continue
		}

		p, err := s.Ledger.Create(ctx, property.Draft{
			Address:  get("address"),
			Lat:      lat,
			Lng:      lng,
			Quality:  property.Quality(strings.ToLower(get("quality"))),
			Priority: property.Priority(strings.ToLower(get("priority"))),
		})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", rowIdx+1, err))
			continue
		}
		res.Created = append(res.Created, p)
	}

	if len(res.Created) == 0 {
		return res, nil
	}

	s.reconcile()
	n := len(res.Created)
	s.count(func(a *store.Analytics) { a.PropertiesCreated += n })
	s.commit(ctx)

	// Pick up territory assignments made by reconcile.
	for i, p := range res.Created {
		if fresh, err := s.Ledger.Get(p.ID); err == nil {
			res.Created[i] = fresh
		}
	}
	return res, nil
}
