package cli

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/evcraddock/canvasser/internal/canvass"
	"github.com/evcraddock/canvasser/internal/geo"
	"github.com/evcraddock/canvasser/internal/property"
	"github.com/evcraddock/canvasser/internal/store"
	"github.com/evcraddock/canvasser/internal/web"
)

// testServer runs the real API over an in-memory store and points the CLI
// at it.
func testServer(t *testing.T) *canvass.Service {
	t.Helper()
	svc := canvass.New(store.NewMemoryStore(), canvass.WithLocation(time.UTC))
	if err := svc.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	srv := httptest.NewServer(web.NewServer(svc))
	t.Cleanup(func() {
		srv.Close()
		_ = svc.Close(context.Background())
	})

	t.Setenv("HOME", t.TempDir())
	t.Setenv("CV_SERVER_URL", srv.URL)
	flagFormat = "text"
	return svc
}

func TestAddListMarkNote(t *testing.T) {
	svc := testServer(t)

	if _, err := executeCommand("add", "40.0001", "-75.0001", "12", "Oak", "St", "--quality", "warm"); err != nil {
		t.Fatalf("add: %v", err)
	}
	props := svc.Properties(property.Filter{})
	if len(props) != 1 || props[0].Address != "12 Oak St" || props[0].Quality != property.QualityWarm {
		t.Fatalf("properties = %+v", props)
	}
	id := props[0].ID

	if _, err := executeCommand("list", "--quality", "warm"); err != nil {
		t.Fatalf("list: %v", err)
	}

	// Short prefixes resolve to the full ID.
	if _, err := executeCommand("mark", shortID(id), "appointment", "--note", "Tuesday 4pm"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if _, err := executeCommand("note", id, "dog", "in", "yard"); err != nil {
		t.Fatalf("note: %v", err)
	}
	if _, err := executeCommand("show", shortID(id)); err != nil {
		t.Fatalf("show: %v", err)
	}

	p, _ := svc.Property(id)
	if p.Status != property.StatusAppointment || len(p.Visits) != 2 || p.Visits[1].Notes != "dog in yard" {
		t.Errorf("property = %+v", p)
	}

	if _, err := executeCommand("mark", "ffffffff", "sold"); err == nil {
		t.Error("expected error for unknown id")
	}

	if _, err := executeCommand("remove", id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(svc.Properties(property.Filter{})) != 0 {
		t.Error("property not removed")
	}
}

func TestRouteCommand(t *testing.T) {
	svc := testServer(t)
	for _, lng := range []float64{0.002, 0.001} {
		if _, err := svc.CreateProperty(context.Background(), property.Draft{Address: "x", Lat: 0, Lng: lng}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if _, err := executeCommand("route", "0", "0"); err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(svc.Routes.List()) != 0 {
		t.Error("route saved without --save")
	}

	// Southern and western starts, with flags before and after them.
	if _, err := executeCommand("route", "--status", "not_contacted", "-0.001", "-0.001"); err != nil {
		t.Fatalf("route from negative start: %v", err)
	}
	if _, err := executeCommand("route", "-33.86", "151.2", "--quality", "hot"); err != nil {
		t.Fatalf("route from southern start: %v", err)
	}

	if _, err := executeCommand("route", "0", "0", "--save", "Morning"); err != nil {
		t.Fatalf("route --save: %v", err)
	}
	routes := svc.Routes.List()
	if len(routes) != 1 || routes[0].Name != "Morning" || len(routes[0].PropertyIDs) != 2 {
		t.Errorf("routes = %+v", routes)
	}
}

func TestSummaryCommandWritesCSV(t *testing.T) {
	svc := testServer(t)
	if _, err := svc.CreateProperty(context.Background(), property.Draft{Address: "9 Pine Rd", Lat: 1, Lng: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}
	today := time.Now().UTC().Format(time.DateOnly)

	if _, err := executeCommand("summary", "--date", today); err != nil {
		t.Fatalf("summary: %v", err)
	}

	dir := t.TempDir()
	if _, err := executeCommand("summary", "--date", today, "--out", dir); err != nil {
		t.Fatalf("summary --out: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "canvass-summary-"+today+".csv"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !strings.HasPrefix(string(data), "address,status,notes,time\n9 Pine Rd,not_contacted,") {
		t.Errorf("csv = %q", data)
	}
}

func TestImportCommand(t *testing.T) {
	svc := testServer(t)
	if _, err := svc.CreateTerritory(context.Background(), "Block", geo.Ring{
		{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 1}, {Lat: 1, Lng: 0},
	}, ""); err != nil {
		t.Fatalf("territory: %v", err)
	}

	path := filepath.Join(t.TempDir(), "leads.csv")
	csv := "lat,lng,address\n0.5,0.5,1 Elm St\n0.6,0.6,2 Elm St\nbad,0,3 Elm St\n"
	if err := os.WriteFile(path, []byte(csv), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := executeCommand("import", path); err != nil {
		t.Fatalf("import: %v", err)
	}
	props := svc.Properties(property.Filter{})
	if len(props) != 2 {
		t.Fatalf("imported %d, want 2", len(props))
	}
	for _, p := range props {
		if p.TerritoryID == "" {
			t.Errorf("%s not assigned to territory", p.Address)
		}
	}
}

func TestMoveNearHistoryCommands(t *testing.T) {
	svc := testServer(t)
	tr, err := svc.CreateTerritory(context.Background(), "South", geo.Ring{
		{Lat: -34, Lng: 151}, {Lat: -34, Lng: 152}, {Lat: -33, Lng: 152}, {Lat: -33, Lng: 151},
	}, "")
	if err != nil {
		t.Fatalf("territory: %v", err)
	}
	p, err := svc.CreateProperty(context.Background(), property.Draft{Address: "4 Bay Rd", Lat: 1, Lng: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := executeCommand("move", shortID(p.ID), "-33.5", "151.5"); err != nil {
		t.Fatalf("move: %v", err)
	}
	got, _ := svc.Property(p.ID)
	if got.Lat != -33.5 || got.TerritoryID != tr.ID {
		t.Errorf("property = %+v", got)
	}
	if _, err := executeCommand("move", p.ID, "-95", "0"); err == nil {
		t.Error("expected error for bad latitude")
	}

	if _, err := executeCommand("near", "-33.5", "151.5", "--radius", "50"); err != nil {
		t.Fatalf("near: %v", err)
	}
	if _, err := executeCommand("near", "--radius", "0", "0", "0"); err == nil {
		t.Error("expected error for zero radius")
	}

	if _, err := executeCommand("history", "--limit", "2"); err != nil {
		t.Fatalf("history: %v", err)
	}
}
