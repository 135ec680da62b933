package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evcraddock/canvasser/internal/canvass"
	"github.com/evcraddock/canvasser/internal/db"
	"github.com/evcraddock/canvasser/internal/geo"
	"github.com/evcraddock/canvasser/internal/property"
	"github.com/evcraddock/canvasser/internal/route"
	"github.com/evcraddock/canvasser/internal/store"
	"github.com/evcraddock/canvasser/internal/territory"
	"github.com/evcraddock/canvasser/internal/tracker"
)

// testAPIServer creates a server over a fresh SQLite-backed service.
func testAPIServer(t *testing.T) (*Server, *canvass.Service) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if cerr := d.Close(); cerr != nil {
			t.Errorf("close db: %v", cerr)
		}
	})

	svc := canvass.New(store.NewSQLiteStore(d, store.DefaultKey), canvass.WithLocation(time.UTC))
	if err := svc.Open(context.Background()); err != nil {
		t.Fatalf("open service: %v", err)
	}
	t.Cleanup(func() {
		if err := svc.Close(context.Background()); err != nil {
			t.Errorf("close service: %v", err)
		}
	})
	return NewServer(svc), svc
}

func apiRequest(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	r := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func createAPIProperty(t *testing.T, srv *Server, lat, lng float64) *property.Property {
	t.Helper()
	w := apiRequest(t, srv, "POST", "/api/properties", map[string]interface{}{
		"address": "123 Test St",
		"lat":     lat,
		"lng":     lng,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var p property.Property
	decode(t, w, &p)
	return &p
}

var squareRing = []map[string]float64{
	{"lat": 0, "lng": 0},
	{"lat": 0, "lng": 1},
	{"lat": 1, "lng": 1},
	{"lat": 1, "lng": 0},
}

func createAPITerritory(t *testing.T, srv *Server, name string) *territory.Territory {
	t.Helper()
	w := apiRequest(t, srv, "POST", "/api/territories", map[string]interface{}{
		"name": name,
		"ring": squareRing,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create territory status = %d, body = %s", w.Code, w.Body.String())
	}
	var tr territory.Territory
	decode(t, w, &tr)
	return &tr
}

func TestHealth(t *testing.T) {
	srv, _ := testAPIServer(t)
	w := apiRequest(t, srv, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestMetrics(t *testing.T) {
	srv, _ := testAPIServer(t)
	apiRequest(t, srv, "GET", "/api/properties", nil)

	w := apiRequest(t, srv, "GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "cv_http_requests_total") {
		t.Error("metrics output missing request counter")
	}
}

func TestAPIListPropertiesEmpty(t *testing.T) {
	srv, _ := testAPIServer(t)

	w := apiRequest(t, srv, "GET", "/api/properties", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

func TestAPIPropertyLifecycle(t *testing.T) {
	srv, _ := testAPIServer(t)
	p := createAPIProperty(t, srv, 0.5, 0.5)
	if p.Status != property.StatusNotContacted {
		t.Errorf("status = %q", p.Status)
	}

	w := apiRequest(t, srv, "PUT", "/api/properties/"+p.ID+"/status", map[string]string{
		"status": "interested",
		"note":   "wants a quote",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("set status = %d, body = %s", w.Code, w.Body.String())
	}

	w = apiRequest(t, srv, "POST", "/api/properties/"+p.ID+"/notes", map[string]string{"text": "hail damage on north face"})
	if w.Code != http.StatusCreated {
		t.Fatalf("add note = %d, body = %s", w.Code, w.Body.String())
	}

	w = apiRequest(t, srv, "PUT", "/api/properties/"+p.ID+"/quality", map[string]string{"quality": "hot"})
	if w.Code != http.StatusOK {
		t.Fatalf("set quality = %d, body = %s", w.Code, w.Body.String())
	}

	w = apiRequest(t, srv, "GET", "/api/properties/"+p.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	var got property.Property
	decode(t, w, &got)
	if got.Status != property.StatusInterested || got.Quality != property.QualityHot || len(got.Visits) != 3 {
		t.Errorf("property = %+v", got)
	}

	w = apiRequest(t, srv, "GET", "/api/properties?status=interested", nil)
	var list []*property.Property
	decode(t, w, &list)
	if len(list) != 1 {
		t.Errorf("filtered list = %d, want 1", len(list))
	}

	w = apiRequest(t, srv, "DELETE", "/api/properties/"+p.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	w = apiRequest(t, srv, "GET", "/api/properties/"+p.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestAPIPropertyErrors(t *testing.T) {
	srv, _ := testAPIServer(t)
	p := createAPIProperty(t, srv, 0.5, 0.5)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"bad coordinates", "POST", "/api/properties", map[string]float64{"lat": 91, "lng": 0}, http.StatusBadRequest},
		{"unknown field", "POST", "/api/properties", map[string]interface{}{"lat": 1, "lng": 1, "beds": 3}, http.StatusBadRequest},
		{"bad status", "PUT", "/api/properties/" + p.ID + "/status", map[string]string{"status": "maybe"}, http.StatusBadRequest},
		{"empty note", "POST", "/api/properties/" + p.ID + "/notes", map[string]string{"text": "  "}, http.StatusBadRequest},
		{"bad quality", "PUT", "/api/properties/" + p.ID + "/quality", map[string]string{"quality": "lukewarm"}, http.StatusBadRequest},
		{"bad priority", "PUT", "/api/properties/" + p.ID + "/priority", map[string]string{"priority": "urgent"}, http.StatusBadRequest},
		{"missing property", "GET", "/api/properties/nope", nil, http.StatusNotFound},
		{"missing status target", "PUT", "/api/properties/nope/status", map[string]string{"status": "sold"}, http.StatusNotFound},
		{"bad list filter", "GET", "/api/properties?status=maybe", nil, http.StatusBadRequest},
		{"method not allowed", "PATCH", "/api/properties", nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := apiRequest(t, srv, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestAPIImportProperties(t *testing.T) {
	srv, _ := testAPIServer(t)
	body := "lat,lng,address\n0.5,0.5,1 Main St\nx,1,2 Main St\n"

	r := httptest.NewRequest("POST", "/api/properties/import", strings.NewReader(body))
	r.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res canvass.ImportResult
	decode(t, w, &res)
	if len(res.Created) != 1 || len(res.Errors) != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestAPITerritoryStats(t *testing.T) {
	srv, _ := testAPIServer(t)
	tr := createAPITerritory(t, srv, "North")
	p := createAPIProperty(t, srv, 0.5, 0.5)
	if p.TerritoryID != tr.ID {
		t.Fatalf("property territory = %q, want %q", p.TerritoryID, tr.ID)
	}

	w := apiRequest(t, srv, "PUT", "/api/properties/"+p.ID+"/status", map[string]string{"status": "sold"})
	if w.Code != http.StatusOK {
		t.Fatalf("set status = %d", w.Code)
	}

	w = apiRequest(t, srv, "GET", "/api/territories/"+tr.ID+"/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats = %d", w.Code)
	}
	var stats territory.Stats
	decode(t, w, &stats)
	want := territory.Stats{TotalProperties: 1, Contacted: 1, Sold: 1, ConversionRate: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestAPITerritoryCRUD(t *testing.T) {
	srv, _ := testAPIServer(t)
	a := createAPITerritory(t, srv, "A")

	w := apiRequest(t, srv, "POST", "/api/territories", map[string]interface{}{
		"name":   "Circle",
		"center": map[string]float64{"lat": 0.5, "lng": 0.5},
		"radius": 500,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create around = %d, body = %s", w.Code, w.Body.String())
	}
	var circle territory.Territory
	decode(t, w, &circle)

	w = apiRequest(t, srv, "GET", "/api/territories/"+a.ID+"/overlaps", nil)
	var overlaps []*territory.Territory
	decode(t, w, &overlaps)
	if len(overlaps) != 1 || overlaps[0].ID != circle.ID {
		t.Errorf("overlaps = %v", overlaps)
	}

	w = apiRequest(t, srv, "PUT", "/api/territories/"+a.ID, map[string]string{"name": "Renamed", "color": "#00ff00"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename = %d, body = %s", w.Code, w.Body.String())
	}
	var renamed territory.Territory
	decode(t, w, &renamed)
	if renamed.Name != "Renamed" || renamed.Color != "#00ff00" {
		t.Errorf("renamed = %+v", renamed)
	}

	w = apiRequest(t, srv, "GET", "/api/territories.geojson", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "FeatureCollection") {
		t.Errorf("geojson = %d %s", w.Code, w.Body.String())
	}

	w = apiRequest(t, srv, "DELETE", "/api/territories/"+a.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	w = apiRequest(t, srv, "GET", "/api/territories/"+a.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", w.Code)
	}
}

func TestAPITerritoryErrors(t *testing.T) {
	srv, _ := testAPIServer(t)
	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"no shape", map[string]string{"name": "x"}, http.StatusBadRequest},
		{"no name", map[string]interface{}{"ring": squareRing}, http.StatusBadRequest},
		{"too few points", map[string]interface{}{"name": "x", "ring": squareRing[:2]}, http.StatusBadRequest},
		{"zero radius", map[string]interface{}{"name": "x", "center": map[string]float64{"lat": 1, "lng": 1}}, http.StatusBadRequest},
		{"both shapes", map[string]interface{}{"name": "x", "ring": squareRing, "center": map[string]float64{"lat": 1, "lng": 1}, "radius": 10}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := apiRequest(t, srv, "POST", "/api/territories", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestAPIRoutes(t *testing.T) {
	srv, _ := testAPIServer(t)
	far := createAPIProperty(t, srv, 0, 0.003)
	near := createAPIProperty(t, srv, 0, 0.001)
	dnc := createAPIProperty(t, srv, 0, 0.002)
	apiRequest(t, srv, "PUT", "/api/properties/"+dnc.ID+"/status", map[string]string{"status": "do_not_contact"})

	w := apiRequest(t, srv, "POST", "/api/routes/optimize", map[string]interface{}{
		"start": map[string]float64{"lat": 0, "lng": 0},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("optimize = %d, body = %s", w.Code, w.Body.String())
	}
	var plan struct {
		Stops         []*property.Property `json:"stops"`
		EstimatedTime time.Duration        `json:"estimatedTime"`
	}
	decode(t, w, &plan)
	if len(plan.Stops) != 2 || plan.Stops[0].ID != near.ID || plan.Stops[1].ID != far.ID {
		t.Errorf("stops = %v", plan.Stops)
	}
	if plan.EstimatedTime < 6*time.Minute {
		t.Errorf("estimate = %v", plan.EstimatedTime)
	}

	w = apiRequest(t, srv, "POST", "/api/routes", map[string]interface{}{
		"name":  "Morning",
		"start": map[string]float64{"lat": 0, "lng": 0},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("save = %d, body = %s", w.Code, w.Body.String())
	}
	var saved route.Route
	decode(t, w, &saved)

	w = apiRequest(t, srv, "POST", "/api/routes/"+saved.ID+"/activate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("activate = %d", w.Code)
	}
	w = apiRequest(t, srv, "GET", "/api/routes/"+saved.ID, nil)
	var detail struct {
		Status route.Status         `json:"status"`
		Stops  []*property.Property `json:"stops"`
	}
	decode(t, w, &detail)
	if detail.Status != route.StatusActive || len(detail.Stops) != 2 {
		t.Errorf("detail = %+v", detail)
	}

	w = apiRequest(t, srv, "POST", "/api/routes/"+saved.ID+"/complete", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("complete = %d", w.Code)
	}

	w = apiRequest(t, srv, "POST", "/api/routes", map[string]interface{}{"start": map[string]float64{}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unnamed save = %d, want 400", w.Code)
	}

	w = apiRequest(t, srv, "DELETE", "/api/routes/"+saved.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	w = apiRequest(t, srv, "POST", "/api/routes/"+saved.ID+"/activate", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("activate deleted = %d, want 404", w.Code)
	}
}

func TestAPILocation(t *testing.T) {
	srv, _ := testAPIServer(t)

	w := apiRequest(t, srv, "GET", "/api/location", nil)
	var st canvass.LocationStatus
	decode(t, w, &st)
	if st.State != tracker.StateIdle || st.InsideTerritories == nil {
		t.Errorf("status = %+v, want idle with empty territory list", st)
	}

	w = apiRequest(t, srv, "POST", "/api/location/start", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start = %d", w.Code)
	}

	w = apiRequest(t, srv, "POST", "/api/location/fixes", map[string]float64{"lat": 40, "lng": -75, "accuracy": 5})
	if w.Code != http.StatusAccepted {
		t.Fatalf("push = %d, body = %s", w.Code, w.Body.String())
	}
	w = apiRequest(t, srv, "POST", "/api/location/fixes", map[string]float64{"lat": 100, "lng": 0})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad push = %d, want 400", w.Code)
	}

	w = apiRequest(t, srv, "GET", "/api/location/current", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("current = %d, body = %s", w.Code, w.Body.String())
	}
	var f tracker.Fix
	decode(t, w, &f)
	if f.Lat != 40 || f.Lng != -75 {
		t.Errorf("current = %+v", f)
	}

	w = apiRequest(t, srv, "POST", "/api/location/stop", nil)
	decode(t, w, &st)
	if st.State != tracker.StateIdle {
		t.Errorf("state after stop = %q", st.State)
	}
}

func TestLocationStream(t *testing.T) {
	srv, svc := testAPIServer(t)
	createAPITerritory(t, srv, "North")
	if err := svc.StartTracking(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/location/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(tracker.Fix{Lat: 0.5, Lng: 0.5}); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var kinds []canvass.UpdateKind
	for len(kinds) < 2 {
		var u canvass.Update
		if err := conn.ReadJSON(&u); err != nil {
			t.Fatalf("read: %v", err)
		}
		kinds = append(kinds, u.Kind)
	}
	if kinds[0] != canvass.UpdateFix || kinds[1] != canvass.UpdateEnter {
		t.Errorf("kinds = %v, want [fix enter]", kinds)
	}
}

func TestAPISummary(t *testing.T) {
	srv, _ := testAPIServer(t)
	p := createAPIProperty(t, srv, 0.5, 0.5)
	apiRequest(t, srv, "PUT", "/api/properties/"+p.ID+"/status", map[string]string{"status": "callback", "note": "after 5, ask for Dana"})

	today := time.Now().UTC().Format(time.DateOnly)

	w := apiRequest(t, srv, "GET", "/api/summary?date="+today, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summary = %d", w.Code)
	}
	var sum struct {
		Total int `json:"total"`
	}
	decode(t, w, &sum)
	if sum.Total != 1 {
		t.Errorf("total = %d", sum.Total)
	}

	w = apiRequest(t, srv, "GET", "/api/summary.csv?date="+today, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("csv = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "canvass-summary-"+today+".csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 || lines[0] != "address,status,notes,time" {
		t.Fatalf("csv = %q", w.Body.String())
	}
	if !strings.Contains(lines[1], "after 5 ask for Dana") {
		t.Errorf("row = %q, want commas stripped from note", lines[1])
	}

	w = apiRequest(t, srv, "GET", "/api/summary?date=yesterday", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad date = %d", w.Code)
	}
}

func TestAPIMapViewAndAnalytics(t *testing.T) {
	srv, _ := testAPIServer(t)

	w := apiRequest(t, srv, "PUT", "/api/mapview", map[string]interface{}{
		"center": geo.Point{Lat: 40, Lng: -75},
		"zoom":   17,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("set = %d, body = %s", w.Code, w.Body.String())
	}
	w = apiRequest(t, srv, "GET", "/api/mapview", nil)
	var mv store.MapView
	decode(t, w, &mv)
	if mv.Zoom != 17 || mv.Center.Lat != 40 {
		t.Errorf("map view = %+v", mv)
	}

	w = apiRequest(t, srv, "PUT", "/api/mapview", map[string]interface{}{"zoom": 30})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad zoom = %d", w.Code)
	}

	createAPIProperty(t, srv, 1, 1)
	w = apiRequest(t, srv, "GET", "/api/analytics", nil)
	var a store.Analytics
	decode(t, w, &a)
	if a.PropertiesCreated != 1 {
		t.Errorf("analytics = %+v", a)
	}
}

func TestAPIRelocateProperty(t *testing.T) {
	srv, _ := testAPIServer(t)
	tr := createAPITerritory(t, srv, "Block")
	p := createAPIProperty(t, srv, 5, 5)
	if p.TerritoryID != "" {
		t.Fatalf("territory = %q before move", p.TerritoryID)
	}

	w := apiRequest(t, srv, "PUT", "/api/properties/"+p.ID+"/location", geo.Point{Lat: 0.5, Lng: 0.5})
	if w.Code != http.StatusOK {
		t.Fatalf("relocate = %d, body = %s", w.Code, w.Body.String())
	}
	var got property.Property
	decode(t, w, &got)
	if got.TerritoryID != tr.ID || got.Lat != 0.5 {
		t.Errorf("property = %+v", got)
	}

	w = apiRequest(t, srv, "PUT", "/api/properties/"+p.ID+"/location", geo.Point{Lat: 100})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad point = %d, want 400", w.Code)
	}
	w = apiRequest(t, srv, "PUT", "/api/properties/missing/location", geo.Point{})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing = %d, want 404", w.Code)
	}
}

func TestAPIRefreshAddressWithoutGeocoder(t *testing.T) {
	srv, _ := testAPIServer(t)
	p := createAPIProperty(t, srv, 1, 1)
	w := apiRequest(t, srv, "POST", "/api/properties/"+p.ID+"/geocode", nil)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("geocode = %d, want 501", w.Code)
	}
}

func TestAPIPropertiesNear(t *testing.T) {
	srv, _ := testAPIServer(t)
	p := createAPIProperty(t, srv, 0, 0.001)
	createAPIProperty(t, srv, 1, 1)

	w := apiRequest(t, srv, "GET", "/api/properties/near?lat=0&lng=0&radius=200", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("near = %d, body = %s", w.Code, w.Body.String())
	}
	var near []canvass.Nearby
	decode(t, w, &near)
	if len(near) != 1 || near[0].Property.ID != p.ID || near[0].Distance <= 0 {
		t.Errorf("near = %+v", near)
	}

	for _, q := range []string{"lat=0&lng=0", "lat=x&lng=0&radius=10", "lat=0&lng=0&radius=-5"} {
		w := apiRequest(t, srv, "GET", "/api/properties/near?"+q, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", q, w.Code)
		}
	}
}

func TestAPIHistory(t *testing.T) {
	srv, _ := testAPIServer(t)
	createAPIProperty(t, srv, 1, 1)
	createAPIProperty(t, srv, 2, 2)

	w := apiRequest(t, srv, "GET", "/api/history?limit=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history = %d, body = %s", w.Code, w.Body.String())
	}
	var states []canvass.SavedState
	decode(t, w, &states)
	if len(states) != 1 || states[0].Properties != 2 {
		t.Errorf("history = %+v", states)
	}

	w = apiRequest(t, srv, "GET", "/api/history?limit=abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", w.Code)
	}
}

// failingStore keeps nothing and fails every save.
type failingStore struct{}

func (failingStore) Load(context.Context) (*store.Snapshot, error) { return nil, store.ErrNoSnapshot }

func (failingStore) Save(context.Context, *store.Snapshot) error {
	return errors.New("disk full")
}

func TestHealthDegradedWhileSavesFail(t *testing.T) {
	svc := canvass.New(failingStore{}, canvass.WithLocation(time.UTC))
	if err := svc.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	srv := NewServer(svc)

	// The change is reported as made so a retry cannot duplicate it.
	createAPIProperty(t, srv, 1, 1)
	if n := len(svc.Properties(property.Filter{})); n != 1 {
		t.Fatalf("properties = %d, want 1", n)
	}

	w := apiRequest(t, srv, "GET", "/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("health = %d, want 503", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if body["status"] != "degraded" || !strings.Contains(body["error"], "disk full") {
		t.Errorf("health body = %v", body)
	}

	w = apiRequest(t, srv, "GET", "/api/history", nil)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("history = %d, want 501", w.Code)
	}
}
