// Package client provides an HTTP client for the canvasser REST API.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/evcraddock/canvasser/internal/canvass"
	"github.com/evcraddock/canvasser/internal/geo"
	"github.com/evcraddock/canvasser/internal/property"
	"github.com/evcraddock/canvasser/internal/route"
	"github.com/evcraddock/canvasser/internal/summary"
	"github.com/evcraddock/canvasser/internal/territory"
)

// Client is an HTTP client for the canvasser API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ListOptions controls filtering for ListProperties.
type ListOptions struct {
	Status      string
	Quality     string
	TerritoryID string
}

// ListProperties returns all properties, optionally filtered.
func (c *Client) ListProperties(opts ListOptions) ([]*property.Property, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Quality != "" {
		q.Set("quality", opts.Quality)
	}
	if opts.TerritoryID != "" {
		q.Set("territory_id", opts.TerritoryID)
	}

	var props []*property.Property
	if err := c.get(withQuery("/api/properties", q), &props); err != nil {
		return nil, err
	}
	return props, nil
}

// GetProperty returns a property with its visit log.
func (c *Client) GetProperty(id string) (*property.Property, error) {
	var p property.Property
	if err := c.get("/api/properties/"+url.PathEscape(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AddProperty pins a new property. The server geocodes an empty address.
func (c *Client) AddProperty(d property.Draft) (*property.Property, error) {
	var p property.Property
	if err := c.send("POST", "/api/properties", d, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProperty removes a property.
func (c *Client) DeleteProperty(id string) error {
	return c.send("DELETE", "/api/properties/"+url.PathEscape(id), nil, nil)
}

// SetStatus changes a property's status, optionally with a note.
func (c *Client) SetStatus(id, status, note string) (*property.Property, error) {
	body := map[string]string{"status": status, "note": note}
	var p property.Property
	if err := c.send("PUT", "/api/properties/"+url.PathEscape(id)+"/status", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AddNote appends a note to a property.
func (c *Client) AddNote(id, text string) (*property.Visit, error) {
	body := map[string]string{"text": text}
	var v property.Visit
	if err := c.send("POST", "/api/properties/"+url.PathEscape(id)+"/notes", body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// RelocateProperty moves a property's pin.
func (c *Client) RelocateProperty(id string, pt geo.Point) (*property.Property, error) {
	var p property.Property
	if err := c.send("PUT", "/api/properties/"+url.PathEscape(id)+"/location", pt, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PropertiesNear lists properties within radius meters of center, closest
// first.
func (c *Client) PropertiesNear(center geo.Point, radius float64) ([]canvass.Nearby, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(center.Lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(center.Lng, 'f', -1, 64))
	q.Set("radius", strconv.FormatFloat(radius, 'f', -1, 64))

	var near []canvass.Nearby
	if err := c.get(withQuery("/api/properties/near", q), &near); err != nil {
		return nil, err
	}
	return near, nil
}

// History lists recent saves, newest first. A limit of zero returns all kept.
func (c *Client) History(limit int) ([]canvass.SavedState, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var states []canvass.SavedState
	if err := c.get(withQuery("/api/history", q), &states); err != nil {
		return nil, err
	}
	return states, nil
}

// ImportCSV uploads a CSV of lat,lng,address rows.
func (c *Client) ImportCSV(r io.Reader) (*canvass.ImportResult, error) {
	req, err := http.NewRequest("POST", c.baseURL+"/api/properties/import", r)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "text/csv")

	var res canvass.ImportResult
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListTerritories returns every territory.
func (c *Client) ListTerritories() ([]*territory.Territory, error) {
	var ts []*territory.Territory
	if err := c.get("/api/territories", &ts); err != nil {
		return nil, err
	}
	return ts, nil
}

// RouteRequest selects the stops for an optimized route.
type RouteRequest struct {
	Name        string    `json:"name,omitempty"`
	Start       geo.Point `json:"start"`
	Status      string    `json:"status,omitempty"`
	Quality     string    `json:"quality,omitempty"`
	TerritoryID string    `json:"territoryId,omitempty"`
}

// PlanResponse is an optimized but unsaved route.
type PlanResponse struct {
	Stops         []*property.Property `json:"stops"`
	TotalDistance float64              `json:"totalDistance"`
	EstimatedTime time.Duration        `json:"estimatedTime"`
}

// OptimizeRoute returns the visiting order without saving it.
func (c *Client) OptimizeRoute(req RouteRequest) (*PlanResponse, error) {
	var plan PlanResponse
	if err := c.send("POST", "/api/routes/optimize", req, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// SaveRoute optimizes and saves a named route.
func (c *Client) SaveRoute(req RouteRequest) (*route.Route, error) {
	var r route.Route
	if err := c.send("POST", "/api/routes", req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Summary returns the day summary. An empty date means today on the server.
func (c *Client) Summary(date string) (*summary.Summary, error) {
	var s summary.Summary
	if err := c.get(withQuery("/api/summary", dateQuery(date)), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SummaryCSV streams the day summary CSV into w.
func (c *Client) SummaryCSV(date string, w io.Writer) error {
	req, err := http.NewRequest("GET", c.baseURL+withQuery("/api/summary.csv", dateQuery(date)), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("closing response body", "error", cerr)
		}
	}()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return responseError(resp.StatusCode, body)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	return nil
}

func dateQuery(date string) url.Values {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	return q
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// get performs a GET request and decodes the response.
func (c *Client) get(path string, result interface{}) error {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, result)
}

// send performs a request with an optional JSON body and decodes the
// response.
func (c *Client) send(method, path string, body interface{}, result interface{}) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, result)
}

// do executes an HTTP request and handles errors.
func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("closing response body", "error", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return responseError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

func responseError(code int, body []byte) error {
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return fmt.Errorf("%s", errResp.Error)
	}
	return fmt.Errorf("server error: %s", http.StatusText(code))
}
