// Package geocode turns coordinates into street addresses using the Google
// Maps Geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/evcraddock/canvasser/internal/geo"
	"github.com/evcraddock/canvasser/internal/metrics"
)

// DefaultBaseURL is the Geocoding API endpoint.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// ErrUnavailable wraps every lookup failure. Callers fall back to a
// coordinate placeholder.
var ErrUnavailable = errors.New("geocoding unavailable")

// Address holds structured data from a reverse geocoding response.
type Address struct {
	Formatted    string `json:"formatted"`
	StreetNumber string `json:"streetNumber"`
	Street       string `json:"street"`
	City         string `json:"city"`
	County       string `json:"county"`
	State        string `json:"state"` // 2-letter abbreviation
	Zip          string `json:"zip"`
}

// GoogleClient wraps the Google Maps reverse geocoding endpoint.
type GoogleClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a GoogleClient.
type Option func(*GoogleClient)

// WithBaseURL points the client at another endpoint.
func WithBaseURL(u string) Option {
	return func(c *GoogleClient) { c.baseURL = u }
}

// WithRateLimit caps requests per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *GoogleClient) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// NewGoogleClient creates a client. It returns nil when apiKey is empty so
// geocoding can be switched off by leaving the key unset.
func NewGoogleClient(apiKey string, opts ...Option) *GoogleClient {
	if apiKey == "" {
		return nil
	}
	c := &GoogleClient{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(10), 5),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type geocodeResponse struct {
	Results      []geocodeResult `json:"results"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message"`
}

type geocodeResult struct {
	AddressComponents []addressComponent `json:"address_components"`
	FormattedAddress  string             `json:"formatted_address"`
}

type addressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// Lookup returns the best address for p.
func (c *GoogleClient) Lookup(ctx context.Context, p geo.Point) (*Address, error) {
	addr, err := c.lookup(ctx, p)
	if err != nil {
		metrics.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	metrics.GeocodeRequestsTotal.WithLabelValues("ok").Inc()
	return addr, nil
}

// ReverseGeocode returns the formatted address for p.
func (c *GoogleClient) ReverseGeocode(ctx context.Context, p geo.Point) (string, error) {
	addr, err := c.Lookup(ctx, p)
	if err != nil {
		return "", err
	}
	return addr.Formatted, nil
}

func (c *GoogleClient) lookup(ctx context.Context, p geo.Point) (*Address, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("latlng", strconv.FormatFloat(p.Lat, 'f', -1, 64)+","+strconv.FormatFloat(p.Lng, 'f', -1, 64))
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("closing geocoding response body", "error", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding API returned HTTP %d", resp.StatusCode)
	}

	var geoResp geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&geoResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if geoResp.Status != "OK" {
		if geoResp.ErrorMessage != "" {
			return nil, fmt.Errorf("geocoding failed: status=%s: %s", geoResp.Status, geoResp.ErrorMessage)
		}
		return nil, fmt.Errorf("geocoding failed: status=%s", geoResp.Status)
	}
	if len(geoResp.Results) == 0 {
		return nil, errors.New("geocoding returned no results")
	}

	result := geoResp.Results[0]
	out := &Address{Formatted: result.FormattedAddress}
	for _, comp := range result.AddressComponents {
		for _, t := range comp.Types {
			switch t {
			case "street_number":
				out.StreetNumber = comp.LongName
			case "route":
				out.Street = comp.LongName
			case "locality":
				out.City = comp.LongName
			case "administrative_area_level_2":
				out.County = comp.LongName
			case "administrative_area_level_1":
				out.State = comp.ShortName
			case "postal_code":
				out.Zip = comp.ShortName
			}
		}
	}
	if out.Formatted == "" {
		return nil, errors.New("geocoding result has no formatted address")
	}
	return out, nil
}
