// Package geocode resolves coordinates to county and state via the
// Nominatim reverse-geocoding API and builds scanner-feed links for the
// resolved county.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	nominatimURL = "https://nominatim.openstreetmap.org/reverse"

	// Nominatim's usage policy: identify yourself and stay under 1 req/s.
	defaultUserAgent = "fleetwatch-aircraft-monitor/1.0"
	minInterval      = time.Second
	requestTimeout   = 3 * time.Second
)

// Location is a resolved county-level location.
type Location struct {
	County string
	State  string
}

// Client is a throttled Nominatim reverse-geocoding client. Lookups are
// serialized and spaced at least one second apart.
type Client struct {
	baseURL   string
	userAgent string
	hc        *http.Client

	mu       sync.Mutex
	lastCall time.Time

	ctids countyIDTable
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Nominatim endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithCountyIDFile loads a Broadcastify county-ID table from a
// tab-separated file of "ctid<TAB>county<TAB>state_abbr" lines. Missing or
// malformed files leave the table empty; feed links fall back to search
// URLs.
func WithCountyIDFile(path string) Option {
	return func(c *Client) { c.ctids = loadCountyIDs(path) }
}

// NewClient builds a geocoding client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   nominatimURL,
		userAgent: defaultUserAgent,
		hc:        &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reverse resolves (lat, lon) to a county and state. Returns an error when
// the lookup fails or the response has no usable county or state; callers
// treat failures as "location unknown" and keep going.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Location, error) {
	c.throttle(ctx)

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("format", "json")
	params.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Location{}, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.hc.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("reverse geocode: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("reverse geocode: HTTP %d", resp.StatusCode)
	}

	var body struct {
		Address struct {
			County       string `json:"county"`
			Municipality string `json:"municipality"`
			City         string `json:"city"`
			State        string `json:"state"`
			Region       string `json:"region"`
		} `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("reverse geocode: decode: %w", err)
	}

	loc := Location{
		County: firstNonEmpty(body.Address.County, body.Address.Municipality, body.Address.City),
		State:  firstNonEmpty(body.Address.State, body.Address.Region),
	}
	if loc.County == "" || loc.State == "" {
		return Location{}, fmt.Errorf("reverse geocode: no county/state in response")
	}
	return loc, nil
}

// BroadcastifyURL returns a scanner-feed link for the county at (lat, lon).
// A known county gets its direct ctid listen page; otherwise a search URL
// for the county and state. Empty string when the location is unresolvable.
func (c *Client) BroadcastifyURL(ctx context.Context, lat, lon float64) string {
	loc, err := c.Reverse(ctx, lat, lon)
	if err != nil {
		return ""
	}
	return c.feedURL(loc)
}

func (c *Client) feedURL(loc Location) string {
	if ctid, ok := c.ctids.lookup(loc.County, loc.State); ok {
		return fmt.Sprintf("https://www.broadcastify.com/listen/ctid/%d", ctid)
	}

	county := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(loc.County, " County", ""), " Parish", ""))
	query := url.QueryEscape(county + " " + loc.State)
	return "https://www.broadcastify.com/listen/?q=" + query
}

// throttle enforces the 1 req/s spacing, giving up early if ctx is done.
func (c *Client) throttle(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wait := minInterval - time.Since(c.lastCall); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	c.lastCall = time.Now()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
