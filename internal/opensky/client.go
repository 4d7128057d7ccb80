// Package opensky provides a rate-limited, cached client for the OpenSky
// Network REST API with OAuth2 client-credentials or legacy basic auth.
package opensky

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// BaseURL is the OpenSky REST API root.
	BaseURL = "https://opensky-network.org/api"

	// TokenURL is the OIDC token endpoint for the opensky-network realm.
	TokenURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"

	// maxBatchSize is the provider's per-request cap on icao24 parameters.
	maxBatchSize = 1000

	requestTimeout = 10 * time.Second
	maxAttempts    = 3

	statesCacheTTL  = 5 * time.Second
	flightsCacheTTL = time.Hour
)

// ErrAuth indicates the provider or token endpoint rejected our
// credentials. It is never retried.
var ErrAuth = errors.New("opensky: authentication failed")

// BBox is a geographic bounding box (min_lat, min_lon, max_lat, max_lon).
type BBox struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// Contains reports whether (lat, lon) falls inside the box.
func (b BBox) Contains(lat, lon float64) bool {
	return b.MinLat <= lat && lat <= b.MaxLat && b.MinLon <= lon && lon <= b.MaxLon
}

// Flight is a flight record from the flights endpoints.
type Flight struct {
	ICAO24              string `json:"icao24"`
	FirstSeen           int64  `json:"firstSeen"`
	EstDepartureAirport string `json:"estDepartureAirport"`
	LastSeen            int64  `json:"lastSeen"`
	EstArrivalAirport   string `json:"estArrivalAirport"`
	Callsign            string `json:"callsign"`
}

// Credentials holds provider authentication settings. OAuth2 client
// credentials take precedence over basic auth when both are set. All
// fields empty means anonymous access (tighter limits, fewer endpoints).
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	TokenURL     string `json:"token_url,omitempty"`
}

// LoadCredentialsFile reads a credentials JSON file. Both snake_case and
// camelCase keys are accepted.
func LoadCredentialsFile(path string) (Credentials, error) {
	var creds Credentials
	data, err := os.ReadFile(path)
	if err != nil {
		return creds, fmt.Errorf("read credentials: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return creds, fmt.Errorf("parse credentials: %w", err)
	}

	pick := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(raw[k]); v != "" {
				return v
			}
		}
		return ""
	}
	creds.ClientID = pick("client_id", "clientId")
	creds.ClientSecret = pick("client_secret", "clientSecret")
	creds.Username = pick("username", "user")
	creds.Password = pick("password", "pass")
	creds.TokenURL = pick("token_url", "tokenUrl", "token_endpoint")
	return creds, nil
}

// Config holds client construction options.
type Config struct {
	Credentials Credentials
	BaseURL     string // defaults to BaseURL
	CacheDir    string        // empty disables the response cache
	CacheTTL    time.Duration // states/all cache age, default 5 s
	RateLimit   int    // calls per period, default 10
	RatePeriod  time.Duration
}

// Client is an authenticated, rate-limited, cached OpenSky API client.
type Client struct {
	baseURL   string
	hc        *http.Client
	limiter   *Limiter
	cache     *Cache
	statesTTL time.Duration

	tokenSource oauth2.TokenSource // non-nil when using OAuth2
	username    string             // basic auth fallback
	password    string
}

// NewClient builds a client from cfg. OAuth2 wins over basic auth when
// both credential pairs are present.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = BaseURL
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 10
	}
	period := cfg.RatePeriod
	if period <= 0 {
		period = time.Second
	}

	statesTTL := cfg.CacheTTL
	if statesTTL <= 0 {
		statesTTL = statesCacheTTL
	}

	c := &Client{
		baseURL:   strings.TrimRight(base, "/"),
		hc:        &http.Client{Timeout: requestTimeout},
		limiter:   NewLimiter(limit, period),
		cache:     NewCache(cfg.CacheDir),
		statesTTL: statesTTL,
	}

	creds := cfg.Credentials
	switch {
	case creds.ClientID != "" && creds.ClientSecret != "":
		tokenURL := creds.TokenURL
		if tokenURL == "" {
			tokenURL = TokenURL
		}
		cc := &clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     tokenURL,
			// Keycloak wants the credentials in the form body.
			AuthStyle: oauth2.AuthStyleInParams,
		}
		// Refresh 60 s before the token actually expires.
		c.tokenSource = oauth2.ReuseTokenSourceWithExpiry(nil, cc.TokenSource(context.Background()), time.Minute)
	case creds.Username != "" && creds.Password != "":
		c.username = strings.TrimSpace(creds.Username)
		c.password = strings.TrimSpace(creds.Password)
	}

	return c
}

// Authenticated reports whether the client has credentials configured.
func (c *Client) Authenticated() bool {
	return c.tokenSource != nil || c.username != ""
}

// GetStates fetches current state vectors. With a hex list the provider
// ignores any bbox, so callers needing both must filter client-side (see
// GetAircraftStates). Responses are cached for a short TTL.
func (c *Client) GetStates(ctx context.Context, icao24 []string, bbox *BBox) (*States, error) {
	params := url.Values{}

	if len(icao24) > 0 {
		valid := make([]string, 0, len(icao24))
		for _, code := range icao24 {
			norm := NormalizeICAO24(code)
			if !ValidICAO24(norm) {
				log.Printf("opensky: skipping invalid ICAO24 %q", code)
				continue
			}
			valid = append(valid, norm)
		}
		if len(valid) == 0 {
			return nil, fmt.Errorf("opensky: no valid ICAO24 codes in request")
		}
		params.Set("icao24", strings.Join(valid, ","))
	}
	if bbox != nil {
		params.Set("lamin", formatCoord(bbox.MinLat))
		params.Set("lomin", formatCoord(bbox.MinLon))
		params.Set("lamax", formatCoord(bbox.MaxLat))
		params.Set("lomax", formatCoord(bbox.MaxLon))
	}

	body, err := c.doGet(ctx, "states/all", params, c.statesTTL)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Time   int64   `json:"time"`
		States [][]any `json:"states"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode states response: %w", err)
	}

	out := &States{Time: raw.Time}
	for _, tuple := range raw.States {
		if sv := decodeStateTuple(tuple); sv != nil {
			out.States = append(out.States, sv)
		}
	}
	return out, nil
}

// GetAircraftStates queries specific aircraft by ICAO24, chunking requests
// at the provider's batch limit. The provider cannot combine a hex list
// with a bbox, so bbox filtering happens client-side: aircraft without a
// position are excluded when a bbox is given. The result maps every
// requested hex; aircraft not seen map to nil.
func (c *Client) GetAircraftStates(ctx context.Context, icao24 []string, bbox *BBox) (map[string]*StateVector, error) {
	codes := make([]string, 0, len(icao24))
	for _, code := range icao24 {
		norm := NormalizeICAO24(code)
		if norm != "" {
			codes = append(codes, norm)
		}
	}
	if len(codes) == 0 {
		return map[string]*StateVector{}, nil
	}

	results := make(map[string]*StateVector, len(codes))
	for start := 0; start < len(codes); start += maxBatchSize {
		end := min(start+maxBatchSize, len(codes))
		batch := codes[start:end]

		resp, err := c.GetStates(ctx, batch, nil)
		if err != nil {
			return nil, err
		}

		for _, sv := range resp.States {
			if bbox != nil {
				if sv.Latitude == nil || sv.Longitude == nil {
					continue
				}
				if !bbox.Contains(*sv.Latitude, *sv.Longitude) {
					continue
				}
			}
			results[sv.ICAO24] = sv
		}
		for _, code := range batch {
			if _, ok := results[code]; !ok {
				results[code] = nil
			}
		}
	}
	return results, nil
}

// GetFlightsByAircraft returns flights for one aircraft in [begin, end].
// Requires authentication.
func (c *Client) GetFlightsByAircraft(ctx context.Context, icao24 string, begin, end int64) ([]Flight, error) {
	if !c.Authenticated() {
		return nil, fmt.Errorf("historical flight data requires authentication: %w", ErrAuth)
	}
	params := url.Values{}
	params.Set("icao24", NormalizeICAO24(icao24))
	params.Set("begin", strconv.FormatInt(begin, 10))
	params.Set("end", strconv.FormatInt(end, 10))
	return c.getFlights(ctx, "flights/aircraft", params)
}

// GetArrivals returns arrivals at an airport in [begin, end]. Requires
// authentication.
func (c *Client) GetArrivals(ctx context.Context, airport string, begin, end int64) ([]Flight, error) {
	if !c.Authenticated() {
		return nil, fmt.Errorf("airport data requires authentication: %w", ErrAuth)
	}
	params := url.Values{}
	params.Set("airport", strings.ToUpper(airport))
	params.Set("begin", strconv.FormatInt(begin, 10))
	params.Set("end", strconv.FormatInt(end, 10))
	return c.getFlights(ctx, "flights/arrival", params)
}

// GetDepartures returns departures from an airport in [begin, end].
// Requires authentication.
func (c *Client) GetDepartures(ctx context.Context, airport string, begin, end int64) ([]Flight, error) {
	if !c.Authenticated() {
		return nil, fmt.Errorf("airport data requires authentication: %w", ErrAuth)
	}
	params := url.Values{}
	params.Set("airport", strings.ToUpper(airport))
	params.Set("begin", strconv.FormatInt(begin, 10))
	params.Set("end", strconv.FormatInt(end, 10))
	return c.getFlights(ctx, "flights/departure", params)
}

func (c *Client) getFlights(ctx context.Context, endpoint string, params url.Values) ([]Flight, error) {
	body, err := c.doGet(ctx, endpoint, params, flightsCacheTTL)
	if err != nil {
		return nil, err
	}
	var flights []Flight
	if err := json.Unmarshal(body, &flights); err != nil {
		return nil, fmt.Errorf("decode flights response: %w", err)
	}
	return flights, nil
}

// doGet performs a cached, rate-limited GET with retries. Statuses 429 and
// 5xx are retried with exponential back-off; 401 maps to ErrAuth and is
// never retried; other non-2xx statuses fail immediately.
func (c *Client) doGet(ctx context.Context, endpoint string, params url.Values, ttl time.Duration) ([]byte, error) {
	key := CacheKey(endpoint, params)
	if body, ok := c.cache.Get(key, ttl); ok {
		return body, nil
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + "/" + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, retryable, err := c.attempt(ctx, reqURL)
		if err == nil {
			c.cache.Put(key, body)
			return body, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("opensky: request failed after %d attempts: %w", maxAttempts, lastErr)
}

// attempt runs a single HTTP GET. The second return reports whether the
// failure is worth retrying.
func (c *Client) attempt(ctx context.Context, reqURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, err
	}

	if c.tokenSource != nil {
		token, err := c.tokenSource.Token()
		if err != nil {
			return nil, false, fmt.Errorf("%w: token request failed (check client_id/client_secret and that the API client is activated): %v", ErrAuth, err)
		}
		token.SetAuthHeader(req)
	} else if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		// Timeouts and connection resets are transient.
		return nil, true, fmt.Errorf("opensky: request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, fmt.Errorf("opensky: read response: %w", err)
		}
		return body, false, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, false, fmt.Errorf("%w: 401 from %s (credentials may be invalid or the account not activated)", ErrAuth, reqURL)
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500 && resp.StatusCode <= 504:
		return nil, true, fmt.Errorf("opensky: HTTP %d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("opensky: HTTP %d from %s", resp.StatusCode, reqURL)
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
