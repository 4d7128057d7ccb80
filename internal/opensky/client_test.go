package opensky

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(serverURL string) *Client {
	c := NewClient(Config{
		BaseURL:    serverURL,
		RateLimit:  100,
		RatePeriod: time.Second,
	})
	return c
}

const statesBody = `{
	"time": 1700000000,
	"states": [
		["a1b2c3", "LIFE1  ", "United States", 1699999998, 1700000000,
		 -77.0, 39.5, 1200.5, false, 65.0, 180.0, -2.5, null, 1250.0, "1200", false, 0],
		["d4e5f6", null, "United States", null, 1700000000,
		 null, null, null, true, 0.0, null, null, null, null, null, false, 0]
	]
}`

func TestGetStatesDecodesTuples(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/states/all" {
			t.Errorf("path = %q, want /states/all", r.URL.Path)
		}
		_, _ = w.Write([]byte(statesBody))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	resp, err := c.GetStates(context.Background(), nil, &BBox{24, -125, 50, -66})
	if err != nil {
		t.Fatalf("GetStates: %v", err)
	}
	if resp.Time != 1700000000 {
		t.Errorf("Time = %d, want 1700000000", resp.Time)
	}
	if len(resp.States) != 2 {
		t.Fatalf("len(States) = %d, want 2", len(resp.States))
	}

	sv := resp.States[0]
	if sv.ICAO24 != "A1B2C3" {
		t.Errorf("ICAO24 = %q, want A1B2C3", sv.ICAO24)
	}
	if sv.Callsign == nil || *sv.Callsign != "LIFE1" {
		t.Errorf("Callsign = %v, want LIFE1 (trimmed)", sv.Callsign)
	}
	if sv.Velocity == nil || *sv.Velocity != 65.0 {
		t.Errorf("Velocity = %v, want 65.0", sv.Velocity)
	}
	if sv.Squawk == nil || *sv.Squawk != "1200" {
		t.Errorf("Squawk = %v, want 1200", sv.Squawk)
	}
	if alt, ok := sv.Altitude(); !ok || alt != 1200.5 {
		t.Errorf("Altitude() = %v,%v, want 1200.5,true", alt, ok)
	}

	sparse := resp.States[1]
	if sparse.Callsign != nil || sparse.Latitude != nil || sparse.Velocity == nil {
		t.Errorf("sparse vector decoded wrong: callsign=%v lat=%v vel=%v",
			sparse.Callsign, sparse.Latitude, sparse.Velocity)
	}
	if !sparse.OnGround {
		t.Error("sparse OnGround = false, want true")
	}
	if _, ok := sparse.Altitude(); ok {
		t.Error("sparse Altitude() ok = true, want false")
	}
}

func TestGetStatesRejectsAllInvalidHexes(t *testing.T) {
	c := testClient("http://invalid.test")
	_, err := c.GetStates(context.Background(), []string{"nothex", "12345"}, nil)
	if err == nil {
		t.Fatal("GetStates = nil error, want error for no valid codes")
	}
}

func TestDoGetRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"time":1,"states":[]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	resp, err := c.GetStates(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("GetStates: %v", err)
	}
	if resp.Time != 1 {
		t.Errorf("Time = %d, want 1", resp.Time)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestDoGetAuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.GetStates(context.Background(), nil, nil)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("GetStates error = %v, want ErrAuth", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 401)", got)
	}
}

func TestGetStatesServedFromCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"time":42,"states":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:    srv.URL,
		CacheDir:   t.TempDir(),
		RateLimit:  100,
		RatePeriod: time.Second,
	})

	for i := 0; i < 3; i++ {
		resp, err := c.GetStates(context.Background(), []string{"A1B2C3"}, nil)
		if err != nil {
			t.Fatalf("GetStates %d: %v", i, err)
		}
		if resp.Time != 42 {
			t.Errorf("Time = %d, want 42", resp.Time)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (cache hits)", got)
	}
	// Cache hits must not consume rate limit slots.
	if got := c.limiter.InWindow(); got != 1 {
		t.Errorf("limiter InWindow = %d, want 1", got)
	}
}

func TestGetAircraftStatesFiltersByBBox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"time": 1,
			"states": [
				["a1b2c3", "IN1", "US", null, 1, -80.0, 40.0, 1000.0, false, 50.0, 90.0, 0.0, null, null, null, false, 0],
				["d4e5f6", "OUT1", "US", null, 1, 10.0, 52.0, 1000.0, false, 50.0, 90.0, 0.0, null, null, null, false, 0],
				["aabbcc", "NOPOS", "US", null, 1, null, null, null, true, null, null, null, null, null, null, false, 0]
			]
		}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	bbox := &BBox{MinLat: 24, MinLon: -125, MaxLat: 50, MaxLon: -66}
	got, err := c.GetAircraftStates(context.Background(), []string{"A1B2C3", "D4E5F6", "AABBCC"}, bbox)
	if err != nil {
		t.Fatalf("GetAircraftStates: %v", err)
	}

	if got["A1B2C3"] == nil {
		t.Error("A1B2C3 = nil, want state vector inside bbox")
	}
	if got["D4E5F6"] != nil {
		t.Error("D4E5F6 != nil, want nil (outside bbox)")
	}
	if got["AABBCC"] != nil {
		t.Error("AABBCC != nil, want nil (no position)")
	}
}

func TestFlightsRequireAuth(t *testing.T) {
	c := testClient("http://invalid.test")
	if c.Authenticated() {
		t.Fatal("Authenticated() = true for anonymous client")
	}
	if _, err := c.GetFlightsByAircraft(context.Background(), "A1B2C3", 0, 1); !errors.Is(err, ErrAuth) {
		t.Errorf("GetFlightsByAircraft error = %v, want ErrAuth", err)
	}
	if _, err := c.GetArrivals(context.Background(), "KJFK", 0, 1); !errors.Is(err, ErrAuth) {
		t.Errorf("GetArrivals error = %v, want ErrAuth", err)
	}
	if _, err := c.GetDepartures(context.Background(), "KJFK", 0, 1); !errors.Is(err, ErrAuth) {
		t.Errorf("GetDepartures error = %v, want ErrAuth", err)
	}
}

func TestGetFlightsByAircraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("icao24"); got != "A1B2C3" {
			t.Errorf("icao24 param = %q, want A1B2C3", got)
		}
		_, _ = w.Write([]byte(`[{"icao24":"a1b2c3","firstSeen":100,"lastSeen":200,"callsign":"LIFE1"}]`))
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:     srv.URL,
		Credentials: Credentials{Username: "user", Password: "pass"},
		RateLimit:   100,
		RatePeriod:  time.Second,
	})

	flights, err := c.GetFlightsByAircraft(context.Background(), "a1b2c3", 100, 200)
	if err != nil {
		t.Fatalf("GetFlightsByAircraft: %v", err)
	}
	if len(flights) != 1 {
		t.Fatalf("len(flights) = %d, want 1", len(flights))
	}
	if flights[0].Callsign != "LIFE1" {
		t.Errorf("Callsign = %q, want LIFE1", flights[0].Callsign)
	}
}

func TestValidICAO24(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"A1B2C3", true},
		{"a1b2c3", true},
		{" a1b2c3 ", true},
		{"12345", false},
		{"1234567", false},
		{"GHIJKL", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidICAO24(tc.in); got != tc.want {
			t.Errorf("ValidICAO24(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
