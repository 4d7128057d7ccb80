package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"fleetwatch/internal/state"
)

func ptr[T any](v T) *T { return &v }

func newTestServer(t *testing.T, cfg Config) (*Server, *state.Store) {
	t.Helper()
	store, err := state.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewServer(store, cfg), store
}

func seedAnomaly(t *testing.T, store *state.Store, icao24, typ, severity string) int64 {
	t.Helper()
	var hex *string
	if icao24 != "" {
		hex = &icao24
	}
	id, err := store.LogAnomaly(state.Anomaly{
		Timestamp: time.Now().Unix(),
		ICAO24:    hex,
		Type:      typ,
		Severity:  severity,
		Details:   map[string]any{"velocity_knots": 165.2},
	})
	if err != nil {
		t.Fatalf("LogAnomaly: %v", err)
	}
	return id
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAnomaliesListAndFilter(t *testing.T) {
	srv, store := newTestServer(t, Config{})
	seedAnomaly(t, store, "A1B2C3", "high_speed", "HIGH")
	seedAnomaly(t, store, "D4E5F6", "rapid_climb", "HIGH")
	seedAnomaly(t, store, "", "multiple_launch", "CRITICAL")

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	get := func(url string) []state.Anomaly {
		t.Helper()
		resp, err := http.Get(ts.URL + url)
		if err != nil {
			t.Fatalf("GET %s: %v", url, err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d", url, resp.StatusCode)
		}
		var out []state.Anomaly
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return out
	}

	if got := get("/anomalies"); len(got) != 3 {
		t.Errorf("all anomalies = %d, want 3", len(got))
	}
	if got := get("/anomalies?severity=critical"); len(got) != 1 || got[0].Type != "multiple_launch" {
		t.Errorf("critical = %+v, want one multiple_launch", got)
	}
	if got := get("/anomalies?type=high_speed"); len(got) != 1 {
		t.Errorf("high_speed = %d, want 1", len(got))
	}
	if got := get("/anomalies?icao24=a1b2c3"); len(got) != 1 || *got[0].ICAO24 != "A1B2C3" {
		t.Errorf("by icao24 = %+v", got)
	}
}

func TestAnomalyStats(t *testing.T) {
	srv, store := newTestServer(t, Config{})
	seedAnomaly(t, store, "A1B2C3", "high_speed", "HIGH")
	seedAnomaly(t, store, "A1B2C3", "high_speed", "HIGH")
	seedAnomaly(t, store, "", "multiple_launch", "CRITICAL")

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/anomalies/stats")
	if err != nil {
		t.Fatalf("GET stats: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var stats AnomalyStatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("total = %d, want 3", stats.Total)
	}
	if stats.ByType["high_speed"] != 2 {
		t.Errorf("by_type = %v", stats.ByType)
	}
	if stats.BySeverity["CRITICAL"] != 1 {
		t.Errorf("by_severity = %v", stats.BySeverity)
	}
}

func TestAcknowledge(t *testing.T) {
	srv, store := newTestServer(t, Config{})
	id := seedAnomaly(t, store, "A1B2C3", "high_speed", "HIGH")

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/anomalies/"+itoa64(id)+"/ack", "application/json", nil)
	if err != nil {
		t.Fatalf("POST ack: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	got, err := store.RecentAnomalies(time.Unix(0, 0), 10)
	if err != nil {
		t.Fatalf("RecentAnomalies: %v", err)
	}
	if len(got) != 1 || !got[0].Acknowledged {
		t.Errorf("anomaly not acknowledged: %+v", got)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv, store := newTestServer(t, Config{})
	now := time.Now().Unix()
	for i := int64(0); i < 3; i++ {
		err := store.SaveSnapshot(state.Snapshot{
			ICAO24:      "A1B2C3",
			Timestamp:   now - i*60,
			Altitude:    ptr(1000.0 + float64(i)),
			LastContact: now - i*60,
		})
		if err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/aircraft/a1b2c3/history?limit=2")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var history []state.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d, want 2", len(history))
	}
	if history[0].Timestamp != now {
		t.Errorf("history not newest first: %+v", history)
	}

	resp2, err := http.Get(ts.URL + "/aircraft/zzz/history")
	if err != nil {
		t.Fatalf("GET bad hex: %v", err)
	}
	defer func() { _ = resp2.Body.Close() }()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("bad hex status = %d, want 400", resp2.StatusCode)
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := newTestServer(t, Config{AuthEnabled: true, APIKeys: []string{"secret"}})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/anomalies")
	if err != nil {
		t.Fatalf("GET without key: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/anomalies?api_key=wrong")
	if err != nil {
		t.Fatalf("GET wrong key: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("wrong key status = %d, want 403", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/anomalies", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET with key: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid key status = %d, want 200", resp.StatusCode)
	}
}

func itoa64(i int64) string {
	return strconv.FormatInt(i, 10)
}
