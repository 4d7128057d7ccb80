package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func nominatimStub(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("request missing User-Agent header")
		}
		if r.URL.Query().Get("addressdetails") != "1" {
			t.Error("request missing addressdetails=1")
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestReverse(t *testing.T) {
	srv := nominatimStub(t, `{"address":{"county":"Frederick County","state":"Maryland"}}`)
	c := NewClient(WithBaseURL(srv.URL))

	loc, err := c.Reverse(context.Background(), 39.4, -77.4)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if loc.County != "Frederick County" {
		t.Errorf("County = %q, want Frederick County", loc.County)
	}
	if loc.State != "Maryland" {
		t.Errorf("State = %q, want Maryland", loc.State)
	}
}

func TestReverseFieldFallbacks(t *testing.T) {
	srv := nominatimStub(t, `{"address":{"municipality":"Anchorage","region":"Alaska"}}`)
	c := NewClient(WithBaseURL(srv.URL))

	loc, err := c.Reverse(context.Background(), 61.2, -149.9)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if loc.County != "Anchorage" {
		t.Errorf("County = %q, want Anchorage (municipality fallback)", loc.County)
	}
	if loc.State != "Alaska" {
		t.Errorf("State = %q, want Alaska (region fallback)", loc.State)
	}
}

func TestReverseIncomplete(t *testing.T) {
	srv := nominatimStub(t, `{"address":{"county":"Somewhere"}}`)
	c := NewClient(WithBaseURL(srv.URL))

	if _, err := c.Reverse(context.Background(), 39.0, -77.0); err == nil {
		t.Error("Reverse = nil error for response without state")
	}
}

func TestThrottleSpacesRequests(t *testing.T) {
	srv := nominatimStub(t, `{"address":{"county":"X","state":"Y"}}`)
	c := NewClient(WithBaseURL(srv.URL))

	ctx := context.Background()
	if _, err := c.Reverse(ctx, 39.0, -77.0); err != nil {
		t.Fatalf("first Reverse: %v", err)
	}
	start := time.Now()
	if _, err := c.Reverse(ctx, 39.0, -77.0); err != nil {
		t.Fatalf("second Reverse: %v", err)
	}
	if spaced := time.Since(start); spaced < 900*time.Millisecond {
		t.Errorf("second request after %v, want >= ~1s spacing", spaced)
	}
}

func TestBroadcastifyURLWithCountyID(t *testing.T) {
	table := filepath.Join(t.TempDir(), "ctids.tsv")
	content := "# ctid\tcounty\tstate\n1792\tFrederick\tMD\n183\tMontgomery\tMD\n"
	if err := os.WriteFile(table, []byte(content), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}

	srv := nominatimStub(t, `{"address":{"county":"Frederick County","state":"Maryland"}}`)
	c := NewClient(WithBaseURL(srv.URL), WithCountyIDFile(table))

	got := c.BroadcastifyURL(context.Background(), 39.4, -77.4)
	want := "https://www.broadcastify.com/listen/ctid/1792"
	if got != want {
		t.Errorf("BroadcastifyURL = %q, want %q", got, want)
	}
}

func TestBroadcastifyURLSearchFallback(t *testing.T) {
	srv := nominatimStub(t, `{"address":{"county":"St. Mary's County","state":"Maryland"}}`)
	c := NewClient(WithBaseURL(srv.URL))

	got := c.BroadcastifyURL(context.Background(), 38.3, -76.5)
	want := "https://www.broadcastify.com/listen/?q=St.+Mary%27s+Maryland"
	if got != want {
		t.Errorf("BroadcastifyURL = %q, want %q", got, want)
	}
}

func TestBroadcastifyURLUnresolvable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := NewClient(WithBaseURL(srv.URL))

	if got := c.BroadcastifyURL(context.Background(), 0, 0); got != "" {
		t.Errorf("BroadcastifyURL = %q, want empty on failure", got)
	}
}

func TestCountyKeyNormalization(t *testing.T) {
	cases := []struct {
		county, state, want string
	}{
		{"Frederick County", "Maryland", "frederick|MD"},
		{"Frederick", "MD", "frederick|MD"},
		{"Orleans Parish", "Louisiana", "orleans|LA"},
		{"Anchorage", "Alaska", "anchorage|AK"},
	}
	for _, tc := range cases {
		if got := countyKey(tc.county, tc.state); got != tc.want {
			t.Errorf("countyKey(%q, %q) = %q, want %q", tc.county, tc.state, got, tc.want)
		}
	}
}
