package opensky

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCacheRoundTrip(t *testing.T) {
	c := NewCache(t.TempDir())
	if c == nil {
		t.Fatal("NewCache returned nil for valid dir")
	}

	body := []byte(`{"time":1,"states":[]}`)
	c.Put("states_all", body)

	got, ok := c.Get("states_all", time.Minute)
	if !ok {
		t.Fatal("Get miss, want hit")
	}
	if string(got) != string(body) {
		t.Errorf("Get = %q, want %q", got, body)
	}
}

func TestCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir)
	c.Put("old", []byte("stale"))

	// Age the entry past the TTL via mtime.
	path := filepath.Join(dir, "old.json")
	past := time.Now().Add(-10 * time.Second)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	if _, ok := c.Get("old", 5*time.Second); ok {
		t.Error("Get hit on expired entry, want miss")
	}
	if _, ok := c.Get("old", time.Minute); !ok {
		t.Error("Get miss with long TTL, want hit")
	}
}

func TestCacheDisabled(t *testing.T) {
	var c *Cache
	c.Put("k", []byte("v"))
	if _, ok := c.Get("k", time.Minute); ok {
		t.Error("nil cache Get hit, want miss")
	}
	if NewCache("") != nil {
		t.Error(`NewCache("") != nil, want nil`)
	}
}

func TestCacheKeyStableAndSafe(t *testing.T) {
	a := url.Values{}
	a.Set("icao24", "a1b2c3,d4e5f6")
	a.Set("lamin", "24.0")
	b := url.Values{}
	b.Set("lamin", "24.0")
	b.Set("icao24", "a1b2c3,d4e5f6")

	ka := CacheKey("states/all", a)
	kb := CacheKey("states/all", b)
	if ka != kb {
		t.Errorf("CacheKey order dependent: %q vs %q", ka, kb)
	}
	for _, r := range ka {
		safe := r == '-' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !safe {
			t.Errorf("CacheKey contains unsafe rune %q in %q", r, ka)
		}
	}
	if len(ka) > 100 {
		t.Errorf("CacheKey length = %d, want <= 100", len(ka))
	}
}
