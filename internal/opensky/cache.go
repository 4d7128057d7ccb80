package opensky

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Cache is a short-TTL file cache for raw API response bodies. Entries are
// stored as cache/{key}.json and aged by file mtime. All I/O errors are
// swallowed; a broken cache must never break a poll.
type Cache struct {
	dir string
}

// NewCache creates a cache rooted at dir, creating it if needed. Returns
// nil (caching disabled) when the directory cannot be created.
func NewCache(dir string) *Cache {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil
	}
	return &Cache{dir: dir}
}

// CacheKey builds a stable filename-safe key from an endpoint and its
// query parameters. Parameters are sorted so equivalent requests share a key.
func CacheKey(endpoint string, params url.Values) string {
	var sb strings.Builder
	sb.WriteString(endpoint)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("_%s_%s", k, strings.Join(params[k], ",")))
	}

	// Sanitize for use as a filename.
	key := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, sb.String())

	if len(key) > 100 {
		key = key[:100]
	}
	return key
}

// Get returns the cached body for key if it exists and is younger than
// maxAge. The second return is false on miss or stale entry.
func (c *Cache) Get(key string, maxAge time.Duration) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	path := filepath.Join(c.dir, key+".json")
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > maxAge {
		return nil, false
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return body, true
}

// Put stores a response body under key. Best-effort; errors are discarded.
func (c *Cache) Put(key string, body []byte) {
	if c == nil {
		return
	}
	path := filepath.Join(c.dir, key+".json")
	_ = os.WriteFile(path, body, 0o644)
}
