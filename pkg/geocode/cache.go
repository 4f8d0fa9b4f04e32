package geocode

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Cache is a persistent map from normalized address to Entry, written back
// to disk after every update so a crash loses at most the in-flight lookup.
// A single Cache must not be shared by concurrent runs against the same
// path; callers serialize runs externally.
type Cache struct {
	path    string
	entries map[string]Entry
}

// OpenCache loads the cache file at path. A missing or corrupt file yields
// an empty cache, never an error: the cache is an accelerator, not a
// dependency.
func OpenCache(path string) *Cache {
	c := &Cache{path: path, entries: make(map[string]Entry)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Warn("geocode: cache unreadable, starting empty",
				zap.String("path", path), zap.Error(err))
		}
		return c
	}

	if err := json.Unmarshal(data, &c.entries); err != nil {
		zap.L().Warn("geocode: cache corrupt, starting empty",
			zap.String("path", path), zap.Error(err))
		c.entries = make(map[string]Entry)
	}

	return c
}

// Get returns the entry for a key, whatever its status.
func (c *Cache) Get(key string) (Entry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

// Hit returns the entry only when it carries coordinates. Entries without
// coordinates (ZERO_RESULTS, errors) are informational and re-attempted as
// misses on the next run.
func (c *Cache) Hit(key string) (Entry, bool) {
	e, ok := c.entries[key]
	if !ok || e.Lat == nil || e.Lng == nil {
		return Entry{}, false
	}
	return e, true
}

// Put records an entry in memory. Callers follow with Persist.
func (c *Cache) Put(key string, e Entry) {
	c.entries[key] = e
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Persist writes the full map to disk via a temp file and rename, so a
// crash mid-write never corrupts the previous cache.
func (c *Cache) Persist() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "geocode: marshal cache")
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, ".geocode-cache-*.json")
	if err != nil {
		return eris.Wrap(err, "geocode: create cache temp file")
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return eris.Wrap(err, "geocode: write cache")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrap(err, "geocode: close cache temp file")
	}

	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrap(err, "geocode: replace cache file")
	}

	return nil
}
