package wiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a cached bulb address is trusted.
const DefaultCacheTTL = time.Hour

// DeviceRecord is the last known location of the target bulb.
type DeviceRecord struct {
	Address  string
	Port     int
	LastSeen time.Time
}

// CacheStore persists the last known bulb location between runs.
//
// Implementations never return errors: a store that cannot be read
// behaves as empty, and failed writes are logged and dropped.
type CacheStore interface {
	// Load returns the stored record if one exists and is still fresh.
	Load() (DeviceRecord, bool)

	// Save stores the record, stamping it with the current time.
	Save(rec DeviceRecord)

	// Clear removes any stored record. Clearing an empty store is a no-op.
	Clear()
}

// cacheFile is the on-disk JSON document.
//
// Older writers used "address" instead of "ip"; both are accepted on read.
type cacheFile struct {
	IP        string   `json:"ip,omitempty"`
	Address   string   `json:"address,omitempty"`
	Port      *int     `json:"port,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// FileCacheOptions configures a FileCache.
type FileCacheOptions struct {
	// Path is the cache file location. Required.
	Path string

	// TTL is the freshness window. Defaults to DefaultCacheTTL.
	TTL time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Logger receives storage failures. Optional.
	Logger Logger
}

// FileCache is a CacheStore backed by a small JSON file.
//
// Writes go to a temporary file in the same directory and are renamed
// into place, so readers never see a partial document.
type FileCache struct {
	logSink

	path string
	ttl  time.Duration
	now  func() time.Time
}

// NewFileCache creates a file-backed cache store.
func NewFileCache(opts FileCacheOptions) *FileCache {
	c := &FileCache{
		path: opts.Path,
		ttl:  opts.TTL,
		now:  opts.Now,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultCacheTTL
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.SetLogger(opts.Logger)
	return c
}

// Path returns the cache file location.
func (c *FileCache) Path() string {
	return c.path
}

// Load returns the cached record if the file exists, parses, names an
// address, and is younger than the TTL.
func (c *FileCache) Load() (DeviceRecord, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logWarn("reading bulb cache failed", "path", c.path,
				"error", fmt.Errorf("%w: %w", ErrStorage, err))
		}
		return DeviceRecord{}, false
	}

	var doc cacheFile
	if err := json.Unmarshal(data, &doc); err != nil {
		c.logWarn("ignoring unreadable bulb cache", "path", c.path,
			"error", fmt.Errorf("%w: %w", ErrStorage, err))
		return DeviceRecord{}, false
	}

	address := doc.IP
	if address == "" {
		address = doc.Address
	}
	if address == "" || doc.Timestamp == nil {
		return DeviceRecord{}, false
	}

	port := DefaultPort
	if doc.Port != nil && *doc.Port > 0 {
		port = *doc.Port
	}

	lastSeen := fromUnixSeconds(*doc.Timestamp)
	if c.now().Sub(lastSeen) >= c.ttl {
		c.logDebug("bulb cache expired", "address", address, "last_seen", lastSeen)
		return DeviceRecord{}, false
	}

	return DeviceRecord{Address: address, Port: port, LastSeen: lastSeen}, true
}

// Save writes the record atomically. Failures are logged and dropped.
func (c *FileCache) Save(rec DeviceRecord) {
	port := rec.Port
	if port <= 0 {
		port = DefaultPort
	}
	ts := toUnixSeconds(c.now())

	data, err := json.Marshal(cacheFile{IP: rec.Address, Port: &port, Timestamp: &ts})
	if err != nil {
		c.logError("encoding bulb cache failed", fmt.Errorf("%w: %w", ErrStorage, err))
		return
	}

	if err := writeFileAtomic(c.path, data); err != nil {
		c.logError("writing bulb cache failed", fmt.Errorf("%w: %w", ErrStorage, err), "path", c.path)
		return
	}
	c.logDebug("bulb cache saved", "address", rec.Address, "port", port)
}

// Clear deletes the cache file.
func (c *FileCache) Clear() {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logError("removing bulb cache failed", fmt.Errorf("%w: %w", ErrStorage, err), "path", c.path)
	}
}

// writeFileAtomic writes data to a sibling temp file then renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()        //nolint:errcheck // already failing
		os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// toUnixSeconds converts t to fractional Unix seconds.
func toUnixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

// fromUnixSeconds converts fractional Unix seconds to a time.
func fromUnixSeconds(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(math.Round(frac*float64(time.Second))))
}

// MemoryCache is an in-process CacheStore. It is used in tests and when
// no cache path is writable.
type MemoryCache struct {
	mu  sync.Mutex
	rec *DeviceRecord
	ttl time.Duration
	now func() time.Time
}

// NewMemoryCache creates an empty in-memory cache with the given TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{ttl: ttl, now: time.Now}
}

// Load returns the stored record if it is still fresh.
func (m *MemoryCache) Load() (DeviceRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil || m.now().Sub(m.rec.LastSeen) >= m.ttl {
		return DeviceRecord{}, false
	}
	return *m.rec, true
}

// Save stores the record stamped with the current time.
func (m *MemoryCache) Save(rec DeviceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.LastSeen = m.now()
	m.rec = &rec
}

// Clear removes the stored record.
func (m *MemoryCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = nil
}
