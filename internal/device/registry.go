package device

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the bulb log: every bulb discovery has found and the state
// reads taken from them. It wraps the two repositories and keeps an
// in-memory copy of the bulb table for fast lookups.
//
// The cache is populated via RefreshCache() and kept in sync by
// RecordDiscovery.
//
// All public methods are thread-safe.
type Registry struct {
	bulbs   BulbRepository
	history StateHistoryRepository

	cache   map[string]Bulb // Cached bulbs by MAC
	byIP    map[string]string
	cacheMu sync.RWMutex // Protects cache and byIP

	logger Logger
	now    func() time.Time
}

// NewRegistry creates a new bulb registry.
func NewRegistry(bulbs BulbRepository, history StateHistoryRepository) *Registry {
	return &Registry{
		bulbs:   bulbs,
		history: history,
		cache:   make(map[string]Bulb),
		byIP:    make(map[string]string),
		logger:  noopLogger{},
		now:     time.Now,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all bulbs from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	bulbs, err := r.bulbs.List(ctx)
	if err != nil {
		return fmt.Errorf("loading bulbs: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]Bulb, len(bulbs))
	r.byIP = make(map[string]string, len(bulbs))
	for _, b := range bulbs {
		r.cache[b.MAC] = b
		r.byIP[b.IP] = b.MAC
	}

	r.logger.Info("bulb cache refreshed", "count", len(bulbs))
	return nil
}

// RecordDiscovery logs every sighting from one discovery run.
// Invalid sightings are skipped with a warning; the first persistence
// error aborts the run.
//
// Returns the number of sightings recorded.
func (r *Registry) RecordDiscovery(ctx context.Context, sightings []Sighting) (int, error) {
	seenAt := r.now()
	recorded := 0

	for _, s := range sightings {
		if err := ValidateSighting(&s); err != nil {
			r.logger.Warn("skipping invalid sighting", "mac", s.MAC, "ip", s.IP, "error", err)
			continue
		}
		if err := r.bulbs.RecordDiscovery(ctx, s, seenAt); err != nil {
			return recorded, err
		}
		r.remember(s, seenAt)
		recorded++
	}

	r.logger.Debug("discovery recorded", "sightings", len(sightings), "recorded", recorded)
	return recorded, nil
}

// remember mirrors an upsert into the cache.
func (r *Registry) remember(s Sighting, seenAt time.Time) {
	seenAt = seenAt.UTC().Truncate(time.Millisecond)

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	b, ok := r.cache[s.MAC]
	if !ok {
		b = Bulb{MAC: s.MAC, FirstSeen: seenAt}
	}
	if prev, ok := r.byIP[b.IP]; ok && prev == s.MAC && b.IP != s.IP {
		delete(r.byIP, b.IP)
	}
	b.IP = s.IP
	b.Port = s.Port
	b.LastSeen = seenAt
	b.Discoveries++
	r.cache[s.MAC] = b
	r.byIP[s.IP] = s.MAC
}

// Bulbs returns every logged bulb, most recently seen first.
func (r *Registry) Bulbs(ctx context.Context) ([]Bulb, error) {
	r.cacheMu.RLock()
	if len(r.cache) > 0 {
		bulbs := make([]Bulb, 0, len(r.cache))
		for _, b := range r.cache {
			bulbs = append(bulbs, b)
		}
		r.cacheMu.RUnlock()
		sortBulbs(bulbs)
		return bulbs, nil
	}
	r.cacheMu.RUnlock()

	return r.bulbs.List(ctx)
}

// Bulb retrieves one bulb by MAC in any accepted form.
// Returns ErrBulbNotFound if the bulb has never been discovered.
func (r *Registry) Bulb(ctx context.Context, mac string) (*Bulb, error) {
	normalised, err := NormalizeMAC(mac)
	if err != nil {
		return nil, err
	}

	r.cacheMu.RLock()
	cached, ok := r.cache[normalised]
	r.cacheMu.RUnlock()
	if ok {
		return &cached, nil
	}

	return r.bulbs.GetByMAC(ctx, normalised)
}

// MACForIP returns the MAC last seen at ip, if any.
func (r *Registry) MACForIP(ip string) (string, bool) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	mac, ok := r.byIP[ip]
	return mac, ok
}

// RecordState logs a state read. When entry.MAC is empty it is resolved
// from entry.IP via the discovery cache.
func (r *Registry) RecordState(ctx context.Context, entry StateHistoryEntry) error {
	if entry.MAC == "" {
		mac, ok := r.MACForIP(entry.IP)
		if !ok {
			return fmt.Errorf("%w: no bulb known at %q", ErrBulbNotFound, entry.IP)
		}
		entry.MAC = mac
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = r.now()
	}

	if err := r.history.RecordStateChange(ctx, entry); err != nil {
		return err
	}
	r.logger.Debug("bulb state recorded", "mac", entry.MAC, "source", entry.Source)
	return nil
}

// History returns recent state reads for a bulb, newest first.
func (r *Registry) History(ctx context.Context, mac string, limit int) ([]StateHistoryEntry, error) {
	return r.history.GetHistory(ctx, mac, limit)
}

// Prune deletes state reads older than retention.
func (r *Registry) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	deleted, err := r.history.PruneHistory(ctx, retention)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		r.logger.Info("state history pruned", "deleted", deleted, "retention", retention.String())
	}
	return deleted, nil
}

// Count returns the number of cached bulbs.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

func sortBulbs(bulbs []Bulb) {
	slices.SortFunc(bulbs, func(a, b Bulb) int {
		if c := b.LastSeen.Compare(a.LastSeen); c != 0 {
			return c
		}
		if a.MAC < b.MAC {
			return -1
		}
		if a.MAC > b.MAC {
			return 1
		}
		return 0
	})
}
