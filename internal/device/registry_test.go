package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// MockBulbRepository is a test implementation of BulbRepository.
type MockBulbRepository struct {
	mu    sync.Mutex
	bulbs map[string]Bulb
	// For testing error paths
	recordErr error
	listCalls int
}

func NewMockBulbRepository() *MockBulbRepository {
	return &MockBulbRepository{bulbs: make(map[string]Bulb)}
}

func (m *MockBulbRepository) RecordDiscovery(_ context.Context, s Sighting, seenAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.recordErr != nil {
		return m.recordErr
	}
	b, ok := m.bulbs[s.MAC]
	if !ok {
		b = Bulb{MAC: s.MAC, FirstSeen: seenAt}
	}
	b.IP, b.Port, b.LastSeen = s.IP, s.Port, seenAt
	b.Discoveries++
	m.bulbs[s.MAC] = b
	return nil
}

func (m *MockBulbRepository) GetByMAC(_ context.Context, mac string) (*Bulb, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.bulbs[mac]; ok {
		return &b, nil
	}
	return nil, ErrBulbNotFound
}

func (m *MockBulbRepository) List(_ context.Context) ([]Bulb, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listCalls++
	bulbs := make([]Bulb, 0, len(m.bulbs))
	for _, b := range m.bulbs {
		bulbs = append(bulbs, b)
	}
	sortBulbs(bulbs)
	return bulbs, nil
}

// MockStateHistory is a test implementation of StateHistoryRepository.
type MockStateHistory struct {
	mu      sync.Mutex
	entries []StateHistoryEntry
	pruned  time.Duration
}

func (m *MockStateHistory) RecordStateChange(_ context.Context, entry StateHistoryEntry) error {
	if err := ValidateState(entry.State); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockStateHistory) GetHistory(_ context.Context, mac string, limit int) ([]StateHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []StateHistoryEntry
	for i := len(m.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.entries[i].MAC == mac {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *MockStateHistory) PruneHistory(_ context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned = olderThan
	n := int64(len(m.entries))
	m.entries = nil
	return n, nil
}

func newTestRegistry() (*Registry, *MockBulbRepository, *MockStateHistory) {
	bulbs := NewMockBulbRepository()
	history := &MockStateHistory{}
	return NewRegistry(bulbs, history), bulbs, history
}

func TestRegistry_RefreshCache(t *testing.T) {
	registry, bulbs, _ := newTestRegistry()
	ctx := context.Background()

	now := time.Now()
	bulbs.RecordDiscovery(ctx, Sighting{MAC: "a8bb50000001", IP: "10.0.0.1", Port: DefaultPort}, now) //nolint:errcheck // mock never fails here
	bulbs.RecordDiscovery(ctx, Sighting{MAC: "a8bb50000002", IP: "10.0.0.2", Port: DefaultPort}, now) //nolint:errcheck // mock never fails here

	if err := registry.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}

	if registry.Count() != 2 {
		t.Errorf("Count() = %d, want 2", registry.Count())
	}
	if mac, ok := registry.MACForIP("10.0.0.2"); !ok || mac != "a8bb50000002" {
		t.Errorf("MACForIP(10.0.0.2) = %q, %v, want a8bb50000002, true", mac, ok)
	}
}

func TestRegistry_RecordDiscovery(t *testing.T) {
	registry, bulbs, _ := newTestRegistry()
	ctx := context.Background()

	sightings := []Sighting{
		{MAC: "A8:BB:50:00:00:01", IP: "10.0.0.1"},
		{MAC: "bogus", IP: "10.0.0.9"},
		{MAC: "a8bb50000002", IP: "10.0.0.2", Port: DefaultPort},
	}

	recorded, err := registry.RecordDiscovery(ctx, sightings)
	if err != nil {
		t.Fatalf("RecordDiscovery() error = %v", err)
	}
	if recorded != 2 {
		t.Errorf("recorded = %d, want 2 (invalid sighting skipped)", recorded)
	}
	if registry.Count() != 2 {
		t.Errorf("Count() = %d, want 2", registry.Count())
	}

	got, err := registry.Bulb(ctx, "a8bb50000001")
	if err != nil {
		t.Fatalf("Bulb() error = %v", err)
	}
	if got.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", got.Port, DefaultPort)
	}

	t.Run("address change moves IP index", func(t *testing.T) {
		if _, err := registry.RecordDiscovery(ctx, []Sighting{{MAC: "a8bb50000001", IP: "10.0.0.50"}}); err != nil {
			t.Fatalf("RecordDiscovery() error = %v", err)
		}
		if _, ok := registry.MACForIP("10.0.0.1"); ok {
			t.Error("MACForIP(old address) still resolves")
		}
		if mac, ok := registry.MACForIP("10.0.0.50"); !ok || mac != "a8bb50000001" {
			t.Errorf("MACForIP(new address) = %q, %v", mac, ok)
		}
		b, _ := registry.Bulb(ctx, "a8bb50000001")
		if b.Discoveries != 2 {
			t.Errorf("Discoveries = %d, want 2", b.Discoveries)
		}
	})

	t.Run("persistence error aborts", func(t *testing.T) {
		bulbs.recordErr = errors.New("disk full")
		defer func() { bulbs.recordErr = nil }()

		n, err := registry.RecordDiscovery(ctx, []Sighting{{MAC: "a8bb50000003", IP: "10.0.0.3"}})
		if err == nil {
			t.Fatal("RecordDiscovery() error = nil, want error")
		}
		if n != 0 {
			t.Errorf("recorded = %d, want 0", n)
		}
	})
}

func TestRegistry_Bulb(t *testing.T) {
	registry, bulbs, _ := newTestRegistry()
	ctx := context.Background()

	t.Run("falls back to repository", func(t *testing.T) {
		bulbs.RecordDiscovery(ctx, Sighting{MAC: "a8bb50000007", IP: "10.0.0.7", Port: DefaultPort}, time.Now()) //nolint:errcheck // mock never fails here
		got, err := registry.Bulb(ctx, "A8:BB:50:00:00:07")
		if err != nil {
			t.Fatalf("Bulb() error = %v", err)
		}
		if got.IP != "10.0.0.7" {
			t.Errorf("IP = %q, want 10.0.0.7", got.IP)
		}
	})

	t.Run("returns ErrBulbNotFound for unknown", func(t *testing.T) {
		_, err := registry.Bulb(ctx, "ffffffffffff")
		if !errors.Is(err, ErrBulbNotFound) {
			t.Errorf("Bulb() error = %v, want ErrBulbNotFound", err)
		}
	})

	t.Run("rejects malformed MAC", func(t *testing.T) {
		_, err := registry.Bulb(ctx, "xyz")
		if !errors.Is(err, ErrInvalidMAC) {
			t.Errorf("Bulb() error = %v, want ErrInvalidMAC", err)
		}
	})
}

func TestRegistry_Bulbs(t *testing.T) {
	registry, bulbs, _ := newTestRegistry()
	ctx := context.Background()

	t.Run("empty cache reads repository", func(t *testing.T) {
		if _, err := registry.Bulbs(ctx); err != nil {
			t.Fatalf("Bulbs() error = %v", err)
		}
		if bulbs.listCalls != 1 {
			t.Errorf("listCalls = %d, want 1", bulbs.listCalls)
		}
	})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return base }
	registry.RecordDiscovery(ctx, []Sighting{{MAC: "a8bb50000001", IP: "10.0.0.1"}}) //nolint:errcheck // mock never fails here
	registry.now = func() time.Time { return base.Add(time.Minute) }
	registry.RecordDiscovery(ctx, []Sighting{{MAC: "a8bb50000002", IP: "10.0.0.2"}}) //nolint:errcheck // mock never fails here

	t.Run("cache ordered newest first", func(t *testing.T) {
		got, err := registry.Bulbs(ctx)
		if err != nil {
			t.Fatalf("Bulbs() error = %v", err)
		}
		if len(got) != 2 || got[0].MAC != "a8bb50000002" {
			t.Errorf("Bulbs() = %+v, want a8bb50000002 first", got)
		}
		if bulbs.listCalls != 1 {
			t.Errorf("listCalls = %d, want cache hit", bulbs.listCalls)
		}
	})
}

func TestRegistry_RecordState(t *testing.T) {
	registry, _, history := newTestRegistry()
	ctx := context.Background()

	registry.RecordDiscovery(ctx, []Sighting{{MAC: "a8bb50000001", IP: "10.0.0.1"}}) //nolint:errcheck // mock never fails here

	t.Run("explicit MAC", func(t *testing.T) {
		err := registry.RecordState(ctx, StateHistoryEntry{MAC: "a8bb50000001", State: State{"state": true}, Source: StateSourceAPI})
		if err != nil {
			t.Fatalf("RecordState() error = %v", err)
		}
	})

	t.Run("MAC resolved from IP", func(t *testing.T) {
		err := registry.RecordState(ctx, StateHistoryEntry{IP: "10.0.0.1", State: State{"state": false}})
		if err != nil {
			t.Fatalf("RecordState() error = %v", err)
		}
		entries, _ := registry.History(ctx, "a8bb50000001", 10)
		if len(entries) != 2 {
			t.Fatalf("History() length = %d, want 2", len(entries))
		}
		if entries[0].RecordedAt.IsZero() {
			t.Error("RecordedAt not stamped")
		}
	})

	t.Run("unknown IP", func(t *testing.T) {
		err := registry.RecordState(ctx, StateHistoryEntry{IP: "10.9.9.9", State: State{"state": false}})
		if !errors.Is(err, ErrBulbNotFound) {
			t.Errorf("RecordState() error = %v, want ErrBulbNotFound", err)
		}
	})

	t.Run("prune", func(t *testing.T) {
		deleted, err := registry.Prune(ctx, 30*24*time.Hour)
		if err != nil {
			t.Fatalf("Prune() error = %v", err)
		}
		if deleted != 2 {
			t.Errorf("deleted = %d, want 2", deleted)
		}
		if history.pruned != 30*24*time.Hour {
			t.Errorf("retention passed = %v", history.pruned)
		}
	})
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry, _, _ := newTestRegistry()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(3)

		go func(n int) {
			defer wg.Done()
			mac := fmt.Sprintf("a8bb500000%02x", n%8)
			registry.RecordDiscovery(ctx, []Sighting{{MAC: mac, IP: fmt.Sprintf("10.0.0.%d", n%8+1)}}) //nolint:errcheck // mock never fails here
		}(i)

		go func() {
			defer wg.Done()
			registry.Bulbs(ctx) //nolint:errcheck // exercising locks only
		}()

		go func(n int) {
			defer wg.Done()
			registry.MACForIP(fmt.Sprintf("10.0.0.%d", n%8+1))
		}(i)
	}

	wg.Wait()

	if registry.Count() != 8 {
		t.Errorf("Count() = %d, want 8", registry.Count())
	}
}
