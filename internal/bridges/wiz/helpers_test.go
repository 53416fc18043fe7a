package wiz

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

// fakeBulb is a loopback UDP responder standing in for a real bulb.
type fakeBulb struct {
	conn    *net.UDPConn
	respond func(req map[string]any) [][]byte

	mu       sync.Mutex
	requests []map[string]any
}

// newFakeBulb starts a responder on 127.0.0.1. respond returns the
// datagrams to send back for each request; nil means stay silent.
func newFakeBulb(t *testing.T, respond func(req map[string]any) [][]byte) *fakeBulb {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	f := &fakeBulb{conn: conn, respond: respond}
	t.Cleanup(func() { conn.Close() })

	go f.serve()
	return f
}

func (f *fakeBulb) serve() {
	buf := make([]byte, maxDatagramSize)
	for {
		n, src, err := f.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		var req map[string]any
		if err := json.Unmarshal(buf[:n], &req); err != nil {
			continue
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		if f.respond == nil {
			continue
		}
		for _, reply := range f.respond(req) {
			f.conn.WriteToUDP(reply, src) //nolint:errcheck // test responder
		}
	}
}

func (f *fakeBulb) port() int {
	return f.conn.LocalAddr().(*net.UDPAddr).Port
}

func (f *fakeBulb) received() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, len(f.requests))
	copy(out, f.requests)
	return out
}

// reply is a respond func that always answers with the same datagram.
func reply(data string) func(map[string]any) [][]byte {
	return func(map[string]any) [][]byte { return [][]byte{[]byte(data)} }
}

// sentCommand records one Send call on fakeTransport.
type sentCommand struct {
	address string
	port    int
	cmd     Command
}

// fakeTransport returns scripted results in order, repeating the last.
type fakeTransport struct {
	mu      sync.Mutex
	results []Result
	sent    []sentCommand
}

func (f *fakeTransport) Send(_ context.Context, address string, port int, cmd Command) Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentCommand{address: address, port: port, cmd: cmd})
	if len(f.results) == 0 {
		return Success(map[string]any{"result": map[string]any{"success": true}})
	}
	res := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return res
}

func (f *fakeTransport) calls() []sentCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentCommand(nil), f.sent...)
}

func (f *fakeTransport) lastParams(t *testing.T) map[string]any {
	t.Helper()
	calls := f.calls()
	if len(calls) == 0 {
		t.Fatal("no command sent")
	}
	return calls[len(calls)-1].cmd.Params
}

// fakeProber answers with a fixed liveness.
type fakeProber struct {
	mu     sync.Mutex
	alive  bool
	probes int
}

func (f *fakeProber) Probe(context.Context, string, int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	return f.alive
}

func (f *fakeProber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes
}

// fakeDiscoverer returns scripted device lists in order, repeating the last.
type fakeDiscoverer struct {
	mu      sync.Mutex
	results [][]DiscoveredDevice
	calls   int
}

func (f *fakeDiscoverer) Discover(context.Context, []string) []DiscoveredDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) == 0 {
		return nil
	}
	res := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return res
}

func (f *fakeDiscoverer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// countingCache wraps MemoryCache and counts mutations.
type countingCache struct {
	*MemoryCache
	mu     sync.Mutex
	saves  int
	clears int
}

func newCountingCache() *countingCache {
	return &countingCache{MemoryCache: NewMemoryCache(DefaultCacheTTL)}
}

func (c *countingCache) Save(rec DeviceRecord) {
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
	c.MemoryCache.Save(rec)
}

func (c *countingCache) Clear() {
	c.mu.Lock()
	c.clears++
	c.mu.Unlock()
	c.MemoryCache.Clear()
}

func (c *countingCache) clearCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clears
}

// recordingObserver collects discovery notifications.
type recordingObserver struct {
	mu   sync.Mutex
	seen [][]DiscoveredDevice
}

func (r *recordingObserver) ObserveDiscovery(_ context.Context, devices []DiscoveredDevice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, devices)
}

var (
	bulbA = DiscoveredDevice{Address: "10.0.0.5", Port: DefaultPort, MAC: "AA:BB:CC:DD:EE:FF"}
	bulbB = DiscoveredDevice{Address: "10.0.0.9", Port: DefaultPort, MAC: "11:22:33:44:55:66"}
)

func timeoutResult() Result {
	return Failure(ReasonTimeout, errors.New("i/o timeout"))
}

func okResult() Result {
	return Success(map[string]any{"result": map[string]any{"success": true}})
}

// testSession builds a session over fakes.
func testSession(t *testing.T, cache CacheStore, tr *fakeTransport, pr *fakeProber, disc *fakeDiscoverer) *Session {
	t.Helper()
	s, err := NewSession(SessionOptions{
		Cache:      cache,
		Transport:  tr,
		Prober:     pr,
		Discoverer: disc,
		Now:        func() time.Time { return time.Unix(1760870400, 0) },
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return s
}

// capturingLogger records log calls by level.
type capturingLogger struct {
	mu      sync.Mutex
	entries []capturedEntry
}

type capturedEntry struct {
	level string
	msg   string
	kv    []any
}

func (l *capturingLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, capturedEntry{level: level, msg: msg, kv: kv})
}

func (l *capturingLogger) Debug(msg string, kv ...any) { l.add("debug", msg, kv) }
func (l *capturingLogger) Info(msg string, kv ...any)  { l.add("info", msg, kv) }
func (l *capturingLogger) Warn(msg string, kv ...any)  { l.add("warn", msg, kv) }
func (l *capturingLogger) Error(msg string, kv ...any) { l.add("error", msg, kv) }

func (l *capturingLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}
