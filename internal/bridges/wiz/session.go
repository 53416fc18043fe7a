package wiz

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// State is the session's knowledge of where the bulb is.
type State int

const (
	// StateUnresolved means no target address is known.
	StateUnresolved State = iota

	// StateResolved means a target address is known. It may still be
	// unverified if it came from the cache.
	StateResolved

	// StateDegraded means the target stopped answering and re-discovery
	// is in progress. It ends in StateResolved or StateUnresolved.
	StateDegraded
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateResolved:
		return "resolved"
	case StateDegraded:
		return "degraded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DiscoveryObserver is notified of every non-empty discovery result.
type DiscoveryObserver interface {
	ObserveDiscovery(ctx context.Context, devices []DiscoveredDevice)
}

// SessionOptions configures a Session. Cache, Transport, Prober and
// Discoverer are required.
type SessionOptions struct {
	Cache      CacheStore
	Transport  Transport
	Prober     Prober
	Discoverer Discoverer

	// Candidates are the discovery target addresses.
	// Defaults to DefaultBroadcastAddresses.
	Candidates []string

	// Observer is optional.
	Observer DiscoveryObserver

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Logger is optional.
	Logger Logger
}

// Session tracks the target bulb and executes commands against it,
// recovering from a moved bulb by re-discovering once per command.
//
// Execute, Resolve and Discover must not be called concurrently; the
// Controller serialises them. State and Target are safe from any goroutine.
type Session struct {
	logSink

	cache      CacheStore
	transport  Transport
	prober     Prober
	discoverer Discoverer
	candidates []string
	observer   DiscoveryObserver
	now        func() time.Time

	mu       sync.RWMutex
	state    State
	target   DeviceRecord
	verified bool
}

// NewSession creates a session and seeds it from the cache. A fresh cache
// entry yields StateResolved with an unverified target.
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Cache == nil {
		return nil, errors.New("wiz: session requires a cache store")
	}
	if opts.Transport == nil {
		return nil, errors.New("wiz: session requires a transport")
	}
	if opts.Prober == nil {
		return nil, errors.New("wiz: session requires a prober")
	}
	if opts.Discoverer == nil {
		return nil, errors.New("wiz: session requires a discoverer")
	}

	s := &Session{
		cache:      opts.Cache,
		transport:  opts.Transport,
		prober:     opts.Prober,
		discoverer: opts.Discoverer,
		candidates: slices.Clone(opts.Candidates),
		observer:   opts.Observer,
		now:        opts.Now,
		state:      StateUnresolved,
	}
	if len(s.candidates) == 0 {
		s.candidates = slices.Clone(DefaultBroadcastAddresses)
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.SetLogger(opts.Logger)

	if rec, ok := s.cache.Load(); ok {
		s.state = StateResolved
		s.target = rec
		s.logDebug("using cached bulb address", "ip", rec.Address, "port", rec.Port)
	}
	return s, nil
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Target returns the current target and whether one is known.
func (s *Session) Target() (DeviceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateResolved {
		return DeviceRecord{}, false
	}
	return s.target, true
}

// Resolve ensures a verified target.
//
// A cached target is probed once; if it does not answer the cache is
// cleared and discovery runs. Discovery adopts the first device found.
// Returns an error wrapping ErrNoDeviceFound when nothing answers.
func (s *Session) Resolve(ctx context.Context) error {
	s.mu.RLock()
	state, target, verified := s.state, s.target, s.verified
	s.mu.RUnlock()

	if state == StateResolved {
		if verified {
			return nil
		}
		if s.prober.Probe(ctx, target.Address, target.Port) {
			s.mu.Lock()
			s.verified = true
			s.mu.Unlock()
			return nil
		}
		s.logInfo("cached bulb did not answer, rediscovering", "ip", target.Address)
		s.cache.Clear()
		s.setUnresolved()
	}

	devices := s.discoverer.Discover(ctx, s.candidates)
	if len(devices) == 0 {
		s.setUnresolved()
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrNoDeviceFound, err)
		}
		return ErrNoDeviceFound
	}
	s.adopt(ctx, devices)
	return nil
}

// Execute sends cmd to the target, resolving first if needed.
//
// Only a timeout triggers recovery: the cache is cleared, the session
// re-resolves once and the command is sent once more. If re-resolution
// fails the original timeout is returned. Other failures return as is,
// but a transport error marks the target unverified so the next call
// checks it is still a bulb before sending.
func (s *Session) Execute(ctx context.Context, cmd Command) Result {
	if err := s.Resolve(ctx); err != nil {
		return Failure(ReasonNoDeviceFound, err)
	}

	target, _ := s.Target()
	res := s.transport.Send(ctx, target.Address, target.Port, cmd)
	switch res.Reason {
	case ReasonTimeout:
	case ReasonTransportError:
		s.mu.Lock()
		if s.target == target {
			s.verified = false
		}
		s.mu.Unlock()
		return res
	default:
		return res
	}

	s.logWarn("bulb did not reply, rediscovering", "ip", target.Address, "method", cmd.Method)
	s.mu.Lock()
	s.state = StateDegraded
	s.verified = false
	s.mu.Unlock()
	s.cache.Clear()

	if err := s.Resolve(ctx); err != nil {
		s.logWarn("rediscovery found no bulb", "error", err)
		return res
	}

	target, _ = s.Target()
	return s.transport.Send(ctx, target.Address, target.Port, cmd)
}

// Discover runs discovery unconditionally. A non-empty result makes the
// first device the target; an empty result leaves the session unchanged.
func (s *Session) Discover(ctx context.Context) []DiscoveredDevice {
	devices := s.discoverer.Discover(ctx, s.candidates)
	if len(devices) > 0 {
		s.adopt(ctx, devices)
	}
	return devices
}

// Forget clears the cache and drops the target.
func (s *Session) Forget() {
	s.cache.Clear()
	s.setUnresolved()
}

// adopt makes the first device the verified target and persists it.
func (s *Session) adopt(ctx context.Context, devices []DiscoveredDevice) {
	first := devices[0]
	rec := DeviceRecord{Address: first.Address, Port: first.Port, LastSeen: s.now()}

	s.mu.Lock()
	s.state = StateResolved
	s.target = rec
	s.verified = true
	s.mu.Unlock()

	s.cache.Save(rec)
	s.logInfo("bulb resolved", "ip", first.Address, "port", first.Port, "mac", first.MAC,
		"found", len(devices))

	if s.observer != nil {
		s.observer.ObserveDiscovery(ctx, devices)
	}
}

func (s *Session) setUnresolved() {
	s.mu.Lock()
	s.state = StateUnresolved
	s.target = DeviceRecord{}
	s.verified = false
	s.mu.Unlock()
}
