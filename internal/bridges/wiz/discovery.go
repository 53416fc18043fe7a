package wiz

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"
)

// DefaultBroadcastAddresses are the discovery targets tried in order.
var DefaultBroadcastAddresses = []string{
	"192.168.0.255",
	"192.168.1.255",
	"255.255.255.255",
}

// DiscoveredDevice is a bulb that answered a registration broadcast.
// Address and Port are taken from the reply datagram's source.
type DiscoveredDevice struct {
	Address string `json:"ip"`
	Port    int    `json:"port"`
	MAC     string `json:"mac"`
}

// Discoverer finds bulbs on the local network.
type Discoverer interface {
	// Discover returns every distinct bulb that replied, in arrival order.
	// An empty result is not an error.
	Discover(ctx context.Context, candidates []string) []DiscoveredDevice
}

// BroadcasterOptions configures a Broadcaster.
type BroadcasterOptions struct {
	// Port is the bulb port. Defaults to DefaultPort.
	Port int

	// Window is how long replies are collected. Defaults to DefaultDiscoveryWindow.
	Window time.Duration

	// PhoneMAC and PhoneIP fill the registration request.
	PhoneMAC string
	PhoneIP  string

	// Logger is optional.
	Logger Logger
}

const (
	// maxReadErrors consecutive non-timeout read failures end collection.
	maxReadErrors = 5

	readErrorBackoff = 20 * time.Millisecond
)

// Broadcaster discovers bulbs by sending a registration request to each
// candidate address from one broadcast-enabled socket and collecting
// replies until the window closes.
type Broadcaster struct {
	logSink

	port     int
	window   time.Duration
	phoneMAC string
	phoneIP  string
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(opts BroadcasterOptions) *Broadcaster {
	b := &Broadcaster{
		port:     opts.Port,
		window:   opts.Window,
		phoneMAC: opts.PhoneMAC,
		phoneIP:  opts.PhoneIP,
	}
	if b.port <= 0 {
		b.port = DefaultPort
	}
	if b.window <= 0 {
		b.window = DefaultDiscoveryWindow
	}
	b.SetLogger(opts.Logger)
	return b
}

// Discover broadcasts a registration request and gathers replies.
//
// The whole window is always waited out (or until ctx ends) because
// several bulbs may answer. Datagrams that are not registration replies
// with a MAC are ignored; duplicates by MAC keep the first sighting.
func (b *Broadcaster) Discover(ctx context.Context, candidates []string) []DiscoveredDevice {
	payload, err := RegistrationCommand(b.phoneMAC, b.phoneIP).Encode()
	if err != nil {
		b.logError("encoding registration request failed", err)
		return nil
	}

	lc := net.ListenConfig{Control: enableBroadcast}
	pc, err := lc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		b.logError("opening discovery socket failed", err)
		return nil
	}
	defer pc.Close()

	deadline := time.Now().Add(b.window)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := pc.SetDeadline(deadline); err != nil {
		b.logError("setting discovery deadline failed", err)
		return nil
	}
	stop := context.AfterFunc(ctx, func() {
		pc.SetDeadline(time.Now()) //nolint:errcheck // ends the collection loop
	})
	defer stop()

	sent := 0
	for _, candidate := range candidates {
		dst, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(candidate, strconv.Itoa(b.port)))
		if err != nil {
			b.logDebug("skipping discovery target", "address", candidate, "error", err)
			continue
		}
		if _, err := pc.WriteTo(payload, dst); err != nil {
			b.logDebug("discovery send failed", "address", candidate, "error", err)
			continue
		}
		sent++
	}
	b.logDebug("discovery broadcast sent", "targets", sent, "window", b.window)

	return b.collect(pc, deadline)
}

// collect reads replies until the socket deadline passes.
func (b *Broadcaster) collect(pc net.PacketConn, deadline time.Time) []DiscoveredDevice {
	devices := []DiscoveredDevice{}
	seen := make(map[string]struct{})
	buf := make([]byte, maxDatagramSize)
	failures := 0

	for {
		n, src, err := pc.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, net.ErrClosed) {
				break
			}
			// Windows reports ICMP unreachable from an earlier send as a read error.
			failures++
			if failures >= maxReadErrors || time.Now().After(deadline) {
				b.logDebug("giving up on discovery replies", "error", err, "failures", failures)
				break
			}
			b.logDebug("discovery read failed", "error", err)
			time.Sleep(readErrorBackoff)
			continue
		}
		failures = 0

		mac, ok := parseRegistrationReply(buf[:n])
		if !ok {
			continue
		}
		if _, dup := seen[mac]; dup {
			continue
		}
		udpAddr, ok := src.(*net.UDPAddr)
		if !ok {
			continue
		}
		seen[mac] = struct{}{}
		devices = append(devices, DiscoveredDevice{
			Address: udpAddr.IP.String(),
			Port:    udpAddr.Port,
			MAC:     mac,
		})
		b.logInfo("bulb discovered", "ip", udpAddr.IP.String(), "mac", mac)
	}

	return devices
}
