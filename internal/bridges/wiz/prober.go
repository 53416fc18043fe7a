package wiz

import (
	"context"
	"time"
)

// Prober checks whether a bulb still answers at a known address.
type Prober interface {
	Probe(ctx context.Context, address string, port int) bool
}

// StatusProber probes with a getPilot exchange on a short timeout.
type StatusProber struct {
	transport Transport
}

// NewStatusProber creates a prober over a UDP transport with the given
// timeout. A non-positive timeout uses DefaultProbeTimeout.
func NewStatusProber(timeout time.Duration, logger Logger) *StatusProber {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &StatusProber{transport: NewUDPTransport(timeout, logger)}
}

// Probe reports true only for a reply carrying a non-empty result object.
// Every failure mode is folded into false.
func (p *StatusProber) Probe(ctx context.Context, address string, port int) bool {
	res := p.transport.Send(ctx, address, port, GetPilotCommand())
	if !res.OK() {
		return false
	}
	_, ok := replyResult(res.Response)
	return ok
}
