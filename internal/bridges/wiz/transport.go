package wiz

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Exchange timeouts.
const (
	// DefaultCommandTimeout bounds a single command exchange.
	DefaultCommandTimeout = 5 * time.Second

	// DefaultProbeTimeout bounds a liveness probe of a cached address.
	DefaultProbeTimeout = 2 * time.Second

	// DefaultDiscoveryWindow is how long discovery collects replies.
	DefaultDiscoveryWindow = 8 * time.Second
)

// Transport performs one request/reply exchange with a bulb.
type Transport interface {
	Send(ctx context.Context, address string, port int, cmd Command) Result
}

// UDPTransport sends each command on a fresh connected UDP socket and
// waits for a single reply datagram.
//
// A connected socket only accepts datagrams from the target, and an ICMP
// port-unreachable surfaces as a transport error instead of a silent
// timeout.
type UDPTransport struct {
	logSink

	timeout time.Duration
}

// NewUDPTransport creates a transport with the given per-exchange timeout.
// A non-positive timeout uses DefaultCommandTimeout.
func NewUDPTransport(timeout time.Duration, logger Logger) *UDPTransport {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	t := &UDPTransport{timeout: timeout}
	t.SetLogger(logger)
	return t
}

// Timeout returns the per-exchange timeout.
func (t *UDPTransport) Timeout() time.Duration {
	return t.timeout
}

// Send encodes cmd, sends it to address:port and classifies the reply.
//
// The exchange ends at the earlier of the transport timeout and the
// context deadline. Cancelling ctx aborts a pending read.
func (t *UDPTransport) Send(ctx context.Context, address string, port int, cmd Command) Result {
	payload, err := cmd.Encode()
	if err != nil {
		return Failure(ReasonTransportError, err)
	}

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return t.classify(ctx, fmt.Errorf("dialing %s: %w", address, err))
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return Failure(ReasonTransportError, err)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now()) //nolint:errcheck // unblocks the pending read
	})
	defer stop()

	t.logDebug("sending command", "address", address, "port", port, "method", cmd.Method)

	if _, err := conn.Write(payload); err != nil {
		return t.classify(ctx, fmt.Errorf("writing to %s: %w", address, err))
	}

	buf := make([]byte, maxDatagramSize)
	n, err := conn.Read(buf)
	if err != nil {
		return t.classify(ctx, fmt.Errorf("reading from %s: %w", address, err))
	}

	reply, err := decodeReply(buf[:n])
	if err != nil {
		return Failure(ReasonMalformedReply, err)
	}
	if msg, hasErr := replyError(reply); hasErr {
		return Failure(ReasonDeviceError, errors.New(msg))
	}
	return Success(reply)
}

// classify maps a socket error to a failure reason. Deadline expiry is a
// timeout unless the context was explicitly cancelled.
func (t *UDPTransport) classify(ctx context.Context, err error) Result {
	if errors.Is(ctx.Err(), context.Canceled) {
		return Failure(ReasonTransportError, context.Canceled)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Failure(ReasonTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Failure(ReasonTimeout, err)
	}
	return Failure(ReasonTransportError, err)
}
