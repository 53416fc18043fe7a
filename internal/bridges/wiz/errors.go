package wiz

import "errors"

// Domain errors for the WiZ bridge package.
//
// Failure results carry one of these wrapped in Result.Err, so callers can
// use errors.Is on the error as well as switching on Result.Reason.
var (
	// ErrNoDeviceFound is returned when neither the cache nor discovery
	// produced a bulb address.
	ErrNoDeviceFound = errors.New("wiz: no bulb found")

	// ErrTimeout is returned when no reply arrived before the deadline.
	ErrTimeout = errors.New("wiz: timed out waiting for reply")

	// ErrMalformedReply is returned when a datagram arrived but is not a
	// JSON object.
	ErrMalformedReply = errors.New("wiz: malformed reply")

	// ErrTransport is returned for socket-level failures (dial, write,
	// read, connection refused).
	ErrTransport = errors.New("wiz: transport error")

	// ErrDeviceError is returned when the bulb answered with an error object.
	ErrDeviceError = errors.New("wiz: bulb reported an error")

	// ErrStorage wraps cache file failures. It is only ever logged.
	ErrStorage = errors.New("wiz: cache storage error")

	// ErrInvalidArgument is returned when a verb argument cannot be parsed.
	ErrInvalidArgument = errors.New("wiz: invalid argument")
)
