package wiz

import "fmt"

// Reason classifies why an exchange failed. The zero value means success.
type Reason string

const (
	// ReasonNone marks a successful result.
	ReasonNone Reason = ""

	// ReasonTimeout means no reply arrived before the deadline.
	// It is the only reason that triggers re-discovery.
	ReasonTimeout Reason = "timeout"

	// ReasonMalformedReply means a datagram arrived but could not be parsed.
	ReasonMalformedReply Reason = "malformed_reply"

	// ReasonNoDeviceFound means no bulb address could be resolved.
	ReasonNoDeviceFound Reason = "no_device_found"

	// ReasonTransportError means a socket-level failure.
	ReasonTransportError Reason = "transport_error"

	// ReasonDeviceError means the bulb replied with an error object.
	ReasonDeviceError Reason = "device_error"
)

// sentinel maps a reason to its package error.
func (r Reason) sentinel() error {
	switch r {
	case ReasonTimeout:
		return ErrTimeout
	case ReasonMalformedReply:
		return ErrMalformedReply
	case ReasonNoDeviceFound:
		return ErrNoDeviceFound
	case ReasonDeviceError:
		return ErrDeviceError
	default:
		return ErrTransport
	}
}

// Result is the outcome of one exchange with a bulb: either a success
// carrying the parsed reply, or a failure carrying a Reason.
type Result struct {
	// Response is the parsed reply object. Nil on failure.
	Response map[string]any

	// Reason is ReasonNone on success.
	Reason Reason

	// Err describes the failure and wraps the sentinel for Reason.
	Err error
}

// Success creates a successful result.
func Success(response map[string]any) Result {
	return Result{Response: response}
}

// Failure creates a failed result. cause may be nil.
func Failure(reason Reason, cause error) Result {
	sentinel := reason.sentinel()
	err := sentinel
	switch {
	case cause == nil:
	case cause == sentinel:
	default:
		err = fmt.Errorf("%w: %w", sentinel, cause)
	}
	return Result{Reason: reason, Err: err}
}

// OK reports whether the exchange succeeded.
func (r Result) OK() bool {
	return r.Reason == ReasonNone
}

// String returns a short description for logs.
func (r Result) String() string {
	if r.OK() {
		return "success"
	}
	return fmt.Sprintf("failure(%s): %v", r.Reason, r.Err)
}
