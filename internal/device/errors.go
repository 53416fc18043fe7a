package device

import "errors"

// Errors returned by the bulb log stores. Validation errors are wrapped
// with the offending value; test with errors.Is.
var (
	ErrBulbNotFound = errors.New("device: bulb not found")

	// ErrInvalidMAC: not 12 hex digits once separators are removed.
	ErrInvalidMAC = errors.New("device: invalid MAC address")

	// ErrInvalidAddress: an unparseable IP or a port outside 1-65535.
	ErrInvalidAddress = errors.New("device: invalid address")

	// ErrInvalidState: an empty snapshot, or one over the size cap.
	ErrInvalidState = errors.New("device: invalid state")
)
