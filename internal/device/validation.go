package device

import (
	"fmt"
	"net/netip"
	"strings"
)

// Validation constants.
const (
	macHexDigits = 12
	maxPort      = 65535

	// maxStateKeys bounds a stored snapshot. getPilot returns about a dozen keys.
	maxStateKeys = 64
)

// macSeparators are stripped before validating a MAC.
var macSeparators = strings.NewReplacer(":", "", "-", "", ".", "")

// NormalizeMAC converts a MAC address to 12 lower-case hex digits.
// Colon, hyphen and dot separated forms are accepted.
//
// Returns ErrInvalidMAC if the result is not exactly 12 hex digits.
func NormalizeMAC(mac string) (string, error) {
	normalised := strings.ToLower(macSeparators.Replace(strings.TrimSpace(mac)))
	if len(normalised) != macHexDigits {
		return "", fmt.Errorf("%w: %q", ErrInvalidMAC, mac)
	}
	for _, c := range normalised {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("%w: %q", ErrInvalidMAC, mac)
		}
	}
	return normalised, nil
}

// ValidateSighting normalises a discovery sighting in place.
// A zero port is replaced with DefaultPort.
func ValidateSighting(s *Sighting) error {
	mac, err := NormalizeMAC(s.MAC)
	if err != nil {
		return err
	}
	s.MAC = mac

	if _, err := netip.ParseAddr(s.IP); err != nil {
		return fmt.Errorf("%w: ip %q", ErrInvalidAddress, s.IP)
	}
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.Port < 1 || s.Port > maxPort {
		return fmt.Errorf("%w: port %d", ErrInvalidAddress, s.Port)
	}
	return nil
}

// ValidateState checks a snapshot is storable.
func ValidateState(state State) error {
	if len(state) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidState)
	}
	if len(state) > maxStateKeys {
		return fmt.Errorf("%w: %d keys exceeds maximum %d", ErrInvalidState, len(state), maxStateKeys)
	}
	return nil
}
