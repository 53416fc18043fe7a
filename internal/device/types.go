package device

import (
	"maps"
	"time"
)

// DefaultPort is the UDP port WiZ bulbs answer on.
const DefaultPort = 38899

// timestampLayout is how times are stored. Fixed width and UTC, so string
// order equals time order in SQL comparisons.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// State is a bulb state snapshot as reported by getPilot.
type State map[string]any

// DeepCopy returns a copy of the state. Nested values are shared; getPilot
// results are flat.
func (s State) DeepCopy() State {
	if s == nil {
		return nil
	}
	return maps.Clone(s)
}

// Bulb is a bulb the log has seen during discovery.
type Bulb struct {
	// MAC is the normalised MAC address (12 lower-case hex digits).
	MAC string `json:"mac"`

	// IP is the address the bulb last answered from.
	IP string `json:"ip"`

	// Port is the UDP port the bulb last answered from.
	Port int `json:"port"`

	// FirstSeen is when the bulb was first discovered (UTC).
	FirstSeen time.Time `json:"first_seen"`

	// LastSeen is when the bulb was most recently discovered (UTC).
	LastSeen time.Time `json:"last_seen"`

	// Discoveries counts how many discovery runs found the bulb.
	Discoveries int `json:"discoveries"`
}

// Sighting is one bulb found by one discovery run.
type Sighting struct {
	MAC  string
	IP   string
	Port int
}

// StateHistoryEntry is a single recorded state read.
type StateHistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// MAC is the normalised MAC of the bulb.
	MAC string `json:"mac"`

	// IP is the address the state was read from, if known.
	IP string `json:"ip,omitempty"`

	// State is the getPilot result.
	State State `json:"state"`

	// Source identifies what triggered the read (cli, api, mqtt, poll).
	Source string `json:"source"`

	// RecordedAt is when the state was read (UTC).
	RecordedAt time.Time `json:"recorded_at"`
}

// formatTimestamp renders t in the stored layout.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
