package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementBulbState is the measurement bulb state reads are written to.
const MeasurementBulbState = "wiz_bulb_state"

// bulbStateFieldNames maps getPilot keys to field names. Numeric values
// are stored as integers so the field types stay stable across writes.
var bulbStateFieldNames = map[string]string{
	"dimming": "dimming",
	"r":       "r",
	"g":       "g",
	"b":       "b",
	"temp":    "temp",
	"sceneId": "scene_id",
	"rssi":    "rssi",
}

// WriteBulbState records one bulb state read.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Reads with no recognised fields are dropped.
//
// Parameters:
//   - mac: Bulb MAC address (tag)
//   - ip: Bulb address at the time of the read (tag)
//   - state: The getPilot result object
//   - at: Time of the read
//
// Example:
//
//	client.WriteBulbState("a8bb50000001", "192.168.1.40",
//	    map[string]any{"state": true, "dimming": 60.0}, time.Now())
func (c *Client) WriteBulbState(mac, ip string, state map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := bulbStatePoint(mac, ip, state, at)
	if point == nil {
		return
	}
	c.writeAPI.WritePoint(point)
}

// bulbStatePoint builds the point for a state read, or nil when the read
// carries no fields.
func bulbStatePoint(mac, ip string, state map[string]any, at time.Time) *write.Point {
	fields := bulbStateFields(state)
	if len(fields) == 0 {
		return nil
	}

	tags := map[string]string{"mac": mac}
	if ip != "" {
		tags["ip"] = ip
	}
	return write.NewPoint(MeasurementBulbState, tags, fields, at)
}

// bulbStateFields extracts the telemetry fields from a getPilot result.
func bulbStateFields(state map[string]any) map[string]any {
	fields := make(map[string]any)
	if on, ok := state["state"].(bool); ok {
		fields["on"] = on
	}
	for key, field := range bulbStateFieldNames {
		switch v := state[key].(type) {
		case float64:
			fields[field] = int64(v)
		case int:
			fields[field] = int64(v)
		case int64:
			fields[field] = v
		}
	}
	return fields
}
