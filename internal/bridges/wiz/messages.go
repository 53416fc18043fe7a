package wiz

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MQTT message types exchanged between Gray Logic Core and the WiZ bridge.

// protocolName identifies this bridge in messages and topics.
const protocolName = "wiz"

// CommandMessage is sent from Core to Bridge to control the bulb.
// Topic: graylogic/command/wiz/{mac}
type CommandMessage struct {
	// ID correlates the command with its acknowledgment.
	// A missing ID is assigned by the bridge.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the Gray Logic device identifier.
	DeviceID string `json:"device_id"`

	// Command is one of: on, off, brightness, rgb, color_temp, warm_white,
	// scene, get_state, discover, clear_cache.
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"level": 50} for brightness
	//   {"r": 255, "g": 0, "b": 0} for rgb
	//   {"scene_id": 4, "speed": 10} for scene
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	Source string `json:"source"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the bulb confirmed the command.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the bulb did not reply, even after rediscovery.
	AckTimeout AckStatus = "timeout"
)

// AckMessage is sent from Bridge to Core to acknowledge a command.
// Topic: graylogic/ack/wiz/{mac}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`
	Address   string    `json:"address"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is one of the ErrCode constants.
	Code string `json:"code"`

	// Message is the failure envelope's message.
	Message string `json:"message"`

	// Reason is the engine failure reason, when there is one.
	Reason Reason `json:"reason,omitempty"`
}

// Error codes for command failures.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeProtocolError     = "PROTOCOL_ERROR"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// errorCodeFor maps an engine failure reason to an ack error code.
func errorCodeFor(reason Reason) string {
	switch reason {
	case ReasonTimeout:
		return ErrCodeTimeout
	case ReasonNoDeviceFound, ReasonTransportError:
		return ErrCodeDeviceUnreachable
	case ReasonMalformedReply, ReasonDeviceError:
		return ErrCodeProtocolError
	default:
		return ErrCodeBridgeError
	}
}

// StateMessage is sent from Bridge to Core when the bulb state changes.
// Topic: graylogic/state/wiz/{mac}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`

	// State is the normalised bulb state:
	//   {"on": true, "level": 60, "r": 255, "g": 80, "b": 0,
	//    "color_temp": 2700, "scene_id": 6, "scene": "Cozy", "rssi": -55}
	State map[string]any `json:"state"`

	Protocol string `json:"protocol"`
	Address  string `json:"address"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates MQTT is connected and the bulb is resolved.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates MQTT is down or the bulb is not resolved.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the bridge is not connected (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports bridge status.
// Topic: graylogic/health/wiz
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string            `json:"bridge"`
	Timestamp     time.Time         `json:"timestamp"`
	Status        HealthStatus      `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Bulb          *BulbStatus       `json:"bulb,omitempty"`
	Statistics    *BridgeStatistics `json:"statistics,omitempty"`
	Reason        string            `json:"reason,omitempty"`
}

// BulbStatus describes the session's view of the bulb.
type BulbStatus struct {
	// Session is "unresolved", "resolved" or "degraded".
	Session string `json:"session"`

	// Address is the resolved bulb address, if any.
	Address string `json:"address,omitempty"`
	Port    int    `json:"port,omitempty"`
}

// BridgeStatistics contains operational counters.
type BridgeStatistics struct {
	CommandsReceived uint64 `json:"commands_received"`
	CommandsFailed   uint64 `json:"commands_failed"`
	StatesPublished  uint64 `json:"states_published"`
}

// DiscoveryMessage announces bulbs found by a discover command.
// Topic: graylogic/discovery/wiz
type DiscoveryMessage struct {
	Timestamp time.Time          `json:"timestamp"`
	Bridge    string             `json:"bridge"`
	Devices   []DiscoveredDevice `json:"devices"`
}

// MarshalJSON marshals a CommandMessage with an RFC3339 timestamp.
func (m *CommandMessage) MarshalJSON() ([]byte, error) {
	type Alias CommandMessage
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(m),
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON unmarshals a CommandMessage. An empty timestamp is allowed.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// NewAckMessage creates a successful acknowledgment.
func NewAckMessage(cmd CommandMessage, address string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    AckAccepted,
		Protocol:  protocolName,
		Address:   address,
	}
}

// NewAckError creates a failed acknowledgment.
func NewAckError(cmd CommandMessage, address, code, message string, reason Reason) AckMessage {
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    status,
		Protocol:  protocolName,
		Address:   address,
		Error: &AckError{
			Code:    code,
			Message: message,
			Reason:  reason,
		},
	}
}

// NewStateMessage creates a state message from a getPilot result.
func NewStateMessage(deviceID, address string, result map[string]any) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		State:     NormaliseState(result),
		Protocol:  protocolName,
		Address:   address,
	}
}

// NewLWTMessage creates the Last Will and Testament payload, published by
// the broker if the bridge disconnects unexpectedly.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// NormaliseState maps getPilot result fields to Gray Logic state keys.
// Fields the bulb did not report are omitted.
func NormaliseState(result map[string]any) map[string]any {
	state := make(map[string]any)
	rename := map[string]string{
		"state":   "on",
		"dimming": "level",
		"r":       "r",
		"g":       "g",
		"b":       "b",
		"temp":    "color_temp",
		"sceneId": "scene_id",
		"speed":   "speed",
		"rssi":    "rssi",
	}
	for from, to := range rename {
		if v, ok := result[from]; ok {
			state[to] = v
		}
	}
	if id, ok := numericValue(result["sceneId"]); ok {
		if name, known := SceneName(int(id)); known {
			state["scene"] = name
		}
	}
	return state
}

// numericValue returns v as a float64 if it is a JSON or Go number.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Topic helpers

const (
	// TopicPrefix is the base topic for all Gray Logic messages.
	TopicPrefix = "graylogic"

	// defaultTopicAddress is used when the bulb MAC is unknown.
	defaultTopicAddress = "bulb"
)

// CommandTopic returns the command topic for a bulb.
// Example: graylogic/command/wiz/a8bb50000001
func CommandTopic(address string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, protocolName, TopicAddress(address))
}

// AckTopic returns the acknowledgment topic for a bulb.
func AckTopic(address string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, protocolName, TopicAddress(address))
}

// StateTopic returns the state topic for a bulb.
func StateTopic(address string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, protocolName, TopicAddress(address))
}

// HealthTopic returns the bridge health topic.
func HealthTopic() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, protocolName)
}

// DiscoveryTopic returns the discovery announcement topic.
func DiscoveryTopic() string {
	return fmt.Sprintf("%s/discovery/%s", TopicPrefix, protocolName)
}

// CommandSubscribeTopic returns the subscription pattern for all commands.
func CommandSubscribeTopic() string {
	return fmt.Sprintf("%s/command/%s/#", TopicPrefix, protocolName)
}

// TopicAddress makes a bulb identifier safe for use as one topic level.
// MACs are lower-cased with separators removed; MQTT wildcards and level
// separators are replaced.
func TopicAddress(address string) string {
	if address == "" {
		return defaultTopicAddress
	}
	replacer := strings.NewReplacer(":", "", "-", "", "/", "_", "+", "_", "#", "_")
	return strings.ToLower(replacer.Replace(address))
}
