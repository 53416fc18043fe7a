package wiz

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Wire protocol constants.
const (
	// DefaultPort is the UDP port WiZ bulbs listen on.
	DefaultPort = 38899

	// MethodRegistration is the discovery request and reply method.
	MethodRegistration = "registration"

	// MethodGetPilot reads the current bulb state.
	MethodGetPilot = "getPilot"

	// MethodSetPilot changes the bulb state.
	MethodSetPilot = "setPilot"

	// maxDatagramSize is the receive buffer size. getPilot replies are a few
	// hundred bytes.
	maxDatagramSize = 4096
)

// Default registration identity. Bulbs answer any well-formed registration,
// the values are never checked.
const (
	DefaultPhoneMAC = "AAAAAAAAAAAA"
	DefaultPhoneIP  = "1.2.3.4"
)

// Command is a single JSON-RPC style request sent to a bulb.
//
// Commands are built per call and never mutated after construction;
// NewCommand copies the params map.
type Command struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// NewCommand creates a command with a private copy of params.
func NewCommand(method string, params map[string]any) Command {
	p := make(map[string]any, len(params))
	maps.Copy(p, params)
	return Command{Method: method, Params: p}
}

// RegistrationCommand builds the discovery broadcast payload.
func RegistrationCommand(phoneMAC, phoneIP string) Command {
	if phoneMAC == "" {
		phoneMAC = DefaultPhoneMAC
	}
	if phoneIP == "" {
		phoneIP = DefaultPhoneIP
	}
	return NewCommand(MethodRegistration, map[string]any{
		"phoneMac": phoneMAC,
		"register": false,
		"phoneIp":  phoneIP,
		"id":       1,
	})
}

// GetPilotCommand builds the status query.
func GetPilotCommand() Command {
	return NewCommand(MethodGetPilot, nil)
}

// SetPilotCommand builds a control command with the given params.
func SetPilotCommand(params map[string]any) Command {
	return NewCommand(MethodSetPilot, params)
}

// Encode serialises the command to its wire form.
func (c Command) Encode() ([]byte, error) {
	params := c.Params
	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(Command{Method: c.Method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encoding %s command: %w", c.Method, err)
	}
	return data, nil
}

// decodeReply parses a reply datagram. Anything other than a JSON object
// is a malformed reply.
func decodeReply(data []byte) (map[string]any, error) {
	var reply map[string]any
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedReply, err)
	}
	if reply == nil {
		return nil, fmt.Errorf("%w: null reply", ErrMalformedReply)
	}
	return reply, nil
}

// replyResult returns the reply's "result" object if it is a non-empty object.
func replyResult(reply map[string]any) (map[string]any, bool) {
	result, ok := reply["result"].(map[string]any)
	if !ok || len(result) == 0 {
		return nil, false
	}
	return result, true
}

// replyError returns a description of the reply's "error" member, if any.
func replyError(reply map[string]any) (string, bool) {
	raw, ok := reply["error"]
	if !ok || raw == nil {
		return "", false
	}
	if obj, isObj := raw.(map[string]any); isObj {
		if msg, hasMsg := obj["message"].(string); hasMsg && msg != "" {
			return msg, true
		}
	}
	return fmt.Sprint(raw), true
}

// registrationReply is the subset of a discovery reply that is inspected.
type registrationReply struct {
	Method string `json:"method"`
	Result struct {
		MAC string `json:"mac"`
	} `json:"result"`
}

// parseRegistrationReply returns the bulb MAC if data is an acceptable
// discovery reply: method "registration" with a non-empty result.mac.
func parseRegistrationReply(data []byte) (string, bool) {
	var reply registrationReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return "", false
	}
	if reply.Method != MethodRegistration || reply.Result.MAC == "" {
		return "", false
	}
	return reply.Result.MAC, true
}
